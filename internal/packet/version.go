package packet

import (
	"fmt"

	"lithiumnet/internal/wire"
)

// Version is a self-describing storage value of up to three components (major.minor.patch).
//
// The upstream writer set its continuation bit from an unrelated condition, producing an
// asymmetric encoding the reader could not reliably decode past the major component. This
// implementation adopts the reader's own convention instead: a byte's high bit is set iff a
// following non-zero component exists, so encode and decode agree.
type Version struct {
	Major int
	Minor int
	Patch int
}

const continuationBit = 0x80

// WriteTo implements wire.StorageValue.
func (v Version) WriteTo(b *wire.Buffer) {
	hasMinor := v.Minor != 0 || v.Patch != 0
	hasPatch := v.Patch != 0

	major := byte(v.Major) &^ continuationBit
	if hasMinor {
		major |= continuationBit
	}
	b.WriteByte(major)
	if !hasMinor {
		return
	}

	minor := byte(v.Minor) &^ continuationBit
	if hasPatch {
		minor |= continuationBit
	}
	b.WriteByte(minor)
	if !hasPatch {
		return
	}

	b.WriteByte(byte(v.Patch) &^ continuationBit)
}

// ReadFrom implements wire.StorageValue.
func (v *Version) ReadFrom(b *wire.Buffer) error {
	*v = Version{}

	major, err := b.ReadByte()
	if err != nil {
		return err
	}
	v.Major = int(major &^ continuationBit)
	if major&continuationBit == 0 {
		return nil
	}

	minor, err := b.ReadByte()
	if err != nil {
		return err
	}
	v.Minor = int(minor &^ continuationBit)
	if minor&continuationBit == 0 {
		return nil
	}

	patch, err := b.ReadByte()
	if err != nil {
		return err
	}
	v.Patch = int(patch &^ continuationBit)
	return nil
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
