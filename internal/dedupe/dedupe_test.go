package dedupe

import (
	"testing"
	"time"

	"lithiumnet/internal/packet"
)

func TestSeenFirstTimeFalseThenTrue(t *testing.T) {
	c := New(time.Minute)
	id := packet.NewUUID()

	if c.Seen(id) {
		t.Fatal("first Seen should return false")
	}
	if !c.Seen(id) {
		t.Fatal("second Seen within the TTL should return true")
	}
}

func TestSeenExpiresAfterTTL(t *testing.T) {
	c := New(time.Millisecond)
	id := packet.NewUUID()

	if c.Seen(id) {
		t.Fatal("first Seen should return false")
	}
	time.Sleep(5 * time.Millisecond)
	if c.Seen(id) {
		t.Fatal("Seen should return false again once the TTL has elapsed")
	}
}

func TestSeenDistinctIDsDoNotCollide(t *testing.T) {
	c := New(time.Minute)
	a, b := packet.NewUUID(), packet.NewUUID()

	c.Seen(a)
	if c.Seen(b) {
		t.Fatal("a distinct id must not be reported as already seen")
	}
}
