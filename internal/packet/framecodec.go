package packet

import (
	"errors"

	"lithiumnet/internal/wire"
)

// DecodeFrames drains every complete length-delimited frame currently available in buf,
// leaving any trailing partial frame untouched — reader index preserved — for the next
// read. This mirrors the upstream framing loop: poll the availability oracle, read a frame
// while it holds, and roll back to the frame boundary if the advertised payload isn't fully
// buffered yet.
func DecodeFrames(buf *wire.Buffer) ([]*wire.Buffer, error) {
	var frames []*wire.Buffer
	for buf.IsIntegerAvailable() {
		buf.MarkReaderIndex()
		frame, err := buf.ReadBuffer()
		if err != nil {
			if errors.Is(err, wire.ErrShortRead) {
				buf.ResetReaderIndex()
				break
			}
			buf.ResetReaderIndex()
			return frames, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// EncodeFrame wraps payload as a single length-delimited frame ready to be appended to an
// outbound transport buffer.
func EncodeFrame(dst *wire.Buffer, payload *wire.Buffer) {
	dst.WriteBuffer(payload)
}
