package smpp

import "encoding/binary"

// maxFrameSize bounds command_length; anything larger is treated as a
// malformed stream rather than trusted from the peer (design notes, open
// question on malformed-length frames).
const maxFrameSize = 64 * 1024

// Framer extracts length-prefixed SMPP PDUs from an inbound byte stream.
// SMPP frames are self-delimiting: the first four bytes of every PDU encode
// command_length (big-endian, inclusive of the length field itself). The
// Framer only ever looks at that prefix; it does not validate anything
// else about the frame.
type Framer struct {
	buf []byte
}

// NewFramer creates an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends inbound bytes to the buffer.
func (f *Framer) Feed(b []byte) {
	f.buf = append(f.buf, b...)
}

// Pop returns the next complete frame, or nil if the buffer holds less than
// a full frame yet. A successful Pop removes exactly command_length bytes
// from the head of the buffer, so the remaining buffer starts at the next
// PDU boundary. It returns a *FramingError if command_length is outside
// [16, maxFrameSize] — the caller must close the session on that error.
func (f *Framer) Pop() ([]byte, error) {
	if len(f.buf) < 4 {
		return nil, nil
	}
	length := binary.BigEndian.Uint32(f.buf[:4])
	if length < 16 {
		return nil, &FramingError{Msg: "command_length under 16"}
	}
	if length > maxFrameSize {
		return nil, &FramingError{Msg: "command_length exceeds 64KiB"}
	}
	if uint32(len(f.buf)) < length {
		return nil, nil
	}
	frame := make([]byte, length)
	copy(frame, f.buf[:length])
	f.buf = f.buf[length:]
	return frame, nil
}
