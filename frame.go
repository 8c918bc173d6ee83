// frame.go

// A frame is the basic unit on the wire: a four byte big-endian header
// followed by the payload bytes. The low 31 bits of the header hold the
// payload size. The top bit marks a control frame, whose payload is a
// ControlCode byte and optional UTF-8 detail text instead of codec output.
//
// Data frames always have the control bit clear since the enforced frame
// size limit is far below 2^31.

package plug

import (
	"encoding/binary"
	"fmt"
)

const (
	// FrameHeaderSize is the number of bytes in a frame header.
	FrameHeaderSize = 4
	// DefaultFrameMaxSize is the default limit on frame payload size.
	DefaultFrameMaxSize = 1 << 20
	// frameMaxSizeLimit is the largest payload size the header can express.
	frameMaxSizeLimit = int(frameSizeMask)
)

const (
	frameControlBit = uint32(1) << 31
	frameSizeMask   = ^frameControlBit
)

// FrameHeader holds the first FrameHeaderSize bytes of a frame.
type FrameHeader []byte

// SizeValue returns the payload size announced by the header.
func (fh FrameHeader) SizeValue() int {
	return int(binary.BigEndian.Uint32(fh) & frameSizeMask)
}

// SetSizeValue sets the payload size, preserving the control bit.
func (fh FrameHeader) SetSizeValue(n int) {
	binary.BigEndian.PutUint32(fh, binary.BigEndian.Uint32(fh)&frameControlBit|uint32(n)&frameSizeMask)
}

// IsControl returns true if the control bit is set.
func (fh FrameHeader) IsControl() bool {
	return binary.BigEndian.Uint32(fh)&frameControlBit != 0
}

// SetControl sets the control bit.
func (fh FrameHeader) SetControl() {
	binary.BigEndian.PutUint32(fh, binary.BigEndian.Uint32(fh)|frameControlBit)
}

// Clear zeroes the header bytes.
func (fh FrameHeader) Clear() {
	binary.BigEndian.PutUint32(fh, 0)
}

func (fh FrameHeader) String() string {
	kind := "data"
	if fh.IsControl() {
		kind = "ctrl"
	}
	return fmt.Sprintf("[FrameHeader %s %d]", kind, fh.SizeValue())
}

// appendFrame appends a complete frame to dst and returns the result.
// The payload is copied so dst is the only buffer that needs to survive
// until the write completes.
func appendFrame(dst []byte, control bool, payload []byte) []byte {
	var hdr [FrameHeaderSize]byte
	fh := FrameHeader(hdr[:])
	fh.SetSizeValue(len(payload))
	if control {
		fh.SetControl()
	}
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}
