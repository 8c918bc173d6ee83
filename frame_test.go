package plug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FrameHeader_IsBlank(t *testing.T) {
	var hdr [FrameHeaderSize]byte
	fh := FrameHeader(hdr[:])
	assert.Equal(t, 0, fh.SizeValue())
	assert.False(t, fh.IsControl())
}

func Test_FrameHeader_SizeValue(t *testing.T) {
	var hdr [FrameHeaderSize]byte
	fh := FrameHeader(hdr[:])
	fh.SetSizeValue(12)
	assert.Equal(t, 12, fh.SizeValue())
	fh.SetSizeValue(frameMaxSizeLimit)
	assert.Equal(t, int(frameMaxSizeLimit), fh.SizeValue())
	assert.False(t, fh.IsControl())
	fh.Clear()
	assert.Equal(t, 0, fh.SizeValue())
}

func Test_FrameHeader_ControlBit(t *testing.T) {
	var hdr [FrameHeaderSize]byte
	fh := FrameHeader(hdr[:])
	fh.SetControl()
	assert.True(t, fh.IsControl())
	assert.Equal(t, 0, fh.SizeValue())
	fh.SetSizeValue(7)
	assert.True(t, fh.IsControl())
	assert.Equal(t, 7, fh.SizeValue())
}

func Test_FrameHeader_String(t *testing.T) {
	var hdr [FrameHeaderSize]byte
	fh := FrameHeader(hdr[:])
	fh.SetSizeValue(3)
	assert.Equal(t, "[FrameHeader data 3]", fh.String())
	fh.SetControl()
	assert.Equal(t, "[FrameHeader ctrl 3]", fh.String())
}

func Test_Frame_Append(t *testing.T) {
	payload := []byte("hello")
	frame := appendFrame(nil, false, payload)
	assert.Equal(t, FrameHeaderSize+len(payload), len(frame))
	fh := FrameHeader(frame[:FrameHeaderSize])
	assert.Equal(t, len(payload), fh.SizeValue())
	assert.False(t, fh.IsControl())
	assert.Equal(t, payload, frame[FrameHeaderSize:])
}

func Test_Frame_AppendControl(t *testing.T) {
	frame := appendFrame(nil, true, appendControl(nil, ControlCodeRefused, "nope"))
	fh := FrameHeader(frame[:FrameHeaderSize])
	assert.True(t, fh.IsControl())
	code, text := parseControl(frame[FrameHeaderSize:])
	assert.Equal(t, ControlCodeRefused, code)
	assert.Equal(t, "nope", text)
}

func Test_Frame_ParseControlEmpty(t *testing.T) {
	code, text := parseControl(nil)
	assert.Equal(t, ControlCodeInvalid, code)
	assert.Equal(t, "", text)
}
