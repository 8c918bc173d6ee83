package plug

// ControlCode enumerates the known control frame payload types.
type ControlCode byte

const (
	// ControlCodeInvalid is not usable and if received will fail the read.
	ControlCodeInvalid = ControlCode(0x00)
	// ControlCodeRefused is sent by the accepting side before closing when
	// the handshake names a channel it has no handler for. The detail text
	// is the refused channel name.
	ControlCodeRefused = ControlCode(0x01)
)

// appendControl appends a control frame payload consisting of the code byte
// and the detail text.
func appendControl(dst []byte, code ControlCode, text string) []byte {
	dst = append(dst, byte(code))
	return append(dst, text...)
}

// parseControl splits a control frame payload into code and detail text.
func parseControl(payload []byte) (code ControlCode, text string) {
	if len(payload) > 0 {
		code = ControlCode(payload[0])
		text = string(payload[1:])
	}
	return
}
