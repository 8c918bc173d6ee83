package plug

import "fmt"

// ErrFrameTooLarge is returned when a frame payload exceeds the configured
// maximum frame size. On reads it is detected from the header alone, before
// any payload byte is consumed.
type ErrFrameTooLarge struct {
	Size int // announced or attempted payload size
	Max  int // configured maximum
}

func (e ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("frame size %d exceeds maximum %d", e.Size, e.Max)
}

// ErrChannelNotFound is returned when the handshake names a channel that has
// no registered handler on the accepting side.
type ErrChannelNotFound struct {
	Name string // the channel name that was refused
}

func (e ErrChannelNotFound) Error() string {
	return fmt.Sprintf("channel %q not found", e.Name)
}

// ErrDuplicateChannel is returned when registering a channel whose name is
// already taken on the Strip.
type ErrDuplicateChannel struct {
	Name string // the conflicting channel name
}

func (e ErrDuplicateChannel) Error() string {
	return fmt.Sprintf("channel %q already registered", e.Name)
}

// ErrStripServing is returned when registering on a Strip after it has
// started accepting connections.
type ErrStripServing struct{}

func (ErrStripServing) Error() string { return "strip is serving, registration closed" }

// ErrUnhandledControlCode is returned when a control frame carries an
// unknown control code.
type ErrUnhandledControlCode struct {
	Code ControlCode // the control code value received
}

func (e ErrUnhandledControlCode) Error() string {
	return fmt.Sprintf("unhandled control code 0x%02x", byte(e.Code))
}

// ErrSerialize wraps a codec failure to encode an outgoing value.
type ErrSerialize struct {
	Err error
}

func (e ErrSerialize) Error() string { return "serialize: " + e.Err.Error() }

// Unwrap returns the underlying codec error.
func (e ErrSerialize) Unwrap() error { return e.Err }

// Cause returns the underlying codec error.
func (e ErrSerialize) Cause() error { return e.Err }

// ErrDeserialize wraps a codec failure to decode an incoming payload.
type ErrDeserialize struct {
	Err error
}

func (e ErrDeserialize) Error() string { return "deserialize: " + e.Err.Error() }

// Unwrap returns the underlying codec error.
func (e ErrDeserialize) Unwrap() error { return e.Err }

// Cause returns the underlying codec error.
func (e ErrDeserialize) Cause() error { return e.Err }
