// Copyright 2026 The plug Authors. All rights reserved.
// Use of this source code is governed by the MIT license, see the LICENSE file.

package plug

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// connConfig carries the per-connection settings shared by Conn, Channel
// and Strip.
type connConfig struct {
	codec        Codec
	frameMaxSize int
	dialTimeout  time.Duration
}

func defaultConfig() connConfig {
	return connConfig{
		codec:        DefaultCodec,
		frameMaxSize: DefaultFrameMaxSize,
	}
}

func (cfg connConfig) apply(opts []Option) connConfig {
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option adjusts the settings of a connection being established.
type Option func(*connConfig)

// WithCodec sets the payload codec. The default is DefaultCodec.
func WithCodec(codec Codec) Option {
	return func(cfg *connConfig) { cfg.codec = codec }
}

// WithFrameMaxSize sets the largest frame payload accepted or produced,
// in bytes. The default is DefaultFrameMaxSize.
func WithFrameMaxSize(n int) Option {
	return func(cfg *connConfig) { cfg.frameMaxSize = n }
}

// WithDialTimeout limits how long Channel.Connect waits for the transport
// connection to be established. Zero means no limit.
func WithDialTimeout(d time.Duration) Option {
	return func(cfg *connConfig) { cfg.dialTimeout = d }
}

// deadliner is implemented by streams that support deadlines, e.g. net.Conn.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Conn is a connection wrapper that reads values of type In and writes
// values of type Out. The two sides of a channel see the same logical
// connection with the type parameters swapped.
//
// A Conn performs no internal locking. Reads from multiple goroutines, or
// writes from multiple goroutines, must be serialized by the caller; one
// reader and one writer at a time is fine. Closing the underlying stream
// makes any pending Read or Write fail promptly.
type Conn[In, Out any] struct {
	rwc   io.ReadWriteCloser
	codec Codec
	max   int
	hdr   [FrameHeaderSize]byte
	rbuf  []byte // reused frame payload buffer
	wbuf  []byte // reused frame assembly buffer
}

// NewConn takes over an established duplex byte stream without performing a
// handshake. Unless you know what you are doing, use a Channel instead.
func NewConn[In, Out any](rwc io.ReadWriteCloser, opts ...Option) *Conn[In, Out] {
	return newConn[In, Out](rwc, defaultConfig().apply(opts))
}

func newConn[In, Out any](rwc io.ReadWriteCloser, cfg connConfig) *Conn[In, Out] {
	return &Conn[In, Out]{
		rwc:   rwc,
		codec: cfg.codec,
		max:   cfg.frameMaxSize,
	}
}

// Write encodes v and sends it as one frame.
func (c *Conn[In, Out]) Write(v Out) (err error) {
	payload, err := c.codec.Marshal(v)
	if err != nil {
		return errors.WithStack(ErrSerialize{Err: err})
	}
	return c.writeFrame(false, payload)
}

// WriteBytes sends raw bytes as one frame, bypassing the codec.
func (c *Conn[In, Out]) WriteBytes(payload []byte) error {
	return c.writeFrame(false, payload)
}

// Read receives one frame and decodes it as an In value.
//
// It fails with io.EOF if the peer closed the stream before a new frame
// started, ErrFrameTooLarge if the announced size exceeds the configured
// maximum, ErrChannelNotFound if the peer refused the handshake, and
// ErrDeserialize if the payload does not decode as In.
func (c *Conn[In, Out]) Read() (v In, err error) {
	var payload []byte
	if payload, err = c.readFrame(); err == nil {
		if err = c.codec.Unmarshal(payload, &v); err != nil {
			err = errors.WithStack(ErrDeserialize{Err: err})
		}
	}
	return
}

// ReadBytes receives one frame and returns its raw payload, bypassing the
// codec. The returned slice is only valid until the next read.
func (c *Conn[In, Out]) ReadBytes() ([]byte, error) {
	return c.readFrame()
}

// CopyTo streams the remaining raw bytes of the connection to w, returning
// the number of bytes copied. The frame structure is not interpreted.
func (c *Conn[In, Out]) CopyTo(w io.Writer) (int64, error) {
	n, err := io.Copy(w, c.rwc)
	return n, errors.WithStack(err)
}

// Join copies raw bytes between the connection and rw in both directions,
// effectively splicing the two streams together. It returns the bytes sent
// to rw and received from it once both directions have ended.
func (c *Conn[In, Out]) Join(rw io.ReadWriter) (sent, received int64, err error) {
	var wg sync.WaitGroup
	var sendErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		sent, sendErr = io.Copy(rw, c.rwc)
	}()
	received, err = io.Copy(c.rwc, rw)
	wg.Wait()
	if err == nil {
		err = sendErr
	}
	return sent, received, errors.WithStack(err)
}

// SetDeadline sets the read and write deadline on the underlying stream if
// it supports deadlines, e.g. a net.Conn. It is a no-op otherwise.
func (c *Conn[In, Out]) SetDeadline(t time.Time) error {
	if d, ok := c.rwc.(deadliner); ok {
		return errors.WithStack(d.SetDeadline(t))
	}
	return nil
}

// Close closes the underlying stream, failing any pending reads or writes.
func (c *Conn[In, Out]) Close() error {
	return c.rwc.Close()
}

func (c *Conn[In, Out]) String() string {
	return fmt.Sprintf("[Conn %s %d]", c.codec.Name(), c.max)
}

func (c *Conn[In, Out]) writeFrame(control bool, payload []byte) error {
	if len(payload) > c.max {
		return errors.WithStack(ErrFrameTooLarge{Size: len(payload), Max: c.max})
	}
	c.wbuf = appendFrame(c.wbuf[:0], control, payload)
	// one Write call per frame so the transport sees it whole
	_, err := c.rwc.Write(c.wbuf)
	return errors.WithStack(err)
}

func (c *Conn[In, Out]) writeControl(code ControlCode, text string) error {
	return c.writeFrame(true, appendControl(nil, code, text))
}

// readFrame reads one data frame payload into the reused buffer. A control
// frame is turned into the error it announces.
func (c *Conn[In, Out]) readFrame() ([]byte, error) {
	if _, err := io.ReadFull(c.rwc, c.hdr[:]); err != nil {
		// io.EOF here means the peer closed between frames
		return nil, errors.WithStack(err)
	}
	fh := FrameHeader(c.hdr[:])
	n := fh.SizeValue()
	if n > c.max {
		return nil, errors.WithStack(ErrFrameTooLarge{Size: n, Max: c.max})
	}
	if cap(c.rbuf) < n {
		c.rbuf = make([]byte, n)
	}
	payload := c.rbuf[:n]
	if _, err := io.ReadFull(c.rwc, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.WithStack(err)
	}
	if fh.IsControl() {
		return nil, controlError(payload)
	}
	return payload, nil
}

// controlError maps a control frame payload to the error it signals.
func controlError(payload []byte) error {
	code, text := parseControl(payload)
	switch code {
	case ControlCodeRefused:
		return errors.WithStack(ErrChannelNotFound{Name: text})
	}
	return errors.WithStack(ErrUnhandledControlCode{Code: code})
}
