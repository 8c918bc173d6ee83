// Copyright 2026 The plug Authors. All rights reserved.
// Use of this source code is governed by the MIT license, see the LICENSE file.

package plug

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// invoker owns an accepted stream: it builds the correctly typed connection
// around it, runs the registered handler and closes the stream. It is the
// type-erased form a registration leaves behind; a Strip never sees the
// concrete request and response types.
type invoker func(rwc io.ReadWriteCloser) error

// Strip routes accepted connections to channel handlers by the name in the
// client's handshake.
//
// Registration happens through Plug during a distinct construction phase.
// The first Attach freezes the Strip: registration is refused from then on,
// and the channel map is read concurrently without locking.
type Strip struct {
	Codec        Codec // payload codec for accepted connections
	FrameMaxSize int   // largest accepted frame payload, in bytes

	mu       sync.Mutex // guards channels until serving is set
	serving  atomic.Bool
	channels map[string]invoker
}

// NewStrip returns an empty Strip using DefaultCodec and
// DefaultFrameMaxSize.
func NewStrip() *Strip {
	return &Strip{
		Codec:        DefaultCodec,
		FrameMaxSize: DefaultFrameMaxSize,
		channels:     make(map[string]invoker),
	}
}

// Plug registers handler for the given channel on the strip. The handler
// takes ownership of a connection that reads Req and writes Resp; the stream
// is closed when the handler returns.
//
// Plug fails with ErrDuplicateChannel if the name is already registered and
// with ErrStripServing once the strip has started accepting connections.
// It is a free function rather than a method so it can carry the channel's
// type parameters.
func Plug[Req, Resp any](strip *Strip, ch Channel[Req, Resp], handler func(conn *Conn[Req, Resp]) error) error {
	strip.mu.Lock()
	defer strip.mu.Unlock()
	if strip.serving.Load() {
		return errors.WithStack(ErrStripServing{})
	}
	if _, taken := strip.channels[ch.name]; taken {
		return errors.WithStack(ErrDuplicateChannel{Name: ch.name})
	}
	strip.channels[ch.name] = func(rwc io.ReadWriteCloser) error {
		conn := newConn[Req, Resp](rwc, strip.config())
		defer conn.Close()
		return handler(conn)
	}
	return nil
}

// MustPlug is Plug that panics on registration errors, for use with
// process-wide channel sets where a failure is a programming error.
func MustPlug[Req, Resp any](strip *Strip, ch Channel[Req, Resp], handler func(conn *Conn[Req, Resp]) error) *Strip {
	if err := Plug(strip, ch, handler); err != nil {
		panic(err)
	}
	return strip
}

// Attach serves one accepted connection: it reads the handshake frame,
// looks up the named channel and hands the stream to its handler, returning
// whatever the handler returns. The stream is closed on every path.
//
// On an unknown name Attach sends a rejection control frame, closes the
// stream and returns ErrChannelNotFound. A malformed handshake yields the
// corresponding wire or codec error.
//
// Attach may be called from any number of goroutines; each call owns its
// stream independently.
func (s *Strip) Attach(rwc io.ReadWriteCloser) error {
	s.freeze()
	hc := newConn[handshake, struct{}](rwc, s.config())
	hs, err := hc.Read()
	if err != nil {
		rwc.Close()
		return err
	}
	handle := s.channels[hs.Name]
	if handle == nil {
		_ = hc.writeControl(ControlCodeRefused, hs.Name)
		rwc.Close()
		return errors.WithStack(ErrChannelNotFound{Name: hs.Name})
	}
	return handle(rwc)
}

// Channels returns the sorted names of the registered channels.
func (s *Strip) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// freeze marks the strip as serving. Synchronizing on the mutex once makes
// sure a Plug call in flight completes or fails before dispatch starts
// reading the map without locks.
func (s *Strip) freeze() {
	if !s.serving.Load() {
		s.mu.Lock()
		s.serving.Store(true)
		s.mu.Unlock()
	}
}

func (s *Strip) config() connConfig {
	cfg := connConfig{codec: s.Codec, frameMaxSize: s.FrameMaxSize}
	if cfg.codec == nil {
		cfg.codec = DefaultCodec
	}
	if cfg.frameMaxSize <= 0 {
		cfg.frameMaxSize = DefaultFrameMaxSize
	}
	return cfg
}
