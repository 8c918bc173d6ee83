// Copyright 2026 The plug Authors. All rights reserved.
// Use of this source code is governed by the MIT license, see the LICENSE file.

package plug

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/pkg/errors"
)

// handshake is the first frame on every connection, naming the channel the
// client wants. It is encoded with the same codec as application payloads.
type handshake struct {
	Name string `json:"name"`
}

// Channel is a named, statically typed request/response contract. A Channel
// is an immutable value; define one per operation and share the definition
// between client and server:
//
//	var Ping = plug.NewChannel[PingRequest, PingResponse]("ping")
//
// The type parameters carry no run-time payload. Only the name crosses the
// wire, so two processes agreeing on a name but not on the types will fail
// at decode time, not at connect time.
type Channel[Req, Resp any] struct {
	name string
}

// NewChannel returns a Channel binding name to the (Req, Resp) type pair.
func NewChannel[Req, Resp any](name string) Channel[Req, Resp] {
	return Channel[Req, Resp]{name: name}
}

// Name returns the channel name.
func (ch Channel[Req, Resp]) Name() string { return ch.name }

func (ch Channel[Req, Resp]) String() string {
	return fmt.Sprintf("[Channel %s]", ch.name)
}

// Connect dials the server at the given TCP address, writes the handshake
// naming this channel and returns a connection that writes Req and reads
// Resp. A missing handler on the remote side surfaces as ErrChannelNotFound
// on the first subsequent Read.
func (ch Channel[Req, Resp]) Connect(address string, opts ...Option) (*Conn[Resp, Req], error) {
	return ch.ConnectContext(context.Background(), address, opts...)
}

// ConnectContext is Connect with a context bounding the dial.
func (ch Channel[Req, Resp]) ConnectContext(ctx context.Context, address string, opts ...Option) (*Conn[Resp, Req], error) {
	cfg := defaultConfig().apply(opts)
	dialer := net.Dialer{Timeout: cfg.dialTimeout}
	rwc, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	conn, err := ch.seize(rwc, cfg)
	if err != nil {
		rwc.Close()
		return nil, err
	}
	return conn, nil
}

// Seize takes over an already established duplex byte stream and redirects
// it through the channel by writing the handshake. The stream is not closed
// if the handshake fails; it still belongs to the caller.
func (ch Channel[Req, Resp]) Seize(rwc io.ReadWriteCloser, opts ...Option) (*Conn[Resp, Req], error) {
	return ch.seize(rwc, defaultConfig().apply(opts))
}

func (ch Channel[Req, Resp]) seize(rwc io.ReadWriteCloser, cfg connConfig) (*Conn[Resp, Req], error) {
	conn := newConn[Resp, Req](rwc, cfg)
	payload, err := cfg.codec.Marshal(handshake{Name: ch.name})
	if err != nil {
		return nil, errors.WithStack(ErrSerialize{Err: err})
	}
	if err = conn.writeFrame(false, payload); err != nil {
		return nil, err
	}
	return conn, nil
}
