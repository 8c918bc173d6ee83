// Copyright 2026 The plug Authors. All rights reserved.
// Use of this source code is governed by the MIT license, see the LICENSE file.

package plug

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// DefaultListenAddr is used by ListenAndServe when Server.Addr is empty.
	DefaultListenAddr = ":10123"
	// DefaultMaxConns bounds concurrently attached connections when
	// Server.MaxConns is zero.
	DefaultMaxConns = 1024
)

type serverClosedError struct{}

func (serverClosedError) Error() string { return "server closed" }

// Server listens for incoming network connections and attaches them to a
// Strip, one goroutine per connection. Handler errors are counted and
// logged, never propagated across connections.
//
// A Server is single-use: after Close it cannot serve again.
type Server struct {
	Addr     string          // TCP address to listen on, DefaultListenAddr if empty
	Strip    *Strip          // channel registry to attach connections to
	MaxConns int             // maximum concurrently attached connections
	Logger   *zerolog.Logger // optional logger, nil disables logging

	mu        sync.Mutex
	closed    bool
	listeners []net.Listener
	active    chan struct{} // counting semaphore, one slot per attached conn

	attachMu  sync.Mutex
	attachErr map[string]int
}

// Listen announces on the local network address with TCP keep-alives
// enabled, and records the resolved address in srv.Addr.
func (srv *Server) Listen(address string) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: 3 * time.Minute}
	ln, err := lc.Listen(context.Background(), "tcp", address)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	srv.Addr = ln.Addr().String()
	return ln, nil
}

func (srv *Server) listenAddr() string {
	if srv.Addr != "" {
		return srv.Addr
	}
	return DefaultListenAddr
}

// ListenAndServe listens on srv.Addr, or DefaultListenAddr if it is empty,
// and then calls Serve on the listener.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.Listen(srv.listenAddr())
	if err != nil {
		return err
	}
	return srv.Serve(ln)
}

// Serve accepts connections on l, attaching each to srv.Strip in its own
// goroutine. It returns a "server closed" error after Close, and resets the
// attach error counters when it starts.
func (srv *Server) Serve(l net.Listener) error {
	defer l.Close()
	if err := srv.addListener(l); err != nil {
		return err
	}
	defer srv.removeListener(l)

	srv.attachMu.Lock()
	srv.attachErr = make(map[string]int)
	srv.attachMu.Unlock()

	var delay time.Duration
	for {
		rwc, err := l.Accept()
		if err != nil {
			if srv.isClosed() {
				return errors.WithStack(serverClosedError{})
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				delay = nextAcceptDelay(delay)
				srv.logger().Warn().Err(err).Dur("delay", delay).Msg("accept failed, retrying")
				time.Sleep(delay)
				continue
			}
			return errors.WithStack(err)
		}
		delay = 0
		srv.semaphore() <- struct{}{}
		go srv.attach(rwc)
	}
}

func (srv *Server) attach(rwc io.ReadWriteCloser) {
	defer func() { <-srv.semaphore() }()
	if err := srv.Strip.Attach(rwc); err != nil {
		srv.attachMu.Lock()
		srv.attachErr[err.Error()]++
		srv.attachMu.Unlock()
		srv.logger().Warn().Err(err).Msg("attach failed")
	}
}

// nextAcceptDelay backs off temporary accept failures, doubling from 5ms up
// to one second.
func nextAcceptDelay(d time.Duration) time.Duration {
	const floor, ceil = 5 * time.Millisecond, time.Second
	if d == 0 {
		return floor
	}
	if d *= 2; d > ceil {
		return ceil
	}
	return d
}

// AttachErrors returns a copy of the attach error counters, keyed by error
// message, accumulated since Serve started.
func (srv *Server) AttachErrors() map[string]int {
	srv.attachMu.Lock()
	defer srv.attachMu.Unlock()
	m := make(map[string]int, len(srv.attachErr))
	for k, v := range srv.attachErr {
		m[k] = v
	}
	return m
}

// ActiveConns returns the number of currently attached connections.
func (srv *Server) ActiveConns() int {
	return len(srv.semaphore())
}

// Close stops all listeners. Attached connections are owned by their
// handlers and keep running until those return.
func (srv *Server) Close() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.closed = true
	var err error
	for _, ln := range srv.listeners {
		if cerr := ln.Close(); err == nil {
			err = cerr
		}
	}
	srv.listeners = nil
	return errors.WithStack(err)
}

func (srv *Server) addListener(l net.Listener) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.closed {
		return errors.WithStack(serverClosedError{})
	}
	srv.listeners = append(srv.listeners, l)
	return nil
}

func (srv *Server) removeListener(l net.Listener) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for i, ln := range srv.listeners {
		if ln == l {
			srv.listeners = append(srv.listeners[:i], srv.listeners[i+1:]...)
			break
		}
	}
}

func (srv *Server) isClosed() bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.closed
}

func (srv *Server) semaphore() chan struct{} {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.active == nil {
		n := srv.MaxConns
		if n < 1 {
			n = DefaultMaxConns
		}
		srv.active = make(chan struct{}, n)
	}
	return srv.active
}

func (srv *Server) logger() *zerolog.Logger {
	if srv.Logger != nil {
		return srv.Logger
	}
	return &nopLogger
}

var nopLogger = zerolog.Nop()
