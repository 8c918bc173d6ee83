// Copyright 2026 The plug Authors. All rights reserved.
// Use of this source code is governed by the MIT license, see the LICENSE file.

/*
Package plug implements type-safe request/response channels over a single
duplex byte stream.

A Channel pairs a name with a request type and a response type. The name is
the only thing that crosses the wire to identify the channel; the types exist
for compile-time safety and must be shared by both sides, typically by
sharing the Channel definition itself:

	type Credentials struct {
		Username string
		Password string
	}

	type Authentication struct {
		Token string
		Error string
	}

	var LogIn = plug.NewChannel[Credentials, Authentication]("log_in")

A client connects through the Channel and gets back a Conn that writes
requests and reads responses:

	conn, err := LogIn.Connect("127.0.0.1:1234")
	if err != nil {
		return err
	}
	defer conn.Close()
	if err = conn.Write(Credentials{Username: "admin", Password: "1234"}); err != nil {
		return err
	}
	auth, err := conn.Read()

A server gathers its channels in a Strip. Each registered handler owns a Conn
with the direction of the types reversed, reading requests and writing
responses. Attach routes an accepted connection to the handler named by the
client's handshake:

	strip := plug.NewStrip()
	plug.Plug(strip, LogIn, func(conn *plug.Conn[Credentials, Authentication]) error {
		creds, err := conn.Read()
		if err != nil {
			return err
		}
		return conn.Write(authenticate(creds))
	})

	for {
		rwc, err := listener.Accept()
		if err != nil {
			return err
		}
		go strip.Attach(rwc)
	}

Every message travels as one frame: a 4-byte big-endian length prefix
followed by that many bytes of codec-encoded payload. The first frame on a
connection is the handshake naming the requested channel. Payload encoding
defaults to JSON and is pluggable per connection through the Codec interface.
*/
package plug
