// Command plugtest starts a plug server with an echo channel and a clock
// channel, runs a number of client exchanges against it and prints the
// results.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hecrj/plug"
)

type clockRequest struct{}

type clockResponse struct {
	Now time.Time `json:"now"`
}

var (
	echoChannel  = plug.NewChannel[string, string]("echo")
	clockChannel = plug.NewChannel[clockRequest, clockResponse]("clock")
)

var (
	addr  = flag.String("addr", "127.0.0.1:10123", "address to listen on")
	count = flag.Int("n", 10, "number of exchanges to run")
)

func main() {
	flag.Parse()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	strip := plug.NewStrip()
	plug.MustPlug(strip, echoChannel, func(conn *plug.Conn[string, string]) error {
		for {
			s, err := conn.Read()
			if err != nil {
				return nil
			}
			if err = conn.Write(s); err != nil {
				return err
			}
		}
	})
	plug.MustPlug(strip, clockChannel, func(conn *plug.Conn[clockRequest, clockResponse]) error {
		if _, err := conn.Read(); err != nil {
			return err
		}
		return conn.Write(clockResponse{Now: time.Now()})
	})

	srv := &plug.Server{Addr: *addr, Strip: strip, Logger: &logger}
	ln, err := srv.Listen(*addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("listen failed")
	}
	defer srv.Close()
	go srv.Serve(ln)
	logger.Info().Str("addr", srv.Addr).Strs("channels", strip.Channels()).Msg("serving")

	echo, err := echoChannel.Connect(srv.Addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("echo connect failed")
	}
	defer echo.Close()

	started := time.Now()
	for i := 0; i < *count; i++ {
		msg := fmt.Sprintf("message %d", i)
		if err = echo.Write(msg); err != nil {
			logger.Fatal().Err(err).Msg("echo write failed")
		}
		got, err := echo.Read()
		if err != nil {
			logger.Fatal().Err(err).Msg("echo read failed")
		}
		if got != msg {
			logger.Fatal().Str("sent", msg).Str("received", got).Msg("echo mismatch")
		}
	}
	logger.Info().Int("count", *count).Dur("elapsed", time.Since(started)).Msg("echo done")

	clock, err := clockChannel.Connect(srv.Addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("clock connect failed")
	}
	defer clock.Close()
	if err = clock.Write(clockRequest{}); err != nil {
		logger.Fatal().Err(err).Msg("clock write failed")
	}
	resp, err := clock.Read()
	if err != nil {
		logger.Fatal().Err(err).Msg("clock read failed")
	}
	logger.Info().Time("server_time", resp.Now).Msg("clock done")
}
