package plug

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var stripTestChannel = NewChannel[string, string]("strip_test")

// attachPipe runs strip.Attach on one end of a pipe and returns the other
// end together with the eventual attach result.
func attachPipe(strip *Strip) (net.Conn, <-chan error) {
	p1, p2 := net.Pipe()
	errs := make(chan error, 1)
	go func() {
		errs <- strip.Attach(p2)
	}()
	return p1, errs
}

func Test_Strip_DispatchCorrectness(t *testing.T) {
	chanA := NewChannel[string, string]("a")
	chanB := NewChannel[string, string]("b")
	var calledA, calledB bool

	strip := NewStrip()
	assert.NoError(t, Plug(strip, chanA, func(conn *Conn[string, string]) error {
		calledA = true
		return nil
	}))
	assert.NoError(t, Plug(strip, chanB, func(conn *Conn[string, string]) error {
		calledB = true
		return nil
	}))

	p1, errs := attachPipe(strip)
	_, err := chanA.Seize(p1)
	assert.NoError(t, err)
	assert.NoError(t, <-errs)
	assert.True(t, calledA)
	assert.False(t, calledB)
}

func Test_Strip_UnknownChannel(t *testing.T) {
	strip := NewStrip()
	assert.NoError(t, Plug(strip, stripTestChannel, func(conn *Conn[string, string]) error {
		t.Error("handler invoked for unknown channel")
		return nil
	}))

	ghost := NewChannel[string, string]("ghost")
	p1, errs := attachPipe(strip)
	conn, err := ghost.Seize(p1)
	assert.NoError(t, err)

	// the rejection is explicit, then the stream is closed
	_, err = conn.Read()
	assert.Equal(t, ErrChannelNotFound{Name: "ghost"}, errors.Cause(err))
	assert.Equal(t, ErrChannelNotFound{Name: "ghost"}, errors.Cause(<-errs))
	_, err = conn.Read()
	assert.Error(t, err)
}

func Test_Strip_DuplicateChannel(t *testing.T) {
	strip := NewStrip()
	handler := func(conn *Conn[string, string]) error { return nil }
	assert.NoError(t, Plug(strip, stripTestChannel, handler))
	err := Plug(strip, stripTestChannel, handler)
	assert.Equal(t, ErrDuplicateChannel{Name: "strip_test"}, errors.Cause(err))

	// same name under different types is still a duplicate
	other := NewChannel[int, int]("strip_test")
	err = Plug(strip, other, func(conn *Conn[int, int]) error { return nil })
	assert.Equal(t, ErrDuplicateChannel{Name: "strip_test"}, errors.Cause(err))
}

func Test_Strip_PlugAfterAttach(t *testing.T) {
	strip := NewStrip()
	assert.NoError(t, Plug(strip, stripTestChannel, func(conn *Conn[string, string]) error { return nil }))

	p1, errs := attachPipe(strip)
	_, err := stripTestChannel.Seize(p1)
	assert.NoError(t, err)
	assert.NoError(t, <-errs)

	err = Plug(strip, NewChannel[string, string]("late"), func(conn *Conn[string, string]) error { return nil })
	assert.Equal(t, ErrStripServing{}, errors.Cause(err))
}

func Test_Strip_MustPlug(t *testing.T) {
	strip := NewStrip()
	handler := func(conn *Conn[string, string]) error { return nil }
	assert.Equal(t, strip, MustPlug(strip, stripTestChannel, handler))
	assert.Panics(t, func() { MustPlug(strip, stripTestChannel, handler) })
}

func Test_Strip_Channels(t *testing.T) {
	strip := NewStrip()
	handler := func(conn *Conn[string, string]) error { return nil }
	MustPlug(strip, NewChannel[string, string]("zeta"), handler)
	MustPlug(strip, NewChannel[string, string]("alpha"), handler)
	assert.Equal(t, []string{"alpha", "zeta"}, strip.Channels())
}

func Test_Strip_MalformedHandshake(t *testing.T) {
	strip := NewStrip()
	p1, errs := attachPipe(strip)
	raw := NewConn[string, string](p1)
	assert.NoError(t, raw.WriteBytes([]byte("not a handshake")))
	var deser ErrDeserialize
	assert.ErrorAs(t, <-errs, &deser)
	// the strip closed its end
	_, err := raw.Read()
	assert.Error(t, err)
}

func Test_Strip_HandlerErrorPropagates(t *testing.T) {
	strip := NewStrip()
	boom := errors.New("boom")
	assert.NoError(t, Plug(strip, stripTestChannel, func(conn *Conn[string, string]) error {
		return boom
	}))
	p1, errs := attachPipe(strip)
	_, err := stripTestChannel.Seize(p1)
	assert.NoError(t, err)
	assert.Equal(t, boom, errors.Cause(<-errs))
}

func Test_Strip_StreamClosedAfterHandler(t *testing.T) {
	strip := NewStrip()
	assert.NoError(t, Plug(strip, stripTestChannel, func(conn *Conn[string, string]) error {
		return nil // handler never reads; Attach must still close the stream
	}))
	p1, errs := attachPipe(strip)
	conn, err := stripTestChannel.Seize(p1)
	assert.NoError(t, err)
	assert.NoError(t, <-errs)
	_, err = conn.Read()
	assert.Error(t, err)
}

func Test_Strip_ConnectionIsolation(t *testing.T) {
	const clients = 8
	echo := NewChannel[string, string]("echo")
	strip := NewStrip()
	assert.NoError(t, Plug(strip, echo, func(conn *Conn[string, string]) error {
		s, err := conn.Read()
		if err != nil {
			return err
		}
		return conn.Write(s)
	}))

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p1, errs := attachPipe(strip)
			conn, err := echo.Seize(p1)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			want := fmt.Sprintf("client %d", i)
			assert.NoError(t, conn.Write(want))
			got, err := conn.Read()
			assert.NoError(t, err)
			assert.Equal(t, want, got)
			assert.NoError(t, <-errs)
		}(i)
	}
	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("isolation test timed out")
	}
}

func Test_Strip_CustomCodec(t *testing.T) {
	strip := NewStrip()
	strip.Codec = GobCodec{}
	assert.NoError(t, Plug(strip, stripTestChannel, func(conn *Conn[string, string]) error {
		s, err := conn.Read()
		if err != nil {
			return err
		}
		return conn.Write(s + "!")
	}))
	p1, errs := attachPipe(strip)
	conn, err := stripTestChannel.Seize(p1, WithCodec(GobCodec{}))
	assert.NoError(t, err)
	assert.NoError(t, conn.Write("gob"))
	got, err := conn.Read()
	assert.NoError(t, err)
	assert.Equal(t, "gob!", got)
	assert.NoError(t, <-errs)
}
