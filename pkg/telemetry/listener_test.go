package telemetry

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeUDPAddr reserves an ephemeral port and releases it again so the
// listener under test can bind it.
func freeUDPAddr(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	addr := conn.LocalAddr().String()
	require.NoError(t, conn.Close())
	return addr
}

// Listen must return after cancellation so the shutdown path can wait
// for the receive loop before touching shared state.
func TestListenStopsOnCancel(t *testing.T) {
	listener := NewListener(func(buf []byte) {},
		WithListenAddr(freeUDPAddr(t)))

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- listener.Listen(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}

func TestListenDeliversDatagrams(t *testing.T) {
	addr := freeUDPAddr(t)
	received := make(chan []byte, 1)
	listener := NewListener(func(buf []byte) {
		select {
		case received <- buf:
		default:
		}
	}, WithListenAddr(addr))

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- listener.Listen(ctx)
	}()

	payload := []byte{0xe4, 0x07, 1, 2, 3}
	var got []byte
	// the listener binds asynchronously, retry until a datagram arrives
	for attempt := 0; attempt < 50 && got == nil; attempt++ {
		conn, err := net.Dial("udp", addr)
		require.NoError(t, err)
		_, err = conn.Write(payload)
		require.NoError(t, err)
		require.NoError(t, conn.Close())
		select {
		case got = <-received:
		case <-time.After(100 * time.Millisecond):
		}
	}
	require.NotNil(t, got, "no datagram delivered")
	assert.Equal(t, payload, got)

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}

func TestListenFailsOnOccupiedPort(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	listener := NewListener(func(buf []byte) {},
		WithListenAddr(conn.LocalAddr().String()))
	err = listener.Listen(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no other telemetry tool")
}
