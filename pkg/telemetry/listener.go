// Package telemetry receives the raw UDP datagram stream from the
// game and hands each datagram to a handler. Decoding happens in the
// handler, the listener only moves bytes.
package telemetry

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/capture"
)

// game datagrams stay well below this
const readBufferLen = 4096

type Listener struct {
	addr    string
	logger  *log.Logger
	handler func(buf []byte)
	capture *capture.Writer

	conn *net.UDPConn
}

type ListenerOption func(l *Listener)

func WithListenAddr(addr string) ListenerOption {
	return func(l *Listener) { l.addr = addr }
}

func WithListenerLogger(logger *log.Logger) ListenerOption {
	return func(l *Listener) { l.logger = logger }
}

// WithCaptureWriter additionally appends every received datagram to a
// capture file for later replay.
func WithCaptureWriter(w *capture.Writer) ListenerOption {
	return func(l *Listener) { l.capture = w }
}

func NewListener(handler func(buf []byte), opts ...ListenerOption) *Listener {
	l := &Listener{
		addr:    ":20777",
		logger:  log.Default().Named("udp"),
		handler: handler,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Listen binds the UDP socket and processes datagrams until the
// context is canceled. A failing bind is fatal and reported with a
// remediation hint; read errors after cancellation are expected and
// silent.
func (l *Listener) Listen(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return errors.Wrapf(err, "resolving listen address %s", l.addr)
	}
	l.conn, err = net.ListenUDP("udp", addr)
	if err != nil {
		return errors.Wrapf(err,
			"binding %s failed; check that no other telemetry tool is running on this port",
			l.addr)
	}
	l.logger.Info("listening for telemetry", log.String("addr", l.addr))

	go func() {
		<-ctx.Done()
		//nolint:errcheck // closing unblocks the read loop
		l.conn.Close()
	}()

	buf := make([]byte, readBufferLen)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				l.logger.Info("listener closed")
				return nil
			default:
				l.logger.Error("udp read failed", log.ErrorField(err))
				continue
			}
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		if l.capture != nil {
			if err := l.capture.Write(datagram); err != nil {
				l.logger.Error("capture write failed", log.ErrorField(err))
				l.capture = nil
			}
		}
		l.handler(datagram)
	}
}
