// Package live pushes completed lap records to a NATS server so
// dashboards can follow a session without touching the database file.
package live

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/utils/broadcast"
)

type Publisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *log.Logger

	source chan model.CompletedLapRecord
	bcst   broadcast.BroadcastServer[model.CompletedLapRecord]
	laps   <-chan model.CompletedLapRecord
	done   chan struct{}
}

type Option func(p *Publisher)

func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) { p.subjectPrefix = prefix }
}

func WithLogger(logger *log.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher connects to the NATS server and starts publishing.
// Records are handed in through Publish, decoupled from the ingestion
// loop by a broadcast server.
func NewPublisher(url string, opts ...Option) (*Publisher, error) {
	p := &Publisher{
		subjectPrefix: "f1log.laps",
		logger:        log.Default().Named("live"),
		source:        make(chan model.CompletedLapRecord),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	conn, err := nats.Connect(url,
		nats.Name("f1log-recorder"),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	p.conn = conn
	p.bcst = broadcast.NewBroadcastServer("laps", p.source)
	p.laps = p.bcst.Subscribe()
	go p.serve()
	p.logger.Info("connected", log.String("url", url))
	return p, nil
}

// Publish hands one record to the publisher. Never blocks the caller
// longer than the broadcast grace period.
func (p *Publisher) Publish(rec model.CompletedLapRecord) {
	select {
	case p.source <- rec:
	case <-p.done:
	}
}

func (p *Publisher) serve() {
	for rec := range p.laps {
		data, err := json.Marshal(rec)
		if err != nil {
			p.logger.Error("marshalling lap record failed", log.ErrorField(err))
			continue
		}
		subject := fmt.Sprintf("%s.%d", p.subjectPrefix, rec.SessionUID)
		if err := p.conn.Publish(subject, data); err != nil {
			p.logger.Error("publishing lap record failed",
				log.String("subject", subject), log.ErrorField(err))
		}
	}
}

func (p *Publisher) Close() {
	close(p.done)
	p.bcst.Close()
	if err := p.conn.Drain(); err != nil {
		p.logger.Error("draining nats connection failed", log.ErrorField(err))
	}
	p.conn.Close()
}
