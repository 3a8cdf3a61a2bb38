package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
	"github.com/ternarybob/pharmascout/internal/models"
)

const defaultSubject = "pharmascout.results"

// Header keys set on every published record
const (
	HeaderRunID   = "Pharmascout-Run-Id"
	HeaderKind    = "Pharmascout-Kind"
	HeaderCompany = "Pharmascout-Company"
)

// NATSPublisher publishes each emitted record as JSON on a NATS subject
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  arbor.ILogger
}

// New returns a NATS publisher when a server URL is configured and a no-op publisher otherwise
func New(config common.PublishConfig, logger arbor.ILogger) (interfaces.ResultPublisher, error) {
	if config.NATSURL == "" {
		logger.Debug().Msg("Result publishing disabled")
		return NoopPublisher{}, nil
	}
	pub, err := NewNATSPublisher(config, logger)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

func NewNATSPublisher(config common.PublishConfig, logger arbor.ILogger) (*NATSPublisher, error) {
	nc, err := nats.Connect(config.NATSURL,
		nats.Name("pharmascout"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	subject := config.Subject
	if subject == "" {
		subject = defaultSubject
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Str("subject", subject).Msg("NATS result publisher connected")

	return &NATSPublisher{nc: nc, subject: subject, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, record *models.ResultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := BuildMessage(p.subject, record)
	if err != nil {
		return err
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish record %s: %w", record.ID, err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

// BuildMessage encodes a record as a NATS message carrying routing headers
func BuildMessage(subject string, record *models.ResultRecord) (*nats.Msg, error) {
	if record == nil {
		return nil, fmt.Errorf("record is required")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderRunID, record.RunID)
	msg.Header.Set(HeaderKind, string(record.Kind))
	msg.Header.Set(HeaderCompany, record.Company)
	return msg, nil
}

// NoopPublisher discards records
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, record *models.ResultRecord) error { return nil }

func (NoopPublisher) Close() error { return nil }
