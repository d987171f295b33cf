// internal/event/consumer.go
//
// Wildcard consumption and the dual write.
//
// Context
// -------
// One consumer drains a resource family's topics (`accounts/#`) and
// performs two independent side effects per envelope: a time-series
// point and a relational audit row.  The writes share an input, nothing
// else—no transaction spans them, and either failing alone is an
// accepted inconsistency.  The loop never stops over one bad message.

package event

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/subvind/API-sub000/internal/audit"
	"github.com/subvind/API-sub000/internal/bus"
	"github.com/subvind/API-sub000/internal/metrics"
)

// PointSink is the time-series write surface.  *InfluxSink satisfies it.
type PointSink interface {
	WriteEvent(env Envelope) error
}

// AuditSink is the relational write surface.  *audit.Store satisfies it.
type AuditSink interface {
	Insert(ctx context.Context, rec audit.Record) error
}

// Consumer subscribes resource families and dual-writes envelopes.
type Consumer struct {
	bus    bus.Bus
	points PointSink
	audits AuditSink
}

// NewConsumer wires the consumer; all dependencies are caller-owned.
func NewConsumer(b bus.Bus, points PointSink, audits AuditSink) *Consumer {
	return &Consumer{bus: b, points: points, audits: audits}
}

// Start subscribes one wildcard per resource family.  It returns on the
// first subscription failure; once subscribed, delivery runs on the bus
// client's own goroutines until process shutdown.
func (c *Consumer) Start(families ...string) error {
	for _, f := range families {
		if err := c.bus.Subscribe(FamilyPattern(f), c.handle); err != nil {
			return err
		}
		zap.S().Infow("consumer subscribed", "family", f)
	}
	return nil
}

// handle processes one message.  It always returns nil: every failure
// mode is logged and absorbed so the subscription keeps draining.
func (c *Consumer) handle(topic string, payload []byte) error {
	metrics.EventConsumeTotal.Inc()

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		zap.L().Warn("malformed envelope dropped",
			zap.String("topic", topic),
			zap.Error(err))
		return nil
	}

	// Time-series write.
	if err := c.points.WriteEvent(env); err != nil {
		metrics.DualWriteFailureTotal.WithLabelValues("timeseries").Inc()
		zap.L().Warn("time-series write failed",
			zap.String("event", env.ID),
			zap.Error(err))
	}

	// Relational write.  Deliberately attempted regardless of the
	// time-series outcome.
	if err := c.audits.Insert(context.Background(), c.toRecord(env)); err != nil {
		metrics.DualWriteFailureTotal.WithLabelValues("relational").Inc()
		zap.L().Warn("audit insert failed",
			zap.String("event", env.ID),
			zap.Error(err))
	}
	return nil
}

// toRecord flattens an envelope into its relational projection.
func (c *Consumer) toRecord(env Envelope) audit.Record {
	headers, err := json.Marshal(env.Headers)
	if err != nil {
		headers = []byte("{}")
	}
	return audit.Record{
		ID:             env.ID,
		Category:       env.Category,
		URL:            env.URL,
		Verb:           env.Verb,
		Headers:        string(headers),
		Body:           env.Body,
		CRUD:           string(env.CRUD),
		Charge:         string(env.Charge),
		OrganizationID: env.OrganizationID,
		Payload:        string(env.Payload),
		EventAt:        env.At,
	}
}
