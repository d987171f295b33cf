// internal/event/publisher.go
//
// Fire-and-forget envelope publication.
//
// Context
// -------
// Publish is called after the HTTP response is already decided, succeeds
// from the caller's point of view no matter what, and hands the broker
// round-trip to a goroutine so the response is never delayed.  A bus
// failure is logged and counted; the envelope is gone.  At-most-once,
// by contract.

package event

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/subvind/API-sub000/internal/bus"
	"github.com/subvind/API-sub000/internal/metrics"
)

// Publisher hands envelopes to the message bus.
type Publisher struct {
	bus bus.Bus
}

// NewPublisher wraps b, which is owned by the caller.
func NewPublisher(b bus.Bus) *Publisher {
	return &Publisher{bus: b}
}

// Publish emits env under Topic(resource, operation).  It has no error
// return on purpose: nothing downstream of a call site may fail it.
func (p *Publisher) Publish(resource, operation string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		metrics.EventPublishDroppedTotal.Inc()
		zap.L().Warn("envelope marshal failed",
			zap.String("resource", resource),
			zap.String("operation", operation),
			zap.Error(err))
		return
	}

	metrics.EventPublishTotal.Inc()
	topic := Topic(resource, operation)

	go func() {
		if err := p.bus.Publish(topic, payload); err != nil {
			metrics.EventPublishDroppedTotal.Inc()
			zap.L().Warn("envelope publish failed",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}()
}
