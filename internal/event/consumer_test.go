// internal/event/consumer_test.go
//
// Dual-write behavior against fake sinks.
//
// Run: go test ./internal/event -v

package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/subvind/API-sub000/internal/audit"
	"github.com/subvind/API-sub000/internal/bus"
)

//
// fakes
//

type fakePoints struct {
	events []Envelope
	err    error
}

func (f *fakePoints) WriteEvent(env Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, env)
	return nil
}

type fakeAudits struct {
	records []audit.Record
	err     error
}

func (f *fakeAudits) Insert(_ context.Context, rec audit.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeBus struct {
	published map[string][][]byte
	pubErr    error
	subs      map[string]bus.Handler
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		subs:      make(map[string]bus.Handler),
	}
}

func (f *fakeBus) Publish(topic string, payload []byte) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

func (f *fakeBus) Subscribe(pattern string, h bus.Handler) error {
	f.subs[pattern] = h
	return nil
}

func (f *fakeBus) Close() {}

//
// fixtures
//

func sampleEnvelope() Envelope {
	org := "org-1"
	return Envelope{
		ID:             "evt-1",
		Category:       "api",
		URL:            "/accounts",
		Verb:           "POST",
		Headers:        map[string][]string{"Accept": {"application/json"}},
		Body:           `{"username":"amy"}`,
		CRUD:           Create,
		Charge:         ChargeTenant,
		OrganizationID: &org,
		Payload:        json.RawMessage(`{"id":"acct-1"}`),
		At:             time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC),
	}
}

//
// tests
//

func TestConsumerRoundTrip(t *testing.T) {
	points := &fakePoints{}
	audits := &fakeAudits{}
	c := NewConsumer(newFakeBus(), points, audits)

	env := sampleEnvelope()
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, c.handle("accounts/create", raw))

	// Time-series projection matches the envelope exactly.
	require.Len(t, points.events, 1)
	got := points.events[0]
	require.Equal(t, Create, got.CRUD)
	require.Equal(t, ChargeTenant, got.Charge)
	require.NotNil(t, got.OrganizationID)
	require.Equal(t, "org-1", *got.OrganizationID)
	require.True(t, got.At.Equal(env.At), "point must use the envelope's own timestamp")

	// Relational projection matches too.
	require.Len(t, audits.records, 1)
	rec := audits.records[0]
	require.Equal(t, "create", rec.CRUD)
	require.Equal(t, "tenant", rec.Charge)
	require.Equal(t, "org-1", *rec.OrganizationID)
	require.Equal(t, `{"id":"acct-1"}`, rec.Payload)
	require.JSONEq(t, `{"Accept":["application/json"]}`, rec.Headers)
	require.True(t, rec.EventAt.Equal(env.At))
}

func TestConsumerTimeSeriesFailureDoesNotBlockAudit(t *testing.T) {
	points := &fakePoints{err: errors.New("influx down")}
	audits := &fakeAudits{}
	c := NewConsumer(newFakeBus(), points, audits)

	raw, _ := json.Marshal(sampleEnvelope())
	require.NoError(t, c.handle("accounts/create", raw))
	require.Len(t, audits.records, 1, "relational write must proceed alone")
}

func TestConsumerAuditFailureDoesNotBlockTimeSeries(t *testing.T) {
	points := &fakePoints{}
	audits := &fakeAudits{err: errors.New("mysql down")}
	c := NewConsumer(newFakeBus(), points, audits)

	raw, _ := json.Marshal(sampleEnvelope())
	require.NoError(t, c.handle("accounts/create", raw))
	require.Len(t, points.events, 1, "time-series write must proceed alone")
}

func TestConsumerMalformedEnvelopeDropped(t *testing.T) {
	points := &fakePoints{}
	audits := &fakeAudits{}
	c := NewConsumer(newFakeBus(), points, audits)

	require.NoError(t, c.handle("accounts/create", []byte("not json")))
	require.Empty(t, points.events)
	require.Empty(t, audits.records)

	// The loop keeps processing subsequent messages.
	raw, _ := json.Marshal(sampleEnvelope())
	require.NoError(t, c.handle("accounts/create", raw))
	require.Len(t, points.events, 1)
}

func TestConsumerStartSubscribesFamilies(t *testing.T) {
	b := newFakeBus()
	c := NewConsumer(b, &fakePoints{}, &fakeAudits{})

	require.NoError(t, c.Start("accounts", "organizations"))
	require.Contains(t, b.subs, "accounts/#")
	require.Contains(t, b.subs, "organizations/#")
}
