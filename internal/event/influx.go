// internal/event/influx.go
//
// Time-series sink: one point per consumed envelope.

package event

import (
	"fmt"

	client "github.com/influxdata/influxdb1-client/v2"
)

// DefaultMeasurement names the series all envelopes land in.
const DefaultMeasurement = "api_events"

// InfluxSink writes envelope points over the InfluxDB HTTP API.  The
// store applies its own retention policy; the sweeper never touches it.
type InfluxSink struct {
	cli         client.Client
	database    string
	measurement string
}

// NewInfluxSink dials the InfluxDB endpoint.
func NewInfluxSink(addr, username, password, database string) (*InfluxSink, error) {
	cli, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("influx client: %w", err)
	}
	return &InfluxSink{
		cli:         cli,
		database:    database,
		measurement: DefaultMeasurement,
	}, nil
}

// WriteEvent tags the point with the envelope's classification fields
// and timestamps it at the envelope's own At, not the write time.
func (s *InfluxSink) WriteEvent(env Envelope) error {
	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:  s.database,
		Precision: "ns",
	})
	if err != nil {
		return fmt.Errorf("influx batch: %w", err)
	}

	tags := map[string]string{
		"category": env.Category,
		"url":      env.URL,
		"verb":     env.Verb,
		"crud":     string(env.CRUD),
		"charge":   string(env.Charge),
	}
	if env.OrganizationID != nil {
		tags["organization_id"] = *env.OrganizationID
	}
	fields := map[string]interface{}{
		"count":         1,
		"payload_bytes": len(env.Payload),
	}

	pt, err := client.NewPoint(s.measurement, tags, fields, env.At)
	if err != nil {
		return fmt.Errorf("influx point: %w", err)
	}
	bp.AddPoint(pt)

	if err := s.cli.Write(bp); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() error {
	return s.cli.Close()
}
