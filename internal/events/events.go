// Package events publishes alert and incident lifecycle events to NATS.
// Publishing is best-effort; the workflow never blocks on the bus.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subjects emitted by the workflow core.
const (
	SubjectAlertCreated      = "rampart.alert.created"
	SubjectIncidentEscalated = "rampart.incident.escalated"
	SubjectIncidentResolved  = "rampart.incident.resolved"
	SubjectIncidentDismissed = "rampart.incident.dismissed"
)

// Publisher emits JSON events on a NATS connection.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("rampart"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// Close drains in-flight messages and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
		p.conn.Close()
	}
}

// Publish marshals payload as JSON and publishes it on subject.
func (p *Publisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(subject, data)
}
