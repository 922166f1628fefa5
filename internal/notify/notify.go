// Package notify publishes applied pantry changes to NATS subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"pantry/pkg/domain"
)

// DefaultSubject is the subject change events are published on.
const DefaultSubject = "pantry.changes"

// DefaultCloseTimeout bounds the flush and the drain performed by Close.
const DefaultCloseTimeout = 5 * time.Second

// Event is the JSON payload of a change notification.
type Event struct {
	ID     string        `json:"id"`
	At     time.Time     `json:"at"`
	Action domain.Action `json:"action"`
	Name   string        `json:"name"`
	Before *domain.Item  `json:"before,omitempty"`
	After  *domain.Item  `json:"after,omitempty"`
}

// NewEvent stamps change with a fresh id and time.
func NewEvent(change domain.Change, at time.Time) Event {
	return Event{
		ID:     uuid.NewString(),
		At:     at.UTC(),
		Action: change.Action,
		Name:   change.Name,
		Before: change.Before,
		After:  change.After,
	}
}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// NATSPublisher sends one message per applied change. Delivery is core NATS
// fire-and-forget; subscribers that are offline miss events.
type NATSPublisher struct {
	conn    conn
	subject string
	now     func() time.Time
	timeout time.Duration
	// closed is signalled by the connection's closed handler once a drain
	// has finished. Nil skips the wait.
	closed chan struct{}
}

// Connect dials url and returns a publisher on subject (DefaultSubject when empty).
func Connect(url, subject string, opts ...nats.Option) (*NATSPublisher, error) {
	closed := make(chan struct{})
	opts = append([]nats.Option{nats.Name("pantry")}, opts...)
	opts = append(opts, nats.ClosedHandler(func(*nats.Conn) { close(closed) }))
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := newPublisher(nc, subject)
	p.closed = closed
	return p, nil
}

func newPublisher(c conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: c, subject: subject, now: time.Now, timeout: DefaultCloseTimeout}
}

// Subject returns the configured subject.
func (p *NATSPublisher) Subject() string { return p.subject }

// Publish implements core.ChangeNotifier.
func (p *NATSPublisher) Publish(ctx context.Context, change domain.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(NewEvent(change, p.now()))
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes buffered publishes to the server, then drains and closes the
// connection, waiting for the drain to finish. Short-lived processes rely on
// this to not lose the events they published.
func (p *NATSPublisher) Close() error {
	var flushErr error
	if err := p.conn.FlushTimeout(p.timeout); err != nil {
		flushErr = fmt.Errorf("flush %s: %w", p.subject, err)
	}
	if err := p.conn.Drain(); err != nil {
		return errors.Join(flushErr, fmt.Errorf("drain: %w", err))
	}
	if p.closed != nil {
		select {
		case <-p.closed:
		case <-time.After(p.timeout):
			return errors.Join(flushErr, fmt.Errorf("drain: not closed after %s", p.timeout))
		}
	}
	return flushErr
}
