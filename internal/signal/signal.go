// Package signal normalizes raw feed messages into typed occupancy events.
// It is stateless and performs no I/O.
package signal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"parking-status-backend/internal/model"
)

var (
	// ErrInvalidToken means the payload is not one of the recognized
	// occupancy literals. The event must be dropped with no side effects.
	ErrInvalidToken = errors.New("invalid occupancy token")

	// ErrBadRoutingKey means no space label could be extracted from the topic.
	ErrBadRoutingKey = errors.New("routing key carries no space label")
)

// Event is a normalized inbound occupancy signal.
type Event struct {
	SpaceLabel string
	Status     model.SpaceStatus
	ReceivedAt time.Time
}

// ParseToken folds and trims a raw payload token and maps it onto the status
// union. Anything other than the two recognized literals is rejected.
func ParseToken(raw string) (model.SpaceStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "free":
		return model.StatusFree, nil
	case "occupied":
		return model.StatusOccupied, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidToken, raw)
	}
}

// LabelFromTopic extracts the external space label from a hierarchical
// routing key. The label is the final segment, so "parking/spaces/A1"
// resolves to "A1". A key with an empty final segment is rejected.
func LabelFromTopic(topic string) (string, error) {
	segments := strings.Split(strings.TrimSpace(topic), "/")
	label := strings.TrimSpace(segments[len(segments)-1])
	if label == "" {
		return "", fmt.Errorf("%w: %q", ErrBadRoutingKey, topic)
	}
	return label, nil
}

// Normalize turns a raw (topic, payload) delivery into an Event, or rejects it.
func Normalize(topic string, payload []byte, receivedAt time.Time) (Event, error) {
	label, err := LabelFromTopic(topic)
	if err != nil {
		return Event{}, err
	}
	status, err := ParseToken(string(payload))
	if err != nil {
		return Event{}, err
	}
	return Event{SpaceLabel: label, Status: status, ReceivedAt: receivedAt}, nil
}
