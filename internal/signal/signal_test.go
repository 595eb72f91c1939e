package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"parking-status-backend/internal/model"
)

func TestParseToken(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  model.SpaceStatus
		expectErr bool
	}{
		{
			name:     "plain free",
			raw:      "free",
			expected: model.StatusFree,
		},
		{
			name:     "plain occupied",
			raw:      "occupied",
			expected: model.StatusOccupied,
		},
		{
			name:     "upper case",
			raw:      "FREE",
			expected: model.StatusFree,
		},
		{
			name:     "mixed case with whitespace",
			raw:      "  Occupied \n",
			expected: model.StatusOccupied,
		},
		{
			name:      "empty payload",
			raw:       "",
			expectErr: true,
		},
		{
			name:      "unrecognized token",
			raw:       "vacant",
			expectErr: true,
		},
		{
			name:      "token with embedded junk",
			raw:       "freeextra",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseToken(tc.raw)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestLabelFromTopic(t *testing.T) {
	testCases := []struct {
		name      string
		topic     string
		expected  string
		expectErr bool
	}{
		{
			name:     "hierarchical topic",
			topic:    "parking/spaces/A1",
			expected: "A1",
		},
		{
			name:     "single segment",
			topic:    "12",
			expected: "12",
		},
		{
			name:      "trailing slash",
			topic:     "parking/spaces/",
			expectErr: true,
		},
		{
			name:      "empty topic",
			topic:     "",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LabelFromTopic(tc.topic)
			if tc.expectErr {
				assert.ErrorIs(t, err, ErrBadRoutingKey)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ev, err := Normalize("parking/spaces/B7", []byte(" OCCUPIED "), now)
	assert.NoError(t, err)
	assert.Equal(t, Event{SpaceLabel: "B7", Status: model.StatusOccupied, ReceivedAt: now}, ev)

	_, err = Normalize("parking/spaces/B7", []byte("maybe"), now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
