package messaging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBroker(t *testing.T) {
	var buf bytes.Buffer
	b := NewLogBroker(zerolog.New(&buf))

	require.NoError(t, b.Publish(context.Background(), "appointment.deleted", Message{ID: "e-1", Type: "appointment.deleted"}))
	assert.Contains(t, buf.String(), `"channel":"appointment.deleted"`)
	assert.Contains(t, buf.String(), `"id":"e-1"`)

	_, err := b.Subscribe(context.Background(), "appointment.deleted")
	assert.ErrorIs(t, err, ErrSubscribeUnsupported)
	assert.NoError(t, b.Close())
}
