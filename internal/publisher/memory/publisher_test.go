package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRecordsEvents(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "reggie-notifications", map[string]any{"created": 2})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = p.Publish(context.Background(), "reggie-notifications", map[string]any{"created": 1})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	events := p.Events()
	require.Len(t, events, 2)
	require.Equal(t, "reggie-notifications", events[0].Topic)
}
