package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaktipath/safepath/server/internal/lib/briefing"
)

func TestBriefingCacheAdapter(t *testing.T) {
	c, clock := newTestCache()
	adapter := NewBriefingCacheAdapter(c)

	var _ briefing.Cache = adapter

	b := briefing.Briefing{
		Headline:    "Low risk route",
		Tips:        []string{"Share your live location"},
		GeneratedAt: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, adapter.SetBriefing("abc123", b, time.Hour))

	got, found, err := adapter.GetBriefing("abc123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, b, got)

	clock.Advance(2 * time.Hour)
	_, found, err = adapter.GetBriefing("abc123")
	require.NoError(t, err)
	assert.False(t, found)
}
