package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/cipherpool/internal/observability/logger"
)

func TestLog_UsesRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).With(logger.RequestID("rid-1")))

	Log(ctx, EventMarketResolved, logger.MarketID("m1"))

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "audit", e.LoggerName)
	assert.Equal(t, EventMarketResolved, e.Message)
	fields := e.ContextMap()
	assert.Equal(t, "rid-1", fields["request_id"])
	assert.Equal(t, "m1", fields["market_id"])
	assert.Equal(t, EventMarketResolved, fields["event"])
}
