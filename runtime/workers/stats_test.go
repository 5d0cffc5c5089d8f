package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsWorker_Refreshes_Monitoring(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewMonitoringManager(slog.Default())
	gauges := func() observability.Gauges {
		return observability.Gauges{Connections: 2, Rooms: 1}
	}
	worker := NewStatsWorker(slog.Default(), 10*time.Millisecond, gauges, monitoring)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool {
		return monitoring.GetLatest().Connections == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	req.NoError(<-done)
}
