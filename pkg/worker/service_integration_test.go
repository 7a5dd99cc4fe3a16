//go:build integration

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/ethpandaops/ephemeris/internal/testutil"
	r "github.com/ethpandaops/ephemeris/pkg/redis"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/tasks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_ProcessesEnqueuedHydration(t *testing.T) {
	conn := testutil.NewRedisContainer(t)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	ensurer := &recordingEnsurer{}
	queue := "ephemeris:segments"

	svc, err := NewService(log, &Config{Concurrency: 2, ShutdownTimeout: 5 * time.Second}, conn.Options, queue, ensurer)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))

	defer func() { _ = svc.Stop() }()

	qm := tasks.NewQueueManager(r.NewAsynqRedisOptions(conn.Options), queue)
	defer func() { _ = qm.Close() }()

	ref := segment.Ref{Class: segment.ClassPlanetary, Start: -3000}

	enqueued, err := qm.Enqueue(context.Background(), ref, tasks.TriggerManual)
	require.NoError(t, err)
	assert.True(t, enqueued)

	require.Eventually(t, func() bool {
		return len(ensurer.Refs()) == 1
	}, 15*time.Second, 100*time.Millisecond)

	assert.Equal(t, ref, ensurer.Refs()[0])
}

func TestQueueManager_DeduplicatesPendingSegment(t *testing.T) {
	conn := testutil.NewRedisContainer(t)

	qm := tasks.NewQueueManager(r.NewAsynqRedisOptions(conn.Options), "dedupe")
	defer func() { _ = qm.Close() }()

	ref := segment.Ref{Class: segment.ClassLunar, Start: -5400}

	first, err := qm.Enqueue(context.Background(), ref, tasks.TriggerSchedule)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := qm.Enqueue(context.Background(), ref, tasks.TriggerSchedule)
	require.NoError(t, err)
	assert.False(t, second)

	pending, err := qm.IsTaskPendingOrRunning(ref.ID())
	require.NoError(t, err)
	assert.True(t, pending)

	stats, err := qm.GetQueueStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}
