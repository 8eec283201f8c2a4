package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	jobmetrics "github.com/orderbridge/orderbridge/internal/jobs"
)

type fakeCleaner struct {
	olderThan time.Duration
	err       error
}

func (f *fakeCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 3, f.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 0, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	handler, cron := job.Registrations("")
	assert.Equal(t, TaskIdempotencyCleanup, handler.Type)
	assert.Equal(t, "30 2 * * *", cron.Spec)

	assert.NoError(t, job.Handle(context.Background(), cron.Task))
	assert.Equal(t, 72*time.Hour, cleaner.olderThan)

	cleaner.err = errors.New("db down")
	assert.Error(t, job.Handle(context.Background(), cron.Task))
}
