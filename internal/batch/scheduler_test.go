package batch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"credit-engine/internal/batch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs        atomic.Int32
	err         error
	hadDeadline atomic.Bool
}

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	_, ok := ctx.Deadline()
	j.hadDeadline.Store(ok)
	return j.err
}

func TestSchedulerSchedule(t *testing.T) {
	s := batch.NewScheduler(logger)
	job := &countingJob{}

	id, err := s.Schedule("import", "0 3 * * *", job, time.Minute)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, s.Entries(), 1)

	_, err = s.Schedule("import", "not a cron line", job, time.Minute)
	assert.Error(t, err)
	assert.Len(t, s.Entries(), 1)
}

func TestSchedulerRunNowAppliesTimeout(t *testing.T) {
	s := batch.NewScheduler(logger)

	ok := &countingJob{}
	s.RunNow(context.Background(), "import", ok, time.Minute)
	assert.Equal(t, int32(1), ok.runs.Load())
	assert.True(t, ok.hadDeadline.Load())

	failing := &countingJob{err: errors.New("boom")}
	s.RunNow(context.Background(), "import", failing, 0)
	assert.Equal(t, int32(1), failing.runs.Load())
	assert.False(t, failing.hadDeadline.Load())
}

func TestSchedulerStartStop(t *testing.T) {
	s := batch.NewScheduler(logger)
	s.Start()
	s.Stop(time.Second)
}
