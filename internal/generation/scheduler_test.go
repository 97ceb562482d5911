package generation

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/blog-backend/internal/post"
)

type runnerFunc func(ctx context.Context) (*post.Post, error)

func (f runnerFunc) GenerateOne(ctx context.Context) (*post.Post, error) { return f(ctx) }

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every tuesday", runnerFunc(nil), time.Minute, discard)
	assert.Error(t, err)
}

func TestSchedulerRunHasDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	s, err := NewScheduler("0 2 * * *", runnerFunc(func(ctx context.Context) (*post.Post, error) {
		deadline, ok = ctx.Deadline()
		return &post.Post{}, nil
	}), time.Minute, discard)
	require.NoError(t, err)

	s.run()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestSchedulerRecoversPanickingJob(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))

	s, err := NewScheduler("0 2 * * *", runnerFunc(func(context.Context) (*post.Post, error) {
		panic("model exploded")
	}), time.Minute, log)
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.cron.Entry(s.entry).WrappedJob.Run() })
	assert.Contains(t, logs.String(), "model exploded")
}

func TestSchedulerStartStop(t *testing.T) {
	var calls atomic.Int32
	s, err := NewScheduler("@every 1h", runnerFunc(func(context.Context) (*post.Post, error) {
		calls.Add(1)
		return &post.Post{}, nil
	}), time.Minute, discard)
	require.NoError(t, err)

	s.Start()
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next(), 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Zero(t, calls.Load())
}
