package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/reminder-scheduler/internal/logger"
)

func quietLogger() *logrus.Logger {
	return logger.Discard()
}

type stubRunner struct {
	calls   int32
	actor   int64
	failFor int32
}

func (r *stubRunner) RunDue(ctx context.Context, actorID int64) (int, error) {
	n := atomic.AddInt32(&r.calls, 1)
	atomic.StoreInt64(&r.actor, actorID)
	if n <= r.failFor {
		return 0, errors.New("database unavailable")
	}
	return 2, nil
}

func newTestQueue() *InMemoryQueue {
	q := NewInMemoryQueue(quietLogger())
	q.Backoff = time.Millisecond
	return q
}

func TestRunTriggerReachesRunner(t *testing.T) {
	q := newTestQueue()
	runner := &stubRunner{}
	require.NoError(t, StartRunTriggerSubscriber(q, runner, quietLogger()))

	require.NoError(t, PublishRunTrigger(context.Background(), q, 42))
	q.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
	assert.Equal(t, int64(42), atomic.LoadInt64(&runner.actor))
}

func TestFailedRunIsRetried(t *testing.T) {
	q := newTestQueue()
	runner := &stubRunner{failFor: 2}
	require.NoError(t, StartRunTriggerSubscriber(q, runner, quietLogger()))

	require.NoError(t, PublishRunTrigger(context.Background(), q, 1))
	q.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&runner.calls))
}

func TestRetriesAreBounded(t *testing.T) {
	q := newTestQueue()
	runner := &stubRunner{failFor: 100}
	require.NoError(t, StartRunTriggerSubscriber(q, runner, quietLogger()))

	require.NoError(t, PublishRunTrigger(context.Background(), q, 1))
	q.Wait()

	assert.Equal(t, int32(q.MaxRetries+1), atomic.LoadInt32(&runner.calls))
}

func TestMalformedTriggerIsDropped(t *testing.T) {
	q := newTestQueue()
	runner := &stubRunner{}
	require.NoError(t, StartRunTriggerSubscriber(q, runner, quietLogger()))

	require.NoError(t, q.Publish(context.Background(), TopicRunDue, []byte("{not json")))
	q.Wait()

	assert.Zero(t, atomic.LoadInt32(&runner.calls))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	q := newTestQueue()
	assert.Error(t, q.Publish(context.Background(), "nobody", []byte("{}")))
}
