package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_RunJanitor(t *testing.T) {
	t.Parallel()
	p := newTestProcessor(t, DefaultOptions())

	_, err := p.Submit("finished", func(ctx context.Context, args ...any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	waitForStatus(t, p, "finished", StatusCompleted)

	release := make(chan struct{})
	defer close(release)
	_, err = p.Submit("busy", func(ctx context.Context, args ...any) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.RunJanitor(ctx, 10*time.Millisecond, 0)
	}()

	require.Eventually(t, func() bool {
		_, ok := p.GetStatus("finished")
		return !ok
	}, waitTimeout, 5*time.Millisecond, "janitor never removed the finished job")

	_, ok := p.GetStatus("busy")
	assert.True(t, ok, "unfinished jobs must survive janitor passes")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("janitor did not stop after context cancellation")
	}
}
