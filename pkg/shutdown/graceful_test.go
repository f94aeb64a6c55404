package shutdown

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSignalsCancelsOnSignal(t *testing.T) {
	forced := make(chan struct{}, 1)
	ctx, cancel := withSignals(context.Background(), func() { forced <- struct{}{} }, syscall.SIGUSR1)
	defer cancel()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	assert.Empty(t, forced)
}

func TestWithSignalsReleasesOnCancel(t *testing.T) {
	ctx, cancel := withSignals(context.Background(), func() { t.Error("forced exit") }, syscall.SIGUSR2)
	cancel()
	<-ctx.Done()
}
