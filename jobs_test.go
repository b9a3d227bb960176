package acx

import (
	"context"
	"testing"
	"time"

	"github.com/soypat/acx/acxfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueueFIFO(t *testing.T) {
	var q jobQueue
	assert.True(t, q.push(jobCompleteScan))
	assert.True(t, q.push(jobAssociate|jobRadioRecalib))
	assert.False(t, q.push(jobCompleteScan), "queued job must not be queued twice")
	assert.False(t, q.push(0))

	var got []job
	for {
		j, ok := q.pop()
		if !ok {
			break
		}
		got = append(got, j)
	}
	assert.Equal(t, []job{jobCompleteScan, jobRadioRecalib, jobAssociate}, got)

	// Popped jobs can be queued again.
	assert.True(t, q.push(jobCompleteScan))
	q.reset()
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestJobQueueWraps(t *testing.T) {
	var q jobQueue
	all := jobRadioRecalib | jobUpdateCardCfg | jobStopScan | jobCompleteScan | jobRestartScan | jobAssociate
	for round := 0; round < 3; round++ {
		require.True(t, q.push(all))
		require.Equal(t, numJobs, q.n)
		j, _ := q.pop()
		require.Equal(t, jobRadioRecalib, j)
		require.True(t, q.push(jobRadioRecalib))
		for i := 0; i < numJobs-1; i++ {
			q.pop()
		}
		j, _ = q.pop()
		require.Equal(t, jobRadioRecalib, j, "round %d", round)
	}
}

func TestJobString(t *testing.T) {
	assert.Equal(t, "COMPLETE_SCAN", jobCompleteScan.String())
	assert.Equal(t, "STOP_SCAN|COMPLETE_SCAN", (jobStopScan | jobCompleteScan).String())
}

func TestRunJobsWakesOnSchedule(t *testing.T) {
	d, bus := newTestDevice(t, acxfw.VariantACX111, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.RunJobs(ctx) }()

	d.mu.Lock()
	d.schedule(jobRadioRecalib)
	d.mu.Unlock()
	require.Eventually(t, func() bool {
		return d.PendingJobs() == 0 && hasCommand(bus, acxfw.CmdRadioCalib)
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestProcessJobsSerializesDrains(t *testing.T) {
	d, bus := newTestDevice(t, acxfw.VariantACX111, nil)
	d.mu.Lock()
	d.schedule(jobRadioRecalib)
	d.mu.Unlock()

	// Another drain is in progress.
	d.jobmu.Lock()
	done := make(chan error, 1)
	go func() { done <- d.ProcessJobs() }()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, d.PendingJobs())
	require.False(t, hasCommand(bus, acxfw.CmdRadioCalib))

	d.jobmu.Unlock()
	require.NoError(t, <-done)
	require.Zero(t, d.PendingJobs())
	require.True(t, hasCommand(bus, acxfw.CmdRadioCalib))
}
