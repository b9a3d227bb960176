package acx

import (
	"context"
	"log/slog"
	"strings"

	"github.com/soypat/acx/acxfw"
)

// job is deferred work that needs to issue firmware commands and therefore
// cannot run in interrupt or timer context.
type job uint8

const (
	jobRadioRecalib job = 1 << iota
	jobUpdateCardCfg
	jobStopScan
	jobCompleteScan
	jobRestartScan
	jobAssociate

	numJobs = 6
)

func (j job) String() string {
	switch j {
	case jobRadioRecalib:
		return "RADIO_RECALIB"
	case jobUpdateCardCfg:
		return "UPDATE_CARD_CFG"
	case jobStopScan:
		return "STOP_SCAN"
	case jobCompleteScan:
		return "COMPLETE_SCAN"
	case jobRestartScan:
		return "RESTART_SCAN"
	case jobAssociate:
		return "ASSOCIATE"
	}
	var sb strings.Builder
	for bit := job(1); bit != 0 && bit <= j; bit <<= 1 {
		if j&bit != 0 {
			if sb.Len() > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(bit.String())
		}
	}
	return sb.String()
}

// jobQueue is a FIFO of distinct jobs. A job already queued is not queued
// again. Not safe for concurrent use.
type jobQueue struct {
	pending job
	order   [numJobs]job
	head, n int
}

// push queues every bit of j not already pending, lowest bit first. It
// reports whether anything was added.
func (q *jobQueue) push(j job) (added bool) {
	for bit := job(1); bit != 0 && bit <= j; bit <<= 1 {
		if j&bit == 0 || q.pending&bit != 0 {
			continue
		}
		q.pending |= bit
		q.order[(q.head+q.n)%numJobs] = bit
		q.n++
		added = true
	}
	return added
}

func (q *jobQueue) pop() (job, bool) {
	if q.n == 0 {
		return 0, false
	}
	j := q.order[q.head]
	q.head = (q.head + 1) % numJobs
	q.n--
	q.pending &^= j
	return j, true
}

func (q *jobQueue) reset() { *q = jobQueue{} }

// schedule queues j and wakes RunJobs. Must be called with d.mu held.
func (d *Device) schedule(j job) {
	if d.jobs.push(j) {
		d.trace("schedule", slog.String("job", j.String()))
		select {
		case d.jobNotify <- struct{}{}:
		default:
		}
	}
}

// ProcessJobs runs queued deferred work in FIFO order until the queue is
// empty. Errors from individual jobs are logged and joined. Concurrent
// callers drain the queue one at a time.
func (d *Device) ProcessJobs() error {
	d.jobmu.Lock()
	defer d.jobmu.Unlock()
	var errs []error
	for {
		d.mu.Lock()
		j, ok := d.jobs.pop()
		d.mu.Unlock()
		if !ok {
			break
		}
		err := d.runJob(j)
		if err != nil {
			d.logerr("ProcessJobs:fail", slog.String("job", j.String()), slog.String("err", err.Error()))
			errs = append(errs, err)
		}
	}
	return errjoin(errs...)
}

// RunJobs processes deferred work as it is scheduled until ctx is done.
func (d *Device) RunJobs(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.jobNotify:
			d.ProcessJobs()
		}
	}
}

// PendingJobs returns the number of queued jobs.
func (d *Device) PendingJobs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobs.n
}

func (d *Device) runJob(j job) error {
	d.debug("runJob", slog.String("job", j.String()))
	switch j {
	case jobRadioRecalib:
		return d.radioRecalib()
	case jobUpdateCardCfg:
		return d.updateCardCfg()
	case jobStopScan:
		return d.IssueCmd(acxfw.CmdStopScan, nil)
	case jobCompleteScan:
		return d.completeScan()
	case jobRestartScan:
		return d.restartScan()
	case jobAssociate:
		return d.associate()
	}
	return nil
}
