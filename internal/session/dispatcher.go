package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/satprep-labs/practice-session-service/internal/client"
)

const (
	defaultQueueDepth  = 64
	defaultSendTimeout = 10 * time.Second
)

type syncJob struct {
	sessionID  string
	questionID string
	req        client.SubmitAnswerRequest
}

// Dispatcher mirrors answered questions to the backend without blocking the
// caller. Delivery is at-most-once: failed or overflowing sends are logged
// and dropped, never retried and never surfaced. The in-memory store stays
// the source of truth for the live session either way.
type Dispatcher struct {
	api    *client.Client
	logger *slog.Logger

	queue chan syncJob
	wg    sync.WaitGroup

	closeOnce sync.Once
}

func NewDispatcher(api *client.Client, logger *slog.Logger, depth int) *Dispatcher {
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	d := &Dispatcher{
		api:    api,
		logger: logger,
		queue:  make(chan syncJob, depth),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Enqueue hands a patch to the background worker. Never blocks: when the
// queue is full the patch is dropped, which is the same accepted data-loss
// mode as a tab closing mid-flight.
func (d *Dispatcher) Enqueue(sessionID, questionID string, req client.SubmitAnswerRequest) {
	job := syncJob{sessionID: sessionID, questionID: questionID, req: req}
	select {
	case d.queue <- job:
	default:
		d.logger.Warn("sync queue full, dropping answer patch",
			"session_id", sessionID,
			"question_id", questionID)
	}
}

// QueueDepth reports how many patches are waiting to be sent.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// Close stops accepting work and waits for queued patches to drain.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for job := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), defaultSendTimeout)
		_, err := d.api.SubmitAnswer(ctx, job.sessionID, job.questionID, job.req)
		cancel()
		if err != nil {
			d.logger.Error("background sync failed",
				"session_id", job.sessionID,
				"question_id", job.questionID,
				"error", err)
		}
	}
}
