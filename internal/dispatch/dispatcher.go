// Package dispatch decouples webhook ingestion from answer generation: a
// bounded in-process queue feeding a small worker pool. The queue is the
// asynchronous hand-off boundary; nothing here retries, the platform
// re-submits questions if it wants another attempt.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/m3y/askdoc/internal/domain"
	"github.com/m3y/askdoc/internal/metrics"
	"github.com/m3y/askdoc/internal/usecase"
)

// Answerer produces the terminal answer for one question. It never returns
// an error; failures arrive as Answer{OK: false}.
type Answerer interface {
	Execute(ctx context.Context, q domain.Question) domain.Answer
}

// Dispatcher owns the question queue and the workers draining it.
type Dispatcher struct {
	queue    chan domain.Question
	answerer Answerer
	replier  usecase.ReplyPoster
	workers  int
	logger   *slog.Logger
}

// New creates a Dispatcher with a queue of queueSize and the given number of
// workers. One worker keeps the per-process flow strictly sequential; more
// trade that for throughput.
func New(answerer Answerer, replier usecase.ReplyPoster, queueSize, workers int, logger *slog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:    make(chan domain.Question, queueSize),
		answerer: answerer,
		replier:  replier,
		workers:  workers,
		logger:   logger.With("component", "dispatcher"),
	}
}

// TryEnqueue offers a question to the queue without blocking. It returns
// false when the queue is full.
func (d *Dispatcher) TryEnqueue(q domain.Question) bool {
	select {
	case d.queue <- q:
		metrics.QueueDepth.Inc()
		return true
	default:
		return false
	}
}

// Run starts the workers and blocks until ctx is canceled and the workers
// have drained their current question.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			return d.work(ctx)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case q := <-d.queue:
			metrics.QueueDepth.Dec()
			d.process(ctx, q)
		}
	}
}

// replyTimeout bounds the reply post once an answer exists.
const replyTimeout = 10 * time.Second

// process runs the agent loop for one question and posts the result. The
// answer text is posted whether or not generation succeeded: a failed
// attempt still owes the channel its generic apology.
func (d *Dispatcher) process(ctx context.Context, q domain.Question) {
	log := d.logger.With(slog.String("correlation_id", q.CorrelationID))
	log.Info("Answering question.")

	ans := d.answerer.Execute(ctx, q)
	if !ans.OK {
		log.Warn("Answer generation failed, posting generic message.")
	}

	// The post is detached from the run context so an in-flight question
	// still gets its reply out during shutdown.
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()

	if err := d.replier.Post(postCtx, q.ReplyToken, ans.Text); err != nil {
		log.Error("Failed to post reply.", slog.Any("error", err))
		return
	}
	log.Info("Reply posted.", slog.Bool("ok", ans.OK))
}
