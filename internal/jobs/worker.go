// Package jobs runs the background work that must never slow down query
// serving. Currently that is one worker: flushing buffered audit records to
// their sink.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/telemetry"
)

const (
	// DefaultFlushInterval is how often buffered audit records are written
	// out when the caller does not configure an interval.
	DefaultFlushInterval = 5 * time.Second

	// DefaultFlushBatch caps how many records go into one sink write.
	DefaultFlushBatch = 100

	// finalFlushTimeout bounds the last flush during shutdown so a dead
	// sink cannot hold the process open.
	finalFlushTimeout = 5 * time.Second
)

// AuditSink persists a batch of audit records.
type AuditSink interface {
	InsertBatch(ctx context.Context, records []domain.AuditRecord) error
}

// AuditWorker drains the audit channel on a fixed interval and writes the
// buffered records to the sink. Flush failures drop the batch; auditing is
// best effort and never propagates errors to the answer path.
type AuditWorker struct {
	records  <-chan domain.AuditRecord
	sink     AuditSink
	interval time.Duration
	batch    int
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewAuditWorker creates a worker over the given record channel and sink.
// A non-positive interval falls back to DefaultFlushInterval.
func NewAuditWorker(records <-chan domain.AuditRecord, sink AuditSink, interval time.Duration) *AuditWorker {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &AuditWorker{
		records:  records,
		sink:     sink,
		interval: interval,
		batch:    DefaultFlushBatch,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs the flush loop until the context is cancelled or Stop is called.
// Whatever is still buffered gets flushed once more on the way out.
func (w *AuditWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("audit worker: started, flushing every %v", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.finalFlush(ctx)
			log.Println("audit worker: stopped, context cancelled")
			return
		case <-w.stopChan:
			w.finalFlush(ctx)
			log.Println("audit worker: stopped")
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for the final flush to finish.
func (w *AuditWorker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Println("audit worker: shutdown complete")
}

// finalFlush writes the remaining records even when the triggering context is
// already cancelled, bounded so shutdown cannot hang on the sink.
func (w *AuditWorker) finalFlush(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer cancel()
	w.flush(flushCtx)
}

// flush drains everything buffered on the channel and writes it in batches.
func (w *AuditWorker) flush(ctx context.Context) {
	for {
		batch := w.drain()
		if len(batch) == 0 {
			return
		}
		if err := w.sink.InsertBatch(ctx, batch); err != nil {
			log.Printf("audit worker: flush of %d records failed, dropping batch: %v", len(batch), err)
			telemetry.CaptureError(ctx, err)
			return
		}
		if len(batch) < w.batch {
			return
		}
	}
}

// drain performs non-blocking receives up to the batch size.
func (w *AuditWorker) drain() []domain.AuditRecord {
	var batch []domain.AuditRecord
	for len(batch) < w.batch {
		select {
		case rec, ok := <-w.records:
			if !ok {
				return batch
			}
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}
