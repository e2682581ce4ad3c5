package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

// DefaultBatchConcurrency bounds how many questions answer in parallel when
// the caller does not choose a limit.
const DefaultBatchConcurrency = 5

// ProgressFunc reports batch progress after each answered question. It may be
// called from multiple goroutines.
type ProgressFunc func(done, total int)

// AnswerBatch answers every question with bounded concurrency and returns
// predictions in input order. Individual questions never fail, so the only
// error is a cancelled context.
func (p *Pipeline) AnswerBatch(ctx context.Context, questions []domain.Question, concurrency int, progress ProgressFunc) ([]domain.Prediction, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	predictions := make([]domain.Prediction, len(questions))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, q := range questions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			predictions[i] = p.Answer(ctx, q)
			if progress != nil {
				progress(int(done.Add(1)), len(questions))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return predictions, nil
}
