package search

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/internal/lattice"
)

type job struct {
	index int
	node  lattice.Node
}

// worker evaluates nodes of one level pulled from a shared queue
type worker struct {
	id       int
	logger   *logrus.Entry
	searcher *Searcher
}

func newWorker(id int, searcher *Searcher) *worker {
	return &worker{
		id:       id,
		logger:   searcher.logger.WithField("worker_id", id),
		searcher: searcher,
	}
}

// start consumes jobs until the queue closes, the context ends or an
// evaluation fails. Each outcome is written to its job's slot.
func (w *worker) start(ctx context.Context, p *Problem, acc *accumulator, jobs <-chan job, outcomes []outcome, fail func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			start := time.Now()
			out, err := w.searcher.evaluate(p, j.node, acc)
			if err != nil {
				w.logger.WithFields(logrus.Fields{
					"node":  j.node.String(),
					"error": err.Error(),
				}).Error("Node evaluation failed")
				fail(err)
				return
			}
			out.Duration = time.Since(start)
			w.logger.WithFields(logrus.Fields{
				"node":       j.node.String(),
				"verdict":    out.Verdict,
				"loss":       out.Loss,
				"suppressed": out.Suppressed,
			}).Debug("Node evaluated")
			outcomes[j.index] = out
		}
	}
}

// evaluateLevel runs nodes through a bounded pool and returns their outcomes
// in input order.
func (s *Searcher) evaluateLevel(ctx context.Context, p *Problem, nodes []lattice.Node, acc *accumulator) ([]outcome, error) {
	outcomes := make([]outcome, len(nodes))
	if len(nodes) == 0 {
		return outcomes, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workers := s.config.Workers
	if workers > len(nodes) {
		workers = len(nodes)
	}
	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			newWorker(id, s).start(ctx, p, acc, jobs, outcomes, fail)
		}(i)
	}

feed:
	for i, node := range nodes {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- job{index: i, node: node}:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
