package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/dirt2meme/internal/logger"
)

// BatchItem is one input of a batch run. Load is called on a worker so
// reading happens in parallel with processing.
type BatchItem struct {
	Name string
	Load func() (Upload, error)
}

// BatchResult reports the outcome for a single item.
type BatchResult struct {
	Name   string
	Result *Result
	Err    error
}

// BatchStats summarizes a batch run.
type BatchStats struct {
	TotalItems  int64
	Generated   int64
	Rejected    int64
	FailedItems int64
	StartTime   time.Time
	EndTime     time.Time
}

// GenerateBatch runs Generate for every item using a fixed number of
// workers. onResult, if set, is called from a single goroutine.
func (g *Generator) GenerateBatch(ctx context.Context, items []BatchItem, workers int, onResult func(BatchResult)) *BatchStats {
	if workers <= 0 {
		workers = 1
	}
	ctx = logger.SetComponent(g.withLogger(ctx), "batch")
	stats := &BatchStats{TotalItems: int64(len(items)), StartTime: time.Now()}

	itemsChan := make(chan BatchItem, workers*2)
	resultsChan := make(chan BatchResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.batchWorker(ctx, itemsChan, resultsChan)
		}()
	}

	done := make(chan struct{})
	go func() {
		for r := range resultsChan {
			switch {
			case r.Err == nil:
				atomic.AddInt64(&stats.Generated, 1)
			case IsInvalidInput(r.Err):
				atomic.AddInt64(&stats.Rejected, 1)
			default:
				atomic.AddInt64(&stats.FailedItems, 1)
			}
			if onResult != nil {
				onResult(r)
			}
		}
		close(done)
	}()

feed:
	for _, item := range items {
		select {
		case itemsChan <- item:
		case <-ctx.Done():
			break feed
		}
	}

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done

	stats.EndTime = time.Now()
	g.log(ctx).WithFields(logger.Fields{
		"total":     stats.TotalItems,
		"generated": stats.Generated,
		"rejected":  stats.Rejected,
		"failed":    stats.FailedItems,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Batch completed")

	return stats
}

func (g *Generator) batchWorker(ctx context.Context, items <-chan BatchItem, results chan<- BatchResult) {
	for item := range items {
		if ctx.Err() != nil {
			results <- BatchResult{Name: item.Name, Err: processingFailure("batch", ctx.Err())}
			continue
		}
		up, err := item.Load()
		if err != nil {
			results <- BatchResult{Name: item.Name, Err: invalidInput(err, "Cannot read %s: %v", item.Name, err)}
			continue
		}
		if up.Filename == "" {
			up.Filename = item.Name
		}
		res, err := g.Generate(ctx, up)
		results <- BatchResult{Name: item.Name, Result: res, Err: err}
	}
}
