package splice

import (
	"runtime"
	"sync"

	"github.com/wangdi2014/pavfinder/internal/align"
)

// WorkItem holds one contig's ordered alignments ready for processing.
// Seq is the contig's position in the input, used to restore input order
// when collecting.
type WorkItem struct {
	Seq    int
	Contig string
	Alns   []*align.Alignment
}

// WorkResult holds the detection output for a single contig.
type WorkResult struct {
	Seq    int
	Contig string
	Result *Result
	Err    error
}

// ParallelProcess fans contig analysis out over a worker pool. Workers
// pull items until the channel closes; results arrive on the returned
// channel as contigs finish, not in Seq order. The engine is safe to
// share because all of its inputs are read-only after construction.
// workers <= 0 means one worker per CPU.
func (e *Engine) ParallelProcess(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				res, err := e.ProcessContig(item.Contig, item.Alns)
				results <- WorkResult{Seq: item.Seq, Contig: item.Contig, Result: res, Err: err}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect consumes results and invokes fn in Seq order, holding
// early arrivals until their turn comes up. It returns the first error
// from fn; the channel is drained on that path so no worker stays
// blocked on a full result buffer.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	held := make(map[int]WorkResult)
	want := 0

	for r := range results {
		held[r.Seq] = r
		for {
			next, ok := held[want]
			if !ok {
				break
			}
			delete(held, want)
			want++
			if err := fn(next); err != nil {
				for range results {
				}
				return err
			}
		}
	}
	return nil
}
