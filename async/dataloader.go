package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tsawler/catsdogs/training"
)

// ErrStopped is returned by Next once the loader has been stopped
var ErrStopped = errors.New("prefetching loader has been stopped")

type loadedBatch struct {
	batch *training.Batch
	err   error
}

// PrefetchLoader reads batches from a source on a background goroutine so
// that image decoding overlaps with training. Batches come out in the order
// the source produces them.
type PrefetchLoader struct {
	source        training.BatchSource
	prefetchDepth int

	// Channels for pipeline
	batchChannel chan loadedBatch
	done         chan struct{}

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// State
	produced  atomic.Uint64
	consumed  atomic.Uint64
	isRunning bool
	mutex     sync.RWMutex
}

// NewPrefetchLoader wraps source. prefetchDepth is the number of batches
// held ready ahead of the consumer.
func NewPrefetchLoader(source training.BatchSource, prefetchDepth int) (*PrefetchLoader, error) {
	if source == nil {
		return nil, fmt.Errorf("batch source cannot be nil")
	}
	if prefetchDepth <= 0 {
		return nil, fmt.Errorf("prefetch depth must be positive, got %d", prefetchDepth)
	}

	return &PrefetchLoader{
		source:        source,
		prefetchDepth: prefetchDepth,
	}, nil
}

// Start launches the background reader
func (pl *PrefetchLoader) Start() error {
	pl.mutex.Lock()
	defer pl.mutex.Unlock()

	if pl.isRunning {
		return fmt.Errorf("prefetching loader is already running")
	}

	pl.ctx, pl.cancel = context.WithCancel(context.Background())
	pl.batchChannel = make(chan loadedBatch, pl.prefetchDepth)
	pl.done = make(chan struct{})

	pl.wg.Add(1)
	go pl.worker(pl.ctx, pl.batchChannel, pl.done)

	pl.isRunning = true
	return nil
}

// Stop halts the background reader and drops any prefetched batches.
// Batches already read from the source are not returned to it.
func (pl *PrefetchLoader) Stop() error {
	pl.mutex.Lock()
	defer pl.mutex.Unlock()

	if !pl.isRunning {
		return nil
	}

	pl.cancel()
	pl.wg.Wait()

	for len(pl.batchChannel) > 0 {
		<-pl.batchChannel
	}

	pl.isRunning = false
	return nil
}

// Len is the number of batches in one epoch of the source
func (pl *PrefetchLoader) Len() int {
	return pl.source.Len()
}

// Next returns the next batch, blocking until the worker has one ready.
// A source error is returned once, after which Next returns ErrStopped.
func (pl *PrefetchLoader) Next() (*training.Batch, error) {
	pl.mutex.RLock()
	if !pl.isRunning {
		pl.mutex.RUnlock()
		return nil, ErrStopped
	}
	batches, done := pl.batchChannel, pl.done
	pl.mutex.RUnlock()

	var loaded loadedBatch
	select {
	case loaded = <-batches:
	case <-done:
		// The worker may have queued its last item before exiting
		select {
		case loaded = <-batches:
		default:
			return nil, ErrStopped
		}
	}

	pl.consumed.Add(1)
	return loaded.batch, loaded.err
}

func (pl *PrefetchLoader) worker(ctx context.Context, batches chan<- loadedBatch, done chan<- struct{}) {
	defer pl.wg.Done()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := pl.source.Next()

		// Counted before the send so a consumer never sees more batches
		// consumed than produced
		pl.produced.Add(1)
		select {
		case batches <- loadedBatch{batch: batch, err: err}:
		case <-ctx.Done():
			pl.produced.Add(^uint64(0))
			return
		}

		if err != nil {
			return
		}
	}
}

// PrefetchStats holds statistics about the loader
type PrefetchStats struct {
	IsRunning       bool
	BatchesProduced uint64
	BatchesConsumed uint64
	QueuedBatches   int
	QueueCapacity   int
}

// Stats returns statistics about the loader
func (pl *PrefetchLoader) Stats() PrefetchStats {
	pl.mutex.RLock()
	defer pl.mutex.RUnlock()

	return PrefetchStats{
		IsRunning:       pl.isRunning,
		BatchesProduced: pl.produced.Load(),
		BatchesConsumed: pl.consumed.Load(),
		QueuedBatches:   len(pl.batchChannel),
		QueueCapacity:   pl.prefetchDepth,
	}
}

func (s PrefetchStats) String() string {
	return fmt.Sprintf("Prefetch: %d produced, %d consumed, %d/%d queued",
		s.BatchesProduced, s.BatchesConsumed, s.QueuedBatches, s.QueueCapacity)
}
