package buffer

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/anovak/databuf/internal/metrics"
)

// Buffer is a generic, write-through memory/disk staging area for values
// keyed by K. The zero value is not usable; construct with New.
type Buffer[K comparable] struct {
	mem    *memoryLane[K]
	disk   *diskLane[K]
	sink   *sink[K]
	worker *transferWorker[K]
	policy diskFullPolicy[K]

	encoder KeyEncoder[K]
	mtr     *metrics.Collector
	log     *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New constructs a Buffer per cfg. The returned Buffer owns a background
// goroutine; callers must call Close to release it and any scratch files it
// created.
func New[K comparable](cfg Config[K]) (*Buffer[K], error) {
	if cfg.KeyEncoder == nil {
		return nil, fmt.Errorf("%w: KeyEncoder is required", ErrInvalidParameter)
	}
	if cfg.MaxMemoryUsage > cfg.MaxDiskUsage {
		return nil, fmt.Errorf("%w: MaxMemoryUsage (%d) exceeds MaxDiskUsage (%d)", ErrInvalidParameter, cfg.MaxMemoryUsage, cfg.MaxDiskUsage)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	mtr := cfg.Metrics
	if mtr == nil {
		mtr = metrics.NewNoop()
	}

	sk, err := newSink[K](cfg.ScratchDir, cfg.KeyEncoder, log)
	if err != nil {
		return nil, err
	}

	mem := newMemoryLane[K](cfg.MaxMemoryUsage)
	disk := newDiskLane[K](cfg.MaxDiskUsage)

	var policy diskFullPolicy[K]
	if cfg.PopCallback != nil {
		policy = &popCallbackPolicy[K]{sink: sk, callback: cfg.PopCallback, metrics: mtr}
	} else {
		policy = backpressurePolicy[K]{}
	}

	worker := newTransferWorker[K](mem, disk, sk, policy, mtr, log)
	go worker.run()

	b := &Buffer[K]{
		mem:     mem,
		disk:    disk,
		sink:    sk,
		worker:  worker,
		policy:  policy,
		encoder: cfg.KeyEncoder,
		mtr:     mtr,
		log:     log,
	}
	log.Info("buffer started", zap.Uint64("max_memory", cfg.MaxMemoryUsage), zap.Uint64("max_disk", cfg.MaxDiskUsage), zap.String("scratch_dir", sk.root))
	return b, nil
}

// checkWorker returns the worker's fatal error, if any. Every public
// operation consults this first so a dead worker fails fast rather than
// leaving callers blocked on a lane that will never drain.
func (b *Buffer[K]) checkWorker() error {
	if err := b.worker.fatalErr(); err != nil {
		return fmt.Errorf("transfer worker stopped: %w", err)
	}
	return nil
}

// Store replaces any existing entry for key (in either lane) and stages
// value fresh. Values that fit within the memory limit are queued there for
// the worker to migrate asynchronously; values too large for the memory
// lane but small enough for the disk lane bypass memory entirely and are
// written to disk inline, on the caller's own goroutine. Blocks under
// backpressure until room is available, an external Delete frees space, or
// the worker fails.
func (b *Buffer[K]) Store(key K, value []byte) error {
	if err := b.checkWorker(); err != nil {
		b.mtr.IncOperation(metrics.OpStore, metrics.ResultError)
		return err
	}
	if uint64(len(value)) > b.disk.maxUsage() {
		err := fmt.Errorf("%w: value of %d bytes exceeds max disk usage of %d", ErrCannotExceedLimit, len(value), b.disk.maxUsage())
		b.worker.setFatalErr(err)
		b.worker.stop()
		b.mtr.IncWorkerError()
		b.mtr.IncOperation(metrics.OpStore, metrics.ResultError)
		return err
	}

	if err := b.removeKey(key); err != nil && err != ErrNoSuchElement {
		b.mtr.IncOperation(metrics.OpStore, metrics.ResultError)
		return err
	}

	if uint64(len(value)) > b.mem.maxUsage() {
		committed, err := transferToDisk(b.disk, b.sink, b.policy, b.mtr, key, value, b.worker.isStopped)
		if err != nil {
			b.mtr.IncOperation(metrics.OpStore, metrics.ResultError)
			return err
		}
		if !committed {
			if b.worker.isStopped() {
				b.mtr.IncOperation(metrics.OpStore, metrics.ResultError)
				return ErrClosed
			}
			// Cancelled by a concurrent Delete of the same key, which
			// supersedes this Store.
			b.mtr.IncOperation(metrics.OpStore, metrics.ResultOK)
			return nil
		}
		b.mtr.IncOperation(metrics.OpStore, metrics.ResultOK)
		b.log.Debug("stored inline on disk", zap.String("key", b.encoder(key)), zap.Int("size", len(value)))
		return nil
	}

	if !b.mem.store(key, value, b.worker.isStopped) {
		if err := b.checkWorker(); err != nil {
			b.mtr.IncOperation(metrics.OpStore, metrics.ResultError)
			return err
		}
		b.mtr.IncOperation(metrics.OpStore, metrics.ResultError)
		return ErrClosed
	}

	b.mtr.IncOperation(metrics.OpStore, metrics.ResultOK)
	b.mtr.SetMemoryBytes(b.mem.currentUsage())
	b.log.Debug("stored", zap.String("key", b.encoder(key)), zap.Int("size", len(value)))
	return nil
}

// Get returns the value stored for key, from whichever lane currently holds
// it. Returns ErrNoSuchElement if key is absent.
func (b *Buffer[K]) Get(key K) ([]byte, error) {
	if err := b.checkWorker(); err != nil {
		b.mtr.IncOperation(metrics.OpGet, metrics.ResultError)
		return nil, err
	}

	if value, ok := b.mem.get(key); ok {
		b.mtr.IncOperation(metrics.OpGet, metrics.ResultOK)
		return value, nil
	}

	found, state := b.disk.awaitSettled(key, b.worker.isStopped)
	if !found || state == cancelled {
		b.mtr.IncOperation(metrics.OpGet, metrics.ResultNotFound)
		return nil, ErrNoSuchElement
	}

	value, err := b.sink.read(key)
	if err != nil {
		b.mtr.IncOperation(metrics.OpGet, metrics.ResultError)
		return nil, err
	}
	b.mtr.IncOperation(metrics.OpGet, metrics.ResultOK)
	return value, nil
}

// Delete removes key from whichever lane holds it. If a transfer for key is
// currently in flight, the in-progress disk write is undone once the
// worker reaches it rather than being raced against directly. Returns
// ErrNoSuchElement if key is absent from both lanes.
func (b *Buffer[K]) Delete(key K) error {
	if err := b.checkWorker(); err != nil {
		b.mtr.IncOperation(metrics.OpDelete, metrics.ResultError)
		return err
	}

	err := b.removeKey(key)
	switch err {
	case nil:
		b.mtr.IncOperation(metrics.OpDelete, metrics.ResultOK)
		b.mtr.SetMemoryBytes(b.mem.currentUsage())
		b.mtr.SetDiskBytes(b.disk.currentUsage())
	case ErrNoSuchElement:
		b.mtr.IncOperation(metrics.OpDelete, metrics.ResultNotFound)
	default:
		b.mtr.IncOperation(metrics.OpDelete, metrics.ResultError)
	}
	return err
}

// removeKey is Delete's logic without metrics side effects, shared with
// Store's implicit delete-before-write. Cancellation of an in-flight disk
// write is always handled at the disk lane, regardless of whether that
// write was queued through the memory lane or started inline by Store's
// oversize bypass: the writer (worker or inline Store call) observes the
// cancellation itself via transferToDisk and drops its own disk entry.
func (b *Buffer[K]) removeKey(key K) error {
	priorState, foundInMemory := b.mem.remove(key)
	if foundInMemory {
		switch priorState {
		case started:
			// The disk-side write is in flight; its own writer (worker
			// or inline Store) observes the cancellation and drops its
			// disk entry.
			b.disk.markCancelledIfStarted(key)
		case completed:
			if _, ok := b.disk.remove(key); ok {
				if _, err := b.sink.remove(key); err != nil {
					return err
				}
			}
		}
		return nil
	}

	state, ok := b.disk.snapshotState(key)
	if !ok {
		return ErrNoSuchElement
	}
	switch state {
	case started:
		b.disk.markCancelledIfStarted(key)
	case completed:
		if _, ok := b.disk.remove(key); ok {
			if _, err := b.sink.remove(key); err != nil {
				return err
			}
		}
	case cancelled:
		// Already being torn down by its writer; nothing more to do.
	}
	return nil
}

// SetMaxMemoryUsage adjusts the memory lane's capacity. Returns
// ErrInvalidParameter if max would exceed the current disk limit.
func (b *Buffer[K]) SetMaxMemoryUsage(max uint64) error {
	if max > b.disk.maxUsage() {
		return fmt.Errorf("%w: MaxMemoryUsage (%d) would exceed MaxDiskUsage (%d)", ErrInvalidParameter, max, b.disk.maxUsage())
	}
	b.mem.setMax(max)
	return nil
}

// SetMaxDiskUsage adjusts the disk lane's capacity. Returns
// ErrInvalidParameter if max would fall below the current memory limit.
func (b *Buffer[K]) SetMaxDiskUsage(max uint64) error {
	if max < b.mem.maxUsage() {
		return fmt.Errorf("%w: MaxDiskUsage (%d) would fall below MaxMemoryUsage (%d)", ErrInvalidParameter, max, b.mem.maxUsage())
	}
	b.disk.setMax(max)
	return nil
}

// Close stops the transfer worker and releases the scratch directory, if
// this Buffer created it. Idempotent; safe to call more than once.
func (b *Buffer[K]) Close() error {
	b.closeOnce.Do(func() {
		b.worker.stop()
		b.worker.wait()
		b.closeErr = b.sink.close()
		b.log.Info("buffer closed")
	})
	return b.closeErr
}
