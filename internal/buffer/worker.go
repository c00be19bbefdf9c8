package buffer

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/anovak/databuf/internal/metrics"
)

// transferWorker is the single background goroutine that moves values from
// the memory lane to the disk lane. There is exactly one per Buffer; its
// exit (on the first fatal sink error) is recorded in a one-shot slot that
// every Store/Get/Delete call consults before doing further work, so a dead
// worker fails fast instead of leaving callers blocked forever.
type transferWorker[K comparable] struct {
	mem    *memoryLane[K]
	disk   *diskLane[K]
	sink   *sink[K]
	policy diskFullPolicy[K]
	mtr    *metrics.Collector
	log    *zap.Logger

	stopped atomic.Bool
	doneCh  chan struct{}

	errMu sync.Mutex
	err   error
}

func newTransferWorker[K comparable](mem *memoryLane[K], disk *diskLane[K], sink *sink[K], policy diskFullPolicy[K], mtr *metrics.Collector, log *zap.Logger) *transferWorker[K] {
	return &transferWorker[K]{
		mem:    mem,
		disk:   disk,
		sink:   sink,
		policy: policy,
		mtr:    mtr,
		log:    log,
		doneCh: make(chan struct{}),
	}
}

func (w *transferWorker[K]) isStopped() bool {
	return w.stopped.Load()
}

// stop requests the worker to exit after its current transfer, if any, and
// wakes it if it is blocked waiting for work or disk space.
func (w *transferWorker[K]) stop() {
	w.stopped.Store(true)
	w.mem.broadcastStop()
	w.disk.broadcastStop()
}

// wait blocks until the worker goroutine has returned.
func (w *transferWorker[K]) wait() {
	<-w.doneCh
}

// fatalErr returns the error that stopped the worker, if it exited
// abnormally.
func (w *transferWorker[K]) fatalErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *transferWorker[K]) setFatalErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

// run is the worker's main loop. It exits when stop() has been called and
// no work remains, or immediately on the first fatal transfer error.
func (w *transferWorker[K]) run() {
	defer close(w.doneCh)

	for {
		me := w.mem.waitNextNotStarted(w.isStopped)
		if me == nil {
			return
		}

		value, ok := w.mem.markStarted(me.key)
		if !ok {
			// Deleted between being selected and being claimed.
			continue
		}

		if err := w.transferOne(me.key, value); err != nil {
			w.log.Error("transfer worker stopping on fatal error", zap.Error(err))
			w.setFatalErr(err)
			w.mtr.IncWorkerError()
			// Raise the stop flag so callers blocked in either lane wake
			// and observe the error.
			w.stop()
			return
		}
	}
}

// transferOne persists value under key via the shared disk transfer path,
// then reflects the outcome back onto the memory entry.
func (w *transferWorker[K]) transferOne(key K, value []byte) error {
	start := time.Now()

	committed, err := transferToDisk(w.disk, w.sink, w.policy, w.mtr, key, value, w.isStopped)
	if err != nil {
		return err
	}
	if !committed {
		// Cancelled by a concurrent Delete, or the buffer is stopping:
		// the memory entry is already gone (Delete removes it
		// immediately) or will be cleaned up as part of shutdown.
		return nil
	}

	w.mem.markCompleted(key)
	w.mtr.ObserveTransfer(time.Since(start))
	w.mtr.SetMemoryBytes(w.mem.currentUsage())
	return nil
}
