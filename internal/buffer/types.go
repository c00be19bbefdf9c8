package buffer

import (
	"go.uber.org/zap"

	"github.com/anovak/databuf/internal/metrics"
)

// transferState is the tri-state marker recording how far a value has
// progressed toward being durable on disk. It is the single source of
// truth for "is this memory entry safely evictable?".
type transferState int

const (
	notStarted transferState = iota
	started
	completed
	cancelled
)

func (s transferState) String() string {
	switch s {
	case notStarted:
		return "not-started"
	case started:
		return "started"
	case completed:
		return "completed"
	case cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// memoryEntry is a value staged in the memory lane, tagged with how far its
// disk transfer has progressed. Mutated only by the transfer worker.
type memoryEntry[K comparable] struct {
	key       K
	value     []byte
	diskState transferState
}

// diskEntry tracks an in-flight or completed on-disk write for a key.
type diskEntry[K comparable] struct {
	key   K
	size  uint64
	state transferState
}

// KeyEncoder deterministically maps a key to a filesystem-safe name. Equal
// keys must always encode to the same string. For sum-type/tagged keys this
// should be a plain switch over the key's variant, not virtual dispatch.
type KeyEncoder[K comparable] func(K) string

// PopCallback is invoked with the oldest completed disk entry's key and
// value when the disk lane evicts it to make room for a new write.
type PopCallback[K comparable] func(K, []byte)

// Config configures a new Buffer.
type Config[K comparable] struct {
	// MaxMemoryUsage and MaxDiskUsage bound the two lanes, in bytes.
	// MaxMemoryUsage must be <= MaxDiskUsage.
	MaxMemoryUsage uint64
	MaxDiskUsage   uint64

	// KeyEncoder maps keys to filesystem-safe filenames. Required.
	KeyEncoder KeyEncoder[K]

	// PopCallback, if non-nil, is invoked to evict the oldest completed
	// disk entry when the disk lane is full. If nil, Store instead blocks
	// (backpressure) until an external Delete frees space.
	PopCallback PopCallback[K]

	// ScratchDir, if non-empty, is used as the on-disk scratch root and is
	// left in place on Close. If empty, a uniquely-named temporary
	// directory is created and removed on Close.
	ScratchDir string

	// Metrics receives buffer instrumentation. Defaults to a no-op
	// collector when nil.
	Metrics *metrics.Collector

	// Logger receives structured lifecycle and error logs. Defaults to
	// zap.NewNop() when nil.
	Logger *zap.Logger
}
