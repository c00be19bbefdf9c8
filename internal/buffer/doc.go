// Package buffer implements a two-tier, write-through key/value data
// buffer: a bounded in-memory staging queue in front of a bounded on-disk
// scratch cache.
//
// Producers call Store, Get and Delete concurrently. A single background
// worker asynchronously drains memory entries to disk in insertion order.
// When the disk tier is full, the buffer either evicts the oldest
// fully-persisted entry through a caller-supplied pop callback, or blocks
// producers until an external Delete frees space.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                            Buffer                                 │
//	├─────────────────────────────────────────────────────────────────┤
//	│  Store path:  caller → memoryLane → (async) transferWorker →    │
//	│               diskLane → scratch file                           │
//	│  Get path:    caller → memoryLane → diskLane (wait if Started)  │
//	│                        → scratch file                            │
//	│  Delete path: caller → memoryLane.remove → diskLane.remove/     │
//	│                        cancel in-flight write                    │
//	├─────────────────────────────────────────────────────────────────┤
//	│  Overfill on disk: popCallbackPolicy evicts oldest completed,   │
//	│                    or backpressurePolicy blocks for Delete      │
//	└─────────────────────────────────────────────────────────────────┘
//
// Keys only need to be comparable and deterministically encodable to a
// filesystem-safe name via a caller-supplied KeyEncoder; the buffer never
// inspects key contents beyond that. Values are non-empty byte slices.
//
// The disk tier is a scratch area, not a store of record: state is not
// recovered across process restarts, there is no integrity verification of
// persisted bytes, and no ordering is guaranteed across distinct keys.
package buffer
