package buffer

import (
	"fmt"
	"testing"
)

// dataID is a small tagged-union key, the kind of type the original
// system uses to distinguish chunk-like identifiers by variant. KeyEncoder
// for such a type is a plain switch over the tag, never virtual dispatch.
type dataID struct {
	kind string // "immutable" or "mutable"
	name [4]byte
}

func encodeDataID(id dataID) string {
	switch id.kind {
	case "immutable":
		return fmt.Sprintf("immutable-%x", id.name)
	case "mutable":
		return fmt.Sprintf("mutable-%x", id.name)
	default:
		return fmt.Sprintf("unknown-%x", id.name)
	}
}

func TestBuffer_TaggedKeyVariant(t *testing.T) {
	b := newTestBufferTagged(t)

	immutable := dataID{kind: "immutable", name: [4]byte{1, 2, 3, 4}}
	mutable := dataID{kind: "mutable", name: [4]byte{1, 2, 3, 4}}

	if err := b.Store(immutable, []byte("immutable-value")); err != nil {
		t.Fatalf("Store immutable: %v", err)
	}
	if err := b.Store(mutable, []byte("mutable-value")); err != nil {
		t.Fatalf("Store mutable: %v", err)
	}

	// Same name, different kind: must not collide despite identical byte
	// payloads, since the encoder folds the tag into the filename.
	v1, err := b.Get(immutable)
	if err != nil || string(v1) != "immutable-value" {
		t.Fatalf("Get immutable = %q, %v", v1, err)
	}
	v2, err := b.Get(mutable)
	if err != nil || string(v2) != "mutable-value" {
		t.Fatalf("Get mutable = %q, %v", v2, err)
	}
}

func newTestBufferTagged(t *testing.T) *Buffer[dataID] {
	t.Helper()
	b, err := New[dataID](Config[dataID]{
		MaxMemoryUsage: 4096,
		MaxDiskUsage:   4096,
		KeyEncoder:     encodeDataID,
		ScratchDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}
