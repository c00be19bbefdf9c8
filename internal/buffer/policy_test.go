package buffer

import (
	"testing"

	"go.uber.org/zap"

	"github.com/anovak/databuf/internal/metrics"
)

func TestBackpressurePolicy_NeverEvicts(t *testing.T) {
	d := newDiskLane[string](8)
	d.insert("a", 8)
	victim := &diskEntry[string]{key: "a", size: 8, state: completed}

	if (backpressurePolicy[string]{}).evict(d, victim) {
		t.Fatal("backpressurePolicy must never evict")
	}
	if !d.contains("a") {
		t.Fatal("a should remain on disk")
	}
}

func TestPopCallbackPolicy_EvictsAndInvokesCallback(t *testing.T) {
	s, err := newSink[string](t.TempDir(), stringEncoder, zap.NewNop())
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	d := newDiskLane[string](8)
	d.insert("a", 8)
	if err := s.write("a", []byte("12345678")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var poppedKey string
	var poppedValue []byte
	policy := &popCallbackPolicy[string]{
		sink: s,
		callback: func(key string, value []byte) {
			poppedKey = key
			poppedValue = value
		},
		metrics: metrics.NewNoop(),
	}

	victim := &diskEntry[string]{key: "a", size: 8, state: completed}
	if !policy.evict(d, victim) {
		t.Fatal("popCallbackPolicy should evict the victim")
	}
	if d.contains("a") {
		t.Fatal("a should have been removed from the disk lane")
	}
	if poppedKey != "a" || string(poppedValue) != "12345678" {
		t.Fatalf("callback got (%q, %q)", poppedKey, poppedValue)
	}
}
