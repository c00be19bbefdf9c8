package buffer

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"go.uber.org/zap"
)

var scratchDirPattern = regexp.MustCompile(`^DB-[0-9a-f]{1,4}-[0-9a-f]{1,4}-[0-9a-f]{1,4}-[0-9a-f]{1,4}$`)

func TestNewScratchDirName_MatchesPattern(t *testing.T) {
	for i := 0; i < 20; i++ {
		name := newScratchDirName()
		if !scratchDirPattern.MatchString(name) {
			t.Fatalf("scratch dir name %q does not match DB-xxxx-xxxx-xxxx-xxxx", name)
		}
	}
}

func TestSink_WriteReadRemove(t *testing.T) {
	s, err := newSink[string](t.TempDir(), stringEncoder, zap.NewNop())
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}

	if err := s.write("k", []byte("value")); err != nil {
		t.Fatalf("write: %v", err)
	}
	value, err := s.read("k")
	if err != nil || string(value) != "value" {
		t.Fatalf("read = %q, %v", value, err)
	}
	size, err := s.remove("k")
	if err != nil || size != 5 {
		t.Fatalf("remove = %d, %v, want 5, nil", size, err)
	}
	if _, err := s.read("k"); err == nil {
		t.Fatal("read after remove should fail")
	}
}

func TestSink_OwnedScratchDirRemovedOnClose(t *testing.T) {
	s, err := newSink[string]("", stringEncoder, zap.NewNop())
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	root := s.root
	if err := s.write("k", []byte("value")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("owned scratch root should have been removed, stat err = %v", err)
	}
}

func TestSink_CallerSuppliedDirNotRemovedOnClose(t *testing.T) {
	dir := t.TempDir()
	s, err := newSink[string](dir, stringEncoder, zap.NewNop())
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	if err := s.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("caller-supplied dir should survive close: %v", err)
	}
}

func TestSink_PathIsUnderRoot(t *testing.T) {
	dir := t.TempDir()
	s, err := newSink[string](dir, stringEncoder, zap.NewNop())
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	want := filepath.Join(dir, "k")
	if got := s.path("k"); got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}
