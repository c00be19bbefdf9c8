package databuf_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anovak/databuf/internal/buffer"
)

// Integration tests exercise the buffer end to end, the way a caller using
// only the public API would.

func TestE2E_StoreGetDeleteRoundTrip(t *testing.T) {
	b, err := buffer.New[string](buffer.Config[string]{
		MaxMemoryUsage: 1 << 20,
		MaxDiskUsage:   8 << 20,
		KeyEncoder:     func(k string) string { return k },
		ScratchDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	records := map[string]string{
		"user-1": "login",
		"user-2": "click",
		"user-3": "logout",
	}
	for key, value := range records {
		if err := b.Store(key, []byte(value)); err != nil {
			t.Fatalf("Store %s: %v", key, err)
		}
	}

	for key, want := range records {
		got, err := b.Get(key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		if string(got) != want {
			t.Errorf("Get %s = %q, want %q", key, got, want)
		}
	}

	if err := b.Delete("user-2"); err != nil {
		t.Fatalf("Delete user-2: %v", err)
	}
	if _, err := b.Get("user-2"); err != buffer.ErrNoSuchElement {
		t.Errorf("Get user-2 after delete = %v, want ErrNoSuchElement", err)
	}
}

func TestE2E_ConcurrentProducers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent workload test in short mode")
	}

	b, err := buffer.New[string](buffer.Config[string]{
		MaxMemoryUsage: 256 << 10,
		MaxDiskUsage:   4 << 20,
		KeyEncoder:     func(k string) string { return k },
		ScratchDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	errCh := make(chan error, producers)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				key := fmt.Sprintf("p%d-key-%04d", p, i)
				value := []byte(fmt.Sprintf("p%d-value-%04d", p, i))
				if err := b.Store(key, value); err != nil {
					errCh <- fmt.Errorf("store %s: %w", key, err)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}

	for p := 0; p < producers; p++ {
		for i := 0; i < perProducer; i++ {
			key := fmt.Sprintf("p%d-key-%04d", p, i)
			want := fmt.Sprintf("p%d-value-%04d", p, i)
			got, err := b.Get(key)
			if err != nil {
				t.Fatalf("Get %s: %v", key, err)
			}
			if string(got) != want {
				t.Errorf("Get %s = %q, want %q", key, got, want)
			}
		}
	}
}

// TestE2E_ScratchDirCleanup exercises Close, from the outside, on a buffer
// that owns its scratch directory: after a Store and Get, Close must
// succeed. The public API does not expose the directory's path, so its
// removal is checked by the internal package's tests.
func TestE2E_ScratchDirCleanup(t *testing.T) {
	b, err := buffer.New[string](buffer.Config[string]{
		MaxMemoryUsage: 1 << 10,
		MaxDiskUsage:   1 << 20,
		KeyEncoder:     func(k string) string { return k },
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Store("k", []byte("value")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, err := b.Get("k"); err == nil && string(v) == "value" {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
