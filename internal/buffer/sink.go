package buffer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sink maps keys to files under a scratch root: write, read, size and
// delete one file per key, plus creation/cleanup of the root itself.
type sink[K comparable] struct {
	root    string
	owned   bool
	encoder KeyEncoder[K]
	log     *zap.Logger
}

// newScratchDirName mirrors the source's temp_directory_path() /
// "DB-%%%%-%%%%-%%%%-%%%%" pattern, using a random UUID's hex groups
// instead of boost::filesystem's per-% randomization.
func newScratchDirName() string {
	id := uuid.New().String() // 8-4-4-4-12 hex, hyphen separated
	groups := []byte(id)
	// Take the first four hyphen-delimited groups of the UUID string to
	// build "DB-xxxx-xxxx-xxxx-xxxx".
	parts := []string{"DB"}
	start := 0
	count := 0
	for i := 0; i <= len(groups) && count < 4; i++ {
		if i == len(groups) || groups[i] == '-' {
			if i > start {
				parts = append(parts, string(groups[start:min(start+4, i)]))
				count++
			}
			start = i + 1
		}
	}
	name := parts[0]
	for _, p := range parts[1:] {
		name += "-" + p
	}
	return name
}

// newSink creates or validates the scratch root. If dir is empty, a
// uniquely-named temporary directory is created and marked owned (removed
// on Close). If dir is non-empty, it is created if missing but never
// removed on Close.
func newSink[K comparable](dir string, encoder KeyEncoder[K], log *zap.Logger) (*sink[K], error) {
	owned := dir == ""
	if owned {
		dir = filepath.Join(os.TempDir(), newScratchDirName())
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("cannot create scratch root", zap.String("dir", dir), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrUninitialised, err)
		}
	} else if err != nil {
		log.Error("cannot stat scratch root", zap.String("dir", dir), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUninitialised, err)
	}

	testFile := filepath.Join(dir, "TestFile")
	if err := os.WriteFile(testFile, []byte("Test"), 0o644); err != nil {
		log.Error("scratch root not writable", zap.String("dir", dir), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUninitialised, err)
	}
	_ = os.Remove(testFile)

	return &sink[K]{root: dir, owned: owned, encoder: encoder, log: log}, nil
}

// path returns the file path a key's value would be persisted to.
func (s *sink[K]) path(key K) string {
	return filepath.Join(s.root, s.encoder(key))
}

// write persists value under key, overwriting any existing file.
func (s *sink[K]) write(key K, value []byte) error {
	if err := os.WriteFile(s.path(key), value, 0o644); err != nil {
		s.log.Error("failed to write scratch file", zap.String("key", s.encoder(key)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFilesystemIO, err)
	}
	return nil
}

// read returns the bytes persisted under key.
func (s *sink[K]) read(key K) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		s.log.Error("failed to read scratch file", zap.String("key", s.encoder(key)), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFilesystemIO, err)
	}
	return data, nil
}

// remove deletes the file persisted under key and returns its size.
func (s *sink[K]) remove(key K) (uint64, error) {
	info, err := os.Stat(s.path(key))
	if err != nil {
		s.log.Error("failed to stat scratch file for removal", zap.String("key", s.encoder(key)), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrFilesystemIO, err)
	}
	if err := os.Remove(s.path(key)); err != nil {
		s.log.Error("failed to remove scratch file", zap.String("key", s.encoder(key)), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", ErrFilesystemIO, err)
	}
	return uint64(info.Size()), nil
}

// close removes the scratch root recursively iff it was created by this
// sink (the caller did not supply a pre-existing directory).
func (s *sink[K]) close() error {
	if !s.owned {
		return nil
	}
	if err := os.RemoveAll(s.root); err != nil {
		s.log.Warn("failed to remove scratch root", zap.String("dir", s.root), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFilesystemIO, err)
	}
	return nil
}
