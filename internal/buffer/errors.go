package buffer

import "errors"

var (
	// ErrInvalidParameter is returned when MaxMemoryUsage > MaxDiskUsage,
	// at construction or via SetMaxMemoryUsage/SetMaxDiskUsage.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUninitialised is returned when the scratch directory can't be
	// created or isn't writable.
	ErrUninitialised = errors.New("buffer uninitialised")

	// ErrCannotExceedLimit is returned when a value's size exceeds the
	// configured maximum disk usage. Stops the transfer worker.
	ErrCannotExceedLimit = errors.New("cannot exceed limit")

	// ErrFilesystemIO is returned on a file write/read/delete/size error.
	// Stops the transfer worker if raised there.
	ErrFilesystemIO = errors.New("filesystem i/o error")

	// ErrNoSuchElement is returned by Get/Delete for a key that isn't
	// present, or whose disk entry has been cancelled.
	ErrNoSuchElement = errors.New("no such element")

	// ErrClosed is returned by Store when the buffer stops accepting work
	// while the call was blocked waiting for space.
	ErrClosed = errors.New("buffer is closing")
)
