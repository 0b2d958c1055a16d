//go:build !linux

package mmap

import (
	"errors"
	"runtime"
)

// ErrUnaligned is returned when a buffer does not cover whole OS pages.
var ErrUnaligned = errors.New("buffer not aligned to OS pages")

// ErrUnsupported is returned on platforms without the mmap backing.
var ErrUnsupported = errors.New("mmap backing is not supported on " + runtime.GOOS)

// Arena is a stub outside Linux; every allocation fails.
type Arena struct{}

func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) Allocate(int) ([]byte, error) {
	return nil, ErrUnsupported
}

func (a *Arena) Close() error {
	return nil
}

// Releaser is a stub outside Linux.
type Releaser struct{}

func (Releaser) Release(uint64, []byte) error {
	return ErrUnsupported
}
