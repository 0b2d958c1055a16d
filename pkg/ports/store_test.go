package ports_test

import (
	"errors"
	"testing"

	"github.com/aretw0/coherence/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestReleaseFunc(t *testing.T) {
	var gotAddr uint64
	var gotLen int

	var r ports.Releaser = ports.ReleaseFunc(func(addr uint64, backing []byte) error {
		gotAddr = addr
		gotLen = len(backing)
		return nil
	})

	assert.NoError(t, r.Release(0x4000, make([]byte, 4096)))
	assert.Equal(t, uint64(0x4000), gotAddr)
	assert.Equal(t, 4096, gotLen)

	boom := errors.New("madvise failed")
	r = ports.ReleaseFunc(func(uint64, []byte) error { return boom })
	assert.ErrorIs(t, r.Release(0, nil), boom)
}
