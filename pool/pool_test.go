package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/vkrcore/platform"
)

func newTestPool(t *testing.T, chunkSize, chunkCount uint64) *Pool {
	t.Helper()
	p, err := Create(platform.NewInMemoryVM(), chunkSize, chunkCount)
	require.NoError(t, err)
	return p
}

func TestAllocFreeRoundTripReturnsAllocatedToZero(t *testing.T) {
	p := newTestPool(t, 64, 8)
	var chunks [][]byte
	for i := 0; i < 8; i++ {
		c, err := p.Alloc()
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
	assert.Equal(t, uint64(8), p.Allocated())

	// Free in a different order than allocated.
	for _, idx := range []int{3, 0, 7, 1, 2, 4, 5, 6} {
		require.NoError(t, p.Free(chunks[idx]))
	}
	assert.Equal(t, uint64(0), p.Allocated())
	// The freelist spans the page-aligned pool size, not just 8 chunks.
	assert.Equal(t, platform.AlignUp(8*p.ChunkSize(), platform.PageSize())/p.ChunkSize(), p.FreeChunks())
}

func TestEveryPointerIsChunkAligned(t *testing.T) {
	p := newTestPool(t, 48, 16)
	for i := 0; i < 16; i++ {
		c, err := p.Alloc()
		require.NoError(t, err)
		off := uint64(cap(p.data) - cap(c))
		assert.Zero(t, off%p.ChunkSize())
	}
}

func TestAllocFailsWhenExhausted(t *testing.T) {
	p := newTestPool(t, 32, 2)
	_, err := p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	assert.Error(t, err)
}

func TestAllocAlignedRejectsAlignmentExceedingChunkSize(t *testing.T) {
	p := newTestPool(t, 32, 4)
	_, err := p.AllocAligned(64)
	assert.Error(t, err)
}

func TestFreeRejectsForeignPointer(t *testing.T) {
	p := newTestPool(t, 32, 4)
	foreign := make([]byte, 32)
	assert.Error(t, p.Free(foreign))
}

func TestArenaPoolAcquireReleaseConcurrently(t *testing.T) {
	p := newTestPool(t, 64, 64)
	ap := NewArenaPool(p)

	results := make(chan []byte, 64)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ap.Acquire()
		}()
	}
	wg.Wait()
	close(results)

	var got [][]byte
	for r := range results {
		require.NotNil(t, r)
		got = append(got, r)
	}
	require.Len(t, got, 64)
	assert.Equal(t, uint64(0), ap.FreeChunks())

	for _, r := range got {
		require.NoError(t, ap.Release(r))
	}
	assert.Equal(t, uint64(64), ap.FreeChunks())
}
