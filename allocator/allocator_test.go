package allocator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/vkrcore/arena"
	"github.com/nmxmxh/vkrcore/dmemory"
	"github.com/nmxmxh/vkrcore/memtag"
	"github.com/nmxmxh/vkrcore/platform"
	"github.com/nmxmxh/vkrcore/pool"
)

func newTestArenaAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := arena.Create(platform.NewInMemoryVM(), 1<<20, 1<<16, 0)
	require.NoError(t, err)
	return New(ArenaBackend{Arena: a}, memtag.Struct)
}

func TestAllocUpdatesLocalAndGlobalStats(t *testing.T) {
	al := newTestArenaAllocator(t)
	beforeGlobal := Global().BytesAllocated()

	buf, err := al.Alloc(256, memtag.Vector)
	require.NoError(t, err)
	assert.Len(t, buf, 256)

	assert.Equal(t, uint64(256), al.Stats().BytesAllocated)
	assert.Equal(t, uint64(256), al.Stats().TaggedBytes[memtag.Vector])
	assert.Equal(t, uint64(1), al.Stats().TotalAllocs)
	assert.Equal(t, beforeGlobal+256, Global().BytesAllocated())
}

func TestFreeSaturatesAtZero(t *testing.T) {
	al := newTestArenaAllocator(t)
	buf, err := al.Alloc(64, memtag.Struct)
	require.NoError(t, err)
	require.NoError(t, al.Free(buf, 64, memtag.Struct))
	assert.Equal(t, uint64(0), al.Stats().BytesAllocated)

	// Over-freeing must saturate, not underflow.
	require.NoError(t, al.Free(buf, 64, memtag.Struct))
	assert.Equal(t, uint64(0), al.Stats().BytesAllocated)
}

func TestScopeRewindsArenaAndReportsTempBytes(t *testing.T) {
	al := newTestArenaAllocator(t)
	_, err := al.Alloc(128, memtag.Struct)
	require.NoError(t, err)

	al.BeginScope()
	_, err = al.Alloc(512, memtag.Struct)
	require.NoError(t, err)
	_, err = al.Alloc(512, memtag.Struct)
	require.NoError(t, err)

	beforeEnd := al.Stats().BytesAllocated
	require.NoError(t, al.EndScope(memtag.Struct))
	assert.Less(t, al.Stats().BytesAllocated, beforeEnd)
	assert.Equal(t, uint64(128), al.Stats().BytesAllocated)
	assert.Greater(t, al.Stats().ScopeBytesPeak, uint64(0))
	assert.Equal(t, uint64(1), al.Stats().ScopesCreated)
	assert.Equal(t, uint64(1), al.Stats().ScopesDestroyed)
}

func TestScopesNest(t *testing.T) {
	al := newTestArenaAllocator(t)
	al.BeginScope()
	al.BeginScope()
	assert.Equal(t, 2, al.ScopeDepth())
	require.NoError(t, al.EndScope(memtag.Struct))
	assert.Equal(t, 1, al.ScopeDepth())
	require.NoError(t, al.EndScope(memtag.Struct))
	assert.Equal(t, 0, al.ScopeDepth())
}

func TestEndScopeWithoutBeginFails(t *testing.T) {
	al := newTestArenaAllocator(t)
	assert.Error(t, al.EndScope(memtag.Struct))
}

func TestDMemoryBackendDispatch(t *testing.T) {
	dm, err := dmemory.Create(platform.NewInMemoryVM(), 1<<16, 1<<16)
	require.NoError(t, err)
	al := New(DMemoryBackend{DMemory: dm}, memtag.Buffer)

	buf, err := al.Alloc(128, memtag.Buffer)
	require.NoError(t, err)
	require.NoError(t, al.Free(buf, 128, memtag.Buffer))
}

func TestPoolBackendRejectsRealloc(t *testing.T) {
	p, err := pool.Create(platform.NewInMemoryVM(), 64, 4)
	require.NoError(t, err)
	al := New(PoolBackend{Pool: p}, memtag.Buffer)

	buf, err := al.Alloc(64, memtag.Buffer)
	require.NoError(t, err)
	_, err = al.Realloc(buf, 64, 128, memtag.Buffer)
	assert.Error(t, err)
}

func TestFormatReportIncludesTaggedLines(t *testing.T) {
	var tagged [memtag.Max]uint64
	tagged[memtag.Vector] = 2048
	tagged[memtag.Buffer] = 3 * 1024 * 1024

	var sb strings.Builder
	require.NoError(t, FormatReport(&sb, tagged))
	out := sb.String()
	assert.Contains(t, out, "VECTOR:")
	assert.Contains(t, out, "BUFFER:")
	assert.Contains(t, out, "TOTAL:")
}
