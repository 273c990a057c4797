package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmxmxh/vkrcore/memtag"
	"github.com/nmxmxh/vkrcore/platform"
)

func newTestArena(t *testing.T, rsv, cmt uint64) *Arena {
	t.Helper()
	a, err := Create(platform.NewInMemoryVM(), rsv, cmt, 0)
	require.NoError(t, err)
	return a
}

func TestCreateStartsAtHeaderSize(t *testing.T) {
	a := newTestArena(t, 4096, 4096)
	assert.Equal(t, uint64(HeaderSize), a.Pos())
}

func TestAllocAdvancesPosAndCreditsTag(t *testing.T) {
	a := newTestArena(t, 4096, 4096)
	start := a.Pos()
	buf, err := a.Alloc(128, memtag.Struct)
	require.NoError(t, err)
	assert.Len(t, buf, 128)
	assert.Equal(t, start+128, a.Pos())
	assert.Equal(t, uint64(128), a.TagBytes(memtag.Struct))
}

func TestAllocAlignsToMaxAlign(t *testing.T) {
	a := newTestArena(t, 4096, 4096)
	_, err := a.Alloc(1, memtag.Struct) // leaves pos unaligned
	require.NoError(t, err)
	pre := a.current.pos
	_, err = a.Alloc(16, memtag.Struct)
	require.NoError(t, err)
	assert.Equal(t, platform.AlignUp(pre, MaxAlign)+16, a.current.pos)
}

func TestAllocCommitsAdditionalPagesOnDemand(t *testing.T) {
	a := newTestArena(t, 1<<20, 4096)
	buf, err := a.Alloc(8192, memtag.Buffer)
	require.NoError(t, err)
	assert.Len(t, buf, 8192)
	assert.GreaterOrEqual(t, a.current.cmt, uint64(HeaderSize+8192))
}

func TestAllocGrowsNewBlockWhenReservedExhausted(t *testing.T) {
	// Reservations are page-rounded, so size the block and requests by page.
	ps := platform.PageSize()
	a := newTestArena(t, ps, ps)
	_, err := a.Alloc(ps/2, memtag.Buffer)
	require.NoError(t, err)
	before := a.current
	_, err = a.Alloc(ps/2, memtag.Buffer)
	require.NoError(t, err)
	assert.NotSame(t, before, a.current, "allocation past rsv must create a new block")
	assert.Same(t, before, a.current.prev)
}

func TestAllocOversizeRequestGrowsBlockToFit(t *testing.T) {
	a := newTestArena(t, 64, 64)
	big := make([]byte, 0)
	var err error
	big, err = a.Alloc(1<<20, memtag.Buffer)
	require.NoError(t, err)
	assert.Len(t, big, 1<<20)
}

func TestResetToRetiresBlocksBeyondTarget(t *testing.T) {
	ps := platform.PageSize()
	a := newTestArena(t, ps, ps)
	mark := a.Pos()
	_, err := a.Alloc(ps/2, memtag.Buffer)
	require.NoError(t, err)
	_, err = a.Alloc(ps/2, memtag.Buffer)
	require.NoError(t, err)
	require.NotNil(t, a.current.prev, "second alloc should have grown a new block")

	a.ResetTo(mark, memtag.Buffer)
	assert.Equal(t, mark, a.Pos())
	assert.Equal(t, uint64(0), a.TagBytes(memtag.Buffer))
}

func TestResetToNeverRetiresRootBlock(t *testing.T) {
	a := newTestArena(t, 4096, 4096)
	_, err := a.Alloc(128, memtag.Struct)
	require.NoError(t, err)
	a.ResetTo(0, memtag.Struct)
	assert.Equal(t, uint64(HeaderSize), a.Pos())
	assert.NotNil(t, a.current, "root block must remain live after resetting to 0")
}

func TestScratchRoundTrip(t *testing.T) {
	a := newTestArena(t, 4096, 4096)
	_, err := a.Alloc(64, memtag.Struct)
	require.NoError(t, err)

	scratch := ScratchBegin(a)
	_, err = a.Alloc(256, memtag.Struct)
	require.NoError(t, err)
	_, err = a.Alloc(256, memtag.Struct)
	require.NoError(t, err)

	before := scratch.pos
	ScratchEnd(a, scratch, memtag.Struct)
	assert.Equal(t, before, a.Pos())
}

func TestClearResetsToZero(t *testing.T) {
	a := newTestArena(t, 4096, 4096)
	_, err := a.Alloc(512, memtag.Struct)
	require.NoError(t, err)
	a.Clear(memtag.Struct)
	assert.Equal(t, uint64(HeaderSize), a.Pos())
}

func TestResetByNBytes(t *testing.T) {
	a := newTestArena(t, 4096, 4096)
	_, err := a.Alloc(256, memtag.Struct)
	require.NoError(t, err)
	pos := a.Pos()
	a.Reset(100, memtag.Struct)
	assert.Equal(t, pos-100, a.Pos())
}

func TestRetiredBlockIsRecycledBeforeAllocatingNew(t *testing.T) {
	ps := platform.PageSize()
	a := newTestArena(t, ps, ps)
	mark := a.Pos()
	_, err := a.Alloc(ps/2, memtag.Buffer)
	require.NoError(t, err)
	_, err = a.Alloc(ps/2, memtag.Buffer)
	require.NoError(t, err)
	secondBlock := a.current

	a.ResetTo(mark, memtag.Buffer)
	require.NotNil(t, a.retired, "retiring the second block should populate the retired list")

	_, err = a.Alloc(ps/2, memtag.Buffer)
	require.NoError(t, err)
	_, err = a.Alloc(ps/2, memtag.Buffer)
	require.NoError(t, err)
	assert.Same(t, secondBlock, a.current, "reallocating past rsv should recycle the retired block")
}

func TestDestroyReleasesAllBlocks(t *testing.T) {
	a := newTestArena(t, 256, 256)
	_, err := a.Alloc(100, memtag.Buffer)
	require.NoError(t, err)
	_, err = a.Alloc(100, memtag.Buffer)
	require.NoError(t, err)
	assert.NoError(t, a.Destroy())
}
