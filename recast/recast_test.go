package recast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcGridSize(t *testing.T) {
	w, h := CalcGridSize([3]float32{0, 0, 0}, [3]float32{10, 1, 5}, 0.5)
	assert.Equal(t, int32(20), w)
	assert.Equal(t, int32(10), h)
}

func TestDirOffsets(t *testing.T) {
	// Direction order is fixed: 0=-x, 1=+z, 2=+x, 3=-z.
	assert.Equal(t, int32(-1), GetDirOffsetX(0))
	assert.Equal(t, int32(0), GetDirOffsetY(0))
	assert.Equal(t, int32(0), GetDirOffsetX(1))
	assert.Equal(t, int32(1), GetDirOffsetY(1))
	assert.Equal(t, int32(1), GetDirOffsetX(2))
	assert.Equal(t, int32(0), GetDirOffsetY(2))
	assert.Equal(t, int32(0), GetDirOffsetX(3))
	assert.Equal(t, int32(-1), GetDirOffsetY(3))
}

func TestSetConGetCon(t *testing.T) {
	var s CompactSpan
	for dir := int32(0); dir < 4; dir++ {
		SetCon(&s, dir, NotConnected)
	}
	for dir := int32(0); dir < 4; dir++ {
		assert.Equal(t, NotConnected, GetCon(&s, dir))
	}

	SetCon(&s, 2, 5)
	assert.Equal(t, int32(5), GetCon(&s, 2))
	// The other directions keep their value.
	assert.Equal(t, NotConnected, GetCon(&s, 0))
	assert.Equal(t, NotConnected, GetCon(&s, 1))
	assert.Equal(t, NotConnected, GetCon(&s, 3))
}

// addSpan must keep each column's span list sorted by smin and free of
// overlaps, merging overlapping inserts.
func TestAddSpanKeepsColumnsSorted(t *testing.T) {
	hf := NewHeightfield()
	require.True(t, hf.Create(NewBuildContext(false), 4, 4, []float32{0, 0, 0}, []float32{4, 4, 4}, 1, 1))

	require.True(t, hf.addSpan(1, 1, 10, 12, WalkableArea, 1))
	require.True(t, hf.addSpan(1, 1, 2, 4, WalkableArea, 1))
	require.True(t, hf.addSpan(1, 1, 6, 8, WalkableArea, 1))
	// Overlaps the first and last: all three merge into one.
	require.True(t, hf.addSpan(1, 1, 3, 11, WalkableArea, 1))

	s := hf.Spans[1+1*4]
	require.NotNil(t, s)
	assert.Equal(t, uint16(2), s.smin)
	assert.Equal(t, uint16(12), s.smax)
	assert.Nil(t, s.next)
}

func TestAddSpanMergeKeepsLargerArea(t *testing.T) {
	hf := NewHeightfield()
	require.True(t, hf.Create(NewBuildContext(false), 2, 2, []float32{0, 0, 0}, []float32{2, 4, 2}, 1, 1))

	// Tops within the merge threshold: the walkable area wins.
	require.True(t, hf.addSpan(0, 0, 0, 10, NullArea, 1))
	require.True(t, hf.addSpan(0, 0, 0, 10, WalkableArea, 1))
	assert.Equal(t, WalkableArea, hf.Spans[0].area)

	// Tops farther apart than the threshold: the merged span keeps the
	// area of the span whose top survives.
	require.True(t, hf.addSpan(1, 0, 0, 4, WalkableArea, 1))
	require.True(t, hf.addSpan(1, 0, 2, 10, NullArea, 1))
	assert.Equal(t, NullArea, hf.Spans[1].area)
	assert.Equal(t, uint16(0), hf.Spans[1].smin)
	assert.Equal(t, uint16(10), hf.Spans[1].smax)
}

// buildTestField rasterizes a flat quad floor and compacts it.
func buildTestField(t *testing.T) (*BuildContext, *CompactHeightfield) {
	t.Helper()
	ctx := NewBuildContext(false)

	verts := []float32{
		0, 0, 0,
		8, 0, 0,
		8, 0, 8,
		0, 0, 8,
	}
	tris := []int32{0, 1, 2, 0, 2, 3}
	areas := []uint8{WalkableArea, WalkableArea}

	hf := NewHeightfield()
	require.True(t, hf.Create(ctx, 10, 10, []float32{-1, -1, -1}, []float32{9, 1, 9}, 1, 0.5))
	require.True(t, RasterizeTriangles(ctx, verts, 4, tris, areas, 2, hf, 1))

	chf := &CompactHeightfield{}
	require.True(t, BuildCompactHeightfield(ctx, 2, 1, hf, chf))
	return ctx, chf
}

// If compact span A links to B in direction d, B must link back to A
// in direction (d+2)&3.
func TestCompactConnectivityIsSymmetric(t *testing.T) {
	_, chf := buildTestField(t)
	require.Greater(t, chf.SpanCount, int32(0))

	w := chf.Width
	for y := int32(0); y < chf.Height; y++ {
		for x := int32(0); x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				s := &chf.Spans[i]
				for dir := int32(0); dir < 4; dir++ {
					if GetCon(s, dir) == NotConnected {
						continue
					}
					ax := x + GetDirOffsetX(dir)
					ay := y + GetDirOffsetY(dir)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, dir)
					as := &chf.Spans[ai]

					rdir := (dir + 2) & 0x3
					require.NotEqual(t, NotConnected, GetCon(as, rdir),
						"span %d links to %d in dir %d with no link back", i, ai, dir)
					back := int32(chf.Cells[x+y*w].Index) + GetCon(as, rdir)
					assert.Equal(t, i, back)
				}
			}
		}
	}
}

// Erosion with radius 0 must leave every area id untouched.
func TestErodeRadiusZeroIsNoOp(t *testing.T) {
	ctx, chf := buildTestField(t)

	before := make([]uint8, len(chf.Areas))
	copy(before, chf.Areas)

	require.True(t, ErodeWalkableArea(ctx, 0, chf))
	assert.Equal(t, before, chf.Areas)
}

// Erosion with a positive radius strips spans near the boundary but
// keeps the interior walkable.
func TestErodeShrinksBoundary(t *testing.T) {
	ctx, chf := buildTestField(t)

	require.True(t, ErodeWalkableArea(ctx, 2, chf))

	var walkable, stripped int
	for i := range chf.Areas {
		if chf.Areas[i] == NullArea {
			stripped++
		} else {
			walkable++
		}
	}
	assert.Greater(t, stripped, 0, "expected boundary spans to be eroded")
	assert.Greater(t, walkable, 0, "expected the interior to survive")
}

func TestMarkBoxArea(t *testing.T) {
	ctx, chf := buildTestField(t)

	const mud = uint8(5)
	MarkBoxArea(ctx, []float32{2, -1, 2}, []float32{6, 1, 6}, mud, chf)

	var marked int
	for i := range chf.Areas {
		if chf.Areas[i] == mud {
			marked++
		}
	}
	assert.Greater(t, marked, 0, "expected spans inside the box to be re-marked")
}

func TestChunkyTriMeshCoversAllTriangles(t *testing.T) {
	// A strip of quads along x.
	var verts []float32
	var tris []int32
	for i := 0; i < 16; i++ {
		x := float32(i)
		base := int32(len(verts) / 3)
		verts = append(verts,
			x, 0, 0,
			x+1, 0, 0,
			x+1, 0, 1,
			x, 0, 1,
		)
		tris = append(tris, base, base+1, base+2, base, base+2, base+3)
	}
	ntris := int32(len(tris) / 3)

	cm, ok := NewChunkyTriMesh(verts, tris, ntris, 4)
	require.True(t, ok)
	assert.Equal(t, ntris, cm.Ntris)
	assert.LessOrEqual(t, cm.MaxTrisPerChunk, int32(4))

	// A query covering everything returns chunks holding every
	// triangle exactly once.
	ids := make([]int32, len(cm.Nodes))
	n := cm.ChunksOverlappingRect([2]float32{-1, -1}, [2]float32{17, 2}, ids)
	var total int32
	for _, id := range ids[:n] {
		total += cm.Nodes[id].N
	}
	assert.Equal(t, ntris, total)

	// A query over one quad returns only nearby chunks.
	n = cm.ChunksOverlappingRect([2]float32{3.1, 0.1}, [2]float32{3.9, 0.9}, ids)
	require.Greater(t, n, 0)
	var partial int32
	for _, id := range ids[:n] {
		partial += cm.Nodes[id].N
	}
	assert.Less(t, partial, ntris)
}
