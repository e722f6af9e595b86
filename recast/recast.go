package recast

import (
	"math"

	"github.com/arl/assertgo"
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// pi mirrors math32.Pi, which v0.2.0 of the dependency doesn't export.
const pi float32 = math.Pi

// Heighfield functions

// CalcBounds computes the AABB of the first nv vertices in verts, writing
// the result into bmin/bmax (each a 3-element slice).
func CalcBounds(verts []float32, nv int32, bmin, bmax []float32) {
	assert.True(len(bmin) == 3 && len(bmax) == 3, "CalcBounds: bmin and bmax are not big enough")
	assert.True(len(verts) >= int(3*nv), "len(verts) should be at least equal to 3*nv")

	// Calculate bounding box.
	copy(bmin, verts[:3])
	copy(bmax, verts[:3])

	var v []float32
	for i := int32(1); i < nv; i++ {
		v = verts[i*3:]
		d3.Vec3Min(bmin, v)
		d3.Vec3Max(bmax, v)
	}
}

// CalcGridSize derives the voxel grid width/height from an AABB and a cell
// size.
func CalcGridSize(bmin, bmax [3]float32, cs float32) (w, h int32) {
	w = int32((bmax[0]-bmin[0])/cs + 0.5)
	h = int32((bmax[2]-bmin[2])/cs + 0.5)
	return
}

func calcTriNormal(v0, v1, v2, norm d3.Vec3) {
	d3.Vec3Cross(norm, v1.Sub(v0), v2.Sub(v0))
	norm.Normalize()
}

// MarkWalkableTriangles sets areas[i] to WalkableArea for every triangle
// whose face normal's y-component exceeds the cosine of walkableSlopeAngle,
// leaving every other entry untouched.
func MarkWalkableTriangles(ctx *BuildContext, walkableSlopeAngle float32,
	verts []float32, nv int32,
	tris []int32, nt int32,
	areas []uint8) {
	walkableThr := math32.Cos(walkableSlopeAngle / 180.0 * pi)

	var norm [3]float32
	for i := int32(0); i < nt; i++ {
		tri := tris[i*3:]
		calcTriNormal(verts[tri[0]*3:], verts[tri[1]*3:], verts[tri[2]*3:], norm[:])
		// Check if the face is walkable.
		if norm[1] > walkableThr {
			areas[i] = WalkableArea
		}
	}
}

// ClearUnwalkableTriangles resets areas[i] to NullArea for every triangle
// whose slope is too steep to be walkable, leaving already-walkable entries
// untouched.
func ClearUnwalkableTriangles(ctx *BuildContext, walkableSlopeAngle float32,
	verts []float32, nv int32,
	tris []int32, nt int32,
	areas []uint8) {
	walkableThr := math32.Cos(walkableSlopeAngle / 180.0 * pi)

	var norm [3]float32

	for i := int32(0); i < nt; i++ {
		tri := tris[i*3:]
		calcTriNormal(verts[tri[0]*3:], verts[tri[1]*3:], verts[tri[2]*3:], norm[:])
		// Check if the face is walkable.
		if norm[1] <= walkableThr {
			areas[i] = NullArea
		}
	}
}

// TimerLabel identifies one of the scoped build-stage timers tracked by
// a BuildContext.
type TimerLabel int

const (
	TimerTotal TimerLabel = iota
	TimerRasterizeTriangles
	TimerBuildCompactHeightfield
	TimerBuildContours
	TimerBuildContoursTrace
	TimerBuildContoursSimplify
	TimerFilterBorder
	TimerFilterWalkable
	TimerFilterLowObstacles
	TimerBuildPolymesh
	TimerErodeArea
	TimerMarkBoxArea
	TimerMarkCylinderArea
	TimerMarkConvexPolyArea
	TimerBuildDistanceField
	TimerBuildDistanceFieldDist
	TimerBuildDistanceFieldBlur
	TimerBuildRegions
	TimerBuildRegionsWatershed
	TimerBuildRegionsExpand
	TimerBuildRegionsFlood
	TimerBuildRegionsFilter
	// MaxTimers is the number of distinct timer slots a BuildContext
	// allocates.
	MaxTimers
)

var (
	xOffset, yOffset [4]int32
)

func init() {
	xOffset = [4]int32{-1, 0, 1, 0}
	yOffset = [4]int32{0, 1, 0, -1}
}

// SetCon sets the compact span's neighbor connection index for direction
// dir (0-3) to i.
func SetCon(s *CompactSpan, dir, i int32) {
	shift := uint32(dir * 6)
	con := uint32(s.con)
	s.con = (con &^ (0x3f << shift)) | ((uint32(i & 0x3f)) << shift)
}

// GetCon returns the compact span's neighbor connection index for direction
// dir, or NotConnected if there is no neighbor in that direction.
func GetCon(s *CompactSpan, dir int32) int32 {
	shift := uint32(dir * 6)
	return int32((s.con >> shift) & 0x3f)
}

// GetDirOffsetX returns the x-axis cell offset for direction dir (0-3).
func GetDirOffsetX(dir int32) int32 {
	return xOffset[dir&0x03]
}

// GetDirOffsetY returns the z-axis cell offset for direction dir (0-3).
func GetDirOffsetY(dir int32) int32 {
	return yOffset[dir&0x03]
}

func iMin(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func iMax(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func iAbs(a int32) int32 {
	if a < 0 {
		return -a
	}
	return a
}
