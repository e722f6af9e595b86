package navmesh

import (
	"math"
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/polyweave/navmesh/detour"
	"github.com/polyweave/navmesh/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFlatFloor(t *testing.T, size float32) (*Result, *detour.NavMeshQuery, detour.QueryFilter) {
	t.Helper()

	verts := []float32{
		0, 0, 0,
		size, 0, 0,
		size, 0, size,
		0, 0, size,
	}
	tris := []int32{0, 1, 2, 0, 2, 3}
	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{size + 1, 1, size + 1})
	cfg.WalkableRadius = 0 // no erosion, so the wall sits exactly on the floor's edge

	res, err := Build(recast.NewBuildContext(false), verts, tris, nil, cfg, PartitionWatershed)
	require.NoError(t, err)

	st, q := detour.NewNavMeshQuery(res.NavMesh, 2048)
	require.False(t, detour.StatusFailed(st))

	return res, q, detour.NewStandardQueryFilter()
}

// A raycast fired straight across the middle of the floor toward a point
// still inside it must report no wall hit (T == MaxFloat32): no boundary
// edge of the floor lies between the two points.
func TestRaycastAcrossFloor(t *testing.T) {
	_, q, filter := buildFlatFloor(t, 10)

	start := d3.NewVec3XYZ(5, 0, 5)
	extents := d3.NewVec3XYZ(2, 2, 2)
	st, startRef, startPt := q.FindNearestPoly(start, extents, filter)
	require.False(t, detour.StatusFailed(st))
	require.NotZero(t, startRef)

	end := d3.NewVec3XYZ(9, 0, 5)
	hit, st := q.Raycast(startRef, startPt, end, filter, 0, 0)
	require.False(t, detour.StatusFailed(st))
	assert.Equal(t, float32(math.MaxFloat32), hit.T)
}

// A ray fired across a step too tall to climb must stop at the wall
// between the two floors: T lands near the fraction of the segment at
// the step, and the visited corridor starts at the start polygon.
func TestRaycastHitsWallAtStep(t *testing.T) {
	res := buildTwoFloorsWithStep(t, 20, 1)

	st, q := detour.NewNavMeshQuery(res.NavMesh, 2048)
	require.False(t, detour.StatusFailed(st))
	filter := detour.NewStandardQueryFilter()

	extents := d3.NewVec3XYZ(2, 2, 2)
	start := d3.NewVec3XYZ(1, 0, 5)
	st, startRef, startPt := q.FindNearestPoly(start, extents, filter)
	require.False(t, detour.StatusFailed(st))
	require.NotZero(t, startRef)

	end := d3.NewVec3XYZ(9, 0, 5)
	hit, st := q.Raycast(startRef, startPt, end, filter, 0, 0)
	require.False(t, detour.StatusFailed(st))

	require.Less(t, hit.T, float32(1), "expected the ray to stop at the step")
	// The wall sits at x=5 minus the eroded agent radius; the ray
	// covers x in [1, 9].
	assert.InDelta(t, 0.5, hit.T, 0.15)
	require.NotEmpty(t, hit.Path)
	assert.Equal(t, startRef, hit.Path[0])

	// The hit normal is horizontal and unit length.
	assert.InDelta(t, 1.0, hit.HitNormal.Len(), 1e-3)
	assert.InDelta(t, 0.0, hit.HitNormal[1], 1e-6)
}

// The distance from the center of a 10x10 flat floor to its nearest wall is
// half the floor's width, and the hit normal must be a unit vector.
func TestFindDistanceToWall(t *testing.T) {
	_, q, filter := buildFlatFloor(t, 10)

	center := d3.NewVec3XYZ(5, 0, 5)
	extents := d3.NewVec3XYZ(2, 2, 2)
	st, centerRef, centerPt := q.FindNearestPoly(center, extents, filter)
	require.False(t, detour.StatusFailed(st))
	require.NotZero(t, centerRef)

	res, st := q.FindDistanceToWall(centerRef, centerPt, 10, filter)
	require.False(t, detour.StatusFailed(st))

	assert.InDelta(t, 5.0, res.Distance, 0.7)

	normLen := res.HitNormal.Len()
	assert.InDelta(t, 1.0, normLen, 0.05)
}

// FindPolysAround from the center of a single-polygon floor with no
// neighbors only ever visits the starting polygon.
func TestFindPolysAroundSinglePolygon(t *testing.T) {
	res, q, filter := buildFlatFloor(t, 10)
	require.Equal(t, int32(1), res.PolyMesh.NPolys)

	center := d3.NewVec3XYZ(5, 0, 5)
	extents := d3.NewVec3XYZ(2, 2, 2)
	st, centerRef, centerPt := q.FindNearestPoly(center, extents, filter)
	require.False(t, detour.StatusFailed(st))

	polys, st := q.FindPolysAround(centerRef, centerPt, 20, filter, 16)
	require.False(t, detour.StatusFailed(st))
	require.Len(t, polys, 1)
	assert.Equal(t, centerRef, polys[0].Ref)
	assert.Zero(t, polys[0].Parent)
}

func TestFindDistanceToWallRejectsInvalidInput(t *testing.T) {
	_, q, filter := buildFlatFloor(t, 10)

	_, st := q.FindDistanceToWall(0, d3.NewVec3XYZ(0, 0, 0), 10, filter)
	assert.True(t, detour.StatusFailed(st))

	_, st = q.FindDistanceToWall(1, d3.NewVec3XYZ(0, 0, 0), 10, nil)
	assert.True(t, detour.StatusFailed(st))
}
