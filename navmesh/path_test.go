package navmesh

import (
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/polyweave/navmesh/detour"
	"github.com/polyweave/navmesh/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quad appends two triangles covering the rectangle [x0,x1] x [z0,z1] at
// height y to verts/tris and returns the updated slices.
func quad(verts []float32, tris []int32, x0, x1, z0, z1, y float32) ([]float32, []int32) {
	base := int32(len(verts) / 3)
	verts = append(verts,
		x0, y, z0,
		x1, y, z0,
		x1, y, z1,
		x0, y, z1,
	)
	tris = append(tris, base, base+1, base+2, base, base+2, base+3)
	return verts, tris
}

// A 10x10 floor with a 2x2 hole removed from its center is a single region
// whose contour has an outline and one hole: building it exercises the
// contour hole-merge path. A path from one side to the other must detour
// around the missing square, producing a straight path noticeably longer
// than the direct 8-unit line between the two query points.
func buildFloorWithObstacle(t *testing.T) *Result {
	t.Helper()

	var verts []float32
	var tris []int32
	// Ring around the [4,6]x[4,6] hole, built from four strips.
	verts, tris = quad(verts, tris, 0, 10, 0, 4, 0)  // bottom strip
	verts, tris = quad(verts, tris, 0, 10, 6, 10, 0) // top strip
	verts, tris = quad(verts, tris, 0, 4, 4, 6, 0)   // left strip
	verts, tris = quad(verts, tris, 6, 10, 4, 6, 0)  // right strip

	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{11, 1, 11})
	cfg.WalkableRadius = 1

	res, err := Build(recast.NewBuildContext(false), verts, tris, nil, cfg, PartitionWatershed)
	require.NoError(t, err)
	return res
}

func TestBuildFloorWithCentralHole(t *testing.T) {
	res := buildFloorWithObstacle(t)
	// The hole splits what would be one quad into multiple polygons; a
	// successful hole-merge means the build completes without a
	// self-overlapping or missing outline, and at least one polygon was
	// produced around the hole's perimeter.
	assert.Greater(t, res.PolyMesh.NPolys, int32(0))
}

func TestFindPathAroundObstacle(t *testing.T) {
	res := buildFloorWithObstacle(t)

	st, q := detour.NewNavMeshQuery(res.NavMesh, 2048)
	require.False(t, detour.StatusFailed(st))
	filter := detour.NewStandardQueryFilter()

	extents := d3.NewVec3XYZ(2, 2, 2)
	start := d3.NewVec3XYZ(1, 0, 5)
	end := d3.NewVec3XYZ(9, 0, 5)

	st, startRef, startPt := q.FindNearestPoly(start, extents, filter)
	require.False(t, detour.StatusFailed(st))
	require.NotZero(t, startRef)

	st, endRef, endPt := q.FindNearestPoly(end, extents, filter)
	require.False(t, detour.StatusFailed(st))
	require.NotZero(t, endRef)

	path := make([]detour.PolyRef, 256)
	pathCount, st := q.FindPath(startRef, endRef, startPt, endPt, filter, path)
	require.False(t, detour.StatusFailed(st))
	require.GreaterOrEqual(t, pathCount, 3, "expected the path to route through at least 3 polygons around the hole")
	path = path[:pathCount]

	straight := make([]d3.Vec3, 32)
	for i := range straight {
		straight[i] = d3.NewVec3()
	}
	flags := make([]uint8, 32)
	refs := make([]detour.PolyRef, 32)
	n, st := q.FindStraightPath(startPt, endPt, path, straight, flags, refs, 0)
	require.False(t, detour.StatusFailed(st))
	require.Greater(t, n, 2, "expected at least one bend around the obstacle")

	length := float32(0)
	for i := 1; i < n; i++ {
		length += straight[i].Dist2D(straight[i-1])
	}
	assert.Greater(t, length, float32(8))
	assert.Less(t, length, float32(12))
}
