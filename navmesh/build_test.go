package navmesh

import (
	"bytes"
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/polyweave/navmesh/detour"
	"github.com/polyweave/navmesh/recast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadConfig(bmin, bmax [3]float32) recast.Config {
	return recast.Config{
		Cs:                     0.3,
		Ch:                     0.2,
		BMin:                   bmin,
		BMax:                   bmax,
		WalkableSlopeAngle:     45,
		WalkableHeight:         10,
		WalkableClimb:          4,
		WalkableRadius:         2,
		MaxEdgeLen:             0,
		MaxSimplificationError: 1.3,
		MinRegionArea:          0,
		MergeRegionArea:        0,
		MaxVertsPerPoly:        6,
	}
}

// A single flat square, large enough to survive border erosion, builds to
// exactly one polygon: the classic "flat plane" case.
func TestBuildUnitQuadFloor(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		10, 0, 0,
		10, 0, 10,
		0, 0, 10,
	}
	tris := []int32{0, 1, 2, 0, 2, 3}

	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{11, 1, 11})
	ctx := recast.NewBuildContext(false)

	res, err := Build(ctx, verts, tris, nil, cfg, PartitionWatershed)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, int32(1), res.PolyMesh.NPolys)
	assert.NotNil(t, res.NavMesh)
	assert.NotEmpty(t, res.NavMeshData)
}

// Building the same input twice must produce byte-identical output: the
// pipeline has no internal randomness or iteration-order dependence.
func TestBuildIsDeterministic(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		10, 0, 0,
		10, 0, 10,
		0, 0, 10,
	}
	tris := []int32{0, 1, 2, 0, 2, 3}
	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{11, 1, 11})

	res1, err := Build(recast.NewBuildContext(false), verts, tris, nil, cfg, PartitionWatershed)
	require.NoError(t, err)
	res2, err := Build(recast.NewBuildContext(false), verts, tris, nil, cfg, PartitionWatershed)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(res1.NavMeshData, res2.NavMeshData))
	assert.Equal(t, res1.PolyMesh.NPolys, res2.PolyMesh.NPolys)
}

// Every polygon adjacency recorded in the neighbor half of Polys must be
// symmetric: if i lists j across some edge, j must list i back.
func TestPolyMeshAdjacencyIsSymmetric(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		10, 0, 0,
		10, 0, 10,
		0, 0, 10,
	}
	tris := []int32{0, 1, 2, 0, 2, 3}
	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{11, 1, 11})
	cfg.MaxVertsPerPoly = 3 // force multiple triangles so adjacency is exercised

	res, err := Build(recast.NewBuildContext(false), verts, tris, nil, cfg, PartitionWatershed)
	require.NoError(t, err)

	pm := res.PolyMesh
	nvp := int(pm.Nvp)
	for p := 0; p < int(pm.NPolys); p++ {
		for e := 0; e < nvp; e++ {
			n := pm.Polys[p*2*nvp+nvp+e]
			if n == 0xffff {
				continue
			}
			found := false
			for e2 := 0; e2 < nvp; e2++ {
				if pm.Polys[int(n)*2*nvp+nvp+e2] == uint16(p) {
					found = true
					break
				}
			}
			assert.True(t, found, "poly %d edge %d claims neighbor %d, not reciprocated", p, e, n)
		}
	}
}

// A step taller than walkableClimb keeps the two floors in separate,
// unconnected regions; a step within walkableClimb merges them into a single
// connected patch.
func buildTwoFloorsWithStep(t *testing.T, step, climb int32) *Result {
	t.Helper()

	// Floor A: x in [0,5], y=0. Floor B: x in [5,10], y=step*ch.
	stepY := float32(step) * 0.2
	verts := []float32{
		0, 0, 0,
		5, 0, 0,
		5, 0, 10,
		0, 0, 10,
		5, stepY, 0,
		10, stepY, 0,
		10, stepY, 10,
		5, stepY, 10,
	}
	tris := []int32{
		0, 1, 2, 0, 2, 3, // floor A
		4, 5, 6, 4, 6, 7, // floor B
	}

	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{11, stepY + 1, 11})
	cfg.WalkableClimb = climb

	res, err := Build(recast.NewBuildContext(false), verts, tris, nil, cfg, PartitionWatershed)
	require.NoError(t, err)
	return res
}

func TestBuildTwoFloorsWithStep_WithinClimb(t *testing.T) {
	res := buildTwoFloorsWithStep(t, 1, 4)
	// climb covers the step: the two floors end up in a single region,
	// producing polygons that share at least one adjacency link.
	pm := res.PolyMesh
	nvp := int(pm.Nvp)
	hasAdjacency := false
	for p := 0; p < int(pm.NPolys); p++ {
		for e := 0; e < nvp; e++ {
			if pm.Polys[p*2*nvp+nvp+e] != 0xffff {
				hasAdjacency = true
			}
		}
	}
	assert.True(t, hasAdjacency, "expected at least one polygon adjacency when step <= walkableClimb")
}

func TestBuildTwoFloorsWithStep_BeyondClimb(t *testing.T) {
	res := buildTwoFloorsWithStep(t, 20, 1)
	// climb is far smaller than the step: each floor is a single quad with
	// no neighbors of its own, so no adjacency link should exist anywhere.
	pm := res.PolyMesh
	nvp := int(pm.Nvp)
	hasAdjacency := false
	for p := 0; p < int(pm.NPolys); p++ {
		for e := 0; e < nvp; e++ {
			if pm.Polys[p*2*nvp+nvp+e] != 0xffff {
				hasAdjacency = true
			}
		}
	}
	assert.False(t, hasAdjacency, "expected no polygon adjacency when step exceeds walkableClimb")
	// The mesh must still contain both floors' polygons.
	assert.GreaterOrEqual(t, pm.NPolys, int32(2))
}

func TestBuildRejectsDegenerateInput(t *testing.T) {
	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{1, 1, 1})
	_, err := Build(recast.NewBuildContext(false), nil, nil, nil, cfg, PartitionWatershed)
	assert.Error(t, err)

	cfg.Cs = 0
	_, err = Build(recast.NewBuildContext(false), []float32{0, 0, 0, 1, 0, 0, 1, 0, 1}, []int32{0, 1, 2}, nil, cfg, PartitionWatershed)
	assert.Error(t, err)
}

func TestBuildMonotonePartitionSucceeds(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		10, 0, 0,
		10, 0, 10,
		0, 0, 10,
	}
	tris := []int32{0, 1, 2, 0, 2, 3}
	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{11, 1, 11})

	res, err := Build(recast.NewBuildContext(false), verts, tris, nil, cfg, PartitionMonotone)
	require.NoError(t, err)
	assert.Greater(t, res.PolyMesh.NPolys, int32(0))
}

// Sanity-checks the detour.NavMesh produced by Build is queryable: a point
// inside the floor resolves to a valid polygon reference.
func TestBuiltNavMeshIsQueryable(t *testing.T) {
	verts := []float32{
		0, 0, 0,
		10, 0, 0,
		10, 0, 10,
		0, 0, 10,
	}
	tris := []int32{0, 1, 2, 0, 2, 3}
	cfg := quadConfig([3]float32{-1, -1, -1}, [3]float32{11, 1, 11})

	res, err := Build(recast.NewBuildContext(false), verts, tris, nil, cfg, PartitionWatershed)
	require.NoError(t, err)

	st, q := detour.NewNavMeshQuery(res.NavMesh, 2048)
	require.False(t, detour.StatusFailed(st))

	filter := detour.NewStandardQueryFilter()
	center := d3.NewVec3XYZ(5, 0, 5)
	extents := d3.NewVec3XYZ(2, 2, 2)

	st, ref, _ := q.FindNearestPoly(center, extents, filter)
	assert.False(t, detour.StatusFailed(st))
	assert.NotZero(t, ref)
}
