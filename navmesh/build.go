// Package navmesh wires the recast build pipeline and the detour query
// engine together into a single "triangles in, queryable navmesh out" call.
//
// This is the strict forward chain (triangles -> solid heightfield ->
// compact heightfield -> filters -> erosion -> distance field -> region
// partitioning -> contours -> polygon mesh -> BV-tree + binary layout ->
// query engine) that the recast/detour split otherwise leaves to the
// caller to wire by hand, stripped of OBJ loading and the detail mesh
// stage.
package navmesh

import (
	"fmt"
	"time"

	"github.com/polyweave/navmesh/detour"
	"github.com/polyweave/navmesh/recast"
)

// trisPerChunk sizes the chunky triangle mesh's leaves; rasterization
// clips one chunk's worth of triangles at a time.
const trisPerChunk = 256

// PartitionType selects the region partitioning algorithm used by Build.
type PartitionType int

const (
	// PartitionWatershed is the classic watershed partitioning: slowest,
	// produces the best tessellation. Default.
	PartitionWatershed PartitionType = iota
	// PartitionMonotone is a monotone sweep: fastest, tends to produce
	// long thin polygons.
	PartitionMonotone
)

// Result is the output of Build: the intermediate recast artifacts (kept
// around for inspection/debugging) plus the queryable detour.NavMesh and
// its encoded binary blob.
type Result struct {
	Heightfield *recast.Heightfield
	Compact     *recast.CompactHeightfield
	Contours    *recast.ContourSet
	PolyMesh    *recast.PolyMesh

	NavMeshData []byte
	NavMesh     *detour.NavMesh
}

// Build runs the full voxelize -> partition -> contour -> polygonize ->
// encode pipeline over a triangle soup and returns a queryable navmesh.
//
// verts is a flat (x, y, z) array; tris is a flat vertex-index triple per
// triangle. areas, if non-nil, must have one entry per triangle and
// overrides the slope-walkability classification for that triangle;
// otherwise every triangle is classified by cfg.WalkableSlopeAngle.
func Build(ctx *recast.BuildContext, verts []float32, tris []int32, areas []uint8, cfg recast.Config, partition PartitionType) (*Result, error) {
	ntris := int32(len(tris) / 3)
	nverts := int32(len(verts) / 3)

	if cfg.Cs <= 0 || cfg.Ch <= 0 {
		return nil, fmt.Errorf("navmesh: cell size and cell height must be > 0")
	}
	if cfg.MaxVertsPerPoly < 3 || cfg.MaxVertsPerPoly > int32(detour.VertsPerPolygon) {
		return nil, fmt.Errorf("navmesh: MaxVertsPerPoly must be in [3, %d]", detour.VertsPerPolygon)
	}
	if ntris == 0 {
		return nil, fmt.Errorf("navmesh: no triangles to build from")
	}

	cfg.Width, cfg.Height = recast.CalcGridSize(cfg.BMin, cfg.BMax, cfg.Cs)

	buildStart := time.Now()
	ctx.StartTimer(recast.TimerTotal)
	defer ctx.StopTimer(recast.TimerTotal)

	// Step 1: rasterize the triangle soup into a solid heightfield.
	solid := recast.NewHeightfield()
	if !solid.Create(ctx, cfg.Width, cfg.Height, cfg.BMin[:], cfg.BMax[:], cfg.Cs, cfg.Ch) {
		return nil, fmt.Errorf("navmesh: could not create solid heightfield")
	}

	if areas != nil {
		// Caller-classified triangles rasterize in one go.
		if !recast.RasterizeTriangles(ctx, verts, nverts, tris, areas, ntris, solid, cfg.WalkableClimb) {
			return nil, fmt.Errorf("navmesh: could not rasterize triangles")
		}
	} else {
		// Partition the soup spatially and rasterize chunk by chunk,
		// classifying each chunk's triangles by slope as it goes.
		chunky, ok := recast.NewChunkyTriMesh(verts, tris, ntris, trisPerChunk)
		if !ok {
			return nil, fmt.Errorf("navmesh: could not build chunky triangle mesh")
		}

		gridMin := [2]float32{cfg.BMin[0], cfg.BMin[2]}
		gridMax := [2]float32{cfg.BMax[0], cfg.BMax[2]}
		cids := make([]int32, len(chunky.Nodes))
		ncid := chunky.ChunksOverlappingRect(gridMin, gridMax, cids)

		triAreas := make([]uint8, chunky.MaxTrisPerChunk)
		for _, cid := range cids[:ncid] {
			node := &chunky.Nodes[cid]
			ctris := chunky.Tris[node.I*3 : (node.I+node.N)*3]

			for i := range triAreas[:node.N] {
				triAreas[i] = 0
			}
			recast.MarkWalkableTriangles(ctx, cfg.WalkableSlopeAngle, verts, nverts, ctris, node.N, triAreas)

			if !recast.RasterizeTriangles(ctx, verts, nverts, ctris, triAreas, node.N, solid, cfg.WalkableClimb) {
				return nil, fmt.Errorf("navmesh: could not rasterize triangles")
			}
		}
	}

	// Step 2: filter walkable surfaces. Each filter can be opted out of
	// individually.
	if !cfg.NoFilterLowHangingObstacles {
		recast.FilterLowHangingWalkableObstacles(ctx, cfg.WalkableClimb, solid)
	}
	if !cfg.NoFilterLedgeSpans {
		recast.FilterLedgeSpans(ctx, cfg.WalkableHeight, cfg.WalkableClimb, solid)
	}
	if !cfg.NoFilterWalkableLowHeightSpans {
		recast.FilterWalkableLowHeightSpans(ctx, cfg.WalkableHeight, solid)
	}

	// Step 3: compact the heightfield.
	chf := &recast.CompactHeightfield{}
	if !recast.BuildCompactHeightfield(ctx, cfg.WalkableHeight, cfg.WalkableClimb, solid, chf) {
		return nil, fmt.Errorf("navmesh: could not build compact heightfield")
	}

	// Step 4: erode the walkable area by the agent radius.
	if !recast.ErodeWalkableArea(ctx, cfg.WalkableRadius, chf) {
		return nil, fmt.Errorf("navmesh: could not erode walkable area")
	}

	// Step 5: partition into regions.
	switch partition {
	case PartitionMonotone:
		if !recast.BuildRegionsMonotone(ctx, chf, cfg.BorderSize, cfg.MinRegionArea, cfg.MergeRegionArea) {
			return nil, fmt.Errorf("navmesh: could not build monotone regions")
		}
	default:
		if !recast.BuildDistanceField(ctx, chf) {
			return nil, fmt.Errorf("navmesh: could not build distance field")
		}
		if !recast.BuildRegions(ctx, chf, cfg.BorderSize, cfg.MinRegionArea, cfg.MergeRegionArea) {
			return nil, fmt.Errorf("navmesh: could not build watershed regions")
		}
	}

	// Step 6: trace and simplify region contours.
	cset := &recast.ContourSet{}
	tessFlags := int32(0)
	if cfg.MaxEdgeLen > 0 {
		tessFlags = recast.ContourTessWallEdges
	}
	if !recast.BuildContours(ctx, chf, cfg.MaxSimplificationError, cfg.MaxEdgeLen, cset, tessFlags) {
		return nil, fmt.Errorf("navmesh: could not trace contours")
	}

	// Step 7: triangulate contours into a convex polygon mesh.
	pmesh, ok := recast.BuildPolyMesh(ctx, cset, cfg.MaxVertsPerPoly)
	if !ok {
		return nil, fmt.Errorf("navmesh: could not build polygon mesh")
	}
	for i := int32(0); i < pmesh.NPolys; i++ {
		if pmesh.Areas[i] == recast.WalkableArea {
			pmesh.Flags[i] = 1
		}
	}

	// Step 8: encode the static mesh blob (vertices, polys, BV-tree) and
	// build the queryable runtime navmesh over it.
	data, err := encode(pmesh, cfg)
	if err != nil {
		return nil, err
	}

	nav := &detour.NavMesh{}
	if st := nav.InitForSingleTile(data, 0); detour.StatusFailed(st) {
		return nil, fmt.Errorf("navmesh: InitForSingleTile failed: %v", st)
	}

	recast.LogBuildTimes(ctx, time.Since(buildStart))

	return &Result{
		Heightfield: solid,
		Compact:     chf,
		Contours:    cset,
		PolyMesh:    pmesh,
		NavMeshData: data,
		NavMesh:     nav,
	}, nil
}

// encode packs a recast.PolyMesh into the detour static mesh blob: vertices
// converted to world space, polys and flags copied through, and the
// BV-tree built and appended by detour.CreateNavMeshData.
func encode(pmesh *recast.PolyMesh, cfg recast.Config) ([]byte, error) {
	params := &detour.NavMeshCreateParams{
		Verts:           pmesh.Verts,
		VertCount:       pmesh.NVerts,
		Polys:           pmesh.Polys,
		PolyAreas:       pmesh.Areas,
		PolyFlags:       pmesh.Flags,
		PolyCount:       pmesh.NPolys,
		Nvp:             pmesh.Nvp,
		WalkableHeight:  float32(cfg.WalkableHeight) * cfg.Ch,
		WalkableRadius:  float32(cfg.WalkableRadius) * cfg.Cs,
		WalkableClimb:   float32(cfg.WalkableClimb) * cfg.Ch,
		BMin:            pmesh.BMin,
		BMax:            pmesh.BMax,
		Cs:              pmesh.Cs,
		Ch:              pmesh.Ch,
		BuildBvTree:     true,
	}
	return detour.CreateNavMeshData(params)
}
