// Package recast turns triangle soup into the polygon mesh a
// navigation mesh is built from.
//
// The pipeline is a strict forward chain; each stage consumes the
// previous stage's artifact:
//
//   - Rasterize the input triangles into a Heightfield.
//   - Filter unwalkable spans (low obstacles, ledges, low clearance).
//   - Build a CompactHeightfield and erode it by the agent radius.
//   - Build the distance field and partition it into regions.
//   - Trace and simplify region Contours.
//   - Build the convex PolyMesh from the contours.
//
// The resulting PolyMesh feeds the detour package's navigation mesh
// encoder. A BuildContext carries logging and per-stage timers through
// every stage; none of the stages synchronize, so concurrent builds
// need one BuildContext (and one set of artifacts) each.
package recast
