package detour

import (
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// polyQuery is the per-batch callback of NavMeshQuery.queryPolygons:
// process may run several times for one query, once per batch of
// overlapping polygons.
type polyQuery interface {
	process(tile *MeshTile, polys []*Poly, refs []PolyRef, count int32)
}

// findNearestPolyQuery keeps the polygon closest to center among every
// batch it sees.
type findNearestPolyQuery struct {
	query              *NavMeshQuery
	center             d3.Vec3
	nearestDistanceSqr float32
	nearestRef         PolyRef
	nearestPoint       d3.Vec3
}

func newFindNearestPolyQuery(query *NavMeshQuery, center d3.Vec3) *findNearestPolyQuery {
	return &findNearestPolyQuery{
		query:              query,
		center:             center,
		nearestDistanceSqr: math32.MaxFloat32,
		nearestPoint:       d3.NewVec3(),
	}
}

func (q *findNearestPolyQuery) process(tile *MeshTile, polys []*Poly, refs []PolyRef, count int32) {
	closest := d3.NewVec3()
	for i := int32(0); i < count; i++ {
		ref := refs[i]
		posOverPoly, _ := q.query.closestPointOnPoly(ref, q.center, closest)

		// A point directly over a polygon within climb height beats a
		// closer straight-line hit.
		diff := q.center.Sub(closest)
		var d float32
		if posOverPoly {
			d = math32.Abs(diff[1]) - tile.Header.WalkableClimb
			if d > 0 {
				d = d * d
			} else {
				d = 0
			}
		} else {
			d = diff.LenSqr()
		}

		if d < q.nearestDistanceSqr {
			q.nearestPoint.Assign(closest)
			q.nearestDistanceSqr = d
			q.nearestRef = ref
		}
	}
}
