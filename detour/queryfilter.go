package detour

import "github.com/arl/gogeo/f32/d3"

// QueryFilter decides which polygons a query may traverse and what
// traversal costs.
//
// For A* to return shortest paths the cost must be proportional to
// travel distance; cost modifiers below 1 break the heuristic's
// admissibility. Implementations should be cheap, both methods run in
// the inner search loop.
type QueryFilter interface {
	// PassFilter reports whether the polygon may be visited.
	PassFilter(ref PolyRef, tile *MeshTile, poly *Poly) bool

	// Cost returns the cost of moving from pa to pb, a segment fully
	// inside the current polygon. The previous and next polygon of the
	// move are provided for context; prev and next may be null refs at
	// the corridor ends.
	Cost(pa, pb d3.Vec3,
		prevRef PolyRef, prevTile *MeshTile, prevPoly *Poly,
		curRef PolyRef, curTile *MeshTile, curPoly *Poly,
		nextRef PolyRef, nextTile *MeshTile, nextPoly *Poly) float32
}

// StandardQueryFilter is the default QueryFilter: flag based inclusion
// and exclusion plus a cost multiplier per area.
//
// A polygon needs at least one flag set to ever be considered; a
// polygon carrying both an included and an excluded flag is excluded.
// All area costs start at 1, include flags at 0xffff, exclude flags at
// 0.
type StandardQueryFilter struct {
	areaCost     [maxAreas]float32
	includeFlags uint16
	excludeFlags uint16
}

// NewStandardQueryFilter returns a filter passing every flagged polygon
// at unit cost.
func NewStandardQueryFilter() *StandardQueryFilter {
	qf := StandardQueryFilter{
		includeFlags: 0xffff,
	}
	for i := range qf.areaCost {
		qf.areaCost[i] = 1.0
	}
	return &qf
}

// AreaCost returns the traversal cost multiplier of area i.
func (qf *StandardQueryFilter) AreaCost(i int32) float32 { return qf.areaCost[i] }

// SetAreaCost sets the traversal cost multiplier of area i.
func (qf *StandardQueryFilter) SetAreaCost(i int32, cost float32) { qf.areaCost[i] = cost }

// IncludeFlags returns the flags a polygon must carry one of to be
// visited.
func (qf *StandardQueryFilter) IncludeFlags() uint16 { return qf.includeFlags }

// SetIncludeFlags sets the include flag mask.
func (qf *StandardQueryFilter) SetIncludeFlags(flags uint16) { qf.includeFlags = flags }

// ExcludeFlags returns the flags that bar a polygon from being visited.
func (qf *StandardQueryFilter) ExcludeFlags() uint16 { return qf.excludeFlags }

// SetExcludeFlags sets the exclude flag mask.
func (qf *StandardQueryFilter) SetExcludeFlags(flags uint16) { qf.excludeFlags = flags }

// PassFilter reports whether the polygon's flags pass the
// include/exclude masks.
func (qf *StandardQueryFilter) PassFilter(ref PolyRef, tile *MeshTile, poly *Poly) bool {
	return (poly.Flags&qf.includeFlags) != 0 && (poly.Flags&qf.excludeFlags) == 0
}

// Cost returns the distance from pa to pb scaled by the current
// polygon's area cost.
func (qf *StandardQueryFilter) Cost(pa, pb d3.Vec3,
	prevRef PolyRef, prevTile *MeshTile, prevPoly *Poly,
	curRef PolyRef, curTile *MeshTile, curPoly *Poly,
	nextRef PolyRef, nextTile *MeshTile, nextPoly *Poly) float32 {

	return pa.Dist(pb) * qf.areaCost[curPoly.Area()]
}
