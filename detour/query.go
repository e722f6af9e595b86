package detour

import (
	"math"

	"github.com/arl/gogeo/f32"
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// HScale scales the A* heuristic slightly below the true distance, so
// ties break toward nodes closer to the goal.
const HScale float32 = 0.999

// Raycast options.
const (
	// RaycastUseCosts makes Raycast accumulate the filter's movement
	// cost along the ray into RaycastHit.PathCost.
	RaycastUseCosts int = 0x01
)

// RaycastHit is the result of NavMeshQuery.Raycast.
type RaycastHit struct {
	// T is the hit parameter along the segment; math.MaxFloat32 when
	// the ray reached the end position without hitting a wall.
	T float32

	// HitNormal is the normal of the wall that was hit; undefined when
	// T is 0 or the ray didn't hit.
	HitNormal d3.Vec3

	// HitEdgeIndex is the edge of the final polygon the wall was hit
	// on.
	HitEdgeIndex int

	// Path holds the references of the visited polygons, start first.
	Path []PolyRef

	// PathCost is the accumulated cost along the visited polygons;
	// only filled with the RaycastUseCosts option.
	PathCost float32
}

// NavMeshQuery runs pathfinding queries against a navigation mesh.
//
// A query object owns the node pool and open list backing its
// searches, so one NavMeshQuery serves one goroutine; several queries
// may share one NavMesh.
//
// Walls and portals: a wall is a polygon edge considered impassable; a
// portal is a passable edge between two polygons. A portal may still
// be treated as a wall by the QueryFilter of a given query.
type NavMeshQuery struct {
	nav      *NavMesh
	nodePool *NodePool
	openList *nodeQueue
}

// NewNavMeshQuery returns a query object over nav whose searches visit
// at most maxNodes polygons (0 < maxNodes <= 65535).
func NewNavMeshQuery(nav *NavMesh, maxNodes int32) (Status, *NavMeshQuery) {
	if maxNodes <= 0 || maxNodes > int32(nullIdx) {
		return Failure | InvalidParam, nil
	}
	q := &NavMeshQuery{
		nav:      nav,
		nodePool: newNodePool(maxNodes, int32(math32.NextPow2(uint32(maxNodes/4)))),
		openList: newnodeQueue(maxNodes),
	}
	return Success, q
}

// AttachedNavMesh returns the navigation mesh the query runs over.
func (q *NavMeshQuery) AttachedNavMesh() *NavMesh {
	return q.nav
}

// NodePool returns the query's node pool.
func (q *NavMeshQuery) NodePool() *NodePool {
	return q.nodePool
}

// IsValidPolyRef reports whether ref is live and passes the filter.
func (q *NavMeshQuery) IsValidPolyRef(ref PolyRef, filter QueryFilter) bool {
	tile, poly, status := q.nav.TileAndPolyByRef(ref)
	if StatusFailed(status) {
		return false
	}
	return filter.PassFilter(ref, tile, poly)
}

// FindPath finds a polygon path from startRef to endRef with A* over
// the polygon graph, written into path front to back.
//
// When the end polygon is unreachable the path leads to the visited
// polygon closest to the goal and the status carries PartialResult.
// When path is too small the prefix from the start is returned with
// BufferTooSmall. The positions only affect traversal costs (their y
// matters).
//
// This method may be used by multiple clients without side effects.
func (q *NavMeshQuery) FindPath(
	startRef, endRef PolyRef,
	startPos, endPos d3.Vec3,
	filter QueryFilter,
	path []PolyRef) (pathCount int, st Status) {

	if !q.nav.IsValidPolyRef(startRef) || !q.nav.IsValidPolyRef(endRef) ||
		len(startPos) < 3 || len(endPos) < 3 || filter == nil || len(path) == 0 {
		return 0, Failure | InvalidParam
	}

	if startRef == endRef {
		path[0] = startRef
		return 1, Success
	}

	q.nodePool.Clear()
	q.openList.clear()

	startNode := q.nodePool.Node(startRef, 0)
	startNode.Pos.Assign(startPos)
	startNode.PIdx = 0
	startNode.Cost = 0
	startNode.Total = startPos.Dist(endPos) * HScale
	startNode.Flags = nodeOpen
	q.openList.push(startNode)

	lastBestNode := startNode
	lastBestNodeCost := startNode.Total

	outOfNodes := false

	for !q.openList.empty() {
		bestNode := q.openList.pop()
		bestNode.Flags &^= nodeOpen
		bestNode.Flags |= nodeClosed

		if bestNode.ID == endRef {
			lastBestNode = bestNode
			break
		}

		// Internal refs on the open list are valid by construction.
		bestRef := bestNode.ID
		bestTile, bestPoly := q.nav.TileAndPolyByRefUnsafe(bestRef)

		var (
			parentRef  PolyRef
			parentTile *MeshTile
			parentPoly *Poly
		)
		if bestNode.PIdx != 0 {
			parentRef = q.nodePool.NodeAtIdx(int32(bestNode.PIdx)).ID
		}
		if parentRef != 0 {
			parentTile, parentPoly = q.nav.TileAndPolyByRefUnsafe(parentRef)
		}

		for i := bestPoly.FirstLink; i != nullLink; i = bestTile.Links[i].Next {
			neiRef := bestTile.Links[i].Ref

			// Never expand back through the parent.
			if neiRef == 0 || neiRef == parentRef {
				continue
			}

			neiTile, neiPoly := q.nav.TileAndPolyByRefUnsafe(neiRef)
			if !filter.PassFilter(neiRef, neiTile, neiPoly) {
				continue
			}

			// Nodes crossing a tile boundary get a distinct state per
			// crossing side, so a polygon reachable through two portals
			// keeps both candidates.
			var crossSide uint8
			if bestTile.Links[i].Side != 0xff {
				crossSide = bestTile.Links[i].Side >> 1
			}

			neiNode := q.nodePool.Node(neiRef, crossSide)
			if neiNode == nil {
				outOfNodes = true
				continue
			}

			// First visit: place the node at the crossing edge's middle.
			if neiNode.Flags == 0 {
				q.edgeMidPoint(bestRef, bestPoly, bestTile,
					neiRef, neiPoly, neiTile, neiNode.Pos)
			}

			var cost, heuristic float32
			if neiRef == endRef {
				curCost := filter.Cost(bestNode.Pos, neiNode.Pos,
					parentRef, parentTile, parentPoly,
					bestRef, bestTile, bestPoly,
					neiRef, neiTile, neiPoly)
				endCost := filter.Cost(neiNode.Pos, endPos,
					bestRef, bestTile, bestPoly,
					neiRef, neiTile, neiPoly,
					0, nil, nil)
				cost = bestNode.Cost + curCost + endCost
				heuristic = 0
			} else {
				curCost := filter.Cost(bestNode.Pos, neiNode.Pos,
					parentRef, parentTile, parentPoly,
					bestRef, bestTile, bestPoly,
					neiRef, neiTile, neiPoly)
				cost = bestNode.Cost + curCost
				heuristic = neiNode.Pos.Dist(endPos) * HScale
			}
			total := cost + heuristic

			// Skip when the node is already known through a path at
			// least as good.
			if neiNode.Flags&(nodeOpen|nodeClosed) != 0 && total >= neiNode.Total {
				continue
			}

			neiNode.PIdx = q.nodePool.NodeIdx(bestNode)
			neiNode.Flags &^= nodeClosed
			neiNode.Cost = cost
			neiNode.Total = total

			if neiNode.Flags&nodeOpen != 0 {
				q.openList.modify(neiNode)
			} else {
				neiNode.Flags |= nodeOpen
				q.openList.push(neiNode)
			}

			if heuristic < lastBestNodeCost {
				lastBestNodeCost = heuristic
				lastBestNode = neiNode
			}
		}
	}

	pathCount, st = q.pathToNode(lastBestNode, path)
	if lastBestNode.ID != endRef {
		st |= PartialResult
	}
	if outOfNodes {
		st |= OutOfNodes
	}
	return pathCount, st
}

// pathToNode writes the node's parent chain into path, start first.
func (q *NavMeshQuery) pathToNode(endNode *Node, path []PolyRef) (pathCount int, st Status) {
	// Walk up once for the chain length.
	var length int
	for n := endNode; n != nil; n = q.nodePool.NodeAtIdx(int32(n.PIdx)) {
		length++
	}

	// When the chain doesn't fit, drop its tail so the stored prefix
	// still starts at the start node.
	cur := endNode
	writeCount := length
	for ; writeCount > len(path); writeCount-- {
		cur = q.nodePool.NodeAtIdx(int32(cur.PIdx))
	}
	for i := writeCount - 1; i >= 0; i-- {
		path[i] = cur.ID
		cur = q.nodePool.NodeAtIdx(int32(cur.PIdx))
	}

	if length > len(path) {
		return len(path), Success | BufferTooSmall
	}
	return length, Success
}

// Vertex flags returned by FindStraightPath.
const (
	StraightPathStart             uint8 = 0x01 // The vertex is the path start.
	StraightPathEnd               uint8 = 0x02 // The vertex is the path end.
	StraightPathOffMeshConnection uint8 = 0x04 // The vertex starts an off-mesh connection.
)

// Options for FindStraightPath.
const (
	// StraightPathAreaCrossings adds a vertex at every portal crossing
	// where the area changes.
	StraightPathAreaCrossings uint8 = 0x01
	// StraightPathAllCrossings adds a vertex at every portal crossing.
	StraightPathAllCrossings uint8 = 0x02
)

// FindStraightPath runs the funnel algorithm over a polygon corridor:
// it returns the string-pulled sequence of points from startPos to
// endPos inside the corridor described by path.
//
// straightPath, straightPathFlags and straightPathRefs must have equal
// lengths (the latter two may be empty to skip them); the filled count
// is returned. The start and end positions are clamped onto the first
// and last corridor polygon.
//
// This method may be used by multiple clients without side effects.
func (q *NavMeshQuery) FindStraightPath(
	startPos, endPos d3.Vec3,
	path []PolyRef,
	straightPath []d3.Vec3,
	straightPathFlags []uint8,
	straightPathRefs []PolyRef,
	options int32) (straightPathCount int, st Status) {

	if len(straightPath) == 0 || len(path) == 0 {
		return 0, Failure | InvalidParam
	}

	closestStartPos := d3.NewVec3()
	if StatusFailed(q.closestPointOnPolyBoundary(path[0], startPos, closestStartPos)) {
		return 0, Failure | InvalidParam
	}
	closestEndPos := d3.NewVec3()
	if StatusFailed(q.closestPointOnPolyBoundary(path[len(path)-1], endPos, closestEndPos)) {
		return 0, Failure | InvalidParam
	}

	var count int
	stat := q.appendVertex(closestStartPos, StraightPathStart, path[0],
		straightPath, straightPathFlags, straightPathRefs, &count)
	if stat != InProgress {
		return count, stat
	}

	if len(path) > 1 {
		portalApex := d3.NewVec3From(closestStartPos)
		portalLeft := d3.NewVec3From(portalApex)
		portalRight := d3.NewVec3From(portalApex)
		var (
			apexIndex, leftIndex, rightIndex int
			leftPolyType, rightPolyType      uint8
		)
		leftPolyRef := path[0]
		rightPolyRef := path[0]

		for i := 0; i < len(path); i++ {
			left := d3.NewVec3()
			right := d3.NewVec3()
			var toType uint8

			if i+1 < len(path) {
				// Next portal.
				var pst Status
				_, toType, pst = q.portalPointsByRef(path[i], path[i+1], left, right)
				if StatusFailed(pst) {
					// path[i+1] is invalid; clamp the end to path[i]
					// and return the path so far.
					if StatusFailed(q.closestPointOnPolyBoundary(path[i], endPos, closestEndPos)) {
						return 0, Failure | InvalidParam
					}
					if options&int32(StraightPathAreaCrossings|StraightPathAllCrossings) != 0 {
						q.appendPortals(apexIndex, i, closestEndPos, path,
							straightPath, straightPathFlags, straightPathRefs,
							&count, options)
					}
					q.appendVertex(closestEndPos, 0, path[i],
						straightPath, straightPathFlags, straightPathRefs, &count)

					stat = Success | PartialResult
					if count >= len(straightPath) {
						stat |= BufferTooSmall
					}
					return count, stat
				}

				// Starting on the first portal: advance instead of
				// pinching the funnel shut on the apex.
				if i == 0 {
					if d, _ := distPtSeg2D(portalApex, left, right); d < math32.Sqr(0.001) {
						continue
					}
				}
			} else {
				// End of the path.
				left.Assign(closestEndPos)
				right.Assign(closestEndPos)
				toType = polyTypeGround
			}

			// Right side of the funnel.
			if TriArea2D(portalApex, portalRight, right) <= 0.0 {
				if portalApex.Approx(portalRight) || TriArea2D(portalApex, portalLeft, right) > 0.0 {
					// Narrow the funnel.
					portalRight.Assign(right)
					if i+1 < len(path) {
						rightPolyRef = path[i+1]
					} else {
						rightPolyRef = 0
					}
					rightPolyType = toType
					rightIndex = i
				} else {
					// The right side crossed the left: commit the left
					// vertex as the new apex and restart from there.
					if options&int32(StraightPathAreaCrossings|StraightPathAllCrossings) != 0 {
						stat = q.appendPortals(apexIndex, leftIndex, portalLeft, path,
							straightPath, straightPathFlags, straightPathRefs,
							&count, options)
						if stat != InProgress {
							return count, stat
						}
					}

					portalApex.Assign(portalLeft)
					apexIndex = leftIndex

					var flags uint8
					if leftPolyRef == 0 {
						flags = StraightPathEnd
					} else if leftPolyType == polyTypeOffMeshConnection {
						flags = StraightPathOffMeshConnection
					}
					stat = q.appendVertex(portalApex, flags, leftPolyRef,
						straightPath, straightPathFlags, straightPathRefs, &count)
					if stat != InProgress {
						return count, stat
					}

					portalLeft.Assign(portalApex)
					portalRight.Assign(portalApex)
					leftIndex = apexIndex
					rightIndex = apexIndex

					i = apexIndex
					continue
				}
			}

			// Left side of the funnel.
			if TriArea2D(portalApex, portalLeft, left) >= 0.0 {
				if portalApex.Approx(portalLeft) || TriArea2D(portalApex, portalRight, left) < 0.0 {
					portalLeft.Assign(left)
					if i+1 < len(path) {
						leftPolyRef = path[i+1]
					} else {
						leftPolyRef = 0
					}
					leftPolyType = toType
					leftIndex = i
				} else {
					// The left side crossed the right: commit the right
					// vertex as the new apex and restart from there.
					if options&int32(StraightPathAreaCrossings|StraightPathAllCrossings) != 0 {
						stat = q.appendPortals(apexIndex, rightIndex, portalRight, path,
							straightPath, straightPathFlags, straightPathRefs,
							&count, options)
						if stat != InProgress {
							return count, stat
						}
					}

					portalApex.Assign(portalRight)
					apexIndex = rightIndex

					var flags uint8
					if rightPolyRef == 0 {
						flags = StraightPathEnd
					} else if rightPolyType == polyTypeOffMeshConnection {
						flags = StraightPathOffMeshConnection
					}
					stat = q.appendVertex(portalApex, flags, rightPolyRef,
						straightPath, straightPathFlags, straightPathRefs, &count)
					if stat != InProgress {
						return count, stat
					}

					portalLeft.Assign(portalApex)
					portalRight.Assign(portalApex)
					leftIndex = apexIndex
					rightIndex = apexIndex

					i = apexIndex
					continue
				}
			}
		}

		if options&int32(StraightPathAreaCrossings|StraightPathAllCrossings) != 0 {
			stat = q.appendPortals(apexIndex, len(path)-1, closestEndPos, path,
				straightPath, straightPathFlags, straightPathRefs,
				&count, options)
			if stat != InProgress {
				return count, stat
			}
		}
	}

	q.appendVertex(closestEndPos, StraightPathEnd, 0,
		straightPath, straightPathFlags, straightPathRefs, &count)

	stat = Success
	if count >= len(straightPath) {
		stat |= BufferTooSmall
	}
	return count, stat
}

// appendVertex adds one point to the straight path, merging with the
// previous point when they coincide. Returns InProgress while there is
// room for more.
func (q *NavMeshQuery) appendVertex(
	pos d3.Vec3,
	flags uint8,
	ref PolyRef,
	straightPath []d3.Vec3,
	straightPathFlags []uint8,
	straightPathRefs []PolyRef,
	straightPathCount *int) Status {

	if *straightPathCount > 0 && pos.Approx(straightPath[*straightPathCount-1]) {
		// Same point: keep it, refresh its flags and ref.
		if len(straightPathFlags) > 0 {
			straightPathFlags[*straightPathCount-1] = flags
		}
		if len(straightPathRefs) > 0 {
			straightPathRefs[*straightPathCount-1] = ref
		}
		return InProgress
	}

	straightPath[*straightPathCount].Assign(pos)
	if len(straightPathFlags) > 0 {
		straightPathFlags[*straightPathCount] = flags
	}
	if len(straightPathRefs) > 0 {
		straightPathRefs[*straightPathCount] = ref
	}
	*straightPathCount++

	if *straightPathCount >= len(straightPath) {
		return Success | BufferTooSmall
	}
	if flags == StraightPathEnd {
		return Success
	}
	return InProgress
}

// appendPortals adds the crossing point of every portal between the
// corridor indices startIdx and endIdx to the straight path.
func (q *NavMeshQuery) appendPortals(
	startIdx, endIdx int,
	endPos d3.Vec3,
	path []PolyRef,
	straightPath []d3.Vec3,
	straightPathFlags []uint8,
	straightPathRefs []PolyRef,
	straightPathCount *int,
	options int32) Status {

	startPos := straightPath[*straightPathCount-1]
	for i := startIdx; i < endIdx; i++ {
		from := path[i]
		fromTile, fromPoly, status := q.nav.TileAndPolyByRef(from)
		if StatusFailed(status) {
			return Failure | InvalidParam
		}

		to := path[i+1]
		toTile, toPoly, status := q.nav.TileAndPolyByRef(to)
		if StatusFailed(status) {
			return Failure | InvalidParam
		}

		left := d3.NewVec3()
		right := d3.NewVec3()
		if StatusFailed(q.portalPoints(from, fromPoly, fromTile, to, toPoly, toTile, left, right)) {
			break
		}

		if options&int32(StraightPathAreaCrossings) != 0 {
			// Only area crossings requested.
			if fromPoly.Area() == toPoly.Area() {
				continue
			}
		}

		if hit, _, t := IntersectSegSeg2D(startPos, endPos, left, right); hit {
			pt := d3.NewVec3()
			d3.Vec3Lerp(pt, left, right, t)
			stat := q.appendVertex(pt, 0, path[i+1],
				straightPath, straightPathFlags, straightPathRefs, straightPathCount)
			if stat != InProgress {
				return stat
			}
		}
	}
	return InProgress
}

// edgeMidPoint writes the middle of the portal between two polygons
// into mid.
func (q *NavMeshQuery) edgeMidPoint(
	from PolyRef, fromPoly *Poly, fromTile *MeshTile,
	to PolyRef, toPoly *Poly, toTile *MeshTile,
	mid d3.Vec3) Status {

	left, right := d3.NewVec3(), d3.NewVec3()
	if StatusFailed(q.portalPoints(from, fromPoly, fromTile, to, toPoly, toTile, left, right)) {
		return Failure | InvalidParam
	}
	mid[0] = (left[0] + right[0]) * 0.5
	mid[1] = (left[1] + right[1]) * 0.5
	mid[2] = (left[2] + right[2]) * 0.5
	return Success
}

// portalPointsByRef resolves both refs and returns their portal's left
// and right endpoints plus both polygon types.
func (q *NavMeshQuery) portalPointsByRef(from, to PolyRef, left, right d3.Vec3) (fromType, toType uint8, st Status) {
	fromTile, fromPoly, status := q.nav.TileAndPolyByRef(from)
	if StatusFailed(status) {
		return 0, 0, Failure | InvalidParam
	}
	fromType = fromPoly.Type()

	toTile, toPoly, status := q.nav.TileAndPolyByRef(to)
	if StatusFailed(status) {
		return 0, 0, Failure | InvalidParam
	}
	toType = toPoly.Type()

	return fromType, toType, q.portalPoints(from, fromPoly, fromTile, to, toPoly, toTile, left, right)
}

// portalPoints writes the left and right endpoints of the portal
// between two polygons. For a boundary link the endpoints are clamped
// to the link's recorded sub-edge range.
func (q *NavMeshQuery) portalPoints(
	from PolyRef, fromPoly *Poly, fromTile *MeshTile,
	to PolyRef, toPoly *Poly, toTile *MeshTile,
	left, right d3.Vec3) Status {

	// Find the link pointing to the 'to' polygon.
	var link *Link
	for i := fromPoly.FirstLink; i != nullLink; i = fromTile.Links[i].Next {
		if fromTile.Links[i].Ref == to {
			link = &fromTile.Links[i]
			break
		}
	}
	if link == nil {
		return Failure | InvalidParam
	}

	// An off-mesh connection's "portal" collapses to its endpoint.
	if fromPoly.Type() == polyTypeOffMeshConnection {
		for i := fromPoly.FirstLink; i != nullLink; i = fromTile.Links[i].Next {
			if fromTile.Links[i].Ref == to {
				v := fromTile.Links[i].Edge
				vidx := fromPoly.Verts[v] * 3
				copy(left, fromTile.Verts[vidx:vidx+3])
				copy(right, fromTile.Verts[vidx:vidx+3])
				return Success
			}
		}
		return Failure | InvalidParam
	}
	if toPoly.Type() == polyTypeOffMeshConnection {
		for i := toPoly.FirstLink; i != nullLink; i = toTile.Links[i].Next {
			if toTile.Links[i].Ref == from {
				v := toTile.Links[i].Edge
				vidx := toPoly.Verts[v] * 3
				copy(left, toTile.Verts[vidx:vidx+3])
				copy(right, toTile.Verts[vidx:vidx+3])
				return Success
			}
		}
		return Failure | InvalidParam
	}

	v0 := fromPoly.Verts[link.Edge]
	v1 := fromPoly.Verts[(link.Edge+1)%fromPoly.VertCount]
	v0idx := v0 * 3
	copy(left, fromTile.Verts[v0idx:v0idx+3])
	v1idx := v1 * 3
	copy(right, fromTile.Verts[v1idx:v1idx+3])

	// Boundary links may cover only part of the edge.
	if link.Side != 0xff {
		if link.Bmin != 0 || link.Bmax != 255 {
			const s = float32(1.0 / 255.0)
			tmin := float32(link.Bmin) * s
			tmax := float32(link.Bmax) * s
			d3.Vec3Lerp(left, fromTile.Verts[v0idx:v0idx+3], fromTile.Verts[v1idx:v1idx+3], tmin)
			d3.Vec3Lerp(right, fromTile.Verts[v0idx:v0idx+3], fromTile.Verts[v1idx:v1idx+3], tmax)
		}
	}
	return Success
}

// closestPointOnPoly writes the closest point of the polygon to pos,
// using the detail mesh for the height, and reports whether pos
// projects onto the polygon.
func (q *NavMeshQuery) closestPointOnPoly(ref PolyRef, pos, closest d3.Vec3) (posOverPoly bool, st Status) {
	tile, poly, status := q.nav.TileAndPolyByRef(ref)
	if StatusFailed(status) || tile == nil {
		return false, Failure | InvalidParam
	}

	// Off-mesh connections have no detail polygons.
	if poly.Type() == polyTypeOffMeshConnection {
		vidx := poly.Verts[0] * 3
		v0 := d3.Vec3(tile.Verts[vidx : vidx+3])
		vidx = poly.Verts[1] * 3
		v1 := d3.Vec3(tile.Verts[vidx : vidx+3])
		d0 := pos.Dist(v0)
		d1 := pos.Dist(v1)
		d3.Vec3Lerp(closest, v0, v1, d0/(d0+d1))
		return false, Success
	}

	ip := q.nav.decodeRefPoly(ref)
	pd := &tile.DetailMeshes[ip]

	// Clamp into the polygon's xz projection.
	var (
		verts [VertsPerPolygon * 3]float32
		edged [VertsPerPolygon]float32
		edget [VertsPerPolygon]float32
	)
	nv := poly.VertCount
	for i := uint8(0); i < nv; i++ {
		jdx := poly.Verts[i] * 3
		copy(verts[i*3:i*3+3], tile.Verts[jdx:jdx+3])
	}

	closest.Assign(pos)
	if !polyEdgeDistances(pos, verts[:], int32(nv), edged[:], edget[:]) {
		// Outside: clamp to the nearest edge.
		dmin := edged[0]
		var imin uint8
		for i := uint8(1); i < nv; i++ {
			if edged[i] < dmin {
				dmin = edged[i]
				imin = i
			}
		}
		idx := imin * 3
		va := verts[idx : idx+3]
		idx = ((imin + 1) % nv) * 3
		vb := verts[idx : idx+3]
		d3.Vec3Lerp(closest, va, vb, edget[imin])
	} else {
		posOverPoly = true
	}

	// Height from the detail triangles.
	for j := uint8(0); j < pd.TriCount; j++ {
		tidx := int((pd.TriBase + uint32(j)) * 4)
		tri := tile.DetailTris[tidx : tidx+3]
		var v [3]d3.Vec3
		for k := 0; k < 3; k++ {
			if tri[k] < poly.VertCount {
				vidx := int(poly.Verts[tri[k]] * 3)
				v[k] = tile.Verts[vidx : vidx+3]
			} else {
				vidx := int((pd.VertBase + uint32(tri[k]-poly.VertCount)) * 3)
				v[k] = tile.DetailVerts[vidx : vidx+3]
			}
		}
		if h, ok := triHeight(closest, v[0], v[1], v[2]); ok {
			closest[1] = h
			break
		}
	}
	return posOverPoly, Success
}

// closestPointOnPolyBoundary writes the closest point of the polygon
// boundary to pos, without consulting the detail mesh: when pos lies
// within the polygon's xz bounds the result is pos itself.
func (q *NavMeshQuery) closestPointOnPolyBoundary(ref PolyRef, pos, closest d3.Vec3) Status {
	tile, poly, status := q.nav.TileAndPolyByRef(ref)
	if StatusFailed(status) {
		return Failure | InvalidParam
	}

	var (
		verts [VertsPerPolygon * 3]float32
		edged [VertsPerPolygon]float32
		edget [VertsPerPolygon]float32
	)
	nv := int32(poly.VertCount)
	for i := int32(0); i < nv; i++ {
		copy(verts[i*3:i*3+3], tile.Verts[poly.Verts[i]*3:poly.Verts[i]*3+3])
	}

	if polyEdgeDistances(pos, verts[:], nv, edged[:], edget[:]) {
		closest.Assign(pos)
		return Success
	}

	// Outside: clamp to the nearest edge.
	dmin := edged[0]
	imin := int32(0)
	for i := int32(1); i < nv; i++ {
		if edged[i] < dmin {
			dmin = edged[i]
			imin = i
		}
	}
	va := verts[imin*3 : imin*3+3]
	vidx := ((imin + 1) % nv) * 3
	vb := verts[vidx : vidx+3]
	d3.Vec3Lerp(closest, va, vb, edget[imin])
	return Success
}

// FindNearestPoly returns the polygon nearest to center within the box
// center±extents, and the closest point on it.
//
// A search box touching no polygon succeeds with a zero ref; check ref
// before using pt.
//
// This method may be used by multiple clients without side effects.
func (q *NavMeshQuery) FindNearestPoly(center, extents d3.Vec3,
	filter QueryFilter) (st Status, ref PolyRef, pt d3.Vec3) {

	query := newFindNearestPolyQuery(q, center)
	if st = q.queryPolygons(center, extents, filter, query); StatusFailed(st) {
		return st, 0, nil
	}

	// pt is only meaningful when a polygon was found.
	if ref = query.nearestRef; ref != 0 {
		pt = d3.NewVec3From(query.nearestPoint)
	}
	return Success, ref, pt
}

// queryPolygons feeds every polygon whose bounds overlap the box
// center±extents to query, in batches.
//
// This method may be used by multiple clients without side effects.
func (q *NavMeshQuery) queryPolygons(center, extents d3.Vec3, filter QueryFilter, query polyQuery) Status {
	if len(center) != 3 || len(extents) != 3 || filter == nil || query == nil {
		return Failure | InvalidParam
	}

	bmin := center.Sub(extents)
	bmax := center.Add(extents)

	// Visit the tiles the box touches.
	minx, miny := q.nav.CalcTileLoc(bmin)
	maxx, maxy := q.nav.CalcTileLoc(bmax)

	var neis [32]*MeshTile
	for y := miny; y <= maxy; y++ {
		for x := minx; x <= maxx; x++ {
			nneis := q.nav.TilesAt(x, y, neis[:])
			for j := int32(0); j < nneis; j++ {
				q.queryPolygonsInTile(neis[j], bmin, bmax, filter, query)
			}
		}
	}
	return Success
}

// queryPolygonsInTile feeds the tile's polygons overlapping the box
// [qmin, qmax] to query, in batches of 32.
func (q *NavMeshQuery) queryPolygonsInTile(tile *MeshTile, qmin, qmax []float32, filter QueryFilter, query polyQuery) {
	const batchSize = 32
	var (
		polyRefs [batchSize]PolyRef
		polys    [batchSize]*Poly
		n        int32
	)

	if len(tile.BvTree) > 0 {
		tbmin := d3.Vec3(tile.Header.Bmin[:])
		tbmax := d3.Vec3(tile.Header.Bmax[:])
		qfac := tile.Header.BvQuantFactor

		// Clamp the query box to the tile and quantize.
		minx := f32.Clamp(qmin[0], tbmin[0], tbmax[0]) - tbmin[0]
		miny := f32.Clamp(qmin[1], tbmin[1], tbmax[1]) - tbmin[1]
		minz := f32.Clamp(qmin[2], tbmin[2], tbmax[2]) - tbmin[2]
		maxx := f32.Clamp(qmax[0], tbmin[0], tbmax[0]) - tbmin[0]
		maxy := f32.Clamp(qmax[1], tbmin[1], tbmax[1]) - tbmin[1]
		maxz := f32.Clamp(qmax[2], tbmin[2], tbmax[2]) - tbmin[2]
		var bmin, bmax [3]uint16
		bmin[0] = uint16(qfac*minx) & 0xfffe
		bmin[1] = uint16(qfac*miny) & 0xfffe
		bmin[2] = uint16(qfac*minz) & 0xfffe
		bmax[0] = uint16(qfac*maxx+1) | 1
		bmax[1] = uint16(qfac*maxy+1) | 1
		bmax[2] = uint16(qfac*maxz+1) | 1

		base := q.nav.polyRefBase(tile)
		var nodeIdx int32
		endIdx := tile.Header.BvNodeCount
		for nodeIdx < endIdx {
			node := &tile.BvTree[nodeIdx]
			overlap := OverlapQuantBounds(bmin[:], bmax[:], node.Bmin[:], node.Bmax[:])
			isLeaf := node.I >= 0

			if isLeaf && overlap {
				ref := base | PolyRef(node.I)
				if filter.PassFilter(ref, tile, &tile.Polys[node.I]) {
					polyRefs[n] = ref
					polys[n] = &tile.Polys[node.I]
					if n == batchSize-1 {
						query.process(tile, polys[:], polyRefs[:], batchSize)
						n = 0
					} else {
						n++
					}
				}
			}

			if overlap || isLeaf {
				nodeIdx++
			} else {
				nodeIdx += -node.I
			}
		}
	} else {
		bmin := d3.NewVec3()
		bmax := d3.NewVec3()
		base := q.nav.polyRefBase(tile)
		for i := int32(0); i < tile.Header.PolyCount; i++ {
			p := &tile.Polys[i]
			// Off-mesh connection polygons are never returned.
			if p.Type() == polyTypeOffMeshConnection {
				continue
			}
			ref := base | PolyRef(i)
			if !filter.PassFilter(ref, tile, p) {
				continue
			}
			vidx := p.Verts[0] * 3
			v := tile.Verts[vidx : vidx+3]
			bmin.Assign(v)
			bmax.Assign(v)
			for j := uint8(1); j < p.VertCount; j++ {
				vidx = p.Verts[j] * 3
				v = tile.Verts[vidx : vidx+3]
				d3.Vec3Min(bmin, v)
				d3.Vec3Max(bmax, v)
			}
			if OverlapBounds(qmin, qmax, bmin[:], bmax[:]) {
				polyRefs[n] = ref
				polys[n] = p
				if n == batchSize-1 {
					query.process(tile, polys[:], polyRefs[:], batchSize)
					n = 0
				} else {
					n++
				}
			}
		}
	}

	if n > 0 {
		query.process(tile, polys[:], polyRefs[:], n)
	}
}

// Raycast casts a walkability ray along the mesh surface from startPos
// toward endPos, advancing through portals until it hits a wall or
// reaches the endpoint's xz location.
//
// The check is 2D: the y of the end position is ignored, which limits
// the ray to short distances on overlapping geometry. A T of
// math.MaxFloat32 means the ray reached the end position and hit.Path
// is a valid corridor to it; 0 < T < 1 locates the wall hit along the
// segment. prevRef, when non-zero, is the polygon the ray came from
// and only affects costs.
//
// This method may be used by multiple clients without side effects.
func (q *NavMeshQuery) Raycast(
	startRef PolyRef,
	startPos, endPos d3.Vec3,
	filter QueryFilter,
	options int,
	prevRef PolyRef) (hit RaycastHit, st Status) {

	if startRef == 0 || !q.nav.IsValidPolyRef(startRef) {
		return hit, Failure | InvalidParam
	}
	if prevRef != 0 && !q.nav.IsValidPolyRef(prevRef) {
		return hit, Failure | InvalidParam
	}

	var verts [VertsPerPolygon*3 + 3]float32

	curPos := d3.NewVec3From(startPos)
	lastPos := d3.NewVec3()
	dir := endPos.Sub(startPos)
	hit.HitNormal = d3.NewVec3()

	st = Success

	// Internal refs are valid by construction past the checks above.
	curRef := startRef
	tile, poly := q.nav.TileAndPolyByRefUnsafe(curRef)
	prevTile, prevPoly := tile, poly
	nextTile, nextPoly := tile, poly
	if prevRef != 0 {
		prevTile, prevPoly = q.nav.TileAndPolyByRefUnsafe(prevRef)
	}

	for curRef != 0 {
		// Cast against the current polygon.
		nv := 0
		for i := 0; i < int(poly.VertCount); i++ {
			copy(verts[nv*3:], tile.Verts[poly.Verts[i]*3:poly.Verts[i]*3+3])
			nv++
		}

		_, tmax, _, segMax, res := IntersectSegmentPoly2D(startPos, endPos, verts[:], nv)
		if !res {
			// Missed the polygon entirely; keep the previous T and
			// report what was visited.
			return hit, st
		}

		hit.HitEdgeIndex = segMax
		if tmax > hit.T {
			hit.T = tmax
		}

		hit.Path = append(hit.Path, curRef)

		// The segment ends inside this polygon.
		if segMax == -1 {
			hit.T = math.MaxFloat32
			if options&RaycastUseCosts != 0 {
				hit.PathCost += filter.Cost(curPos, endPos,
					prevRef, prevTile, prevPoly,
					curRef, tile, poly,
					curRef, tile, poly)
			}
			return hit, st
		}

		// Find the link crossing the exit edge.
		var nextRef PolyRef
		for i := poly.FirstLink; i != nullLink; i = tile.Links[i].Next {
			link := &tile.Links[i]
			if int(link.Edge) != segMax {
				continue
			}

			nextTile, nextPoly = q.nav.TileAndPolyByRefUnsafe(link.Ref)
			if nextPoly.Type() == polyTypeOffMeshConnection {
				continue
			}
			if !filter.PassFilter(link.Ref, nextTile, nextPoly) {
				continue
			}

			// Internal edges pass whole.
			if link.Side == 0xff {
				nextRef = link.Ref
				break
			}
			// So do boundary links spanning the whole edge.
			if link.Bmin == 0 && link.Bmax == 255 {
				nextRef = link.Ref
				break
			}

			// Partial boundary link: the exit point must be inside its
			// sub-edge range.
			v0 := poly.Verts[link.Edge]
			v1 := poly.Verts[(link.Edge+1)%poly.VertCount]
			left := tile.Verts[v0*3 : v0*3+3]
			right := tile.Verts[v1*3 : v1*3+3]

			const s = float32(1.0 / 255.0)
			if link.Side == 0 || link.Side == 4 {
				lmin := left[2] + (right[2]-left[2])*(float32(link.Bmin)*s)
				lmax := left[2] + (right[2]-left[2])*(float32(link.Bmax)*s)
				if lmin > lmax {
					lmin, lmax = lmax, lmin
				}
				z := startPos[2] + (endPos[2]-startPos[2])*tmax
				if z >= lmin && z <= lmax {
					nextRef = link.Ref
					break
				}
			} else if link.Side == 2 || link.Side == 6 {
				lmin := left[0] + (right[0]-left[0])*(float32(link.Bmin)*s)
				lmax := left[0] + (right[0]-left[0])*(float32(link.Bmax)*s)
				if lmin > lmax {
					lmin, lmax = lmax, lmin
				}
				x := startPos[0] + (endPos[0]-startPos[0])*tmax
				if x >= lmin && x <= lmax {
					nextRef = link.Ref
					break
				}
			}
		}

		if options&RaycastUseCosts != 0 {
			// Move to the exit point, restoring the height from the
			// exit edge since the cast itself is 2D.
			lastPos.Assign(curPos)
			d3.Vec3Mad(curPos, startPos, dir, hit.T)
			e1 := d3.Vec3(verts[segMax*3 : segMax*3+3])
			e2 := d3.Vec3(verts[((segMax+1)%nv)*3 : ((segMax+1)%nv)*3+3])
			eDir := e2.Sub(e1)
			diff := curPos.Sub(e1)
			var s float32
			if math32.Sqr(eDir[0]) > math32.Sqr(eDir[2]) {
				s = diff[0] / eDir[0]
			} else {
				s = diff[2] / eDir[2]
			}
			curPos[1] = e1[1] + eDir[1]*s

			hit.PathCost += filter.Cost(lastPos, curPos,
				prevRef, prevTile, prevPoly,
				curRef, tile, poly,
				nextRef, nextTile, nextPoly)
		}

		if nextRef == 0 {
			// No neighbor across the exit edge: a wall.
			a := segMax
			b := 0
			if segMax+1 < nv {
				b = segMax + 1
			}
			va := verts[a*3 : a*3+3]
			vb := verts[b*3 : b*3+3]
			hit.HitNormal[0] = vb[2] - va[2]
			hit.HitNormal[1] = 0
			hit.HitNormal[2] = -(vb[0] - va[0])
			hit.HitNormal.Normalize()
			return hit, st
		}

		// Advance.
		prevRef, curRef = curRef, nextRef
		prevTile, tile = tile, nextTile
		prevPoly, poly = poly, nextPoly
	}

	return hit, st
}
