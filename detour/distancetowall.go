package detour

import (
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// FindDistanceToWallResult holds the result of NavMeshQuery.FindDistanceToWall.
type FindDistanceToWallResult struct {
	// Distance is the distance to the nearest wall from the center point.
	Distance float32

	// HitPos is the nearest position on the wall that was hit. [(x, y, z)]
	HitPos d3.Vec3

	// HitNormal is the surface normal at the hit position. [(x, y, z)]
	HitNormal d3.Vec3
}

// wallEdges reports, for each edge of poly, whether any link originates at
// that edge. An edge with no originating link is a wall (not connected to
// any neighbour polygon).
func wallEdges(tile *MeshTile, poly *Poly) [VertsPerPolygon]bool {
	var wall [VertsPerPolygon]bool
	for i := 0; i < int(poly.VertCount); i++ {
		wall[i] = true
	}
	for i := poly.FirstLink; i != nullLink; i = tile.Links[i].Next {
		e := tile.Links[i].Edge
		if int(e) < int(poly.VertCount) {
			wall[e] = false
		}
	}
	return wall
}

// FindDistanceToWall finds the distance from the specified position to the
// nearest polygon wall.
//
// centerRef     The reference id of the polygon containing centerPos.
// centerPos     The center of the search circle. [(x, y, z)]
// maxRadius     The radius of the search circle.
//
// This function is used to calculate the distance from the center to the
// nearest wall of the polygon corridor reachable by flooding the polygon
// graph, bounded by maxRadius. It is a Dijkstra search in disguise: the open
// list is ordered by flood depth (see also NavMeshQuery.FindPolysAround,
// which shares the same flood).
//
// Note: this method may be used by multiple clients without side effects.
func (q *NavMeshQuery) FindDistanceToWall(
	centerRef PolyRef,
	centerPos d3.Vec3,
	maxRadius float32,
	filter QueryFilter) (res FindDistanceToWallResult, st Status) {

	if centerRef == 0 || !q.nav.IsValidPolyRef(centerRef) || filter == nil {
		return res, Failure | InvalidParam
	}

	q.nodePool.Clear()
	q.openList.clear()

	startNode := q.nodePool.Node(centerRef, 0)
	startNode.Pos.Assign(centerPos)
	startNode.PIdx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.ID = centerRef
	startNode.Flags = nodeOpen
	q.openList.push(startNode)

	radiusSqr := maxRadius * maxRadius

	res.HitNormal = d3.NewVec3()
	res.HitPos = d3.NewVec3()

	for !q.openList.empty() {
		bestNode := q.openList.pop()
		bestNode.Flags &= ^nodeOpen
		bestNode.Flags |= nodeClosed

		bestRef := bestNode.ID
		bestTile, bestPoly := q.nav.TileAndPolyByRefUnsafe(bestRef)

		// Hit test the polygon's wall edges.
		wall := wallEdges(bestTile, bestPoly)
		nv := int(bestPoly.VertCount)
		for i, j := 0, nv-1; i < nv; j, i = i, i+1 {
			if !wall[j] {
				continue
			}
			vj := bestTile.Verts[bestPoly.Verts[j]*3 : bestPoly.Verts[j]*3+3]
			vi := bestTile.Verts[bestPoly.Verts[i]*3 : bestPoly.Verts[i]*3+3]

			distSqr, tseg := distPtSeg2D(centerPos, vj, vi)
			if distSqr < radiusSqr {
				radiusSqr = distSqr
				res.HitPos[0] = vj[0] + (vi[0]-vj[0])*tseg
				res.HitPos[1] = vj[1] + (vi[1]-vj[1])*tseg
				res.HitPos[2] = vj[2] + (vi[2]-vj[2])*tseg
			}
		}

		// Expand to neighbours, pruning edges farther than the current radius.
		var parentRef PolyRef
		if bestNode.PIdx != 0 {
			parentRef = q.nodePool.NodeAtIdx(int32(bestNode.PIdx)).ID
		}

		for i := bestPoly.FirstLink; i != nullLink; i = bestTile.Links[i].Next {
			link := &bestTile.Links[i]
			neighbourRef := link.Ref
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			neighbourTile, neighbourPoly := q.nav.TileAndPolyByRefUnsafe(neighbourRef)
			if !filter.PassFilter(neighbourRef, neighbourTile, neighbourPoly) {
				continue
			}

			v0 := bestPoly.Verts[link.Edge]
			v1 := bestPoly.Verts[(link.Edge+1)%bestPoly.VertCount]
			vj := bestTile.Verts[v0*3 : v0*3+3]
			vi := bestTile.Verts[v1*3 : v1*3+3]

			distSqr, _ := distPtSeg2D(centerPos, vj, vi)
			if distSqr > radiusSqr {
				continue
			}

			neighbourNode := q.nodePool.Node(neighbourRef, 0)
			if neighbourNode == nil {
				st |= OutOfNodes
				continue
			}

			cost := bestNode.Cost + 1
			if (neighbourNode.Flags&nodeOpen) != 0 && cost >= neighbourNode.Cost {
				continue
			}
			if (neighbourNode.Flags&nodeClosed) != 0 && cost >= neighbourNode.Cost {
				continue
			}

			neighbourNode.PIdx = q.nodePool.NodeIdx(bestNode)
			neighbourNode.ID = neighbourRef
			neighbourNode.Flags &= ^nodeClosed
			neighbourNode.Cost = cost
			neighbourNode.Total = cost

			if (neighbourNode.Flags & nodeOpen) != 0 {
				q.openList.modify(neighbourNode)
			} else {
				neighbourNode.Flags |= nodeOpen
				q.openList.push(neighbourNode)
			}
		}
	}

	res.HitNormal = centerPos.Sub(res.HitPos)
	res.HitNormal.Normalize()
	res.Distance = math32.Sqrt(radiusSqr)

	return res, Success | st
}

// FoundPoly is one polygon emitted by NavMeshQuery.FindPolysAround.
type FoundPoly struct {
	Ref    PolyRef // Reference id of the visited polygon.
	Parent PolyRef // Reference id of the parent it was reached from. (0 for the center polygon.)
	Cost   float32 // Search cost up to the polygon.
	Depth  uint16  // Search depth (number of polygon hops) up to the polygon.
}

// FindPolysAround finds the polygons along the navigation graph that touch
// the specified circle, expanding from centerRef via a Dijkstra-like flood
// bounded by radius.
//
// The order of the result set is from least to highest cost to reach the
// polygon.
//
// Note: this method may be used by multiple clients without side effects.
func (q *NavMeshQuery) FindPolysAround(
	centerRef PolyRef,
	centerPos d3.Vec3,
	radius float32,
	filter QueryFilter,
	maxResult int) (result []FoundPoly, st Status) {

	if centerRef == 0 || !q.nav.IsValidPolyRef(centerRef) || filter == nil {
		return nil, Failure | InvalidParam
	}

	q.nodePool.Clear()
	q.openList.clear()

	startNode := q.nodePool.Node(centerRef, 0)
	startNode.Pos.Assign(centerPos)
	startNode.PIdx = 0
	startNode.Cost = 0
	startNode.Total = 0
	startNode.ID = centerRef
	startNode.Flags = nodeOpen
	q.openList.push(startNode)

	result = append(result, FoundPoly{Ref: centerRef})

	radiusSqr := radius * radius

	for !q.openList.empty() {
		bestNode := q.openList.pop()
		bestNode.Flags &= ^nodeOpen
		bestNode.Flags |= nodeClosed

		bestRef := bestNode.ID
		bestTile, bestPoly := q.nav.TileAndPolyByRefUnsafe(bestRef)

		var parentRef PolyRef
		if bestNode.PIdx != 0 {
			parentRef = q.nodePool.NodeAtIdx(int32(bestNode.PIdx)).ID
		}

		for i := bestPoly.FirstLink; i != nullLink; i = bestTile.Links[i].Next {
			link := &bestTile.Links[i]
			neighbourRef := link.Ref
			if neighbourRef == 0 || neighbourRef == parentRef {
				continue
			}

			neighbourTile, neighbourPoly := q.nav.TileAndPolyByRefUnsafe(neighbourRef)
			if !filter.PassFilter(neighbourRef, neighbourTile, neighbourPoly) {
				continue
			}

			v0 := bestPoly.Verts[link.Edge]
			v1 := bestPoly.Verts[(link.Edge+1)%bestPoly.VertCount]
			vj := bestTile.Verts[v0*3 : v0*3+3]
			vi := bestTile.Verts[v1*3 : v1*3+3]

			distSqr, _ := distPtSeg2D(centerPos, vj, vi)
			if distSqr > radiusSqr {
				continue
			}

			neighbourNode := q.nodePool.Node(neighbourRef, 0)
			if neighbourNode == nil {
				st |= OutOfNodes
				continue
			}

			cost := bestNode.Cost + 1
			if (neighbourNode.Flags&nodeOpen) != 0 && cost >= neighbourNode.Cost {
				continue
			}
			if (neighbourNode.Flags&nodeClosed) != 0 && cost >= neighbourNode.Cost {
				continue
			}

			wasUnvisited := neighbourNode.Flags&(nodeOpen|nodeClosed) == 0

			neighbourNode.PIdx = q.nodePool.NodeIdx(bestNode)
			neighbourNode.ID = neighbourRef
			neighbourNode.Flags &= ^nodeClosed
			neighbourNode.Cost = cost
			neighbourNode.Total = cost

			if (neighbourNode.Flags & nodeOpen) != 0 {
				q.openList.modify(neighbourNode)
			} else {
				neighbourNode.Flags |= nodeOpen
				q.openList.push(neighbourNode)
				if wasUnvisited && len(result) < maxResult {
					result = append(result, FoundPoly{
						Ref:    neighbourRef,
						Parent: bestRef,
						Cost:   neighbourNode.Total,
						Depth:  uint16(neighbourNode.Cost),
					})
				}
			}
		}
	}

	if len(result) >= maxResult {
		st |= BufferTooSmall
	}

	return result, Success | st
}
