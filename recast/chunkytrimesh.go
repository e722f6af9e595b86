package recast

import (
	"sort"

	"github.com/arl/math32"
)

// ChunkyTriMeshNode is one node of a chunky triangle mesh: an xz AABB
// plus either a triangle run (leaf, I >= 0: Tris[I*3 : (I+N)*3]) or a
// negated escape offset (internal node).
type ChunkyTriMeshNode struct {
	BMin [2]float32
	BMax [2]float32
	I, N int32
}

// ChunkyTriMesh spatially partitions a triangle soup into chunks of at
// most trisPerChunk triangles, laid out as a linearized AABB tree over
// the xz plane. Rasterization queries it per grid rectangle so only
// nearby triangles are clipped.
type ChunkyTriMesh struct {
	Nodes           []ChunkyTriMeshNode
	Tris            []int32 // Triangle indices, grouped by leaf.
	Ntris           int32
	MaxTrisPerChunk int32
}

type chunkItem struct {
	bmin [2]float32
	bmax [2]float32
	i    int32
}

func chunkItemExtents(items []chunkItem, imin, imax int32, bmin, bmax []float32) {
	bmin[0] = items[imin].bmin[0]
	bmin[1] = items[imin].bmin[1]
	bmax[0] = items[imin].bmax[0]
	bmax[1] = items[imin].bmax[1]

	for i := imin + 1; i < imax; i++ {
		it := &items[i]
		if it.bmin[0] < bmin[0] {
			bmin[0] = it.bmin[0]
		}
		if it.bmin[1] < bmin[1] {
			bmin[1] = it.bmin[1]
		}
		if it.bmax[0] > bmax[0] {
			bmax[0] = it.bmax[0]
		}
		if it.bmax[1] > bmax[1] {
			bmax[1] = it.bmax[1]
		}
	}
}

// subdivideChunks emits nodes for items[imin:imax] in DFS order,
// splitting at the median of the longer axis, and returns the next
// free node index. curTri tracks the output triangle cursor.
func subdivideChunks(items []chunkItem, imin, imax, trisPerChunk, curNode int32,
	nodes []ChunkyTriMeshNode, curTri *int32, outTris, inTris []int32) int32 {

	inum := imax - imin
	icur := curNode

	if int(curNode) >= len(nodes) {
		return curNode
	}
	node := &nodes[curNode]
	curNode++

	chunkItemExtents(items, imin, imax, node.BMin[:], node.BMax[:])

	if inum <= trisPerChunk {
		// Leaf: pack the triangles contiguously.
		node.I = *curTri
		node.N = inum
		for i := imin; i < imax; i++ {
			src := inTris[items[i].i*3:]
			copy(outTris[(*curTri)*3:(*curTri)*3+3], src[:3])
			(*curTri)++
		}
		return curNode
	}

	axis := 0
	if node.BMax[1]-node.BMin[1] > node.BMax[0]-node.BMin[0] {
		axis = 1
	}
	seg := items[imin:imax]
	sort.SliceStable(seg, func(i, j int) bool {
		return seg[i].bmin[axis] < seg[j].bmin[axis]
	})

	isplit := imin + inum/2
	curNode = subdivideChunks(items, imin, isplit, trisPerChunk, curNode, nodes, curTri, outTris, inTris)
	curNode = subdivideChunks(items, isplit, imax, trisPerChunk, curNode, nodes, curTri, outTris, inTris)

	node.I = -(curNode - icur)
	return curNode
}

// NewChunkyTriMesh partitions the indexed triangle soup into an AABB
// tree of chunks holding at most trisPerChunk triangles each.
func NewChunkyTriMesh(verts []float32, tris []int32, ntris, trisPerChunk int32) (*ChunkyTriMesh, bool) {
	nchunks := (ntris + trisPerChunk - 1) / trisPerChunk

	cm := &ChunkyTriMesh{
		Nodes: make([]ChunkyTriMeshNode, nchunks*4),
		Tris:  make([]int32, ntris*3),
		Ntris: ntris,
	}

	items := make([]chunkItem, ntris)
	for i := int32(0); i < ntris; i++ {
		t := tris[i*3 : i*3+3]
		it := &items[i]
		it.i = i
		// xz bounds of the triangle.
		it.bmin[0] = verts[t[0]*3+0]
		it.bmax[0] = it.bmin[0]
		it.bmin[1] = verts[t[0]*3+2]
		it.bmax[1] = it.bmin[1]
		for j := 1; j < 3; j++ {
			v := verts[t[j]*3 : t[j]*3+3]
			if v[0] < it.bmin[0] {
				it.bmin[0] = v[0]
			}
			if v[2] < it.bmin[1] {
				it.bmin[1] = v[2]
			}
			if v[0] > it.bmax[0] {
				it.bmax[0] = v[0]
			}
			if v[2] > it.bmax[1] {
				it.bmax[1] = v[2]
			}
		}
	}

	var curTri int32
	nnodes := subdivideChunks(items, 0, ntris, trisPerChunk, 0, cm.Nodes, &curTri, cm.Tris, tris)
	cm.Nodes = cm.Nodes[:nnodes]

	for i := range cm.Nodes {
		node := &cm.Nodes[i]
		if node.I >= 0 && node.N > cm.MaxTrisPerChunk {
			cm.MaxTrisPerChunk = node.N
		}
	}
	return cm, true
}

func overlapRect2D(amin, amax, bmin, bmax [2]float32) bool {
	return amin[0] <= bmax[0] && amax[0] >= bmin[0] &&
		amin[1] <= bmax[1] && amax[1] >= bmin[1]
}

// ChunksOverlappingRect writes into ids the indices of the leaf chunks
// whose bounds overlap the xz rectangle [bmin, bmax] and returns how
// many were written.
func (cm *ChunkyTriMesh) ChunksOverlappingRect(bmin, bmax [2]float32, ids []int32) int {
	var n int
	for i := int32(0); i < int32(len(cm.Nodes)); {
		node := &cm.Nodes[i]
		overlap := overlapRect2D(bmin, bmax, node.BMin, node.BMax)
		isLeaf := node.I >= 0

		if isLeaf && overlap && n < len(ids) {
			ids[n] = i
			n++
		}

		if overlap || isLeaf {
			i++
		} else {
			i += -node.I
		}
	}
	return n
}

func overlapSegmentRect2D(p, q, bmin, bmax [2]float32) bool {
	const eps float32 = 1e-6
	tmin, tmax := float32(0), float32(1)
	d := [2]float32{q[0] - p[0], q[1] - p[1]}

	for i := 0; i < 2; i++ {
		if math32.Abs(d[i]) < eps {
			// Parallel to this slab: hit only if inside it.
			if p[i] < bmin[i] || p[i] > bmax[i] {
				return false
			}
			continue
		}
		ood := 1.0 / d[i]
		t1 := (bmin[i] - p[i]) * ood
		t2 := (bmax[i] - p[i]) * ood
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return false
		}
	}
	return true
}

// ChunksOverlappingSegment writes into ids the indices of the leaf
// chunks whose bounds the xz segment p-q crosses and returns how many
// were written.
func (cm *ChunkyTriMesh) ChunksOverlappingSegment(p, q [2]float32, ids []int32) int {
	var n int
	for i := int32(0); i < int32(len(cm.Nodes)); {
		node := &cm.Nodes[i]
		overlap := overlapSegmentRect2D(p, q, node.BMin, node.BMax)
		isLeaf := node.I >= 0

		if isLeaf && overlap && n < len(ids) {
			ids[n] = i
			n++
		}

		if overlap || isLeaf {
			i++
		} else {
			i += -node.I
		}
	}
	return n
}
