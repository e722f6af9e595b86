package detour

import (
	"github.com/arl/assertgo"
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// hashRef mixes a polygon reference into a bucket hash.
func hashRef(a PolyRef) uint32 {
	a += ^(a << 15)
	a ^= (a >> 10)
	a += (a << 3)
	a ^= (a >> 6)
	a += ^(a << 11)
	a ^= (a >> 16)
	return uint32(a)
}

// NodeFlags describe the search state of a node.
type NodeFlags uint8

const (
	nodeOpen NodeFlags = 1 << iota
	nodeClosed
)

// NodeIndex is the index of a node inside the pool.
type NodeIndex uint16

const nullIdx = ^NodeIndex(0)

// Node is one entry of the open/closed set of a graph search.
type Node struct {
	Pos   d3.Vec3 // Position the search entered the polygon at.
	Cost  float32 // Accumulated cost from the search start to this node.
	Total float32 // Cost from the start plus heuristic to the goal.
	PIdx  uint32  // Pool index of the parent node, 0 for none.
	State uint8   // Extra state; a ref may have one node per state.
	Flags NodeFlags
	ID    PolyRef // Polygon this node stands for.

	idx NodeIndex // Own slot in the pool.
}

// NodePool hands out search nodes keyed by (ref, state). A given key
// always resolves to the same slot for the lifetime of a search, so a
// search may hold on to node pointers across allocations.
type NodePool struct {
	nodes       []Node
	first, next []NodeIndex
	maxNodes    int32
	hashSize    int32
	nodeCount   int32
}

func newNodePool(maxNodes, hashSize int32) *NodePool {
	assert.True(math32.NextPow2(uint32(hashSize)) == uint32(hashSize),
		"hashSize must be a power of 2")
	// PIdx 0 means "no parent", so slot 0 is addressed as 1 and the
	// pool holds one node fewer than the index type could express.
	assert.True(maxNodes > 0 && maxNodes <= int32(nullIdx),
		"invalid node pool capacity")

	np := &NodePool{
		maxNodes: maxNodes,
		hashSize: hashSize,
		nodes:    make([]Node, maxNodes),
		next:     make([]NodeIndex, maxNodes),
		first:    make([]NodeIndex, hashSize),
	}
	for i := range np.nodes {
		np.nodes[i].Pos = d3.NewVec3()
		np.nodes[i].idx = NodeIndex(i)
	}
	for i := range np.next {
		np.next[i] = nullIdx
	}
	for i := range np.first {
		np.first[i] = nullIdx
	}
	return np
}

// Clear forgets every allocated node. Node memory is reused by the
// next search.
func (np *NodePool) Clear() {
	for i := range np.first {
		np.first[i] = nullIdx
	}
	np.nodeCount = 0
}

// Node returns the node for (id, state), allocating it on first use.
// Returns nil once the pool is exhausted, which callers treat as a
// clean end of search.
func (np *NodePool) Node(id PolyRef, state uint8) *Node {
	bucket := hashRef(id) & uint32(np.hashSize-1)

	for i := np.first[bucket]; i != nullIdx; i = np.next[i] {
		if np.nodes[i].ID == id && np.nodes[i].State == state {
			return &np.nodes[i]
		}
	}

	if np.nodeCount >= np.maxNodes {
		return nil
	}

	i := NodeIndex(np.nodeCount)
	np.nodeCount++

	node := &np.nodes[i]
	node.PIdx = 0
	node.Cost = 0
	node.Total = 0
	node.ID = id
	node.State = state
	node.Flags = 0

	np.next[i] = np.first[bucket]
	np.first[bucket] = i
	return node
}

// FindNode returns the node for (id, state) or nil if it was never
// allocated.
func (np *NodePool) FindNode(id PolyRef, state uint8) *Node {
	bucket := hashRef(id) & uint32(np.hashSize-1)
	for i := np.first[bucket]; i != nullIdx; i = np.next[i] {
		if np.nodes[i].ID == id && np.nodes[i].State == state {
			return &np.nodes[i]
		}
	}
	return nil
}

// NodeIdx returns the 1-based pool index of node, 0 for nil. The
// result is what a child stores in PIdx.
func (np *NodePool) NodeIdx(node *Node) uint32 {
	if node == nil {
		return 0
	}
	return uint32(node.idx) + 1
}

// NodeAtIdx resolves a 1-based pool index, nil for 0.
func (np *NodePool) NodeAtIdx(idx int32) *Node {
	if idx == 0 {
		return nil
	}
	return &np.nodes[idx-1]
}

// MaxNodes returns the pool capacity.
func (np *NodePool) MaxNodes() int32 {
	return np.maxNodes
}

// NodeCount returns the number of nodes allocated since the last
// Clear.
func (np *NodePool) NodeCount() int32 {
	return np.nodeCount
}
