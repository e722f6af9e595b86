package detour

import (
	"github.com/arl/assertgo"
)

// nodeQueue is the open list of a graph search: an implicit binary
// min-heap of node pointers ordered by Total. Only push, pop and
// modify (decrease-key) are needed.
type nodeQueue struct {
	heap     []*Node
	capacity int32
	size     int32
}

func newnodeQueue(n int32) *nodeQueue {
	assert.True(n > 0, "nodeQueue capacity must be > 0")
	return &nodeQueue{
		capacity: n,
		heap:     make([]*Node, n+1),
	}
}

func (q *nodeQueue) bubbleUp(i int32, node *Node) {
	parent := (i - 1) / 2
	for i > 0 && q.heap[parent].Total > node.Total {
		q.heap[i] = q.heap[parent]
		i = parent
		parent = (i - 1) / 2
	}
	q.heap[i] = node
}

func (q *nodeQueue) trickleDown(i int32, node *Node) {
	child := i*2 + 1
	for child < q.size {
		if child+1 < q.size && q.heap[child].Total > q.heap[child+1].Total {
			child++
		}
		q.heap[i] = q.heap[child]
		i = child
		child = i*2 + 1
	}
	q.bubbleUp(i, node)
}

func (q *nodeQueue) clear() {
	q.size = 0
}

func (q *nodeQueue) top() *Node {
	return q.heap[0]
}

func (q *nodeQueue) pop() *Node {
	result := q.heap[0]
	q.size--
	q.trickleDown(0, q.heap[q.size])
	return result
}

func (q *nodeQueue) push(node *Node) {
	q.size++
	q.bubbleUp(q.size-1, node)
}

// modify re-floats a node whose Total decreased while on the queue.
func (q *nodeQueue) modify(node *Node) {
	for i := int32(0); i < q.size; i++ {
		if q.heap[i] == node {
			q.bubbleUp(i, node)
			return
		}
	}
}

func (q *nodeQueue) empty() bool {
	return q.size == 0
}
