package detour

import "testing"

func TestNodeQueuePopsInTotalCostOrder(t *testing.T) {
	q := newnodeQueue(8)

	totals := []float32{5, 1, 4, 2, 3}
	nodes := make([]*Node, len(totals))
	for i, total := range totals {
		n := Node{}
		n.Total = total
		n.ID = PolyRef(i + 1)
		nodes[i] = &n
		q.push(&n)
	}

	var got []float32
	for !q.empty() {
		got = append(got, q.pop().Total)
	}

	want := []float32{1, 2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", got, want)
		}
	}
}

func TestNodeQueueTopDoesNotRemove(t *testing.T) {
	q := newnodeQueue(4)
	n := Node{}
	n.Total = 3
	q.push(&n)

	if q.top().Total != 3 {
		t.Fatalf("top().Total = %v, want 3", q.top().Total)
	}
	if q.empty() {
		t.Fatal("queue should not be empty after top()")
	}
}

func TestNodeQueueModifyReordersOnDecreaseKey(t *testing.T) {
	q := newnodeQueue(8)

	a, b, c := Node{}, Node{}, Node{}
	a.Total, b.Total, c.Total = 10, 20, 30
	q.push(&a)
	q.push(&b)
	q.push(&c)

	// Lower c's cost below a's and re-heapify; c should now pop first.
	c.Total = 1
	q.modify(&c)

	if q.pop() != &c {
		t.Fatal("expected the modified node with the lowest total to pop first")
	}
}

func TestNodeQueueClearEmptiesHeap(t *testing.T) {
	q := newnodeQueue(4)
	n := Node{}
	q.push(&n)
	q.clear()
	if !q.empty() {
		t.Fatal("queue should be empty after clear()")
	}
}
