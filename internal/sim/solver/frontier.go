package solver

import (
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
)

type node struct {
	st state.GlobalState
	r  rng.RNG

	cost         int64
	ticks        int64
	h            float64
	interactions int
	deaths       float64
	seq          int

	// switched is set when a switch was applied since the last wait; a second switch
	// would only overwrite the first.
	switched bool

	parent *node
	step   plan.Step
	index  int
}

func (n *node) f() float64 { return float64(n.cost) + n.h }

// frontier is a min-heap on f, then fewer interactions, then insertion order.
type frontier []*node

func (q frontier) Len() int { return len(q) }

func (q frontier) Less(i, j int) bool {
	fi, fj := q[i].f(), q[j].f()
	if fi != fj {
		return fi < fj
	}
	if q[i].interactions != q[j].interactions {
		return q[i].interactions < q[j].interactions
	}
	return q[i].seq < q[j].seq
}

func (q frontier) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *frontier) Push(x any) {
	n := x.(*node)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *frontier) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	n.index = -1
	return n
}
