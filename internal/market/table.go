package market

// Node is one phase of the table-mode decision tree. The root holds the buy
// price; the node at depth d+1 holds the bound of phase d. Trajectories that
// share a prefix of bounds share the nodes for it. Nodes at depth Phases
// carry the combinations that end there.
type Node struct {
	Bound    Bound   `json:"bound" msgpack:"b"`
	Children []*Node `json:"children,omitempty" msgpack:"c,omitempty"`
	Leaves   []Leaf  `json:"leaves,omitempty" msgpack:"v,omitempty"`
}

// Leaf names a combination and its final guarantee.
type Leaf struct {
	ID        string    `json:"id" msgpack:"i"`
	Guarantee Guarantee `json:"guarantee" msgpack:"g"`
}

// Table is the table-mode result for one buy price, indexed by Pattern.
type Table struct {
	Buy   int                 `json:"buy_price"`
	Trees [PatternCount]*Node `json:"trees"`
}

// BuildTable enumerates every combination of every pattern for buy.
func BuildTable(buy int) Table {
	t := Table{Buy: buy}
	for _, p := range Patterns {
		t.Trees[p] = BuildPatternTable(p, buy)
	}
	return t
}

// BuildPatternTable enumerates every combination of p for buy.
func BuildPatternTable(p Pattern, buy int) *Node {
	root := &Node{Bound: Bound{Lower: buy, Upper: buy}}
	for _, o := range Run(VariantFor(p), buy, ModeTable, Observed{}).Outcomes {
		root.insert(o)
	}
	return root
}

// Combinations returns the total number of combinations in t.
func (t Table) Combinations() int {
	n := 0
	for _, tree := range t.Trees {
		n += tree.Combinations()
	}
	return n
}

func (n *Node) insert(o Outcome) {
	cur := n
	for _, b := range o.Trajectory {
		cur = cur.child(b)
	}
	cur.Leaves = append(cur.Leaves, Leaf{ID: o.ID, Guarantee: o.Guarantee})
}

func (n *Node) child(b Bound) *Node {
	for _, c := range n.Children {
		if c.Bound == b {
			return c
		}
	}
	c := &Node{Bound: b}
	n.Children = append(n.Children, c)
	return c
}

// Combinations counts the leaves below n.
func (n *Node) Combinations() int {
	if n == nil {
		return 0
	}
	total := len(n.Leaves)
	for _, c := range n.Children {
		total += c.Combinations()
	}
	return total
}

// Level returns the distinct bounds reachable at phase, in insertion order.
func (n *Node) Level(phase int) []Bound {
	if n == nil || phase < 0 || phase >= Phases {
		return nil
	}
	var out []Bound
	seen := make(map[Bound]bool)
	n.walkLevel(phase+1, func(b Bound) {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	})
	return out
}

func (n *Node) walkLevel(depth int, fn func(Bound)) {
	if depth == 0 {
		fn(n.Bound)
		return
	}
	for _, c := range n.Children {
		c.walkLevel(depth-1, fn)
	}
}

// Match keeps the combinations whose table bounds admit every observed price.
// The answer has the same shape as a live prediction, without re-running the
// search.
func (n *Node) Match(observed Observed) PatternPrediction {
	pp := PatternPrediction{Possible: make(map[string]Guarantee)}
	if n == nil {
		return pp
	}
	var path Trajectory
	var visit func(node *Node, phase int)
	visit = func(node *Node, phase int) {
		if phase == Phases {
			for _, l := range node.Leaves {
				pp.Possible[l.ID] = l.Guarantee
				pp.Forecast.Include(path, l.Guarantee)
			}
			return
		}
		for _, c := range node.Children {
			if p := observed[phase]; p != 0 && !c.Bound.Contains(p) {
				pp.Pruned += c.Combinations()
				continue
			}
			path[phase] = c.Bound
			visit(c, phase+1)
		}
	}
	visit(n, 0)
	return pp
}

// MatchTable matches observed against every pattern of t.
func MatchTable(t Table, observed Observed) Prediction {
	pred := Prediction{Buy: t.Buy, Observed: observed}
	for _, p := range Patterns {
		pp := t.Trees[p].Match(observed)
		pp.Pattern = p
		pred.Patterns[p] = pp
	}
	return pred
}
