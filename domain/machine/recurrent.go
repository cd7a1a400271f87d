package machine

// RecurrentClasses partitions the machine's states into strongly connected
// components and returns the closed ones: components with no transition
// leaving them. States outside every closed class are transient
// synchronization states. A machine with exactly one closed class has a
// unique stationary distribution supported on it.
func (m *Machine) RecurrentClasses() [][]StateID {
	n := len(m.States)
	adj := make([][]int, n)
	for i, st := range m.States {
		seen := make(map[int]bool)
		for _, next := range st.Next {
			if !seen[int(next)] {
				seen[int(next)] = true
				adj[i] = append(adj[i], int(next))
			}
		}
	}

	comps := stronglyConnected(adj)

	compOf := make([]int, n)
	for ci, comp := range comps {
		for _, v := range comp {
			compOf[v] = ci
		}
	}

	var closed [][]StateID
	for ci, comp := range comps {
		isClosed := true
		for _, v := range comp {
			// A dead-end state (no transitions at all) is not recurrent.
			if len(adj[v]) == 0 {
				isClosed = false
				break
			}
			for _, w := range adj[v] {
				if compOf[w] != ci {
					isClosed = false
					break
				}
			}
			if !isClosed {
				break
			}
		}
		if isClosed {
			ids := make([]StateID, 0, len(comp))
			for _, v := range comp {
				ids = append(ids, StateID(v))
			}
			closed = append(closed, ids)
		}
	}
	return closed
}

// RecurrentStates returns the states of all closed classes, in ID order.
func (m *Machine) RecurrentStates() []StateID {
	var ids []StateID
	for _, class := range m.RecurrentClasses() {
		ids = append(ids, class...)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}

// stronglyConnected is Tarjan's algorithm, iterative to keep deep transient
// chains off the call stack. Components come out in reverse topological
// order; members are in visitation order.
func stronglyConnected(adj [][]int) [][]int {
	n := len(adj)
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var comps [][]int
	var stack []int
	counter := 0

	type frame struct {
		v, edge int
	}

	for root := 0; root < n; root++ {
		if index[root] != -1 {
			continue
		}
		work := []frame{{v: root}}
		for len(work) > 0 {
			f := &work[len(work)-1]
			v := f.v
			if f.edge == 0 {
				index[v] = counter
				lowlink[v] = counter
				counter++
				stack = append(stack, v)
				onStack[v] = true
			}
			advanced := false
			for f.edge < len(adj[v]) {
				w := adj[v][f.edge]
				f.edge++
				if index[w] == -1 {
					work = append(work, frame{v: w})
					advanced = true
					break
				}
				if onStack[w] && index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
			if advanced {
				continue
			}
			if lowlink[v] == index[v] {
				var comp []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				comps = append(comps, comp)
			}
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].v
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}
		}
	}
	return comps
}
