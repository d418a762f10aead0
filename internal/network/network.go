package network

import (
	"fmt"
	"sort"
)

// Network is a directed gene-regulatory topology: for each transcription
// factor, the set of nodes it influences. Node ids are assigned by sorted
// name so that the same topology always produces the same encoding.
type Network struct {
	names     []string
	ids       map[string]int
	regulates map[string]map[string]bool
}

// New builds a Network from an edge list of (source, target) pairs.
// The node set is the union of all sources and targets.
func New(edges [][2]string) *Network {
	nameSet := make(map[string]bool)
	regulates := make(map[string]map[string]bool)
	for _, e := range edges {
		src, dst := e[0], e[1]
		nameSet[src] = true
		nameSet[dst] = true
		if regulates[src] == nil {
			regulates[src] = make(map[string]bool)
		}
		regulates[src][dst] = true
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make(map[string]int, len(names))
	for i, name := range names {
		ids[name] = i
	}

	return &Network{
		names:     names,
		ids:       ids,
		regulates: regulates,
	}
}

// Size returns the number of nodes n.
func (n *Network) Size() int { return len(n.names) }

// Names returns the sorted node names. The returned slice is shared;
// callers must not modify it.
func (n *Network) Names() []string { return n.names }

// ID returns the id of a node name.
func (n *Network) ID(name string) (int, bool) {
	id, ok := n.ids[name]
	return id, ok
}

// Reactions inverts the topology: for each node id, the sorted ids of its
// regulators. A node with no regulators is corrected to be regulated by
// every node, itself included, so its dynamics stay identifiable.
func (n *Network) Reactions() [][]int {
	size := n.Size()
	regulators := make([]map[int]bool, size)
	for i := range regulators {
		regulators[i] = make(map[int]bool)
	}
	for src, targets := range n.regulates {
		srcID := n.ids[src]
		for dst := range targets {
			regulators[n.ids[dst]][srcID] = true
		}
	}

	reactions := make([][]int, size)
	for i, set := range regulators {
		if len(set) == 0 {
			all := make([]int, size)
			for j := range all {
				all[j] = j
			}
			reactions[i] = all
			continue
		}
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		reactions[i] = ids
	}
	return reactions
}

// ReactionCount returns the number of allowed reactions m, after the
// lone-node correction.
func (n *Network) ReactionCount() int {
	count := 0
	for _, regs := range n.Reactions() {
		count += len(regs)
	}
	return count
}

// Mask flattens the reactions into an n*n row-major boolean mask: entry
// (i, j) is set when node j regulates node i.
func (n *Network) Mask() []bool {
	size := n.Size()
	mask := make([]bool, size*size)
	for i, regs := range n.Reactions() {
		for _, j := range regs {
			mask[i*size+j] = true
		}
	}
	return mask
}

// ReactionNames maps a reaction index (position in the mask's active-entry
// order) back to a "regulator -> regulated" label. Useful for reporting
// fitted strengths.
func (n *Network) ReactionNames() []string {
	size := n.Size()
	labels := make([]string, 0, n.ReactionCount())
	mask := n.Mask()
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if mask[i*size+j] {
				labels = append(labels, fmt.Sprintf("%s->%s", n.names[j], n.names[i]))
			}
		}
	}
	return labels
}

func (n *Network) String() string {
	return fmt.Sprintf("network with %d nodes and %d reactions", n.Size(), n.ReactionCount())
}
