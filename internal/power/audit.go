package power

import (
	"errors"
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

// Audit checks the topology invariants of the grid: every node is indexed
// at its own position, holds a live network, links symmetrically to
// neighbours on the same network, network member counts match, and no
// network spans two components. It returns nil when the grid is consistent.
func (g *Grid) Audit() error {
	var errs []error
	counts := make(map[NetID]int, len(g.nets))

	for pos, n := range g.nodes {
		if n.pos != pos {
			errs = append(errs, fmt.Errorf("node %s indexed at %s", n.pos, pos))
		}
		if n.net == 0 || g.nets[n.net] == nil {
			errs = append(errs, fmt.Errorf("node %s holds dangling net %d", n.pos, n.net))
		}
		counts[n.net]++
		for i, nb := range n.links {
			if nb == nil {
				continue
			}
			if nb.links[opposite(i)] != n {
				errs = append(errs, fmt.Errorf("link %s -> %s is one-sided", n.pos, nb.pos))
			}
			if nb.net != n.net {
				errs = append(errs, fmt.Errorf("neighbours %s and %s on nets %d and %d", n.pos, nb.pos, n.net, nb.net))
			}
		}
	}

	for id := range g.nets {
		if counts[id] != g.members[id] {
			errs = append(errs, fmt.Errorf("net %d counts %d members, has %d", id, g.members[id], counts[id]))
		}
		if counts[id] == 0 {
			errs = append(errs, fmt.Errorf("net %d has no members", id))
		}
	}

	// Each component walked from an unvisited node must find a net no
	// earlier component used.
	seen := mapset.New[*Node]()
	claimed := mapset.New[NetID]()
	for _, n := range g.sortedNodes() {
		if seen.Has(n) {
			continue
		}
		if claimed.Has(n.net) {
			errs = append(errs, fmt.Errorf("net %d spans disconnected components", n.net))
		}
		claimed.Put(n.net)
		queue := []*Node{n}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			if seen.Has(current) {
				continue
			}
			seen.Put(current)
			for _, nb := range current.links {
				if nb != nil && !seen.Has(nb) {
					queue = append(queue, nb)
				}
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvariant, errors.Join(errs...))
}
