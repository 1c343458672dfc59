package power

// share is one substation's claim on its city's municipal demand this tick.
type share struct {
	amount uint64
	capped bool // network slack was below an equal share; claim the slack
}

type allocation map[*Node]share

// fairShare splits municipal demand among the city's substations. It is
// computed on the first substation of the city to step in a tick and reused
// by the others, so the claims submitted in one tick never add up to more
// than the municipal demand. Later substations therefore see network slack
// as it was when the first substation of their city stepped, not as earlier
// demand nodes in the pass have since left it.
//
// Pass one walks the substations in registration order and caps every node
// whose network slack is below an equal part of what is left, taking its
// slack out of the pool. Pass two splits the remainder equally among the
// others, except that a node whose last served load fell short of the
// request it answered is held to that load. This is greedy and order
// dependent, not max-min fair.
func (g *Grid) fairShare(c City, municipal uint64) allocation {
	if a, ok := g.shares[c]; ok {
		return a
	}
	subs := c.Substations()
	a := make(allocation, len(subs))

	remaining := municipal
	left := uint64(len(subs))
	for _, s := range subs {
		equal := remaining / left
		var slack uint64
		if net := s.Net(); net != nil {
			slack = net.Slack()
		}
		if slack < equal {
			a[s] = share{amount: slack, capped: true}
			remaining -= slack
			left--
		}
	}

	for _, s := range subs {
		if _, capped := a[s]; capped {
			continue
		}
		equal := remaining / left
		amount := equal
		if d := s.demand; d.short && d.powerLoad < equal {
			amount = d.powerLoad
		}
		a[s] = share{amount: amount}
		remaining -= amount
		left--
	}

	g.shares[c] = a
	return a
}
