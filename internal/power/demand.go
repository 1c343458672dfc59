package power

import (
	"github.com/talgya/gridsim/internal/finance"
)

// stepDemand submits this tick's demand, reads back the served load for
// last tick's request, hands that load out to the bound consumers and
// settles revenue.
func (n *Node) stepDemand(deltaT uint32) {
	d := n.demand
	if d.factory == nil && d.city == nil {
		return
	}
	var factoryDemand uint64
	if d.factory != nil {
		factoryDemand = d.factory.PowerDemand()
	}

	municipal, consumers := municipalDemand(d.city)
	sharedMunicipal := municipal
	if d.city != nil && len(d.city.Substations()) > 1 {
		s := n.grid.fairShare(d.city, municipal)[n]
		sharedMunicipal = s.amount
		if s.capped {
			sharedMunicipal = min(sharedMunicipal, n.Net().Slack())
		}
	}
	if municipal > 0 {
		d.loadProportion = mulDiv(sharedMunicipal, fullScale, municipal)
	} else {
		d.loadProportion = fullScale
	}

	shared := satAdd(factoryDemand, sharedMunicipal)
	net := n.Net()
	net.AddDemand(shared)

	d.powerLoad = servedLoad(d.lastPowerDemand, net.Supply(), net.Demand())
	d.short = d.powerLoad < d.lastPowerDemand
	n.distribute(factoryDemand, sharedMunicipal, municipal, consumers)
	n.settle(deltaT)

	d.lastPowerDemand = shared
	n.powered = d.powerLoad > 0
}

// distribute gives the bound factory first claim on the served load. The
// rest goes to the city's consumers in proportion to their part of the
// municipal demand. A consumer that gets less than its part of this tick's
// claim carries the difference into its next tick; nothing is retried now.
func (n *Node) distribute(factoryDemand, sharedMunicipal, municipal uint64, consumers []Consumer) {
	d := n.demand

	factoryLoad := min(factoryDemand, d.powerLoad)
	if d.factory != nil {
		d.factory.AddPower(factoryLoad)
		if factoryLoad < factoryDemand {
			d.factory.AddPowerDemand(factoryDemand - factoryLoad)
		}
	}

	if municipal == 0 {
		return
	}
	municipalLoad := d.powerLoad - factoryLoad
	for _, c := range consumers {
		want := c.PowerDemand()
		responsible := mulDiv(want, sharedMunicipal, municipal)
		var open uint64
		if r := c.Received(); r < want {
			open = want - r
		}
		got := min(mulDiv(want, municipalLoad, municipal), open)
		c.AddPower(got)
		if got < responsible {
			c.AddPowerDemand(min(responsible-got, open-got))
		}
	}
}

// municipalDemand sums the demand of a city's consuming factories and its
// residents, and lists those consumers in that order.
func municipalDemand(c City) (uint64, []Consumer) {
	if c == nil {
		return 0, nil
	}
	var total uint64
	var consumers []Consumer
	for _, f := range c.Factories() {
		if f.IsPowerProducer() {
			continue
		}
		total = satAdd(total, f.PowerDemand())
		consumers = append(consumers, f)
	}
	total = satAdd(total, c.PowerDemand())
	consumers = append(consumers, c)
	return total, consumers
}

// settle accumulates income for the load served and the theoretical
// maximum for the load requested. Once the maximum passes the rollover
// threshold the income is booked to the line owner and both restart.
func (n *Node) settle(deltaT uint32) {
	d := n.demand
	cfg := n.grid.cfg
	dt := uint64(deltaT)

	d.income = satAdd(d.income, mulDiv(d.powerLoad, dt*cfg.RevenueFactor, cfg.CalibrationDeltaT))
	d.maxIncome = satAdd(d.maxIncome, mulDiv(d.lastPowerDemand, dt, cfg.CalibrationDeltaT))

	if d.maxIncome <= cfg.RolloverThreshold {
		return
	}
	if n.grid.ledger != nil {
		n.grid.ledger.BookRevenue(n.owner, int64(d.income>>cfg.RevenueShift), n.pos.XY(), finance.CategoryPower)
	}
	d.income = 0
	d.maxIncome = 1
}

// RestoreDemandState sets the carried accumulators of a demand node loaded
// from storage.
func (n *Node) RestoreDemandState(lastPowerDemand, powerLoad, income, maxIncome uint64) {
	if n.demand == nil {
		return
	}
	n.demand.lastPowerDemand = lastPowerDemand
	n.demand.powerLoad = powerLoad
	n.demand.income = income
	n.demand.maxIncome = max(maxIncome, 1)
}
