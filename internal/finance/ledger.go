// Package finance keeps player accounts and books revenue into them.
package finance

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/talgya/gridsim/internal/world"
)

// Category classifies a ledger entry.
type Category uint8

const (
	CategoryPower Category = iota // Electricity sold to consumers
	CategoryConstruction
	CategoryMaintenance
)

func (c Category) String() string {
	switch c {
	case CategoryPower:
		return "power"
	case CategoryConstruction:
		return "construction"
	case CategoryMaintenance:
		return "maintenance"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Money is an amount in cents.
type Money int64

// Decimal converts cents to currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Player is one company account.
type Player struct {
	ID      uuid.UUID                `json:"id" db:"id"`
	Number  world.PlayerID           `json:"number" db:"number"`
	Name    string                   `json:"name" db:"name"`
	Balance Money                    `json:"balance" db:"balance"`
	Revenue map[Category]Money       `json:"revenue" db:"-"`
	Last    map[Category]world.Koord `json:"-" db:"-"` // where each category last earned
}

// Ledger holds every player account. The simulation goroutine books into it
// while API readers take copies, so access is guarded.
type Ledger struct {
	mu      sync.Mutex
	players map[world.PlayerID]*Player
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{players: make(map[world.PlayerID]*Player)}
}

// AddPlayer registers an account, replacing any with the same number.
func (l *Ledger) AddPlayer(p Player) *Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Revenue == nil {
		p.Revenue = make(map[Category]Money)
	}
	p.Last = make(map[Category]world.Koord)
	l.players[p.Number] = &p
	return &p
}

// BookRevenue credits amount cents to the owner's account. Unknown owners get
// an account on first booking.
func (l *Ledger) BookRevenue(owner world.PlayerID, amount int64, pos world.Koord, category Category) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.players[owner]
	if !ok {
		p = &Player{
			ID:      uuid.New(),
			Number:  owner,
			Name:    fmt.Sprintf("Player %d", owner),
			Revenue: make(map[Category]Money),
			Last:    make(map[Category]world.Koord),
		}
		l.players[owner] = p
	}
	p.Balance += Money(amount)
	p.Revenue[category] += Money(amount)
	p.Last[category] = pos

	slog.Debug("revenue booked",
		"player", owner,
		"amount", Money(amount).String(),
		"category", category.String(),
		"pos", pos.String(),
	)
}

// Player returns a copy of one account.
func (l *Ledger) Player(owner world.PlayerID) (Player, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.players[owner]
	if !ok {
		return Player{}, false
	}
	return p.copy(), true
}

// Players returns copies of all accounts ordered by number.
func (l *Ledger) Players() []Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Player, 0, len(l.players))
	for _, p := range l.players {
		out = append(out, p.copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Total returns the sum of every player's revenue in one category.
func (l *Ledger) Total(category Category) Money {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum Money
	for _, p := range l.players {
		sum += p.Revenue[category]
	}
	return sum
}

func (p *Player) copy() Player {
	c := *p
	c.Revenue = make(map[Category]Money, len(p.Revenue))
	for k, v := range p.Revenue {
		c.Revenue[k] = v
	}
	c.Last = nil
	return c
}
