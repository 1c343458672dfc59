package finance

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"

	"github.com/talgya/gridsim/internal/world"
)

func TestBookRevenueCreatesAccount(t *testing.T) {
	l := NewLedger()
	l.BookRevenue(3, 250, world.Koord{X: 1, Y: 2}, CategoryPower)
	l.BookRevenue(3, 50, world.Koord{X: 1, Y: 2}, CategoryPower)

	p, ok := l.Player(3)
	assert.Assert(t, ok)
	assert.Equal(t, p.Balance, Money(300))
	assert.Equal(t, p.Revenue[CategoryPower], Money(300))
	assert.Equal(t, l.Total(CategoryPower), Money(300))
}

func TestPlayersOrderedAndCopied(t *testing.T) {
	l := NewLedger()
	l.AddPlayer(Player{Number: 2, Name: "B"})
	l.AddPlayer(Player{Number: world.PublicPlayer, Name: "Public"})

	players := l.Players()
	names := []string{players[0].Name, players[1].Name}
	if diff := cmp.Diff([]string{"Public", "B"}, names); diff != "" {
		t.Fatalf("player order (-want +got):\n%s", diff)
	}

	players[0].Revenue[CategoryPower] = 99
	p, _ := l.Player(world.PublicPlayer)
	assert.Equal(t, p.Revenue[CategoryPower], Money(0))
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, Money(12345).String(), "123.45")
	assert.Equal(t, Money(-5).String(), "-0.05")
	assert.Equal(t, Category(9).String(), "category(9)")
}
