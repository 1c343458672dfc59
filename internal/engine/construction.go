package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/world"
)

// Build places a node of kind at pos for owner.
func (s *Simulation) Build(pos world.Koord3D, kind power.Kind, owner world.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.Grid.Add(pos, kind, owner)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: fmt.Sprintf("%s built at %s", kind, pos),
		Category:    "build",
		Meta:        map[string]any{"net": n.NetID(), "owner": owner},
	})
	return nil
}

// Demolish removes the node at pos.
func (s *Simulation) Demolish(pos world.Koord3D) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.Grid.NetCount()
	if err := s.Grid.Remove(pos); err != nil {
		return fmt.Errorf("demolish: %w", err)
	}
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: fmt.Sprintf("line removed at %s", pos),
		Category:    "demolish",
		Meta:        map[string]any{"nets_before": before, "nets_after": s.Grid.NetCount()},
	})
	return nil
}

// DigTunnel adds a tunnel tile lines can be built in.
func (s *Simulation) DigTunnel(pos world.Koord3D) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Map.AddTunnel(pos); err != nil {
		return err
	}
	s.Tunnels = append(s.Tunnels, pos)
	return nil
}

// CloseFactory shuts a factory down. Its transformers become idle and are
// removed by the next sync pass when pruning is enabled.
func (s *Simulation) CloseFactory(id economy.FactoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.factoryIndex[id]
	if f == nil {
		return fmt.Errorf("factory %d not found", id)
	}

	s.Grid.DetachFactory(f)
	if c := s.cityIndex[f.CityID]; c != nil {
		c.RemoveFactory(f)
	}
	for k, g := range s.footprints {
		if g == f {
			delete(s.footprints, k)
		}
	}
	delete(s.factoryIndex, id)
	for i, g := range s.Factories {
		if g == f {
			s.Factories = append(s.Factories[:i], s.Factories[i+1:]...)
			break
		}
	}

	slog.Info("factory closed", "factory", f.Name, "id", id)
	s.EmitEvent(Event{
		Tick:        s.LastTick,
		Description: fmt.Sprintf("%s has closed", f.Name),
		Category:    "factory",
	})
	return nil
}
