package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/quantrail/nse-scanner/internal/domain"
)

// SimulationGuard wraps a live provider and refuses every call while
// simulation mode is active. Simulated timelines must never leak requests
// to a real upstream; a synthetic provider serves them instead.
type SimulationGuard struct {
	live           MarketDataProvider
	simulationMode bool
}

// NewSimulationGuard wraps a live provider.
func NewSimulationGuard(live MarketDataProvider, simulationMode bool) *SimulationGuard {
	return &SimulationGuard{live: live, simulationMode: simulationMode}
}

var _ MarketDataProvider = (*SimulationGuard)(nil)

func (g *SimulationGuard) FetchHistoricalData(ctx context.Context, symbol string, start, end time.Time) ([]domain.StockPrice, error) {
	if g.simulationMode {
		return nil, g.refuse()
	}
	return g.live.FetchHistoricalData(ctx, symbol, start, end)
}

func (g *SimulationGuard) FetchLatestData(ctx context.Context, symbol string) (*domain.StockPrice, error) {
	if g.simulationMode {
		return nil, g.refuse()
	}
	return g.live.FetchLatestData(ctx, symbol)
}

func (g *SimulationGuard) Healthy(ctx context.Context, symbol string) bool {
	if g.simulationMode {
		return false
	}
	return g.live.Healthy(ctx, symbol)
}

func (g *SimulationGuard) refuse() error {
	return fmt.Errorf("%w: live provider calls are forbidden in simulation mode", domain.ErrInvalidState)
}
