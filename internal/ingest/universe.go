package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/db/repository"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// DefaultUniverse returns the built-in NSE large-cap universe used when the
// stock_universe table is empty at startup.
func DefaultUniverse() []domain.UniverseStock {
	entries := []struct {
		symbol, name, sector string
	}{
		{"RELIANCE", "Reliance Industries", "Energy"},
		{"TCS", "Tata Consultancy Services", "IT"},
		{"HDFCBANK", "HDFC Bank", "Banking"},
		{"INFY", "Infosys", "IT"},
		{"HINDUNILVR", "Hindustan Unilever", "FMCG"},
		{"ICICIBANK", "ICICI Bank", "Banking"},
		{"SBIN", "State Bank of India", "Banking"},
		{"BHARTIARTL", "Bharti Airtel", "Telecom"},
		{"KOTAKBANK", "Kotak Mahindra Bank", "Banking"},
		{"ITC", "ITC Limited", "FMCG"},
		{"LT", "Larsen & Toubro", "Infrastructure"},
		{"AXISBANK", "Axis Bank", "Banking"},
		{"BAJFINANCE", "Bajaj Finance", "Finance"},
		{"ASIANPAINT", "Asian Paints", "Paints"},
		{"MARUTI", "Maruti Suzuki", "Auto"},
		{"HCLTECH", "HCL Technologies", "IT"},
		{"WIPRO", "Wipro", "IT"},
		{"ULTRACEMCO", "UltraTech Cement", "Cement"},
		{"TITAN", "Titan Company", "Consumer"},
		{"SUNPHARMA", "Sun Pharma", "Pharma"},
		{"NESTLEIND", "Nestle India", "FMCG"},
		{"TATAMOTORS", "Tata Motors", "Auto"},
		{"TATASTEEL", "Tata Steel", "Metals"},
		{"POWERGRID", "Power Grid Corp", "Power"},
		{"NTPC", "NTPC", "Power"},
		{"ONGC", "ONGC", "Energy"},
		{"COALINDIA", "Coal India", "Mining"},
		{"M&M", "Mahindra & Mahindra", "Auto"},
		{"BAJAJFINSV", "Bajaj Finserv", "Finance"},
		{"TECHM", "Tech Mahindra", "IT"},
		{"ADANIPORTS", "Adani Ports", "Infrastructure"},
		{"GODREJCP", "Godrej Consumer", "FMCG"},
		{"INDIGO", "InterGlobe Aviation", "Aviation"},
		{"SIEMENS", "Siemens", "Engineering"},
		{"DLF", "DLF", "Real Estate"},
		{"GAIL", "GAIL India", "Gas"},
		{"ABB", "ABB India", "Engineering"},
		{"PIDILITIND", "Pidilite Industries", "Chemicals"},
		{"HAVELLS", "Havells India", "Consumer"},
		{"BERGEPAINT", "Berger Paints", "Paints"},
		{"AMBUJACEM", "Ambuja Cements", "Cement"},
		{"ACC", "ACC Limited", "Cement"},
		{"TATACONSUM", "Tata Consumer", "FMCG"},
		{"DIVISLAB", "Divis Laboratories", "Pharma"},
		{"DRREDDY", "Dr Reddys Labs", "Pharma"},
		{"CIPLA", "Cipla", "Pharma"},
		{"TORNTPHARM", "Torrent Pharma", "Pharma"},
		{"APOLLOHOSP", "Apollo Hospitals", "Healthcare"},
		{"GRASIM", "Grasim Industries", "Cement"},
		{"VEDL", "Vedanta", "Metals"},
	}

	stocks := make([]domain.UniverseStock, len(entries))
	for i, e := range entries {
		stocks[i] = domain.UniverseStock{
			Symbol:   e.symbol,
			Name:     e.name,
			Sector:   e.sector,
			IsActive: true,
		}
	}
	return stocks
}

// EnsureUniverse seeds the default universe when the table is empty.
func EnsureUniverse(ctx context.Context, repo repository.UniverseRepository, logger *zap.Logger) error {
	existing, err := repo.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Debug("Stock universe already seeded", zap.Int("count", len(existing)))
		return nil
	}

	stocks := DefaultUniverse()
	if err := repo.Seed(ctx, stocks); err != nil {
		return err
	}
	logger.Info("Stock universe seeded", zap.Int("count", len(stocks)))
	return nil
}
