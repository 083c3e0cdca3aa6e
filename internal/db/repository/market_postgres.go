package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/quantrail/nse-scanner/internal/db"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// stockPriceRepo implements StockPriceRepository using PostgreSQL.
type stockPriceRepo struct {
	pool *db.Pool
}

// NewStockPriceRepository creates a new PostgreSQL stock price repository.
func NewStockPriceRepository(pool *db.Pool) StockPriceRepository {
	return &stockPriceRepo{pool: pool}
}

func (r *stockPriceRepo) UpsertBatch(ctx context.Context, prices []domain.StockPrice) error {
	if len(prices) == 0 {
		return nil
	}

	query := `
		INSERT INTO stock_prices (symbol, date, open, high, low, close, adj_close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			adj_close = EXCLUDED.adj_close,
			volume = EXCLUDED.volume
	`

	return r.pool.WithTx(ctx, func(tx *db.Tx) error {
		for _, p := range prices {
			_, err := tx.Exec(ctx, query,
				p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.AdjClose, p.Volume,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert price %s@%s: %w",
					p.Symbol, p.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
}

// HistoryUpTo returns the most recent bars at or before asOf, oldest first,
// the order indicator math expects.
func (r *stockPriceRepo) HistoryUpTo(ctx context.Context, symbol string, asOf time.Time, limit int) ([]domain.StockPrice, error) {
	query := `
		SELECT id, symbol, date, open, high, low, close, adj_close, volume
		FROM (
			SELECT id, symbol, date, open, high, low, close, adj_close, volume
			FROM stock_prices
			WHERE symbol = $1 AND date <= $2
			ORDER BY date DESC
			LIMIT $3
		) recent
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var prices []domain.StockPrice
	for rows.Next() {
		var p domain.StockPrice
		err := rows.Scan(&p.ID, &p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.AdjClose, &p.Volume)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		p.Date = p.Date.UTC()
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (r *stockPriceRepo) CountByDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM stock_prices WHERE date = $1`
	if err := r.pool.QueryRow(ctx, query, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return count, nil
}

// universeRepo implements UniverseRepository using PostgreSQL.
type universeRepo struct {
	pool *db.Pool
}

// NewUniverseRepository creates a new PostgreSQL universe repository.
func NewUniverseRepository(pool *db.Pool) UniverseRepository {
	return &universeRepo{pool: pool}
}

func (r *universeRepo) ListActive(ctx context.Context) ([]domain.UniverseStock, error) {
	query := `
		SELECT symbol, name, sector, is_active
		FROM stock_universe
		WHERE is_active = TRUE
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list universe: %w", err)
	}
	defer rows.Close()

	var stocks []domain.UniverseStock
	for rows.Next() {
		var s domain.UniverseStock
		if err := rows.Scan(&s.Symbol, &s.Name, &s.Sector, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan universe row: %w", err)
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

func (r *universeRepo) Seed(ctx context.Context, stocks []domain.UniverseStock) error {
	query := `
		INSERT INTO stock_universe (symbol, name, sector, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO NOTHING
	`

	return r.pool.WithTx(ctx, func(tx *db.Tx) error {
		for _, s := range stocks {
			if _, err := tx.Exec(ctx, query, s.Symbol, s.Name, s.Sector, s.IsActive); err != nil {
				return fmt.Errorf("failed to seed universe symbol %s: %w", s.Symbol, err)
			}
		}
		return nil
	})
}
