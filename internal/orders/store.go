package orders

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitmex-tools/feedrelay/internal/model"
)

// Store persists local order records.
type Store interface {
	// Insert saves one accepted order.
	Insert(ctx context.Context, order model.Order) error
	// ListByAccount returns all orders held by the named account.
	ListByAccount(ctx context.Context, accountName string) ([]model.Order, error)
}

// PGStore reads and writes orders in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Insert(ctx context.Context, order model.Order) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (order_id, symbol, volume, timestamp, side, price, account)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.OrderID, order.Symbol, order.Volume, order.Timestamp,
		order.Side, order.Price, order.Account,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.OrderID, err)
	}
	return nil
}

func (s *PGStore) ListByAccount(ctx context.Context, accountName string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT order_id, symbol, volume, timestamp, side, price, account
		 FROM orders WHERE account = $1 ORDER BY timestamp`,
		accountName,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders for %s: %w", accountName, err)
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.OrderID, &o.Symbol, &o.Volume, &o.Timestamp,
			&o.Side, &o.Price, &o.Account); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return out, nil
}

// MemStore is an in-memory Store for tests and tooling.
type MemStore struct {
	mu     sync.RWMutex
	orders []model.Order
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Insert(_ context.Context, order model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, order)
	return nil
}

func (s *MemStore) ListByAccount(_ context.Context, accountName string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.Account == accountName {
			out = append(out, o)
		}
	}
	return out, nil
}
