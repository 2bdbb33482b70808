package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"playerMarket/internal/domain"
)

type PostgresStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresStore(dsn string, lockTimeout time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("cannot ping db: %w", err)
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the players and trades tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id            SERIAL PRIMARY KEY,
		name          VARCHAR(32) UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		coins         INTEGER NOT NULL DEFAULT 0,
		goods         INTEGER NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS trades (
		id         SERIAL PRIMARY KEY,
		trade_id   UUID UNIQUE NOT NULL,
		buyer_id   INTEGER NOT NULL REFERENCES players (id),
		seller_id  INTEGER NOT NULL REFERENCES players (id),
		amount     INTEGER NOT NULL,
		price      INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "repo: EnsureSchema")
	}
	return nil
}

func (s *PostgresStore) CreatePlayer(ctx context.Context, name, passwordHash string, coins, goods int) (int, error) {
	query := `INSERT INTO players (name, password_hash, coins, goods) VALUES ($1, $2, $3, $4) RETURNING id;`
	var newID int
	if err := s.db.QueryRowContext(ctx, query, name, passwordHash, coins, goods).Scan(&newID); err != nil {
		return 0, classify(err, "repo: CreatePlayer")
	}
	return newID, nil
}

func (s *PostgresStore) GetPlayerByName(ctx context.Context, name string) (*domain.Player, error) {
	query := `SELECT id, name, password_hash, coins, goods, created_at FROM players WHERE name = $1;`
	row := s.db.QueryRowContext(ctx, query, name)
	p := &domain.Player{}
	if err := row.Scan(&p.ID, &p.Name, &p.PasswordHash, &p.Coins, &p.Goods, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err, "repo: GetPlayerByName")
	}
	return p, nil
}

func (s *PostgresStore) GetPlayerByID(ctx context.Context, id int) (*domain.Player, error) {
	query := `SELECT id, name, password_hash, coins, goods, created_at FROM players WHERE id = $1;`
	row := s.db.QueryRowContext(ctx, query, id)
	p := &domain.Player{}
	if err := row.Scan(&p.ID, &p.Name, &p.PasswordHash, &p.Coins, &p.Goods, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err, "repo: GetPlayerByID")
	}
	return p, nil
}

// BulkCreatePlayers inserts all players with one multi-row INSERT.
// Existing names are skipped so repeated seeding is idempotent.
func (s *PostgresStore) BulkCreatePlayers(ctx context.Context, players []domain.Player) error {
	if len(players) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO players (name, password_hash, coins, goods) VALUES ")
	args := make([]interface{}, 0, len(players)*4)
	for i, p := range players {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4)
		args = append(args, p.Name, p.PasswordHash, p.Coins, p.Goods)
	}
	sb.WriteString(" ON CONFLICT (name) DO NOTHING;")
	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return classify(err, "repo: BulkCreatePlayers")
	}
	return nil
}

func (s *PostgresStore) CountPlayers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM players;`).Scan(&count); err != nil {
		return 0, classify(err, "repo: CountPlayers")
	}
	return count, nil
}

func (s *PostgresStore) ListPlayers(ctx context.Context, limit int) ([]domain.Player, error) {
	query := `SELECT id, name, coins, goods, created_at FROM players ORDER BY id LIMIT $1;`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, classify(err, "repo: ListPlayers")
	}
	defer rows.Close()

	var res []domain.Player
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Coins, &p.Goods, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *PostgresStore) ListBoughtTrades(ctx context.Context, playerID int) ([]domain.TradeRecord, error) {
	query := `SELECT id, trade_id, buyer_id, seller_id, amount, price, created_at
	          FROM trades
	          WHERE buyer_id = $1
	          ORDER BY created_at DESC LIMIT 100;`
	return s.listTrades(ctx, query, playerID, "repo: ListBoughtTrades")
}

func (s *PostgresStore) ListSoldTrades(ctx context.Context, playerID int) ([]domain.TradeRecord, error) {
	query := `SELECT id, trade_id, buyer_id, seller_id, amount, price, created_at
	          FROM trades
	          WHERE seller_id = $1
	          ORDER BY created_at DESC LIMIT 100;`
	return s.listTrades(ctx, query, playerID, "repo: ListSoldTrades")
}

func (s *PostgresStore) listTrades(ctx context.Context, query string, playerID int, op string) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, playerID)
	if err != nil {
		return nil, classify(err, op)
	}
	defer rows.Close()

	var res []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.ID, &t.TradeID, &t.BuyerID, &t.SellerID, &t.Amount, &t.Price, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
