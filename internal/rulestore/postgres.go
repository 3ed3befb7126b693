package rulestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStore persists rule store state per user, one JSON document per
// row. The document is the same State shape the browser extension exported,
// so upgrading clients never needs a schema migration, only the legacy
// fold-in that LoadState already performs.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// PostgresConfig contains database configuration.
type PostgresConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// NewPostgresStore connects, configures the pool and ensures the table
// exists.
func NewPostgresStore(config *PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &PostgresStore{db: db, logger: logger}
	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize rule store: %w", err)
	}

	logger.Info("Rule store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

func (s *PostgresStore) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS rule_states (
			user_id    TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure rule_states table: %w", err)
	}
	return nil
}

// Save upserts the state document for a user.
func (s *PostgresStore) Save(ctx context.Context, userID string, state State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode rule state: %w", err)
	}

	query := `
		INSERT INTO rule_states (user_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET state = $2, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, userID, doc); err != nil {
		s.logger.Error("Failed to save rule state",
			zap.Error(err),
			zap.String("user_id", userID))
		return fmt.Errorf("failed to save rule state: %w", err)
	}

	s.logger.Debug("Rule state saved",
		zap.String("user_id", userID),
		zap.Int("rule_groups", len(state.RuleGroups)),
		zap.Int("ungrouped_rules", len(state.UngroupedRules)))
	return nil
}

// Load reads the state document for a user. A missing row yields an empty
// state, not an error.
func (s *PostgresStore) Load(ctx context.Context, userID string) (State, error) {
	var doc []byte
	query := `SELECT state FROM rule_states WHERE user_id = $1`
	err := s.db.GetContext(ctx, &doc, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load rule state: %w", err)
	}

	var state State
	if err := json.Unmarshal(doc, &state); err != nil {
		return State{}, fmt.Errorf("failed to decode rule state: %w", err)
	}
	return state, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials for logging.
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.Index(raw, "@"); i >= 0 {
			return "***" + raw[i:]
		}
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
