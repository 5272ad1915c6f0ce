package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"

	"github.com/eugenenazirov/market-symbols/internal/config"
)

const (
	listSymbolsQuery = `SELECT id, code FROM symbol ORDER BY id`
	getSymbolQuery   = `SELECT id, code FROM symbol WHERE id = $1`
)

// querier is the subset of *pgxpool.Pool used by PostgresStorage.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStorage reads symbols from a PostgreSQL connection pool.
type PostgresStorage struct {
	db           querier
	queryTimeout time.Duration
}

// NewPostgresStorage creates the connection pool described by ds.
// Connections are opened lazily, so an unreachable database surfaces on the
// first query rather than here.
func NewPostgresStorage(ctx context.Context, ds config.DatasourceConfig, logger *zap.Logger) (*PostgresStorage, error) {
	poolCfg, err := NewPoolConfig(ds, logger)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return newPostgresStorage(pool, ds.AcquireTimeout), nil
}

func newPostgresStorage(db querier, queryTimeout time.Duration) *PostgresStorage {
	return &PostgresStorage{db: db, queryTimeout: queryTimeout}
}

// NewPoolConfig translates datasource settings into a pgxpool configuration.
func NewPoolConfig(ds config.DatasourceConfig, logger *zap.Logger) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(ds.URL())
	if err != nil {
		return nil, fmt.Errorf("parse datasource url: %w", err)
	}

	if ds.MaxConnections > 0 {
		poolCfg.MaxConns = int32(ds.MaxConnections)
	}
	poolCfg.MinConns = int32(min(ds.MinConnections, ds.MaxConnections))
	poolCfg.MaxConnIdleTime = ds.IdleTimeout
	poolCfg.MaxConnLifetime = ds.MaxLifetime
	poolCfg.ConnConfig.ConnectTimeout = ds.ConnectTimeout
	if ds.Schema != "" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = ds.Schema
	}

	if ds.SQLLogging && logger != nil {
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   newTraceLogger(logger.Named("sql")),
			LogLevel: tracelog.LogLevelInfo,
		}
	}

	return poolCfg, nil
}

// ListSymbols returns all symbols ordered by id.
func (s *PostgresStorage) ListSymbols(ctx context.Context) ([]Symbol, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, listSymbolsQuery)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	symbols, err := pgx.CollectRows(rows, pgx.RowToStructByName[Symbol])
	if err != nil {
		return nil, fmt.Errorf("scan symbols: %w", err)
	}
	return symbols, nil
}

// GetSymbol returns the symbol with the given id.
func (s *PostgresStorage) GetSymbol(ctx context.Context, id int64) (Symbol, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, getSymbolQuery, id)
	if err != nil {
		return Symbol{}, false, fmt.Errorf("query symbol %d: %w", id, err)
	}
	sym, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Symbol])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Symbol{}, false, nil
		}
		return Symbol{}, false, fmt.Errorf("scan symbol %d: %w", id, err)
	}
	return sym, true, nil
}

// Close closes the connection pool.
func (s *PostgresStorage) Close() {
	s.db.Close()
}

func (s *PostgresStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func newTraceLogger(logger *zap.Logger) tracelog.Logger {
	return tracelog.LoggerFunc(func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		fields := make([]zap.Field, 0, len(data))
		for k, v := range data {
			fields = append(fields, zap.Any(k, v))
		}

		switch level {
		case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
			logger.Debug(msg, fields...)
		case tracelog.LogLevelWarn:
			logger.Warn(msg, fields...)
		case tracelog.LogLevelError:
			logger.Error(msg, fields...)
		default:
			logger.Info(msg, fields...)
		}
	})
}
