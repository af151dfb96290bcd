package storage

// sqlite.go — persistencia del engine en SQLite (pure Go, sin CGo).
//
// Estrategia:
//   - `positions`: una fila por posición (UPSERT por id). Las cerradas son
//     histórico inmutable: solo se actualizan los campos de salida al cerrar.
//   - `wallet`: una única fila (id=1). El ledger del engine es el único writer.
//   - `parameters`: key/value de los knobs tunables. El learner hace upsert
//     al publicar un snapshot; al arrancar se recargan con clamp a bounds.
//   - `signals`: audit log append-only para análisis offline. Nunca se lee
//     en el hot path y se poda a los 14 días.
//   - Prune automático al arrancar: posiciones cerradas > 90d, señales > 14d.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por posición; las cerradas son histórico inmutable
CREATE TABLE IF NOT EXISTS positions (
    id           TEXT PRIMARY KEY,
    market_id    TEXT    NOT NULL,
    asset        TEXT    NOT NULL,
    category     TEXT    NOT NULL,
    direction    TEXT    NOT NULL,
    mode         TEXT    NOT NULL,
    entry_price  REAL    NOT NULL,
    size_usd     REAL    NOT NULL,
    take_profit  REAL    NOT NULL DEFAULT 0,
    stop_loss    REAL    NOT NULL DEFAULT 0,
    score        REAL    NOT NULL DEFAULT 0,
    opened_at    DATETIME NOT NULL,
    is_open      INTEGER NOT NULL DEFAULT 1,
    exit_price   REAL    NOT NULL DEFAULT 0,
    pnl          REAL    NOT NULL DEFAULT 0,
    hold_seconds REAL    NOT NULL DEFAULT 0,
    exit_reason  TEXT    NOT NULL DEFAULT '',
    closed_at    DATETIME,
    exit_retries INTEGER NOT NULL DEFAULT 0,
    abandoned    INTEGER NOT NULL DEFAULT 0
);

-- Una única fila: el bankroll
CREATE TABLE IF NOT EXISTS wallet (
    id              INTEGER PRIMARY KEY CHECK (id = 1),
    balance         REAL NOT NULL,
    initial_balance REAL NOT NULL,
    peak_balance    REAL NOT NULL,
    updated_at      DATETIME NOT NULL
);

-- Knobs tunables (único writer: el learner)
CREATE TABLE IF NOT EXISTS parameters (
    name       TEXT PRIMARY KEY,
    value      REAL NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Audit log de señales, append-only
CREATE TABLE IF NOT EXISTS signals (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id    TEXT NOT NULL,
    asset        TEXT NOT NULL,
    category     TEXT NOT NULL,
    kind         TEXT NOT NULL,
    direction    TEXT NOT NULL,
    raw_edge     REAL NOT NULL DEFAULT 0,
    net_edge     REAL NOT NULL DEFAULT 0,
    score        REAL NOT NULL DEFAULT 0,
    confidence   TEXT NOT NULL DEFAULT '',
    target_price REAL NOT NULL DEFAULT 0,
    fair_value   REAL NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pos_open    ON positions(is_open);
CREATE INDEX IF NOT EXISTS idx_pos_closed  ON positions(closed_at DESC);
CREATE INDEX IF NOT EXISTS idx_sig_created ON signals(created_at DESC);
`

const (
	retentionClosed  = 90 * 24 * time.Hour // posiciones cerradas: 90 días
	retentionSignals = 14 * 24 * time.Hour // audit log: 14 días
)

// SQLiteStorage implementa ports.Storage usando SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SavePosition hace upsert de una posición recién abierta.
func (s *SQLiteStorage) SavePosition(ctx context.Context, p domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
			(id, market_id, asset, category, direction, mode, entry_price,
			 size_usd, take_profit, stop_loss, score, opened_at, is_open,
			 exit_retries, abandoned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			take_profit  = excluded.take_profit,
			stop_loss    = excluded.stop_loss,
			exit_retries = excluded.exit_retries
	`,
		p.ID, p.MarketID, p.Asset, string(p.Category), string(p.Direction),
		string(p.Mode), p.EntryPrice, p.SizeUSD, p.TakeProfit, p.StopLoss,
		p.Score, p.OpenedAt.UTC(), p.ExitRetries,
	)
	if err != nil {
		return fmt.Errorf("storage.SavePosition: upsert %s: %w", p.ID, err)
	}
	return nil
}

// ClosePosition escribe los campos de salida de una posición cerrada (o
// abandonada) y la marca como no abierta. Los campos de entrada no se tocan.
func (s *SQLiteStorage) ClosePosition(ctx context.Context, p domain.Position) error {
	abandoned := 0
	if p.Abandoned {
		abandoned = 1
	}
	var closedAt any
	if !p.ClosedAt.IsZero() {
		closedAt = p.ClosedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET
			is_open      = 0,
			exit_price   = ?,
			pnl          = ?,
			hold_seconds = ?,
			exit_reason  = ?,
			closed_at    = ?,
			exit_retries = ?,
			abandoned    = ?
		WHERE id = ?
	`,
		p.ExitPrice, p.PnL, p.HoldSeconds, string(p.ExitReason), closedAt,
		p.ExitRetries, abandoned, p.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.ClosePosition: update %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.ClosePosition: posición %s no existe", p.ID)
	}
	return nil
}

// GetOpenPositions devuelve las posiciones abiertas (para restaurar el
// ledger al arrancar).
func (s *SQLiteStorage) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		positionColumns+`WHERE is_open = 1 ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetOpenPositions: query: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// GetRecentClosed devuelve las n posiciones cerradas más recientes,
// más reciente primero.
func (s *SQLiteStorage) GetRecentClosed(ctx context.Context, n int) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		positionColumns+`WHERE is_open = 0 ORDER BY closed_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRecentClosed: query: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// GetClosedSince devuelve las posiciones cerradas desde el instante dado
// (para reconstruir el PnL diario tras un reinicio).
func (s *SQLiteStorage) GetClosedSince(ctx context.Context, since time.Time) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		positionColumns+`WHERE is_open = 0 AND closed_at >= ? ORDER BY closed_at`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.GetClosedSince: query: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// SaveWallet hace upsert de la única fila del wallet.
func (s *SQLiteStorage) SaveWallet(ctx context.Context, w domain.WalletState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet (id, balance, initial_balance, peak_balance, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			balance      = excluded.balance,
			peak_balance = excluded.peak_balance,
			updated_at   = excluded.updated_at
	`, w.Balance, w.InitialBalance, w.PeakBalance, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.SaveWallet: upsert: %w", err)
	}
	return nil
}

// LoadWallet carga el wallet persistido. found=false en el primer arranque.
func (s *SQLiteStorage) LoadWallet(ctx context.Context) (domain.WalletState, bool, error) {
	var w domain.WalletState
	err := s.db.QueryRowContext(ctx,
		`SELECT balance, initial_balance, peak_balance FROM wallet WHERE id = 1`,
	).Scan(&w.Balance, &w.InitialBalance, &w.PeakBalance)
	if err == sql.ErrNoRows {
		return domain.WalletState{}, false, nil
	}
	if err != nil {
		return domain.WalletState{}, false, fmt.Errorf("storage.LoadWallet: query: %w", err)
	}
	return w, true, nil
}

// UpsertParam persiste el valor de un parámetro tunable.
func (s *SQLiteStorage) UpsertParam(ctx context.Context, name string, value float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parameters (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.UpsertParam: upsert %s: %w", name, err)
	}
	return nil
}

// LoadParams devuelve los parámetros persistidos (nombre → valor).
func (s *SQLiteStorage) LoadParams(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM parameters`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadParams: query: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("storage.LoadParams: scan row: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

// SaveSignal añade una señal al audit log.
func (s *SQLiteStorage) SaveSignal(ctx context.Context, sig domain.Signal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals
			(market_id, asset, category, kind, direction, raw_edge, net_edge,
			 score, confidence, target_price, fair_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sig.MarketID, sig.Asset, string(sig.Category), sig.Kind.String(),
		string(sig.Direction), sig.RawEdge, sig.NetEdge, sig.Score,
		string(sig.Confidence), sig.TargetPrice, sig.FairValue, sig.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSignal: insert %s: %w", sig.MarketID, err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

const positionColumns = `
	SELECT id, market_id, asset, category, direction, mode, entry_price,
	       size_usd, take_profit, stop_loss, score, opened_at, is_open,
	       exit_price, pnl, hold_seconds, exit_reason, closed_at,
	       exit_retries, abandoned
	FROM positions
`

func scanPositions(rows *sql.Rows) ([]domain.Position, error) {
	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var category, direction, mode, exitReason string
		var openedAt string
		var closedAt sql.NullString
		var isOpen, abandoned int

		if err := rows.Scan(
			&p.ID, &p.MarketID, &p.Asset, &category, &direction, &mode,
			&p.EntryPrice, &p.SizeUSD, &p.TakeProfit, &p.StopLoss, &p.Score,
			&openedAt, &isOpen, &p.ExitPrice, &p.PnL, &p.HoldSeconds,
			&exitReason, &closedAt, &p.ExitRetries, &abandoned,
		); err != nil {
			return nil, fmt.Errorf("storage: scan position: %w", err)
		}

		p.Category = domain.Category(category)
		p.Direction = domain.Direction(direction)
		p.Mode = domain.Mode(mode)
		p.ExitReason = domain.ExitReason(exitReason)
		p.IsOpen = isOpen == 1
		p.Abandoned = abandoned == 1
		p.OpenedAt = parseTime(openedAt)
		if closedAt.Valid {
			p.ClosedAt = parseTime(closedAt.String)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// parseTime acepta los formatos que emite el driver según cómo se insertó
// el valor.
func parseTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoffClosed := time.Now().UTC().Add(-retentionClosed)
	cutoffSignals := time.Now().UTC().Add(-retentionSignals)
	s.db.ExecContext(ctx, `DELETE FROM positions WHERE is_open = 0 AND closed_at < ?`, cutoffClosed)
	s.db.ExecContext(ctx, `DELETE FROM signals WHERE created_at < ?`, cutoffSignals)
}
