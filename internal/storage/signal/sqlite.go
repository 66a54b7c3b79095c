package signal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tradingpro/pulse/internal/core"
)

// SQLiteStore persists signals in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const signalSchema = `
CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	type TEXT NOT NULL,
	confidence REAL NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	sentiment_score REAL NOT NULL DEFAULT 0,
	sentiment_label TEXT NOT NULL DEFAULT '',
	technical_score REAL NOT NULL DEFAULT 0,
	combined_score REAL NOT NULL DEFAULT 0,
	reasoning TEXT NOT NULL DEFAULT '',
	market_context TEXT NOT NULL DEFAULT '{}',
	related_article_ids TEXT NOT NULL DEFAULT '[]',
	quote_time INTEGER NOT NULL DEFAULT 0,
	generated_at INTEGER NOT NULL,
	expiry_time INTEGER NOT NULL DEFAULT 0,
	target_price REAL NOT NULL DEFAULT 0,
	execution_price REAL NOT NULL DEFAULT 0,
	execution_time INTEGER NOT NULL DEFAULT 0,
	performance_score REAL NOT NULL DEFAULT 0,
	performance_set INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);
CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
CREATE INDEX IF NOT EXISTS idx_signals_generated_at ON signals(generated_at);

CREATE TABLE IF NOT EXISTS signal_metadata (
	signal_id TEXT PRIMARY KEY,
	recent_news_count INTEGER NOT NULL DEFAULT 0,
	news_sentiment_score REAL NOT NULL DEFAULT 0,
	news_impact_score REAL NOT NULL DEFAULT 0,
	volume_ratio REAL NOT NULL DEFAULT 0,
	average_volume INTEGER NOT NULL DEFAULT 0,
	has_volume INTEGER NOT NULL DEFAULT 0,
	rsi REAL NOT NULL DEFAULT 0,
	macd REAL NOT NULL DEFAULT 0,
	ma20 REAL NOT NULL DEFAULT 0,
	ma50 REAL NOT NULL DEFAULT 0,
	bollinger_upper REAL NOT NULL DEFAULT 0,
	bollinger_lower REAL NOT NULL DEFAULT 0,
	has_indicators INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
`

// NewSQLiteStore opens (or creates) the database at dsn and ensures
// the schema exists.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if _, err := db.Exec(signalSchema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save persists a signal, assigning an ID when absent.
func (s *SQLiteStore) Save(ctx context.Context, signal *core.Signal) error {
	if signal.ID == "" {
		signal.ID = uuid.NewString()
	}
	return s.write(ctx, `INSERT OR REPLACE INTO signals
		(id, symbol, type, confidence, source, status,
		 sentiment_score, sentiment_label, technical_score, combined_score,
		 reasoning, market_context, related_article_ids, quote_time,
		 generated_at, expiry_time,
		 target_price, execution_price, execution_time, performance_score, performance_set)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, signal)
}

// Update overwrites an existing signal.
func (s *SQLiteStore) Update(ctx context.Context, signal *core.Signal) error {
	if _, err := s.GetByID(ctx, signal.ID); err != nil {
		return err
	}
	return s.Save(ctx, signal)
}

func (s *SQLiteStore) write(ctx context.Context, query string, sig *core.Signal) error {
	contextJSON, err := json.Marshal(orEmptyMap(sig.MarketContext))
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	articlesJSON, err := json.Marshal(orEmptySlice(sig.RelatedArticleIDs))
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}

	_, err = s.db.ExecContext(ctx, query,
		sig.ID, sig.Symbol, string(sig.Type), sig.Confidence, string(sig.Source), string(sig.Status),
		sig.SentimentScore, string(sig.SentimentLabel), sig.TechnicalScore, sig.CombinedScore,
		sig.Reasoning, string(contextJSON), string(articlesJSON), unixOrZero(sig.QuoteTime),
		sig.GeneratedAt.UnixNano(), unixOrZero(sig.ExpiryTime),
		sig.TargetPrice, sig.ExecutionPrice, unixOrZero(sig.ExecutionTime),
		sig.PerformanceScore, boolToInt(sig.PerformanceSet),
	)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

const signalColumns = `id, symbol, type, confidence, source, status,
	sentiment_score, sentiment_label, technical_score, combined_score,
	reasoning, market_context, related_article_ids, quote_time,
	generated_at, expiry_time,
	target_price, execution_price, execution_time, performance_score, performance_set`

// GetByID retrieves a signal by ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+signalColumns+" FROM signals WHERE id = ?", id)
	sig, err := scanSignal(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrSignalNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return sig, nil
}

// List returns signals matching the filter.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*core.Signal, error) {
	where, args := buildWhere(filter)

	order := "generated_at DESC"
	if filter.OrderByConfidence {
		order = "confidence DESC, generated_at DESC"
	}
	query := "SELECT " + signalColumns + " FROM signals" + where + " ORDER BY " + order
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	result := []*core.Signal{}
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		result = append(result, sig)
	}
	return result, rows.Err()
}

// Count returns the count of matching signals.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := buildWhere(filter)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM signals"+where, args...).Scan(&count)
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	return count, nil
}

// ExpireActiveBefore marks stale active signals expired.
func (s *SQLiteStore) ExpireActiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET status = ? WHERE status = ? AND expiry_time > 0 AND expiry_time <= ?`,
		string(core.StatusExpired), string(core.StatusActive), cutoff.UnixNano())
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	return int(n), nil
}

// SaveMetadata records the market snapshot for a signal.
func (s *SQLiteStore) SaveMetadata(ctx context.Context, meta *core.SignalMetadata) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO signal_metadata
		(signal_id, recent_news_count, news_sentiment_score, news_impact_score,
		 volume_ratio, average_volume, has_volume,
		 rsi, macd, ma20, ma50, bollinger_upper, bollinger_lower, has_indicators,
		 created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		meta.SignalID, meta.RecentNewsCount, meta.NewsSentimentScore, meta.NewsImpactScore,
		meta.VolumeRatio, meta.AverageVolume, boolToInt(meta.HasVolume),
		meta.RSI, meta.MACD, meta.MovingAverage20, meta.MovingAverage50,
		meta.BollingerUpper, meta.BollingerLower, boolToInt(meta.HasIndicators),
		meta.CreatedAt.UnixNano(),
	)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// GetMetadata retrieves the snapshot for a signal.
func (s *SQLiteStore) GetMetadata(ctx context.Context, signalID string) (*core.SignalMetadata, error) {
	var (
		meta          core.SignalMetadata
		hasVolume     int
		hasIndicators int
		createdAt     int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT signal_id, recent_news_count,
		news_sentiment_score, news_impact_score,
		volume_ratio, average_volume, has_volume,
		rsi, macd, ma20, ma50, bollinger_upper, bollinger_lower, has_indicators,
		created_at FROM signal_metadata WHERE signal_id = ?`, signalID).Scan(
		&meta.SignalID, &meta.RecentNewsCount,
		&meta.NewsSentimentScore, &meta.NewsImpactScore,
		&meta.VolumeRatio, &meta.AverageVolume, &hasVolume,
		&meta.RSI, &meta.MACD, &meta.MovingAverage20, &meta.MovingAverage50,
		&meta.BollingerUpper, &meta.BollingerLower, &hasIndicators,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrSignalNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	meta.HasVolume = hasVolume != 0
	meta.HasIndicators = hasIndicators != 0
	meta.CreatedAt = time.Unix(0, createdAt)
	return &meta, nil
}

func buildWhere(filter ListFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if len(filter.Symbols) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Symbols))
		conds = append(conds, "symbol IN ("+placeholders[:len(placeholders)-1]+")")
		for _, s := range filter.Symbols {
			args = append(args, s)
		}
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if len(filter.Types) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Types))
		conds = append(conds, "type IN ("+placeholders[:len(placeholders)-1]+")")
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.MinConfidence > 0 {
		conds = append(conds, "confidence >= ?")
		args = append(args, filter.MinConfidence)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "generated_at >= ?")
		args = append(args, filter.From.UnixNano())
	}
	if !filter.To.IsZero() {
		conds = append(conds, "generated_at <= ?")
		args = append(args, filter.To.UnixNano())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*core.Signal, error) {
	var (
		sig            core.Signal
		contextJSON    string
		articlesJSON   string
		quoteTime      int64
		generatedAt    int64
		expiryTime     int64
		executionTime  int64
		performanceSet int
	)
	err := row.Scan(
		&sig.ID, &sig.Symbol, &sig.Type, &sig.Confidence, &sig.Source, &sig.Status,
		&sig.SentimentScore, &sig.SentimentLabel, &sig.TechnicalScore, &sig.CombinedScore,
		&sig.Reasoning, &contextJSON, &articlesJSON, &quoteTime,
		&generatedAt, &expiryTime,
		&sig.TargetPrice, &sig.ExecutionPrice, &executionTime,
		&sig.PerformanceScore, &performanceSet,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(contextJSON), &sig.MarketContext); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(articlesJSON), &sig.RelatedArticleIDs); err != nil {
		return nil, err
	}
	sig.QuoteTime = timeOrZero(quoteTime)
	sig.GeneratedAt = time.Unix(0, generatedAt)
	sig.ExpiryTime = timeOrZero(expiryTime)
	sig.ExecutionTime = timeOrZero(executionTime)
	sig.PerformanceSet = performanceSet != 0
	return &sig, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeOrZero(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
