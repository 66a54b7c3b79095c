package delivery

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tradingpro/pulse/internal/core"
)

// SQLiteStore persists delivery records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const deliverySchema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id TEXT PRIMARY KEY,
	signal_id TEXT NOT NULL,
	subscriber_id TEXT NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	last_attempt INTEGER NOT NULL DEFAULT 0,
	next_retry INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	delivered_at INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	UNIQUE(signal_id, subscriber_id)
);
CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status);
`

// NewSQLiteStore opens (or creates) the database at dsn and ensures
// the schema exists.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if _, err := db.Exec(deliverySchema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrCreate returns the pair's record, creating a pending one when
// none exists. The UNIQUE(signal_id, subscriber_id) constraint keeps
// concurrent creators from producing duplicates.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, signalID, subscriberID string) (*core.Delivery, bool, error) {
	if d, err := s.Get(ctx, signalID, subscriberID); err == nil {
		return d, false, nil
	} else if !errors.Is(err, core.ErrDeliveryNotFound) {
		return nil, false, err
	}

	d := &core.Delivery{
		ID:           uuid.NewString(),
		SignalID:     signalID,
		SubscriberID: subscriberID,
		Status:       core.DeliveryPending,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO deliveries
		(id, signal_id, subscriber_id, status, attempts, last_attempt, next_retry, error_message, delivered_at, created_at)
		VALUES (?,?,?,?,0,0,0,'',0,?)
		ON CONFLICT(signal_id, subscriber_id) DO NOTHING`,
		d.ID, signalID, subscriberID, string(d.Status), d.CreatedAt.UnixNano())
	if err != nil {
		return nil, false, core.WrapError(core.ErrStorageFailed, err)
	}

	existing, err := s.Get(ctx, signalID, subscriberID)
	if err != nil {
		return nil, false, err
	}
	return existing, existing.ID == d.ID, nil
}

const deliveryColumns = `id, signal_id, subscriber_id, status, attempts,
	last_attempt, next_retry, error_message, delivered_at, created_at`

// Get retrieves the record for the pair.
func (s *SQLiteStore) Get(ctx context.Context, signalID, subscriberID string) (*core.Delivery, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+deliveryColumns+" FROM deliveries WHERE signal_id = ? AND subscriber_id = ?",
		signalID, subscriberID)
	return scanDelivery(row)
}

// GetByID retrieves a record by ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*core.Delivery, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+deliveryColumns+" FROM deliveries WHERE id = ?", id)
	return scanDelivery(row)
}

// Update overwrites an existing record.
func (s *SQLiteStore) Update(ctx context.Context, d *core.Delivery) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deliveries SET
		status = ?, attempts = ?, last_attempt = ?, next_retry = ?,
		error_message = ?, delivered_at = ? WHERE id = ?`,
		string(d.Status), d.Attempts, unixOrZero(d.LastAttempt), unixOrZero(d.NextRetry),
		d.ErrorMessage, unixOrZero(d.DeliveredAt), d.ID)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if n == 0 {
		return core.ErrDeliveryNotFound
	}
	return nil
}

// DueForRetry returns failed deliveries eligible for another pass.
func (s *SQLiteStore) DueForRetry(ctx context.Context, now time.Time, maxAttempts int) ([]*core.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+deliveryColumns+` FROM deliveries
		WHERE status = ? AND attempts < ? AND next_retry <= ?
		ORDER BY created_at`,
		string(core.DeliveryFailed), maxAttempts, now.UnixNano())
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var result []*core.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// Stats returns counts grouped by status.
func (s *SQLiteStore) Stats(ctx context.Context) (map[core.DeliveryStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM deliveries GROUP BY status")
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	stats := make(map[core.DeliveryStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		stats[core.DeliveryStatus(status)] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*core.Delivery, error) {
	var (
		d           core.Delivery
		lastAttempt int64
		nextRetry   int64
		deliveredAt int64
		createdAt   int64
	)
	err := row.Scan(&d.ID, &d.SignalID, &d.SubscriberID, &d.Status, &d.Attempts,
		&lastAttempt, &nextRetry, &d.ErrorMessage, &deliveredAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrDeliveryNotFound
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	d.LastAttempt = timeOrZero(lastAttempt)
	d.NextRetry = timeOrZero(nextRetry)
	d.DeliveredAt = timeOrZero(deliveredAt)
	d.CreatedAt = time.Unix(0, createdAt)
	return &d, nil
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
