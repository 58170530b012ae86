package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lucsky/cuid"

	"github.com/gramrelay/gramrelay/database/db"
	"github.com/gramrelay/gramrelay/instagram"
	"github.com/gramrelay/gramrelay/model"
)

type Database struct {
	connString string
	pool       *pgxpool.Pool
}

func NewDatabase(connString string) *Database {
	return &Database{
		connString: connString,
	}
}

func (d *Database) Connect(ctx context.Context) error {
	var err error
	d.pool, err = pgxpool.New(ctx, d.connString)
	if err != nil {
		return err
	}
	return nil
}

func (d *Database) Disconnect() {
	d.pool.Close()
}

// AddRequest records an inbound resolution request and returns its ID.
func (d *Database) AddRequest(ctx context.Context, chatID int64, userID int64, ref instagram.ContentReference, url string) (string, error) {
	id := cuid.New()
	_, err := d.pool.Exec(ctx, `
	INSERT INTO request_log (id, chat_id, user_id, content_type, content_id, url, status, requested)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id,
		chatID,
		userID,
		string(ref.Type),
		ref.ID,
		url,
		db.RequestStatusPending,
		time.Now().UTC(), // the DB stores timezones and assumes UTC
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (d *Database) MarkResolved(ctx context.Context, requestID string, strategy string, artifactCount int) error {
	_, err := d.pool.Exec(ctx, `
	UPDATE request_log
	SET status = $2, strategy = $3, artifact_count = $4, completed = $5
	WHERE id = $1`,
		requestID,
		db.RequestStatusResolved,
		strategy,
		artifactCount,
		time.Now().UTC(),
	)
	return err
}

func (d *Database) MarkFailed(ctx context.Context, requestID string, detail string) error {
	_, err := d.pool.Exec(ctx, `
	UPDATE request_log
	SET status = $2, detail = $3, completed = $4
	WHERE id = $1`,
		requestID,
		db.RequestStatusFailed,
		detail,
		time.Now().UTC(),
	)
	return err
}

func (d *Database) RecentRequests(ctx context.Context, limit int) ([]model.Request, error) {
	rows, err := d.pool.Query(ctx, `
	SELECT
		id,
		chat_id,
		user_id,
		content_type,
		content_id,
		url,
		status,
		strategy,
		artifact_count,
		detail,
		requested,
		completed
	FROM request_log
	ORDER BY requested DESC
	LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}

	raws, err := pgx.CollectRows(rows, pgx.RowToStructByName[db.RequestLog])
	if err != nil {
		return nil, err
	}

	var requests []model.Request
	for _, raw := range raws {
		requests = append(requests, model.RequestFromRequestLog(raw))
	}
	return requests, nil
}

// RequestStats counts logged requests by terminal status.
func (d *Database) RequestStats(ctx context.Context) (model.RequestStats, error) {
	var stats model.RequestStats
	err := d.pool.QueryRow(ctx, `
	SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = $1),
		COUNT(*) FILTER (WHERE status = $2)
	FROM request_log`,
		db.RequestStatusResolved,
		db.RequestStatusFailed,
	).Scan(&stats.Total, &stats.Resolved, &stats.Failed)
	if err != nil {
		return model.RequestStats{}, err
	}
	return stats, nil
}
