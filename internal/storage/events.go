package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"welfarefund/internal/core"
)

const eventColumns = `id, finance_year_id, title, description, amount_cents,
	target_cents, host_employee_id, location, event_time, closed_at,
	created_at, event_status, contributors`

func scanEvent(row interface{ Scan(...any) error }) (core.Event, error) {
	var e core.Event
	var contributors string
	err := row.Scan(&e.ID, &e.FinanceYearID, &e.Title, &e.Description,
		&e.Amount.Cents, &e.TargetAmount.Cents, &e.HostEmployeeID, &e.Location,
		&e.Time, &e.ClosedAt, &e.CreatedAt, &e.Completed, &contributors)
	if err != nil {
		return core.Event{}, err
	}
	if err := json.Unmarshal([]byte(contributors), &e.Contributors); err != nil {
		return core.Event{}, fmt.Errorf("decode contributors: %w", err)
	}
	return e, nil
}

// CreateEvent inserts an event with its embedded contributor list and
// returns it with its new ID.
func (r *SQLiteRepository) CreateEvent(ctx context.Context, e core.Event) (core.Event, error) {
	contributors, err := json.Marshal(e.Contributors)
	if err != nil {
		return core.Event{}, fmt.Errorf("encode contributors: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (finance_year_id, title, description, amount_cents,
			target_cents, host_employee_id, location, event_time, closed_at,
			event_status, contributors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.FinanceYearID, e.Title, e.Description, e.Amount.Cents,
		e.TargetAmount.Cents, e.HostEmployeeID, e.Location, e.Time, e.ClosedAt,
		e.Completed, string(contributors))
	if err != nil {
		return core.Event{}, fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Event{}, fmt.Errorf("event insert id: %w", err)
	}
	e.ID = id
	return e, nil
}

// GetEvent returns the event by ID, or nil when absent.
func (r *SQLiteRepository) GetEvent(ctx context.Context, id int64) (*core.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// ListEvents returns events, optionally scoped to a year (yearID 0 means
// all years). Newest first.
func (r *SQLiteRepository) ListEvents(ctx context.Context, yearID int64) ([]core.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	if yearID != 0 {
		query += ` WHERE finance_year_id = ?`
		args = append(args, yearID)
	}
	query += ` ORDER BY closed_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// UpdateEvent persists the event's mutable fields and the contributor list.
func (r *SQLiteRepository) UpdateEvent(ctx context.Context, e core.Event) error {
	contributors, err := json.Marshal(e.Contributors)
	if err != nil {
		return fmt.Errorf("encode contributors: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, amount_cents = ?, target_cents = ?,
			host_employee_id = ?, location = ?, event_time = ?, closed_at = ?,
			event_status = ?, contributors = ?
		WHERE id = ?`,
		e.Title, e.Description, e.Amount.Cents, e.TargetAmount.Cents,
		e.HostEmployeeID, e.Location, e.Time, e.ClosedAt, e.Completed,
		string(contributors), e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("event %d not found", e.ID)
	}
	return nil
}

// DeleteEvent removes an event.
func (r *SQLiteRepository) DeleteEvent(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event rows: %w", err)
	}
	if n == 0 {
		return core.NotFoundErrorf("event %d not found", id)
	}
	return nil
}

// MarkElapsedEventsCompleted flips event_status on every event whose end
// date has passed. Returns the number of events flipped; the sweep logs it.
func (r *SQLiteRepository) MarkElapsedEventsCompleted(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET event_status = 1 WHERE event_status = 0 AND closed_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("mark elapsed events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark elapsed events rows: %w", err)
	}
	return n, nil
}
