package hr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGDirectory reads reference data from the portal's own tables. The engine
// never writes them; users, employees, and events are owned by the CRUD
// collaborator.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory creates a directory over an established pool.
func NewPGDirectory(pool *pgxpool.Pool) (*PGDirectory, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	return &PGDirectory{pool: pool}, nil
}

func (d *PGDirectory) ListEmployees(ctx context.Context, excludeEmployeeID int64) ([]Employee, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT e.id, e.first_name, e.last_name, u.id, u.username, u.email
		FROM employees e
		LEFT JOIN users u ON u.id = e.user_id
		WHERE e.id <> $1
		ORDER BY e.id`, excludeEmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var (
			e        Employee
			userID   *int64
			username *string
			email    *string
		)
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &userID, &username, &email); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		if userID != nil {
			e.User = &User{ID: *userID}
			if username != nil {
				e.User.Username = *username
			}
			if email != nil {
				e.User.Email = *email
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}
	return out, nil
}

func (d *PGDirectory) Event(ctx context.Context, id int64) (*Event, error) {
	var event Event
	err := d.pool.QueryRow(ctx, `
		SELECT e.id, e.title, COALESCE(e.description, ''), COALESCE(e.location, ''),
		       e.start_time, e.end_time, u.id
		FROM events e
		JOIN employees o ON o.id = e.organizer_id
		JOIN users u ON u.id = o.user_id
		WHERE e.id = $1`, id,
	).Scan(&event.ID, &event.Title, &event.Description, &event.Location,
		&event.StartTime, &event.EndTime, &event.OrganizerUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return &event, nil
}

func (d *PGDirectory) EmailAddress(ctx context.Context, userID int64) (string, error) {
	var email *string
	err := d.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up email for user %d: %w", userID, err)
	}
	if email == nil {
		return "", nil
	}
	return *email, nil
}

var _ Directory = (*PGDirectory)(nil)
