package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepository(db pgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const leadColumns = `id, call_id, client_name, phone_number, email, zip, part_requested,
		make, model, year, trim, status, source, notes, notes_added_by, created_at`

// Create inserts the lead, returning the stored row when the ID already exists.
func (r *PostgresRepository) Create(ctx context.Context, lead *LeadRecord) (*LeadRecord, error) {
	stored, _, err := r.Insert(ctx, lead)
	return stored, err
}

func (r *PostgresRepository) Insert(ctx context.Context, lead *LeadRecord) (*LeadRecord, bool, error) {
	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		lead.ID,
		lead.CallID,
		lead.ClientName,
		lead.PhoneNumber,
		lead.Email,
		lead.Zip,
		lead.PartRequested,
		lead.Make,
		lead.Model,
		lead.Year,
		lead.Trim,
		lead.Status,
		lead.Source,
		lead.Notes,
		lead.NotesAddedBy,
		lead.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("leads: insert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := r.GetByID(ctx, lead.ID)
		return existing, false, err
	}
	return lead, true, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*LeadRecord, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// List returns leads newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*LeadRecord, error) {
	since := filter.Since
	if since.IsZero() {
		since = time.Unix(0, 0).UTC()
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE ($1 = '' OR status = $1) AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, filter.Status, since, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*LeadRecord{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list rows: %w", err)
	}
	return out, nil
}

func scanLead(row pgx.Row) (*LeadRecord, error) {
	var lead LeadRecord
	if err := row.Scan(
		&lead.ID,
		&lead.CallID,
		&lead.ClientName,
		&lead.PhoneNumber,
		&lead.Email,
		&lead.Zip,
		&lead.PartRequested,
		&lead.Make,
		&lead.Model,
		&lead.Year,
		&lead.Trim,
		&lead.Status,
		&lead.Source,
		&lead.Notes,
		&lead.NotesAddedBy,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &lead, nil
}
