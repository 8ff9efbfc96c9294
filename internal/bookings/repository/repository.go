// Package repository persists booking-derived CRM records in Postgres.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mfeltenmark/freelance-crm/platform/apperr"
	"github.com/mfeltenmark/freelance-crm/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation         = "23505"
	activityBookingIDUnique = "activities_booking_id_key"
	contactColumns          = "id, first_name, last_name, email, phone, company_id, tags, created_at, updated_at"
	companyColumns          = "id, name, tags, created_at, updated_at"
	leadColumns             = "id, title, description, company_id, stage, status, estimated_value, is_paid, close_probability, lead_score, source, source_details, tags, first_contact_date, last_activity_date, created_at, updated_at"
	activityColumns         = "id, lead_id, contact_id, type, subject, description, activity_date, duration_minutes, outcome, metadata, booking_id, created_at, updated_at"
	taskColumns             = "id, lead_id, title, description, due_date, priority, status, created_at, updated_at"
)

// ErrDuplicateBooking is wrapped into the conflict returned when a booking id is stored twice.
var ErrDuplicateBooking = errors.New("booking already ingested")

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Tx is the set of queries available inside a booking transaction.
type Tx interface {
	LockKey(ctx context.Context, key string) error
	UpsertContact(ctx context.Context, params UpsertContactParams) (Contact, error)
	FindCompanyByName(ctx context.Context, name string) (*Company, error)
	CreateCompany(ctx context.Context, company Company) (Company, error)
	SetContactCompany(ctx context.Context, contactID, companyID uuid.UUID, at time.Time) error
	FindActiveLead(ctx context.Context, companyID uuid.UUID, eventType string) (*Lead, error)
	TouchLead(ctx context.Context, leadID uuid.UUID, at time.Time, minScore int) (Lead, error)
	CreateLead(ctx context.Context, lead Lead) (Lead, error)
	FindActivityByBookingID(ctx context.Context, bookingID string) (*Activity, error)
	CreateActivity(ctx context.Context, activity Activity) (Activity, error)
	UpdateActivity(ctx context.Context, activity Activity) error
	CreateTask(ctx context.Context, task Task) (Task, error)
	CancelOpenTasks(ctx context.Context, leadID uuid.UUID, at time.Time) (int64, error)
}

// Repository runs booking transactions against Postgres.
type Repository struct {
	pool TxBeginner
}

// New creates a new repository.
func New(pool TxBeginner) *Repository {
	return &Repository{pool: pool}
}

// WithinTx runs fn in one transaction. Any error from fn rolls back every write.
func (r *Repository) WithinTx(ctx context.Context, fn func(Tx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(&queries{db: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type queries struct {
	db db.DBTX
}

// LockKey takes a transaction-scoped advisory lock so find-or-create on the same natural key is serialised.
func (q *queries) LockKey(ctx context.Context, key string) error {
	if _, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("failed to lock %q: %w", key, err)
	}
	return nil
}

func (q *queries) UpsertContact(ctx context.Context, params UpsertContactParams) (Contact, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO contacts (id, first_name, last_name, email, phone, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (email) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = COALESCE(EXCLUDED.phone, contacts.phone),
			tags = ARRAY(SELECT DISTINCT t FROM unnest(contacts.tags || EXCLUDED.tags) AS t ORDER BY t),
			updated_at = EXCLUDED.updated_at
		RETURNING `+contactColumns,
		uuid.New(), params.FirstName, params.LastName, params.Email, params.Phone, tagsOrEmpty(params.Tags), params.At,
	)

	contact, err := scanContact(row)
	if err != nil {
		return Contact{}, fmt.Errorf("failed to upsert contact: %w", err)
	}
	return contact, nil
}

func (q *queries) FindCompanyByName(ctx context.Context, name string) (*Company, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+companyColumns+` FROM companies
		WHERE name = $1
		ORDER BY created_at, id
		LIMIT 1`, name)

	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	return &c, nil
}

func (q *queries) CreateCompany(ctx context.Context, company Company) (Company, error) {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO companies (id, name, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+companyColumns,
		company.ID, company.Name, tagsOrEmpty(company.Tags), company.CreatedAt,
	)

	var c Company
	if err := row.Scan(&c.ID, &c.Name, &c.Tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Company{}, fmt.Errorf("failed to create company: %w", err)
	}
	return c, nil
}

func (q *queries) SetContactCompany(ctx context.Context, contactID, companyID uuid.UUID, at time.Time) error {
	tag, err := q.db.Exec(ctx, `UPDATE contacts SET company_id = $2, updated_at = $3 WHERE id = $1`, contactID, companyID, at)
	if err != nil {
		return fmt.Errorf("failed to link contact to company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("contact not found")
	}
	return nil
}

// FindActiveLead returns the oldest ACTIVE lead of the company whose title contains eventType.
func (q *queries) FindActiveLead(ctx context.Context, companyID uuid.UUID, eventType string) (*Lead, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE company_id = $1 AND status = 'ACTIVE' AND strpos(title, $2) > 0
		ORDER BY created_at, id
		LIMIT 1`, companyID, eventType)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active lead: %w", err)
	}
	return &lead, nil
}

// TouchLead records a repeat booking. The score is raised to minScore but never lowered.
func (q *queries) TouchLead(ctx context.Context, leadID uuid.UUID, at time.Time, minScore int) (Lead, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE leads
		SET last_activity_date = $2, lead_score = GREATEST(lead_score, $3), updated_at = $2
		WHERE id = $1
		RETURNING `+leadColumns, leadID, at, minScore)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return Lead{}, fmt.Errorf("failed to update lead: %w", err)
	}
	return lead, nil
}

func (q *queries) CreateLead(ctx context.Context, lead Lead) (Lead, error) {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	details, err := marshalNullable(lead.SourceDetails)
	if err != nil {
		return Lead{}, err
	}

	row := q.db.QueryRow(ctx, `
		INSERT INTO leads (
			id, title, description, company_id, stage, status, estimated_value, is_paid,
			close_probability, lead_score, source, source_details, tags,
			first_contact_date, last_activity_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING `+leadColumns,
		lead.ID, lead.Title, lead.Description, lead.CompanyID, lead.Stage, lead.Status, lead.EstimatedValue, lead.IsPaid,
		lead.CloseProbability, lead.LeadScore, lead.Source, details, tagsOrEmpty(lead.Tags),
		lead.FirstContactDate, lead.LastActivityDate, lead.CreatedAt,
	)

	created, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("failed to create lead: %w", err)
	}
	return created, nil
}

func (q *queries) FindActivityByBookingID(ctx context.Context, bookingID string) (*Activity, error) {
	row := q.db.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE booking_id = $1`, bookingID)

	activity, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find activity by booking id: %w", err)
	}
	return &activity, nil
}

func (q *queries) CreateActivity(ctx context.Context, activity Activity) (Activity, error) {
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	metadata, err := json.Marshal(activity.Metadata)
	if err != nil {
		return Activity{}, fmt.Errorf("failed to encode activity metadata: %w", err)
	}

	row := q.db.QueryRow(ctx, `
		INSERT INTO activities (
			id, lead_id, contact_id, type, subject, description, activity_date,
			duration_minutes, outcome, metadata, booking_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING `+activityColumns,
		activity.ID, activity.LeadID, activity.ContactID, activity.Type, activity.Subject, activity.Description,
		activity.ActivityDate, activity.DurationMinutes, activity.Outcome, metadata, activity.BookingID, activity.CreatedAt,
	)

	created, err := scanActivity(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activityBookingIDUnique {
			return Activity{}, apperr.Wrap(apperr.KindConflict, "Booking already processed", ErrDuplicateBooking)
		}
		return Activity{}, fmt.Errorf("failed to create activity: %w", err)
	}
	return created, nil
}

// UpdateActivity rewrites the mutable fields of a booking activity.
func (q *queries) UpdateActivity(ctx context.Context, activity Activity) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE activities
		SET subject = $2, description = $3, outcome = $4, activity_date = $5, updated_at = $6
		WHERE id = $1`,
		activity.ID, activity.Subject, activity.Description, activity.Outcome, activity.ActivityDate, activity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("activity not found")
	}
	return nil
}

func (q *queries) CreateTask(ctx context.Context, task Task) (Task, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	row := q.db.QueryRow(ctx, `
		INSERT INTO tasks (id, lead_id, title, description, due_date, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+taskColumns,
		task.ID, task.LeadID, task.Title, task.Description, task.DueDate, task.Priority, task.Status, task.CreatedAt,
	)

	var t Task
	if err := row.Scan(&t.ID, &t.LeadID, &t.Title, &t.Description, &t.DueDate, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, fmt.Errorf("failed to create task: %w", err)
	}
	return t, nil
}

// CancelOpenTasks moves every todo task of the lead to cancelled and reports how many changed.
func (q *queries) CancelOpenTasks(ctx context.Context, leadID uuid.UUID, at time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE tasks SET status = 'cancelled', updated_at = $2
		WHERE lead_id = $1 AND status = 'todo'`, leadID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CompanyID, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanLead(row pgx.Row) (Lead, error) {
	var (
		l       Lead
		details []byte
	)
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.CompanyID, &l.Stage, &l.Status, &l.EstimatedValue, &l.IsPaid,
		&l.CloseProbability, &l.LeadScore, &l.Source, &details, &l.Tags,
		&l.FirstContactDate, &l.LastActivityDate, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	if len(details) > 0 {
		l.SourceDetails = &LeadSourceDetails{}
		if err := json.Unmarshal(details, l.SourceDetails); err != nil {
			return Lead{}, fmt.Errorf("failed to decode lead source details: %w", err)
		}
	}
	return l, nil
}

func scanActivity(row pgx.Row) (Activity, error) {
	var (
		a        Activity
		metadata []byte
	)
	err := row.Scan(
		&a.ID, &a.LeadID, &a.ContactID, &a.Type, &a.Subject, &a.Description, &a.ActivityDate,
		&a.DurationMinutes, &a.Outcome, &metadata, &a.BookingID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Activity{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return Activity{}, fmt.Errorf("failed to decode activity metadata: %w", err)
		}
	}
	return a, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func marshalNullable(v *LeadSourceDetails) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lead source details: %w", err)
	}
	return data, nil
}

var _ Tx = (*queries)(nil)
