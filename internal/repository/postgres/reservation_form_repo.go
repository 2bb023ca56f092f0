package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/propline/dealdesk-backend/internal/domain"
)

// ReservationFormRepository implements domain.ReservationFormRepository using
// PostgreSQL.
type ReservationFormRepository struct {
	pool *pgxpool.Pool
}

// NewReservationFormRepository creates a new ReservationFormRepository.
func NewReservationFormRepository(pool *pgxpool.Pool) *ReservationFormRepository {
	return &ReservationFormRepository{pool: pool}
}

const formColumns = `id, payment_plan_id, unit_id, reservation_date, preliminary_payment, status, details, created_by, created_at, updated_at`

func scanForm(row pgx.Row) (*domain.ReservationForm, error) {
	var (
		f       domain.ReservationForm
		payment pgtype.Numeric
		status  string
		details []byte
	)
	err := row.Scan(&f.ID, &f.PaymentPlanID, &f.UnitID, &f.ReservationDate, &payment, &status, &details, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("Reservation form not found")
		}
		return nil, err
	}
	f.PreliminaryPayment = pgNumericToDecimal(payment)
	f.Status = domain.ReservationStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &f.Details); err != nil {
			return nil, fmt.Errorf("decode reservation details: %w", err)
		}
	}
	return &f, nil
}

// CreateTx inserts a new reservation form within the caller's transaction, so
// the gate checks that allowed it commit or roll back together with it.
func (r *ReservationFormRepository) CreateTx(ctx context.Context, tx domain.Tx, form *domain.ReservationForm) (*domain.ReservationForm, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if form.ID == uuid.Nil {
		form.ID = uuid.New()
	}
	payment, err := decimalToPgNumeric(form.PreliminaryPayment)
	if err != nil {
		return nil, err
	}
	details, err := json.Marshal(form.Details)
	if err != nil {
		return nil, fmt.Errorf("encode reservation details: %w", err)
	}
	row := pgxTx.QueryRow(ctx, `
		INSERT INTO reservation_forms (id, payment_plan_id, unit_id, reservation_date, preliminary_payment, status, details, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+formColumns,
		form.ID, form.PaymentPlanID, form.UnitID, form.ReservationDate, payment,
		string(form.Status), details, form.CreatedBy)
	return scanForm(row)
}

// GetByID retrieves a reservation form.
func (r *ReservationFormRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReservationForm, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+formColumns+` FROM reservation_forms WHERE id = $1`, id)
	return scanForm(row)
}

// GetForUpdateTx retrieves a reservation form under a row lock.
func (r *ReservationFormRepository) GetForUpdateTx(ctx context.Context, tx domain.Tx, id uuid.UUID) (*domain.ReservationForm, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pgxTx.QueryRow(ctx, `SELECT `+formColumns+` FROM reservation_forms WHERE id = $1 FOR UPDATE`, id)
	return scanForm(row)
}

// UpdateTx writes the mutable form fields within the caller's transaction.
func (r *ReservationFormRepository) UpdateTx(ctx context.Context, tx domain.Tx, form *domain.ReservationForm) error {
	pgxTx, err := asTx(tx)
	if err != nil {
		return err
	}
	payment, err := decimalToPgNumeric(form.PreliminaryPayment)
	if err != nil {
		return err
	}
	details, err := json.Marshal(form.Details)
	if err != nil {
		return fmt.Errorf("encode reservation details: %w", err)
	}
	tag, err := pgxTx.Exec(ctx, `
		UPDATE reservation_forms
		SET reservation_date = $2, preliminary_payment = $3, status = $4, details = $5, updated_at = now()
		WHERE id = $1`,
		form.ID, form.ReservationDate, payment, string(form.Status), details)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("Reservation form not found")
	}
	return nil
}

// OpenExistsForPlanTx reports whether the plan already carries an open form.
func (r *ReservationFormRepository) OpenExistsForPlanTx(ctx context.Context, tx domain.Tx, planID uuid.UUID) (bool, error) {
	pgxTx, err := asTx(tx)
	if err != nil {
		return false, err
	}
	var exists bool
	err = pgxTx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reservation_forms
			WHERE payment_plan_id = $1 AND status IN ('pending_approval', 'approved')
		)`, planID).Scan(&exists)
	return exists, err
}

// GetApprovedByPlan returns the approved form bound to the plan.
func (r *ReservationFormRepository) GetApprovedByPlan(ctx context.Context, planID uuid.UUID) (*domain.ReservationForm, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+formColumns+` FROM reservation_forms
		WHERE payment_plan_id = $1 AND status = 'approved'
		ORDER BY updated_at DESC LIMIT 1`, planID)
	return scanForm(row)
}

// ListByStatus returns forms in one lifecycle state, oldest first.
func (r *ReservationFormRepository) ListByStatus(ctx context.Context, status domain.ReservationStatus) ([]*domain.ReservationForm, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+formColumns+` FROM reservation_forms
		WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []*domain.ReservationForm
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}
