package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/givecrm/internal/models"
	"github.com/desertthunder/givecrm/internal/shared"
)

const deliveryColumns = `id, sequence, request_id, provider, event, transaction_id, email, status,
	contact_id, contribution_id, membership_id, error, payload, attempts, created_at, updated_at, deleted_at`

var _ models.Repository[*models.Delivery] = (*DeliveryRepository)(nil)

// DeliveryRepository implements models.Repository[*models.Delivery] for the delivery log.
type DeliveryRepository struct {
	db *sql.DB
}

// NewDeliveryRepository creates a new DeliveryRepository with the given database connection
func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Create inserts a new delivery with a generated ID and the next sequence number
func (r *DeliveryRepository) Create(d *models.Delivery) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "deliveries")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	d.SetID(shared.GenerateID())
	d.SetSequence(sequence)

	query := `
		INSERT INTO deliveries (id, sequence, request_id, provider, event, transaction_id, email, status,
			contact_id, contribution_id, membership_id, error, payload, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		d.ID(),
		d.Sequence(),
		d.RequestID(),
		d.Provider(),
		d.Event(),
		d.TransactionID(),
		d.Email(),
		d.Status(),
		d.ContactID(),
		d.ContributionID(),
		d.MembershipID(),
		d.ErrorMessage(),
		d.Payload(),
		d.Attempts(),
		d.CreatedAt(),
		d.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}

	return nil
}

// Get retrieves a delivery by ID, excluding soft-deleted deliveries
func (r *DeliveryRepository) Get(id string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = ? AND deleted_at IS NULL`

	d, err := scanDelivery(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrDeliveryNotFound, id)
	}
	return d, err
}

// Update writes the processing outcome of a delivery
func (r *DeliveryRepository) Update(d *models.Delivery) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	d.SetUpdatedAt(now)

	query := `
		UPDATE deliveries
		SET transaction_id = ?, email = ?, status = ?, contact_id = ?, contribution_id = ?, membership_id = ?,
			error = ?, attempts = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		d.TransactionID(),
		d.Email(),
		d.Status(),
		d.ContactID(),
		d.ContributionID(),
		d.MembershipID(),
		d.ErrorMessage(),
		d.Attempts(),
		now,
		d.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}

	return requireRow(result, d.ID())
}

// Delete soft-deletes a delivery by ID
func (r *DeliveryRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE deliveries SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete delivery: %w", err)
	}
	return requireRow(result, id)
}

// List retrieves deliveries matching criteria, newest first, excluding soft-deleted deliveries.
//
// Supported criteria: "status", "event", "provider", "email", "transaction_id", "request_id"
// (string), "since" ([time.Time]) and "limit" (int).
func (r *DeliveryRepository) List(criteria map[string]any) ([]*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE deleted_at IS NULL`
	args := []any{}

	for _, column := range []string{"status", "event", "provider", "transaction_id", "request_id"} {
		if v, ok := criteria[column].(string); ok && v != "" {
			query += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	if email, ok := criteria["email"].(string); ok && email != "" {
		query += " AND email = ?"
		args = append(args, shared.NormalizeEmail(email))
	}

	if since, ok := criteria["since"].(time.Time); ok && !since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, since)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return deliveries, nil
}

// CountByStatus returns the number of live deliveries per status.
func (r *DeliveryRepository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM deliveries WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan delivery count: %w", err)
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

// Purge soft-deletes every delivery created before cutoff and returns how many were removed.
func (r *DeliveryRepository) Purge(cutoff time.Time) (int, error) {
	result, err := r.db.Exec(`UPDATE deliveries SET deleted_at = ? WHERE created_at < ? AND deleted_at IS NULL`, time.Now(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge deliveries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanDelivery scans a row from [sql.Row] or [sql.Rows] into a [models.Delivery]
func scanDelivery(row scanner) (*models.Delivery, error) {
	var (
		id             string
		sequence       int
		requestID      string
		provider       string
		event          string
		transactionID  string
		email          string
		status         string
		contactID      int
		contributionID int
		membershipID   int
		errorMessage   string
		payload        []byte
		attempts       int
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := row.Scan(&id, &sequence, &requestID, &provider, &event, &transactionID, &email, &status,
		&contactID, &contributionID, &membershipID, &errorMessage, &payload, &attempts, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery: %w", err)
	}

	d := models.NewDelivery(sequence, provider, event, payload)
	d.SetID(id)
	d.SetRequestID(requestID)
	d.SetTransactionID(transactionID)
	d.SetEmail(email)
	d.SetStatus(status)
	d.SetIdentifiers(contactID, contributionID, membershipID)
	d.SetErrorMessage(errorMessage)
	d.SetAttempts(attempts)
	d.SetCreatedAt(createdAt)
	d.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		d.SetDeletedAt(&deletedAt.Time)
	}

	return d, nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrDeliveryNotFound, id)
	}
	return nil
}
