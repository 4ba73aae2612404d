package contacts

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/voxlane/voxlane-core/pkg/logger"
)

var ErrContactNotFound = errors.New("contact not found")

type Repository struct {
	db  *bun.DB
	log *slog.Logger
}

func NewRepository(db *bun.DB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("contacts.repository"))}
}

func (r *Repository) GetByID(ctx context.Context, companyID, id string) (*Contact, error) {
	c := &Contact{}
	err := r.db.NewSelect().
		Model(c).
		Where("ct.id = ?", id).
		Where("ct.company_id = ?", companyID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByEmail returns every contact in the company whose normalized email
// matches. More than one result means the business key is ambiguous and the
// caller must not guess.
func (r *Repository) FindByEmail(ctx context.Context, companyID, emailNormalized string) ([]*Contact, error) {
	var out []*Contact
	err := r.db.NewSelect().
		Model(&out).
		Where("ct.company_id = ?", companyID).
		Where("ct.email_normalized = ?", emailNormalized).
		Order("ct.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByPhone is the phone-key variant of FindByEmail.
func (r *Repository) FindByPhone(ctx context.Context, companyID, phoneNormalized string) ([]*Contact, error) {
	var out []*Contact
	err := r.db.NewSelect().
		Model(&out).
		Where("ct.company_id = ?", companyID).
		Where("ct.phone_normalized = ?", phoneNormalized).
		Order("ct.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) Create(ctx context.Context, c *Contact) error {
	c.Normalize()
	_, err := r.db.NewInsert().Model(c).Returning("*").Exec(ctx)
	return err
}

func (r *Repository) Update(ctx context.Context, c *Contact) error {
	c.Normalize()
	c.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().
		Model(c).
		WherePK().
		Where("ct.company_id = ?", c.CompanyID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrContactNotFound
	}
	return nil
}

// ListUpdatedSince returns the company's contacts touched at or after the
// cursor, oldest first. The cursor is a keyset of (updated_at, id) rather
// than a bare timestamp: a bulk insert commits many rows with one now(), and
// a timestamp-only cursor would skip every row sharing the batch-boundary
// timestamp. Used by outbound sync to find local edits worth pushing.
func (r *Repository) ListUpdatedSince(ctx context.Context, companyID string, since time.Time, afterID string, limit int) ([]*Contact, error) {
	var out []*Contact
	q := r.db.NewSelect().
		Model(&out).
		Where("ct.company_id = ?", companyID).
		Order("ct.updated_at ASC", "ct.id ASC")
	if !since.IsZero() {
		q = q.Where("(ct.updated_at, ct.id) > (?, ?::uuid)", since, afterID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return out, nil
}
