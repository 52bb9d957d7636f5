package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"memberbook/backend/internal/domain"
	"memberbook/backend/internal/store"
)

type TemplateRepo struct {
	db *bun.DB
}

func NewTemplateRepo(db *bun.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

func (r *TemplateRepo) GetTemplate(ctx context.Context, providerID string) (domain.AvailabilityTemplate, error) {
	var t domain.AvailabilityTemplate
	err := r.db.NewSelect().
		Model(&t).
		Where("provider_id = ?", providerID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AvailabilityTemplate{}, store.ErrNotFound
	}
	if err != nil {
		return domain.AvailabilityTemplate{}, mapError(err)
	}
	return t, nil
}

// PutTemplate replaces the provider's template as a whole. created_at survives the
// replace; archived_at is taken from tpl so a put can also restore an archived template.
func (r *TemplateRepo) PutTemplate(ctx context.Context, tpl domain.AvailabilityTemplate) (domain.AvailabilityTemplate, error) {
	m := tpl
	m.UpdatedAt = time.Now().UTC()
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (provider_id) DO UPDATE").
		Set("timezone = EXCLUDED.timezone").
		Set("weekly_hours = EXCLUDED.weekly_hours").
		Set("date_overrides = EXCLUDED.date_overrides").
		Set("blocked_dates = EXCLUDED.blocked_dates").
		Set("duration_minutes = EXCLUDED.duration_minutes").
		Set("buffer_minutes = EXCLUDED.buffer_minutes").
		Set("min_notice_minutes = EXCLUDED.min_notice_minutes").
		Set("horizon_days = EXCLUDED.horizon_days").
		Set("price_amount = EXCLUDED.price_amount").
		Set("currency = EXCLUDED.currency").
		Set("archived_at = EXCLUDED.archived_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return domain.AvailabilityTemplate{}, mapError(err)
	}
	return r.GetTemplate(ctx, tpl.ProviderID)
}

// ArchiveTemplate stamps archived_at once; archiving twice keeps the first timestamp.
func (r *TemplateRepo) ArchiveTemplate(ctx context.Context, providerID string, at time.Time) (domain.AvailabilityTemplate, error) {
	var t domain.AvailabilityTemplate
	err := r.db.NewRaw(
		`UPDATE availability_templates
		SET archived_at = COALESCE(archived_at, ?), updated_at = ?
		WHERE provider_id = ?
		RETURNING *`,
		at, at, providerID,
	).Scan(ctx, &t)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AvailabilityTemplate{}, store.ErrNotFound
	}
	if err != nil {
		return domain.AvailabilityTemplate{}, mapError(err)
	}
	return t, nil
}
