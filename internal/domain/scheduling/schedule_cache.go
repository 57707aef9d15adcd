package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/clinic/internal/platform/cache"
	"github.com/dentaldesk/clinic/internal/platform/db"
)

// cachedScheduleRepo reads calendars through a cache. Writes go to the
// inner repository first and then drop the cached copy, so a failed
// invalidation costs at most one TTL of staleness.
type cachedScheduleRepo struct {
	inner  ScheduleRepository
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedScheduleRepo wraps inner with c. Cache errors are logged and the
// call falls through to inner.
func NewCachedScheduleRepo(inner ScheduleRepository, c cache.Cache, ttl time.Duration, logger zerolog.Logger) ScheduleRepository {
	return &cachedScheduleRepo{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func scheduleKey(ctx context.Context, dentistID uuid.UUID) string {
	return "schedule:" + db.TenantFromContext(ctx) + ":" + dentistID.String()
}

func (r *cachedScheduleRepo) Get(ctx context.Context, dentistID uuid.UUID) (*Schedule, error) {
	key := scheduleKey(ctx, dentistID)

	var s Schedule
	hit, err := cache.GetJSON(ctx, r.cache, key, &s)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("schedule cache read failed")
	}
	if hit {
		return &s, nil
	}

	fresh, err := r.inner.Get(ctx, dentistID)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, r.cache, key, fresh, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("schedule cache write failed")
	}
	return fresh, nil
}

func (r *cachedScheduleRepo) Forget(ctx context.Context, dentistID uuid.UUID) error {
	if err := r.inner.Forget(ctx, dentistID); err != nil {
		return err
	}
	return r.cache.Delete(ctx, scheduleKey(ctx, dentistID))
}

func (r *cachedScheduleRepo) Upsert(ctx context.Context, s *Schedule) error {
	if err := r.inner.Upsert(ctx, s); err != nil {
		return err
	}
	key := scheduleKey(ctx, s.DentistID)
	if err := r.cache.Delete(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("schedule cache invalidation failed")
	}
	return nil
}
