package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"community-subscription-bot/internal/domain/model"
	"community-subscription-bot/internal/domain/ports/repository"
	"community-subscription-bot/internal/infra/metrics"
	red "community-subscription-bot/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches point lookups by id and telegram id.
// Lookups inside a transaction always go to the database.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "user_cache").Logger(),
	}
}

func userIDKey(id string) string  { return fmt.Sprintf("user:id:%s", id) }
func userTgKey(tgID int64) string { return fmt.Sprintf("user:tgid:%d", tgID) }

// For write operations, we must invalidate all possible keys for that user.
func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if err := d.cache.Del(ctx, userIDKey(u.ID), userTgKey(u.TelegramID)); err != nil {
		d.log.Warn().Err(err).Str("user_id", u.ID).Msg("cache invalidate failed")
	}
	return d.inner.Save(ctx, tx, u)
}

func (d *userRepoCacheDecorator) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if tx != nil {
		return d.inner.FindByTelegramID(ctx, tx, tgID)
	}
	if u, ok := d.get(ctx, userTgKey(tgID)); ok {
		return u, nil
	}
	u, err := d.inner.FindByTelegramID(ctx, tx, tgID)
	if err != nil {
		return nil, err
	}
	d.put(ctx, u)
	return u, nil
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	if u, ok := d.get(ctx, userIDKey(id)); ok {
		return u, nil
	}
	u, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.put(ctx, u)
	return u, nil
}

// Pass-through methods that don't need caching
func (d *userRepoCacheDecorator) ListPage(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	metrics.IncCacheRequest("user_list", "bypass")
	return d.inner.ListPage(ctx, tx, offset, limit)
}

func (d *userRepoCacheDecorator) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	return d.inner.CountUsers(ctx, tx)
}

func (d *userRepoCacheDecorator) get(ctx context.Context, key string) (*model.User, bool) {
	val, err := d.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		metrics.IncCacheRequest("user", "miss")
		return nil, false
	}
	var u model.User
	if err := json.Unmarshal([]byte(val), &u); err != nil {
		metrics.IncCacheRequest("user", "miss")
		return nil, false
	}
	metrics.IncCacheRequest("user", "hit")
	return &u, true
}

// put warms both keys so a lookup by either id hits next time.
func (d *userRepoCacheDecorator) put(ctx context.Context, u *model.User) {
	if u == nil {
		return
	}
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, userTgKey(u.TelegramID), b, d.ttl)
	_ = d.cache.Set(ctx, userIDKey(u.ID), b, d.ttl)
}
