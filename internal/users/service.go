package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"collectvoice/pkg/logger"
	"collectvoice/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

const cacheTTL = 60 * time.Second

// Service looks up debtors with a redis cache in front of the repository.
// Cache entries are invalidated when the recorder updates remaining debt.
// A nil redis client disables caching (useful for tests).
type Service struct {
	repo Repository
	rdb  *redis.Client
}

func NewService(repo Repository, rdb *redis.Client) *Service {
	return &Service{repo: repo, rdb: rdb}
}

// ByPhone returns the debtor registered under phone, or ErrNotFound.
func (s *Service) ByPhone(ctx context.Context, phone string) (User, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return User{}, ErrInvalidArgument
	}

	key := phoneCacheKey(phone)
	if s.rdb != nil {
		var cached User
		hit, err := utils.CacheGetJSON(ctx, s.rdb, key, &cached)
		if err != nil {
			// Cache trouble must not fail the lookup.
			logger.From(ctx).Warn("user cache read failed", "err", err)
		} else if hit {
			return cached, nil
		}
	}

	u, err := s.repo.ByPhone(ctx, phone)
	if err != nil {
		return User{}, err
	}

	if s.rdb != nil {
		if err := utils.CacheSetJSON(ctx, s.rdb, key, u, cacheTTL); err != nil {
			logger.From(ctx).Warn("user cache write failed", "err", err)
		}
	}
	return u, nil
}

// ByID returns the debtor by opaque id, or ErrNotFound. Uncached: the write
// path reads through it and must see current debt.
func (s *Service) ByID(ctx context.Context, id string) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.ByID(ctx, id)
}

// InvalidatePhone drops the cached lookup for phone after a debt update.
func (s *Service) InvalidatePhone(ctx context.Context, phone string) {
	if s.rdb == nil {
		return
	}
	phone = NormalizePhone(phone)
	if phone == "" {
		return
	}
	if err := utils.CacheDel(ctx, s.rdb, phoneCacheKey(phone)); err != nil {
		logger.From(ctx).Warn("user cache invalidation failed", "err", err, "phone", phone)
	}
}

// NormalizePhone strips whitespace and dashes so dashboard-entered numbers and
// the voice platform's caller ids compare equal.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return s
}

func phoneCacheKey(phone string) string {
	return "user:phone:" + phone
}
