package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/mekobeko2222/bubbles-ecommerce-app/pkg/dispatch"
)

// ActiveTokensKey holds the cached list of active admin tokens.
const ActiveTokensKey = "bubbles:admin_tokens:active"

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns an error when the key is missing.
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedAdminTokenStore adds read-aside caching of the active token list to
// any AdminTokenStore. Every write invalidates the list.
type CachedAdminTokenStore struct {
	dispatch.AdminTokenStore
	cache  CacheClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedAdminTokenStore(realStore dispatch.AdminTokenStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedAdminTokenStore {
	return &CachedAdminTokenStore{
		AdminTokenStore: realStore,
		cache:           cache,
		ttl:             ttl,
		logger:          logger.With("component", "CachedAdminTokenStore"),
	}
}

func (s *CachedAdminTokenStore) ActiveTokens(ctx context.Context) ([]string, error) {
	var cached []string
	if err := s.cache.Get(ctx, ActiveTokensKey, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.AdminTokenStore.ActiveTokens(ctx)
	if err != nil {
		return nil, err
	}

	// Redis being down only costs us a Firestore read.
	if err := s.cache.Set(ctx, ActiveTokensKey, fresh, s.ttl); err != nil {
		s.logger.Warn("Failed to cache active admin tokens", "err", err)
	}
	return fresh, nil
}

func (s *CachedAdminTokenStore) Register(ctx context.Context, ownerID, token string) error {
	if err := s.AdminTokenStore.Register(ctx, ownerID, token); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedAdminTokenStore) Deactivate(ctx context.Context, ownerID string) error {
	if err := s.AdminTokenStore.Deactivate(ctx, ownerID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedAdminTokenStore) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.AdminTokenStore.DeleteUpdatedBefore(ctx, cutoff)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.invalidate(ctx)
	}
	return n, nil
}

// invalidate drops the cached list. The write it follows has already been
// committed, so a failure here is logged and the list expires with its TTL.
func (s *CachedAdminTokenStore) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, ActiveTokensKey); err != nil {
		s.logger.Warn("Failed to invalidate cached admin tokens", "err", err, "ttl", s.ttl)
	}
}

// InvalidatingReconciler clears the cached token list after every reconcile
// that touched at least one token.
type InvalidatingReconciler struct {
	next   dispatch.Reconciler
	cache  CacheClient
	logger *slog.Logger
}

func NewInvalidatingReconciler(next dispatch.Reconciler, cache CacheClient, logger *slog.Logger) *InvalidatingReconciler {
	return &InvalidatingReconciler{
		next:   next,
		cache:  cache,
		logger: logger.With("component", "InvalidatingReconciler"),
	}
}

func (r *InvalidatingReconciler) Reconcile(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if err := r.next.Reconcile(ctx, tokens); err != nil {
		return err
	}
	if err := r.cache.Del(ctx, ActiveTokensKey); err != nil {
		r.logger.Warn("Failed to invalidate cached admin tokens after reconcile", "err", err)
	}
	return nil
}
