package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	manager := NewSessionManager(time.Hour, WithClock(clock.Now))
	token, expiresAt, err := manager.Create(ctx, "user-123")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("expected expiry one hour out, got %v", expiresAt)
	}

	userID, expires, ok, err := manager.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to validate")
	}
	if userID != "user-123" {
		t.Fatalf("expected user id user-123, got %s", userID)
	}
	if !expires.Equal(expiresAt) {
		t.Fatalf("expected expiry %v, got %v", expiresAt, expires)
	}

	if err := manager.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if _, _, ok, err := manager.Validate(ctx, token); err != nil || ok {
		if err != nil {
			t.Fatalf("Validate returned error for revoked token: %v", err)
		}
		t.Fatal("expected revoked token to be invalid")
	}
}

func TestSessionExpiration(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	store := NewMemorySessionStore()
	manager := NewSessionManager(10*time.Minute, WithStore(store), WithClock(clock.Now))
	token, _, err := manager.Create(ctx, "user-123")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	clock.Advance(11 * time.Minute)
	if err := manager.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired returned error: %v", err)
	}
	if _, ok, err := store.Get(ctx, token); err != nil {
		t.Fatalf("Get returned error: %v", err)
	} else if ok {
		t.Fatalf("expected expired session to be purged")
	}
	if _, _, ok, err := manager.Validate(ctx, token); err != nil || ok {
		if err != nil {
			t.Fatalf("Validate returned error for expired token: %v", err)
		}
		t.Fatal("expected expired token to be invalid")
	}
}

func TestValidateDeletesExpiredSession(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	store := NewMemorySessionStore()
	manager := NewSessionManager(time.Minute, WithStore(store), WithClock(clock.Now))
	token, _, err := manager.Create(ctx, "user-123")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if _, _, ok, _ := manager.Validate(ctx, token); ok {
		t.Fatal("expected expired token to be rejected")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired session removed on validate, %d remain", store.Len())
	}
}

func TestCreateRequiresUserID(t *testing.T) {
	manager := NewSessionManager(time.Minute)
	if _, _, err := manager.Create(context.Background(), ""); err != ErrInvalidUserID {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestValidateEmptyToken(t *testing.T) {
	manager := NewSessionManager(time.Minute)
	userID, _, ok, err := manager.Validate(context.Background(), "")
	if err != nil || ok || userID != "" {
		t.Fatalf("expected empty token to be rejected quietly, got user=%q ok=%v err=%v", userID, ok, err)
	}
}

func TestSessionPersistsAcrossManagers(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	first := NewSessionManager(time.Minute, WithStore(store))
	token, _, err := first.Create(ctx, "persistent-user")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	second := NewSessionManager(time.Minute, WithStore(store))
	userID, _, ok, err := second.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to validate after manager restart")
	}
	if userID != "persistent-user" {
		t.Fatalf("expected user persistent-user, got %s", userID)
	}
}

func TestConcurrentValidationAcrossManagers(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	primary := NewSessionManager(time.Minute, WithStore(store))
	token, _, err := primary.Create(ctx, "user-xyz")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	const workers = 8
	wg := sync.WaitGroup{}
	wg.Add(workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			replica := NewSessionManager(time.Minute, WithStore(store))
			userID, _, ok, err := replica.Validate(ctx, token)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				errs <- fmt.Errorf("token rejected by replica")
				return
			}
			if userID != "user-xyz" {
				errs <- fmt.Errorf("unexpected user id %s", userID)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("replica validation error: %v", err)
	}
}

func TestValidateRefreshesIdleTimeout(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	store := NewMemorySessionStore()
	manager := NewSessionManager(time.Hour, WithStore(store), WithIdleTimeout(5*time.Minute), WithClock(clock.Now))

	token, initialExpiry, err := manager.Create(ctx, "user-refresh")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	clock.Advance(time.Minute)
	_, refreshed, ok, err := manager.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to validate")
	}
	if !refreshed.After(initialExpiry) {
		t.Fatalf("expected refreshed expiry after initial %v, got %v", initialExpiry, refreshed)
	}
	if record, _, _ := store.Get(ctx, token); !record.ExpiresAt.Equal(refreshed) {
		t.Fatalf("expected store expiry to refresh to %v, got %v", refreshed, record.ExpiresAt)
	}

	clock.Advance(6 * time.Minute)
	if _, _, ok, _ := manager.Validate(ctx, token); ok {
		t.Fatal("expected idle session to expire")
	}
}

func TestValidateHonorsAbsoluteTTL(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	store := NewMemorySessionStore()
	manager := NewSessionManager(10*time.Minute, WithStore(store), WithIdleTimeout(8*time.Minute), WithClock(clock.Now))

	token, _, err := manager.Create(ctx, "user-absolute")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	record, ok, err := store.Get(ctx, token)
	if err != nil || !ok {
		t.Fatalf("expected session record, got ok=%v err=%v", ok, err)
	}
	absoluteExpiry := record.AbsoluteExpiresAt

	clock.Advance(7 * time.Minute)
	_, refreshed, ok, err := manager.Validate(ctx, token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected token to validate before absolute expiry")
	}
	if !refreshed.Equal(absoluteExpiry) {
		t.Fatalf("expected refresh capped at absolute expiry %v, got %v", absoluteExpiry, refreshed)
	}

	clock.Advance(4 * time.Minute)
	if _, _, ok, _ := manager.Validate(ctx, token); ok {
		t.Fatal("expected session past absolute expiry to be rejected")
	}
}

func TestMemoryStoreKeysByHash(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	if err := store.Save(ctx, "raw-token", "user", time.Now().Add(time.Hour), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	hashed, _ := hashSessionToken("raw-token")
	store.mu.RLock()
	_, byHash := store.sessions[hashed]
	_, byRaw := store.sessions["raw-token"]
	store.mu.RUnlock()
	if !byHash || byRaw {
		t.Fatalf("expected session keyed by hash only, byHash=%v byRaw=%v", byHash, byRaw)
	}
	record, ok, err := store.Get(ctx, "raw-token")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if record.Token != "raw-token" {
		t.Fatalf("expected record to carry the caller's token, got %q", record.Token)
	}
	if err := store.Save(ctx, "", "user", time.Now(), time.Now()); err != errSessionTokenRequired {
		t.Fatalf("expected errSessionTokenRequired, got %v", err)
	}
}
