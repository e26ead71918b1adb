package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/puddle/v2"
)

func TestHashSessionToken(t *testing.T) {
	token := "token-to-hash"

	hashed, err := hashSessionToken(token)
	if err != nil {
		t.Fatalf("hashSessionToken: %v", err)
	}
	if hashed == token {
		t.Fatalf("expected hashed token to differ from raw value")
	}
	if len(hashed) != 64 {
		t.Fatalf("expected hex sha256 digest, got %d chars", len(hashed))
	}

	repeat, err := hashSessionToken(token)
	if err != nil {
		t.Fatalf("hashSessionToken repeat: %v", err)
	}
	if hashed != repeat {
		t.Fatalf("expected hashing to be deterministic")
	}
}

func TestHashSessionTokenEmpty(t *testing.T) {
	if _, err := hashSessionToken(""); !errors.Is(err, errSessionTokenRequired) {
		t.Fatalf("expected empty token error, got %v", err)
	}
}

func TestIsNoRowsTrueForErrNoRows(t *testing.T) {
	if !isNoRows(pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows to be treated as no rows")
	}
}

func TestIsNoRowsFalseForClosedPool(t *testing.T) {
	if isNoRows(puddle.ErrClosedPool) {
		t.Fatalf("expected closed pool error to not be treated as no rows")
	}
}

func TestIsNoRowsFalseForOtherError(t *testing.T) {
	if isNoRows(errors.New("boom")) {
		t.Fatalf("expected arbitrary error to not be treated as no rows")
	}
}

func TestPostgresSessionStoreWithoutPool(t *testing.T) {
	store := NewPostgresSessionStoreWithPool(nil)
	ctx := context.Background()
	if err := store.Save(ctx, "token", "user", time.Now(), time.Now()); err == nil {
		t.Fatal("expected Save to fail without a pool")
	}
	if _, _, err := store.Get(ctx, "token"); err == nil {
		t.Fatal("expected Get to fail without a pool")
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("Close on a store without a pool: %v", err)
	}
}

func TestNewPostgresSessionStoreRequiresDSN(t *testing.T) {
	if _, err := NewPostgresSessionStore(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
