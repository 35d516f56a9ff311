package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"RecordStore/apperr"
	"RecordStore/models"
	"RecordStore/repository/memory"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("Passw0rd!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if digest == "Passw0rd!" {
		t.Fatalf("digest equals plaintext")
	}

	t.Run("match", func(t *testing.T) {
		ok, err := h.Verify("Passw0rd!", digest)
		if err != nil || !ok {
			t.Fatalf("expected match, got %v %v", ok, err)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		ok, err := h.Verify("passw0rd!", digest)
		if err != nil || ok {
			t.Fatalf("expected mismatch, got %v %v", ok, err)
		}
	})

	t.Run("corrupt digest", func(t *testing.T) {
		for _, bad := range []string{"", "plaintext", "$2a$99$abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz0"} {
			ok, err := h.Verify("Passw0rd!", bad)
			if ok || !errors.Is(err, apperr.ErrCorruptCredentialState) {
				t.Fatalf("digest %q: expected ErrCorruptCredentialState, got %v %v", bad, ok, err)
			}
		}
	})

	t.Run("invalid cost falls back to default", func(t *testing.T) {
		if NewHasher(100).cost != bcrypt.DefaultCost {
			t.Fatalf("expected default cost")
		}
	})
}

func newAuthenticator(t *testing.T) (*Authenticator, *memory.Store, *Hasher) {
	t.Helper()
	store := memory.New()
	h := NewHasher(bcrypt.MinCost)
	a, err := NewAuthenticator(store, h, time.Second, nil)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}
	return a, store, h
}

func addAccount(t *testing.T, store *memory.Store, h *Hasher, email, password string, role models.Role, enabled bool) models.Account {
	t.Helper()
	digest, err := h.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	acc := models.Account{Email: email, PasswordHash: digest, Role: role, Enabled: enabled}
	if err := store.Save(context.Background(), &acc); err != nil {
		t.Fatalf("save: %v", err)
	}
	return acc
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	a, store, h := newAuthenticator(t)
	acc := addAccount(t, store, h, "a@x.com", "Passw0rd!", models.RoleManager, true)
	addAccount(t, store, h, "off@x.com", "Passw0rd!", models.RoleCustomer, false)

	t.Run("correct password", func(t *testing.T) {
		id, err := a.Authenticate(ctx, "A@X.com", "Passw0rd!")
		if err != nil {
			t.Fatalf("authenticate: %v", err)
		}
		if id.AccountID != acc.ID || id.Role != models.RoleManager {
			t.Fatalf("unexpected identity %+v", id)
		}
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		_, wrong := a.Authenticate(ctx, "a@x.com", "nope")
		_, unknown := a.Authenticate(ctx, "ghost@x.com", "nope")
		if wrong != apperr.ErrInvalidCredentials || unknown != apperr.ErrInvalidCredentials {
			t.Fatalf("expected identical ErrInvalidCredentials, got %v / %v", wrong, unknown)
		}
	})

	t.Run("disabled account", func(t *testing.T) {
		if _, err := a.Authenticate(ctx, "off@x.com", "Passw0rd!"); !errors.Is(err, apperr.ErrAccountDisabled) {
			t.Fatalf("expected ErrAccountDisabled, got %v", err)
		}
	})

	t.Run("corrupt stored hash", func(t *testing.T) {
		bad := models.Account{Email: "bad@x.com", PasswordHash: "not-a-hash", Role: models.RoleCustomer, Enabled: true}
		_ = store.Save(ctx, &bad)
		if _, err := a.Authenticate(ctx, "bad@x.com", "Passw0rd!"); !errors.Is(err, apperr.ErrCorruptCredentialState) {
			t.Fatalf("expected ErrCorruptCredentialState, got %v", err)
		}
	})

	t.Run("canceled context is store unavailable", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := a.Authenticate(cctx, "a@x.com", "Passw0rd!"); !errors.Is(err, apperr.ErrStoreUnavailable) {
			t.Fatalf("expected ErrStoreUnavailable, got %v", err)
		}
	})
}
