package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"smartnotes/internal/apperr"
	"smartnotes/internal/client"
	"smartnotes/internal/config"
	"smartnotes/internal/store"
	"smartnotes/internal/testutil"
	"smartnotes/internal/types"
)

var _ Gateway = (*testutil.FakeGateway)(nil)

type fakeSession struct {
	mu      sync.Mutex
	active  bool
	expired []error
}

func (s *fakeSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeSession) Expire(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.expired = append(s.expired, err)
}

func TestGuardFailsFastWithoutSession(t *testing.T) {
	fake := testutil.NewFakeGateway()
	gw := Guard(fake, &fakeSession{})

	_, err := gw.ListFolders(context.Background())
	if !errors.Is(err, apperr.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	if calls := fake.Calls(""); len(calls) != 0 {
		t.Fatalf("expected no remote calls, got %#v", calls)
	}
}

func TestGuardAllowsLoginWithoutSession(t *testing.T) {
	fake := testutil.NewFakeGateway()
	fake.AddUser("Ann", "ann@example.com", "secret")
	gw := Guard(fake, &fakeSession{})

	if _, err := gw.Login(context.Background(), types.Credentials{Email: "ann@example.com", Password: "secret"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestGuardExpiresSessionOnUnauthorized(t *testing.T) {
	fake := testutil.NewFakeGateway()
	fake.SetToken("stale")
	fake.RevokeToken()
	session := &fakeSession{active: true}
	gw := Guard(fake, session)

	err := gw.DeleteNote(context.Background(), "n1")
	if !errors.Is(err, apperr.ErrNotAuthenticated) {
		t.Fatalf("expected not authenticated, got %v", err)
	}
	if session.Active() || len(session.expired) != 1 {
		t.Fatalf("expected session to be expired once, got %#v", session.expired)
	}

	_, err = gw.ListFolders(context.Background())
	if !errors.Is(err, apperr.ErrNotAuthenticated) {
		t.Fatalf("expected fail fast after expiry, got %v", err)
	}
	if len(fake.Calls("ListFolders")) != 0 {
		t.Fatalf("expected no remote call after expiry")
	}
}

func TestGuardKeepsSessionOnOtherErrors(t *testing.T) {
	fake := testutil.NewFakeGateway()
	fake.SetToken("token")
	session := &fakeSession{active: true}
	gw := Guard(fake, session)

	if err := gw.DeleteFolder(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !session.Active() {
		t.Fatalf("session should stay active")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	t.Setenv("SMARTNOTES_HOME", t.TempDir())

	cfg := config.Default()
	gw, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open remote: %v", err)
	}
	if _, ok := gw.(*client.Client); !ok {
		t.Fatalf("expected http client, got %T", gw)
	}
	_ = gw.Close()

	cfg.Backend.Mode = "local"
	cfg.Local.DBPath = filepath.Join(t.TempDir(), "notes.db")
	gw, err = Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open local: %v", err)
	}
	defer gw.Close()
	if _, ok := gw.(*store.BoltGateway); !ok {
		t.Fatalf("expected bolt gateway, got %T", gw)
	}
}
