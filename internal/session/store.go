// Package session owns the authenticated user's session.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"smartnotes/internal/apperr"
	"smartnotes/internal/gateway"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

// Gateway is the part of the remote store used for authentication.
type Gateway interface {
	gateway.AuthGateway
	gateway.ProfileGateway
}

type Persister interface {
	Load() (*types.Session, error)
	Save(session *types.Session) error
	Clear() error
}

type Rememberer interface {
	Load() (string, error)
	Save(email string) error
	Clear() error
}

type Listener func(session types.Session, active bool)

type Store struct {
	gw       Gateway
	persist  Persister
	remember Rememberer
	backend  types.BackendKind
	logger   logging.Logger
	validate *validator.Validate
	now      func() time.Time

	mu      sync.RWMutex
	current *types.Session

	subsMu    sync.Mutex
	listeners map[int]Listener
	nextSub   int
}

type Option func(*Store)

func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persist = p
	}
}

func WithRememberer(r Rememberer) Option {
	return func(s *Store) {
		s.remember = r
	}
}

func WithBackend(kind types.BackendKind) Option {
	return func(s *Store) {
		s.backend = kind
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:        gw,
		logger:    logging.Nop(),
		validate:  newValidator(),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) Login(ctx context.Context, creds types.Credentials) (types.Session, error) {
	const op = "login"
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validateStruct(s.validate, op, creds); err != nil {
		return types.Session{}, err
	}
	result, err := s.gw.Login(ctx, creds)
	if err != nil {
		s.logger.Info("login_failed", logging.F("email", creds.Email), logging.Err(err))
		return types.Session{}, apperr.WithOp(op, err)
	}
	s.gw.SetToken(result.Token)

	user := types.User{Name: result.Username, Email: result.Email}
	if user.Email == "" {
		user.Email = creds.Email
	}
	if profile, err := s.gw.Profile(ctx); err == nil && profile != nil {
		user = mergeUser(user, *profile)
	} else if err != nil {
		s.logger.Warn("profile_fetch_failed", logging.Err(err))
	}
	session := types.Session{
		Token:    result.Token,
		User:     user,
		Backend:  s.backend,
		IssuedAt: s.now().UTC(),
	}
	s.setCurrent(&session)
	s.save(&session)

	if s.remember != nil {
		if creds.Remember {
			if err := s.remember.Save(creds.Email); err != nil {
				s.logger.Warn("remember_save_failed", logging.Err(err))
			}
		} else if err := s.remember.Clear(); err != nil {
			s.logger.Warn("remember_clear_failed", logging.Err(err))
		}
	}
	s.logger.Info("login", logging.F("email", user.Email))
	s.notify(session, true)
	return session, nil
}

func (s *Store) Register(ctx context.Context, reg types.Registration) (types.User, error) {
	const op = "register"
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validateStruct(s.validate, op, reg); err != nil {
		return types.User{}, err
	}
	user, err := s.gw.Register(ctx, reg)
	if err != nil {
		return types.User{}, apperr.WithOp(op, err)
	}
	s.logger.Info("registered", logging.F("email", reg.Email))
	return *user, nil
}

// Logout ends the session. It is safe to call without one.
func (s *Store) Logout() {
	s.end("logout", nil)
}

// Expire ends the session after the backend stopped accepting its token.
func (s *Store) Expire(err error) {
	s.end("expired", err)
}

func (s *Store) end(reason string, cause error) {
	s.mu.Lock()
	previous := s.current
	s.current = nil
	s.mu.Unlock()

	s.gw.SetToken("")
	if s.persist != nil {
		if err := s.persist.Clear(); err != nil {
			s.logger.Warn("session_clear_failed", logging.Err(err))
		}
	}
	if previous == nil {
		return
	}
	fields := []logging.Field{logging.F("reason", reason)}
	if cause != nil {
		fields = append(fields, logging.Err(cause))
	}
	s.logger.Info("session_ended", fields...)
	s.notify(*previous, false)
}

func (s *Store) Current() (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return types.Session{}, false
	}
	return *s.current, true
}

func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Restore loads a persisted session. Sessions saved for another backend are discarded.
func (s *Store) Restore() (bool, error) {
	if s.persist == nil {
		return false, nil
	}
	saved, err := s.persist.Load()
	if err != nil {
		return false, err
	}
	if saved == nil {
		return false, nil
	}
	if s.backend != "" && saved.Backend != "" && saved.Backend != s.backend {
		s.logger.Info("session_backend_mismatch",
			logging.F("saved", saved.Backend),
			logging.F("current", s.backend),
		)
		return false, nil
	}
	s.gw.SetToken(saved.Token)
	s.setCurrent(saved)
	s.notify(*saved, true)
	return true, nil
}

func (s *Store) Profile(ctx context.Context) (types.User, error) {
	const op = "profile"
	if !s.Active() {
		return types.User{}, apperr.NotAuthenticated(op)
	}
	user, err := s.gw.Profile(ctx)
	if err != nil {
		return types.User{}, s.authFailure(op, err)
	}
	merged := s.updateUser(*user)
	return merged, nil
}

func (s *Store) UpdateProfile(ctx context.Context, update types.ProfileUpdate) (types.User, error) {
	const op = "update profile"
	update.Name = strings.TrimSpace(update.Name)
	update.Email = strings.TrimSpace(update.Email)
	if err := validateStruct(s.validate, op, update); err != nil {
		return types.User{}, err
	}
	if !s.Active() {
		return types.User{}, apperr.NotAuthenticated(op)
	}
	user, err := s.gw.UpdateProfile(ctx, update)
	if err != nil {
		return types.User{}, s.authFailure(op, err)
	}
	return s.updateUser(*user), nil
}

func (s *Store) RememberedEmail() string {
	if s.remember == nil {
		return ""
	}
	email, err := s.remember.Load()
	if err != nil {
		s.logger.Warn("remember_load_failed", logging.Err(err))
		return ""
	}
	return email
}

// Subscribe registers fn for login, logout and expiry events. The returned func
// removes it.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.listeners, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) authFailure(op string, err error) error {
	if apperr.Is(err, apperr.KindNotAuthenticated) {
		s.Expire(err)
	}
	return apperr.WithOp(op, err)
}

func (s *Store) updateUser(user types.User) types.User {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return user
	}
	s.current.User = mergeUser(s.current.User, user)
	session := *s.current
	s.mu.Unlock()
	s.save(&session)
	return session.User
}

func (s *Store) setCurrent(session *types.Session) {
	copy := *session
	s.mu.Lock()
	s.current = &copy
	s.mu.Unlock()
}

func (s *Store) save(session *types.Session) {
	if s.persist == nil {
		return
	}
	if err := s.persist.Save(session); err != nil {
		s.logger.Warn("session_save_failed", logging.Err(err))
	}
}

func (s *Store) notify(session types.Session, active bool) {
	s.subsMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range listeners {
		fn(session, active)
	}
}

func mergeUser(base, update types.User) types.User {
	if update.ID != "" {
		base.ID = update.ID
	}
	if update.Name != "" {
		base.Name = update.Name
	}
	if update.Email != "" {
		base.Email = update.Email
	}
	if update.Avatar != "" {
		base.Avatar = update.Avatar
	}
	return base
}
