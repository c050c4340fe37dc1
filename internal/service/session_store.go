package service

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"fsanano/pharmacy-storefront/internal/model"
	"fsanano/pharmacy-storefront/internal/repository"
	"fsanano/pharmacy-storefront/internal/service/pharmacy"
)

const tokenStorageKey = "token"

// AuthAPI is the part of the pharmacy client the session needs.
type AuthAPI interface {
	Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error)
	Register(ctx context.Context, data model.Registration) (*model.AuthResponse, error)
	Logout(ctx context.Context) error
	GetCurrentUser(ctx context.Context) (*model.User, error)
	SetTokenSource(ts pharmacy.TokenSource)
}

// SessionStore holds the bearer token and the current user. It is also the
// token source of the API client, so requests carry whatever token it holds.
type SessionStore struct {
	api     AuthAPI
	storage repository.Storage
	log     logrus.FieldLogger

	mu    sync.RWMutex
	token string
	user  *model.User
}

func NewSessionStore(api AuthAPI, storage repository.Storage, log logrus.FieldLogger) *SessionStore {
	s := &SessionStore{
		api:     api,
		storage: storage,
		log:     log.WithField("component", "session"),
	}
	api.SetTokenSource(s)
	return s
}

func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *SessionStore) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated reports whether a token is held, whether or not the user
// record has been loaded yet.
func (s *SessionStore) IsAuthenticated() bool {
	return s.Token() != ""
}

// Restore adopts a stored token and refreshes the user in the background.
// A failed refresh tears the session down without reporting an error. The
// returned channel is closed once the refresh has settled.
func (s *SessionStore) Restore(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	token, ok, err := s.storage.Get(ctx, tokenStorageKey)
	if err != nil {
		s.log.WithError(err).Warn("failed to read stored token")
	}
	if err != nil || !ok || token == "" {
		close(done)
		return done
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	go func() {
		defer close(done)
		if _, err := s.FetchUser(ctx); err != nil {
			s.log.WithError(err).Debug("stored session is no longer valid")
		}
	}()
	return done
}

func (s *SessionStore) Login(ctx context.Context, creds model.Credentials) (*model.User, error) {
	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		if !abandoned(ctx, err) {
			s.clear(ctx)
		}
		return nil, err
	}
	s.set(ctx, resp.AccessToken, resp.User)
	return s.User(), nil
}

func (s *SessionStore) Register(ctx context.Context, data model.Registration) (*model.User, error) {
	resp, err := s.api.Register(ctx, data)
	if err != nil {
		if !abandoned(ctx, err) {
			s.clear(ctx)
		}
		return nil, err
	}
	s.set(ctx, resp.AccessToken, resp.User)
	return s.User(), nil
}

// Logout calls the server and then clears the local session no matter what
// the server said. The server error, if any, is still returned.
func (s *SessionStore) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	if err != nil {
		s.log.WithError(err).Warn("server logout failed")
	}
	s.clear(ctx)
	return err
}

// FetchUser loads the user for the current token. On failure the session is
// torn down and the error returned, unless the caller gave up on the request:
// a canceled or expired ctx says nothing about the token.
func (s *SessionStore) FetchUser(ctx context.Context) (*model.User, error) {
	user, err := s.api.GetCurrentUser(ctx)
	if err != nil {
		if abandoned(ctx, err) {
			return nil, err
		}
		s.clear(ctx)
		return nil, err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return s.User(), nil
}

func (s *SessionStore) set(ctx context.Context, token string, user *model.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	if err := s.storage.Set(ctx, tokenStorageKey, token); err != nil {
		s.log.WithError(err).Error("failed to persist token")
	}
}

func (s *SessionStore) clear(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if err := s.storage.Remove(ctx, tokenStorageKey); err != nil {
		s.log.WithError(err).Error("failed to remove stored token")
	}
}

// abandoned reports whether err comes from the caller's ctx ending rather than
// from the server.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
