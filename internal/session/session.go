// Package session owns the authentication state of one user: the token
// pair, the profile, and the API client bound to that credential. It
// replaces process-wide auth state; callers pass a *Session explicitly.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"agendaaberta/internal/api"
	appLog "agendaaberta/internal/log"
	"agendaaberta/internal/model"
)

// ErrNotAuthenticated is returned by operations that need a logged in user.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// Session is safe for concurrent use.
type Session struct {
	base  *api.Client
	store TokenStore

	mu     sync.RWMutex
	tokens model.Tokens
	user   *model.User
	client *api.Client
}

// New creates a logged out session. base must be unauthenticated.
func New(base *api.Client, store TokenStore) *Session {
	if store == nil {
		store = &MemoryStore{}
	}
	return &Session{
		base:   base,
		store:  store,
		client: base.WithToken(nil),
	}
}

// Init restores a persisted session. When a token is present it is used
// to fetch the profile. An authentication failure clears the stored
// tokens and leaves the session logged out without returning an error.
// Network failures keep the tokens (the server may simply be down) and are
// returned.
func (s *Session) Init(ctx context.Context) error {
	tokens, ok, err := s.store.Load()
	if err != nil {
		appLog.Error("session: failed to load tokens; starting logged out", err)
		return s.Logout()
	}
	if !ok {
		return nil
	}

	client := s.base.WithToken(api.StaticToken(tokens.Access))
	user, err := client.Me(ctx)
	if err != nil {
		if api.IsAuth(err) {
			appLog.Info("session: stored token rejected; logging out")
			return s.Logout()
		}
		return fmt.Errorf("session: restore profile: %w", err)
	}

	s.install(tokens, client, &user)
	appLog.Info("session restored", "username", user.Username)
	return nil
}

// Login exchanges credentials for tokens, persists both, binds the access
// token to the client and fetches the profile with it. If the profile
// cannot be fetched the session is rolled back to logged out.
func (s *Session) Login(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, &api.ValidationError{Message: "username and password are required"}
	}

	tokens, err := s.base.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return model.User{}, err
	}
	if err := s.store.Save(tokens); err != nil {
		return model.User{}, fmt.Errorf("session: persist tokens: %w", err)
	}

	client := s.base.WithToken(api.StaticToken(tokens.Access))
	s.install(tokens, client, nil)

	user, err := client.Me(ctx)
	if err != nil {
		// No profile, no session.
		if lerr := s.Logout(); lerr != nil {
			appLog.Error("session: rollback after failed profile fetch", lerr)
		}
		return model.User{}, fmt.Errorf("session: fetch profile: %w", err)
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()

	appLog.Info("session logged in", "username", user.Username, "kind", string(user.Kind))
	return user, nil
}

// Logout forgets the user, clears persisted tokens and drops the
// credential. In-memory state is cleared even if the store fails.
func (s *Session) Logout() error {
	s.install(model.Tokens{}, s.base.WithToken(nil), nil)
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("session: clear tokens: %w", err)
	}
	return nil
}

// User returns the current profile.
func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a profile has been validated.
func (s *Session) Authenticated() bool {
	_, ok := s.User()
	return ok
}

// Client returns the API client for the current credential. It is
// unauthenticated when logged out.
func (s *Session) Client() *api.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// RequireUser returns the profile or ErrNotAuthenticated.
func (s *Session) RequireUser() (model.User, error) {
	u, ok := s.User()
	if !ok {
		return model.User{}, ErrNotAuthenticated
	}
	return u, nil
}

// Rules fetches the logged in user's rules. It makes *Session usable as an
// agenda.RuleSource.
func (s *Session) Rules(ctx context.Context) ([]model.RecurrenceRule, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.Client().Rules(ctx)
}

func (s *Session) install(tokens model.Tokens, client *api.Client, user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	s.client = client
	s.user = user
}
