package session

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	"github.com/angelmondragon/buildmatch-client/pkg/auth"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/validators"
)

const logoutTimeout = 5 * time.Second

// Service owns login, registration, logout and session restore.
type Service interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, req apiclient.RegisterRequest) error
	Logout(ctx context.Context)
	RestoreSession(ctx context.Context) bool
	ClearError(ctx context.Context)
	PatchProfile(ctx context.Context, patch apiclient.ProfileUpdate) bool

	State() State
	Token() string
	Authenticated() bool
	Persisted() Persisted
	Hydrate(p Persisted)
}

// AuthAPI is the slice of the REST client the session needs.
type AuthAPI interface {
	Login(ctx context.Context, req apiclient.LoginRequest) (*apiclient.AuthResult, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.AuthResult, error)
	Logout(ctx context.Context) error
	VerifyToken(ctx context.Context, token string) (*apiclient.User, error)
}

// Hooks lets the owner react to session transitions. Hooks run without any
// session lock held.
type Hooks struct {
	OnAuthenticated func(ctx context.Context, token string)
	OnSignedOut     func(ctx context.Context)
	OnChange        func(ctx context.Context)
}

type ServiceParams struct {
	API    AuthAPI
	Logger *logger.Logger
	Hooks  Hooks
	Now    func() time.Time
}

type service struct {
	api   AuthAPI
	logg  *logger.Logger
	hooks Hooks
	now   func() time.Time

	mu    sync.RWMutex
	state State
	// epoch advances on every transition that invalidates in-flight auth calls.
	epoch uint64
}

func NewService(params ServiceParams) (Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "auth api required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{api: params.API, logg: logg, hooks: params.Hooks, now: now}, nil
}

func (s *service) Login(ctx context.Context, email, password string) error {
	req := apiclient.LoginRequest{Email: validators.SanitizeString(email, 254), Password: password}
	if err := validators.Struct(req); err != nil {
		return s.rejectInput(ctx, err, apiclient.MsgLoginFailed)
	}
	return s.authenticate(ctx, apiclient.MsgLoginFailed, func(ctx context.Context) (*apiclient.AuthResult, error) {
		return s.api.Login(ctx, req)
	})
}

func (s *service) Register(ctx context.Context, req apiclient.RegisterRequest) error {
	req.Email = validators.SanitizeString(req.Email, 254)
	req.Name = validators.SanitizeString(req.Name, 120)
	if err := validators.Struct(req); err != nil {
		return s.rejectInput(ctx, err, apiclient.MsgRegistrationFailed)
	}
	return s.authenticate(ctx, apiclient.MsgRegistrationFailed, func(ctx context.Context) (*apiclient.AuthResult, error) {
		return s.api.Register(ctx, req)
	})
}

// rejectInput records a local validation failure the same way a server
// rejection is recorded, without touching an in-flight exchange.
func (s *service) rejectInput(ctx context.Context, err error, fallback string) error {
	msg := messageFor(err, fallback)
	s.mu.Lock()
	s.state.ErrorMessage = msg
	s.mu.Unlock()
	s.changed(ctx)
	s.logg.Warn(s.logg.WithField(ctx, "reason", msg), "sign-in input rejected")
	return err
}

// authenticate runs a login-style exchange, toggling IsLoading around the call.
func (s *service) authenticate(ctx context.Context, fallback string, exchange func(context.Context) (*apiclient.AuthResult, error)) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.state.IsLoading = true
	s.state.ErrorMessage = ""
	s.mu.Unlock()
	s.changed(ctx)

	result, err := exchange(ctx)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "session changed during sign-in")
	}
	if err != nil {
		msg := messageFor(err, fallback)
		s.state.IsLoading = false
		s.state.ErrorMessage = msg
		s.mu.Unlock()
		s.changed(ctx)
		s.logg.Warn(s.logg.WithField(ctx, "reason", msg), "sign-in failed")
		return err
	}
	user := result.User
	s.state = authenticated(&user, result.Token)
	s.mu.Unlock()

	ctx = s.logg.WithUserID(ctx, user.ID)
	s.logg.Info(ctx, "signed in")
	s.changed(ctx)
	if s.hooks.OnAuthenticated != nil {
		s.hooks.OnAuthenticated(ctx, result.Token)
	}
	return nil
}

// Logout notifies the server best-effort and always resets locally.
func (s *service) Logout(ctx context.Context) {
	token := s.Token()
	if token != "" {
		callCtx, cancel := context.WithTimeout(ctx, logoutTimeout)
		if err := s.api.Logout(callCtx); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "logout notification failed")
		}
		cancel()
	}

	s.mu.Lock()
	s.epoch++
	s.state = State{}
	s.mu.Unlock()

	s.logg.Info(ctx, "signed out")
	if s.hooks.OnSignedOut != nil {
		s.hooks.OnSignedOut(ctx)
	}
	s.changed(ctx)
}

// RestoreSession validates the persisted token. Failures leave the session
// anonymous without surfacing an error.
func (s *service) RestoreSession(ctx context.Context) bool {
	s.mu.Lock()
	token := s.state.AuthToken
	if token == "" {
		s.state = State{}
		s.mu.Unlock()
		s.changed(ctx)
		return false
	}
	s.epoch++
	epoch := s.epoch
	s.state.IsLoading = true
	s.state.ErrorMessage = ""
	s.mu.Unlock()
	s.changed(ctx)

	var (
		user *apiclient.User
		err  error
	)
	if auth.Expired(token, s.now()) {
		err = pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	} else {
		user, err = s.api.VerifyToken(ctx, token)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	if err != nil {
		s.state = State{}
		s.mu.Unlock()
		s.logg.Info(s.logg.WithField(ctx, "reason", err.Error()), "persisted session discarded")
		s.changed(ctx)
		return false
	}
	s.state = authenticated(user, token)
	s.mu.Unlock()

	ctx = s.logg.WithUserID(ctx, user.ID)
	s.logg.Info(ctx, "session restored")
	s.changed(ctx)
	if s.hooks.OnAuthenticated != nil {
		s.hooks.OnAuthenticated(ctx, token)
	}
	return true
}

func (s *service) ClearError(ctx context.Context) {
	s.mu.Lock()
	had := s.state.ErrorMessage != ""
	s.state.ErrorMessage = ""
	s.mu.Unlock()
	if had {
		s.changed(ctx)
	}
}

// PatchProfile merges the non-nil fields into the local user. It reports
// false when there is no user to patch.
func (s *service) PatchProfile(ctx context.Context, patch apiclient.ProfileUpdate) bool {
	s.mu.Lock()
	if s.state.CurrentUser == nil {
		s.mu.Unlock()
		return false
	}
	user := *s.state.CurrentUser
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Phone != nil {
		phone := *patch.Phone
		user.Phone = &phone
	}
	if patch.Address != nil {
		address := *patch.Address
		user.Address = &address
	}
	if patch.Location != nil {
		loc := *patch.Location
		user.Location = &loc
	}
	if patch.Preferences != nil {
		merged := apiclient.UserPreferences{}
		if user.Preferences != nil {
			merged = *user.Preferences
		}
		if patch.Preferences.Language != "" {
			merged.Language = patch.Preferences.Language
		}
		if patch.Preferences.Currency != "" {
			merged.Currency = patch.Preferences.Currency
		}
		user.Preferences = &merged
	}
	s.state.CurrentUser = &user
	s.mu.Unlock()
	s.changed(ctx)
	return true
}

func (s *service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AuthToken
}

func (s *service) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

func (s *service) Persisted() Persisted {
	st := s.State()
	return Persisted{
		CurrentUser:     st.CurrentUser,
		AuthToken:       st.AuthToken,
		IsAuthenticated: st.IsAuthenticated,
	}
}

// Hydrate replaces the session with a persisted one without firing hooks.
func (s *service) Hydrate(p Persisted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.AuthToken == "" {
		s.state = State{}
		return
	}
	if p.CurrentUser == nil {
		s.state = State{AuthToken: p.AuthToken}
		return
	}
	user := *p.CurrentUser
	s.state = authenticated(&user, p.AuthToken)
}

func (s *service) changed(ctx context.Context) {
	if s.hooks.OnChange != nil {
		s.hooks.OnChange(ctx)
	}
}

func messageFor(err error, fallback string) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return fallback
}
