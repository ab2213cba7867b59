package preferences

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/validators"
)

const syncTimeout = 10 * time.Second

// Preferences are device-level settings that survive logout.
type Preferences struct {
	Language    string      `json:"language"`
	Currency    string      `json:"currency"`
	Units       enums.Units `json:"units"`
	Theme       enums.Theme `json:"theme"`
	OfflineMode bool        `json:"offline_mode"`
}

// Defaults returns the preferences of a fresh device.
func Defaults() Preferences {
	return Preferences{
		Language: "en",
		Currency: enums.CurrencyUSD.String(),
		Units:    enums.UnitsMetric,
		Theme:    enums.ThemeLight,
	}
}

type languageInput struct {
	Language string `json:"language" validate:"required,min=2,max=16"`
}

// ProfileAPI pushes account-level preference changes to the server.
type ProfileAPI interface {
	UpdateProfile(ctx context.Context, req apiclient.ProfileUpdate) (*apiclient.User, error)
}

type Session interface {
	Authenticated() bool
}

type Service interface {
	SetLanguage(ctx context.Context, language string) error
	SetCurrency(ctx context.Context, currency string) error
	SetTheme(ctx context.Context, theme enums.Theme) error
	SetUnits(ctx context.Context, units enums.Units) error
	ToggleOfflineMode(ctx context.Context) bool

	Preferences() Preferences
	Hydrate(p Preferences)
	// Wait blocks until in-flight profile syncs finish or ctx is done.
	Wait(ctx context.Context) error
}

type ServiceParams struct {
	API      ProfileAPI
	Session  Session
	Logger   *logger.Logger
	OnChange func(ctx context.Context)
	// OnSynced receives the server user after a successful profile sync.
	OnSynced func(ctx context.Context, user *apiclient.User)
}

type service struct {
	api      ProfileAPI
	session  Session
	logg     *logger.Logger
	onChange func(ctx context.Context)
	onSynced func(ctx context.Context, user *apiclient.User)

	mu       sync.RWMutex
	prefs    Preferences
	inflight sync.WaitGroup
}

func NewService(params ServiceParams) (Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profile api required")
	}
	if params.Session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		api:      params.API,
		session:  params.Session,
		logg:     logg,
		onChange: params.OnChange,
		onSynced: params.OnSynced,
		prefs:    Defaults(),
	}, nil
}

func (s *service) SetLanguage(ctx context.Context, language string) error {
	language = validators.SanitizeString(language, 0)
	if err := validators.Struct(languageInput{Language: language}); err != nil {
		return err
	}
	s.update(ctx, func(p *Preferences) { p.Language = language })
	s.sync(ctx, apiclient.UserPreferences{Language: language})
	return nil
}

func (s *service) SetCurrency(ctx context.Context, currency string) error {
	parsed, err := enums.ParseCurrency(strings.ToUpper(strings.TrimSpace(currency)))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
	}
	s.update(ctx, func(p *Preferences) { p.Currency = parsed.String() })
	s.sync(ctx, apiclient.UserPreferences{Currency: parsed.String()})
	return nil
}

func (s *service) SetTheme(ctx context.Context, theme enums.Theme) error {
	if !theme.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid theme")
	}
	s.update(ctx, func(p *Preferences) { p.Theme = theme })
	return nil
}

func (s *service) SetUnits(ctx context.Context, units enums.Units) error {
	if !units.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid units")
	}
	s.update(ctx, func(p *Preferences) { p.Units = units })
	return nil
}

func (s *service) ToggleOfflineMode(ctx context.Context) bool {
	var enabled bool
	s.update(ctx, func(p *Preferences) {
		p.OfflineMode = !p.OfflineMode
		enabled = p.OfflineMode
	})
	return enabled
}

func (s *service) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Hydrate restores persisted preferences, keeping defaults for invalid fields.
func (s *service) Hydrate(p Preferences) {
	out := Defaults()
	if p.Language != "" {
		out.Language = p.Language
	}
	if c, err := enums.ParseCurrency(p.Currency); err == nil {
		out.Currency = c.String()
	}
	if p.Units.IsValid() {
		out.Units = p.Units
	}
	if p.Theme.IsValid() {
		out.Theme = p.Theme
	}
	out.OfflineMode = p.OfflineMode
	s.mu.Lock()
	s.prefs = out
	s.mu.Unlock()
}

func (s *service) update(ctx context.Context, mutate func(p *Preferences)) {
	s.mu.Lock()
	mutate(&s.prefs)
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(ctx)
	}
}

func (s *service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sync pushes the change to the profile in the background when signed in.
// Failures are logged and the local value is kept.
func (s *service) sync(ctx context.Context, prefs apiclient.UserPreferences) {
	if !s.session.Authenticated() {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.inflight.Go(func() {
		callCtx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()
		user, err := s.api.UpdateProfile(callCtx, apiclient.ProfileUpdate{Preferences: &prefs})
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "preference sync failed")
			return
		}
		if s.onSynced != nil && user != nil {
			s.onSynced(ctx, user)
		}
	})
}
