package location

import (
	"context"
	"sync"

	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/types"
)

// Location is the device's last known position. It is kept across logout.
type Location struct {
	Coordinates *types.Coordinates `json:"coordinates,omitempty"`
	Address     string             `json:"address,omitempty"`
	Accuracy    *float64           `json:"accuracy,omitempty"`
}

func (l Location) clone() Location {
	if l.Coordinates != nil {
		c := *l.Coordinates
		l.Coordinates = &c
	}
	if l.Accuracy != nil {
		a := *l.Accuracy
		l.Accuracy = &a
	}
	return l
}

func (l Location) validate() error {
	if l.Coordinates != nil {
		if err := l.Coordinates.Validate(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coordinates")
		}
	}
	if l.Accuracy != nil && *l.Accuracy < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "accuracy must not be negative")
	}
	return nil
}

type Service interface {
	Set(ctx context.Context, loc Location) error
	Clear(ctx context.Context)
	Location() Location
	Hydrate(loc Location)
}

type service struct {
	onChange func(ctx context.Context)

	mu  sync.RWMutex
	loc Location
}

func NewService(onChange func(ctx context.Context)) Service {
	return &service{onChange: onChange}
}

func (s *service) Set(ctx context.Context, loc Location) error {
	if err := loc.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.loc = loc.clone()
	s.mu.Unlock()
	s.changed(ctx)
	return nil
}

func (s *service) Clear(ctx context.Context) {
	s.mu.Lock()
	s.loc = Location{}
	s.mu.Unlock()
	s.changed(ctx)
}

func (s *service) Location() Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loc.clone()
}

// Hydrate restores a persisted location. Invalid values are dropped.
func (s *service) Hydrate(loc Location) {
	if loc.validate() != nil {
		loc = Location{}
	}
	s.mu.Lock()
	s.loc = loc.clone()
	s.mu.Unlock()
}

func (s *service) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx)
	}
}
