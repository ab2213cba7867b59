package bom

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
)

const (
	MsgAuthRequired   = "Authentication required"
	MsgNoActiveBOM    = "No active BOM"
	MsgSessionChanged = "BOM session changed"
)

// API is the slice of the REST client the BOM session needs.
type API interface {
	CreateBOM(ctx context.Context, req apiclient.CreateBOMRequest) (*apiclient.BOM, error)
	GetBOM(ctx context.Context, bomID string) (*apiclient.BOM, error)
	UpdateBOM(ctx context.Context, bomID string, req apiclient.UpdateBOMRequest) (*apiclient.BOM, error)
	AddBOMItem(ctx context.Context, bomID string, req apiclient.AddBOMItemRequest) (*apiclient.BOMItem, error)
	RemoveBOMItem(ctx context.Context, bomID, itemID string) (*apiclient.RemoveItemResult, error)
}

// Session reports whether a session token is present.
type Session interface {
	Authenticated() bool
}

// Service owns the currently open BOM draft.
type Service interface {
	Create(ctx context.Context, req apiclient.CreateBOMRequest) (Draft, error)
	Load(ctx context.Context, bomID string) (Draft, error)
	Update(ctx context.Context, req apiclient.UpdateBOMRequest) (Draft, error)
	AddItem(ctx context.Context, req apiclient.AddBOMItemRequest) (apiclient.BOMItem, error)
	RemoveItem(ctx context.Context, itemID string) error
	Clear(ctx context.Context)

	Draft() Draft
	Hydrate(d Draft)
}

type ServiceParams struct {
	API      API
	Session  Session
	Logger   *logger.Logger
	OnChange func(ctx context.Context)
}

type service struct {
	api      API
	session  Session
	logg     *logger.Logger
	onChange func(ctx context.Context)

	mu    sync.RWMutex
	draft Draft
	// generation identifies the current draft; responses for an older one are dropped.
	generation uint64
}

func NewService(params ServiceParams) (Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bom api required")
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
		draft:    emptyDraft(),
	}, nil
}

func (s *service) Create(ctx context.Context, req apiclient.CreateBOMRequest) (Draft, error) {
	if !s.session.Authenticated() {
		return Draft{}, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgAuthRequired)
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return Draft{}, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}

	gen := s.bump()
	created, err := s.api.CreateBOM(ctx, req)
	if err != nil {
		return Draft{}, err
	}
	d := draftFromBOM(created)
	d.Items = []apiclient.BOMItem{}
	d.ItemCount = 0
	if err := s.apply(gen, func(*Draft) { s.draft = d }); err != nil {
		return Draft{}, err
	}
	s.logg.Info(s.logg.WithBOMID(ctx, d.ID), "bom created")
	s.changed(ctx)
	return d.clone(), nil
}

func (s *service) Load(ctx context.Context, bomID string) (Draft, error) {
	if !s.session.Authenticated() {
		return Draft{}, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgAuthRequired)
	}
	bomID = strings.TrimSpace(bomID)
	if bomID == "" {
		return Draft{}, pkgerrors.New(pkgerrors.CodeValidation, "bom id is required")
	}

	gen := s.bump()
	loaded, err := s.api.GetBOM(ctx, bomID)
	if err != nil {
		return Draft{}, err
	}
	d := draftFromBOM(loaded)
	if err := s.apply(gen, func(*Draft) { s.draft = d }); err != nil {
		return Draft{}, err
	}
	s.logg.Info(s.logg.WithBOMID(ctx, d.ID), "bom loaded")
	s.changed(ctx)
	return d.clone(), nil
}

// Update refreshes metadata and cost fields. Items are left untouched.
func (s *service) Update(ctx context.Context, req apiclient.UpdateBOMRequest) (Draft, error) {
	bomID, gen, err := s.precondition()
	if err != nil {
		return Draft{}, err
	}
	updated, err := s.api.UpdateBOM(ctx, bomID, req)
	if err != nil {
		return Draft{}, err
	}
	var out Draft
	err = s.apply(gen, func(d *Draft) {
		d.Title = updated.Title
		if updated.Description != nil {
			d.Description = *updated.Description
		}
		if updated.Status != "" {
			d.Status = updated.Status
		}
		d.TotalCost = updated.TotalCost
		if ts := serverTime(updated.UpdatedAt); ts != nil {
			d.LastUpdated = ts
		}
		out = d.clone()
	})
	if err != nil {
		return Draft{}, err
	}
	s.changed(ctx)
	return out, nil
}

func (s *service) AddItem(ctx context.Context, req apiclient.AddBOMItemRequest) (apiclient.BOMItem, error) {
	bomID, gen, err := s.precondition()
	if err != nil {
		return apiclient.BOMItem{}, err
	}
	if err := ValidateItem(req); err != nil {
		return apiclient.BOMItem{}, err
	}
	item, err := s.api.AddBOMItem(ctx, bomID, req)
	if err != nil {
		return apiclient.BOMItem{}, err
	}
	err = s.apply(gen, func(d *Draft) {
		d.Items = append(d.Items, *item)
		d.ItemCount++
		if ts := serverTime(item.UpdatedAt, item.CreatedAt); ts != nil {
			d.LastUpdated = ts
		}
	})
	if err != nil {
		return apiclient.BOMItem{}, err
	}
	s.logg.Debug(s.logg.WithField(s.logg.WithBOMID(ctx, bomID), "item_id", item.ID), "bom item added")
	s.changed(ctx)
	return *item, nil
}

func (s *service) RemoveItem(ctx context.Context, itemID string) error {
	bomID, gen, err := s.precondition()
	if err != nil {
		return err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	result, err := s.api.RemoveBOMItem(ctx, bomID, itemID)
	if err != nil {
		return err
	}
	err = s.apply(gen, func(d *Draft) {
		kept := d.Items[:0:0]
		removed := false
		for _, it := range d.Items {
			if it.ID == itemID {
				removed = true
				continue
			}
			kept = append(kept, it)
		}
		d.Items = kept
		if removed && d.ItemCount > 0 {
			d.ItemCount--
		}
		if result != nil {
			if result.LastUpdated != nil {
				ts := result.LastUpdated.UTC()
				d.LastUpdated = &ts
			}
			if result.TotalCost != nil {
				d.TotalCost = *result.TotalCost
			}
		}
	})
	if err != nil {
		return err
	}
	s.logg.Debug(s.logg.WithField(s.logg.WithBOMID(ctx, bomID), "item_id", itemID), "bom item removed")
	s.changed(ctx)
	return nil
}

// Clear resets the draft locally without a server call.
func (s *service) Clear(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.draft = emptyDraft()
	s.mu.Unlock()
	s.changed(ctx)
}

func (s *service) Draft() Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.clone()
}

func (s *service) Hydrate(d Draft) {
	if d.Items == nil {
		d.Items = []apiclient.BOMItem{}
	}
	if d.ItemCount < 0 {
		d.ItemCount = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.draft = d.clone()
}

func (s *service) precondition() (string, uint64, error) {
	if !s.session.Authenticated() {
		return "", 0, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgAuthRequired)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.draft.Active() {
		return "", 0, pkgerrors.New(pkgerrors.CodeStateConflict, MsgNoActiveBOM)
	}
	return s.draft.ID, s.generation, nil
}

func (s *service) bump() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// apply runs mutate under the lock if gen is still current.
func (s *service) apply(gen uint64, mutate func(d *Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return pkgerrors.New(pkgerrors.CodeStateConflict, MsgSessionChanged)
	}
	mutate(&s.draft)
	return nil
}

func (s *service) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx)
	}
}
