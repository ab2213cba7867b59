package comparison

import (
	"context"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxItems = 10
	MsgSetFull      = "comparison set is full"
)

// ShopOffer is one shop's price for a compared product.
type ShopOffer struct {
	ShopID       string          `json:"shop_id"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Currency     string          `json:"currency,omitempty"`
	StockStatus  string          `json:"stock_status,omitempty"`
	LeadTimeDays int             `json:"lead_time_days,omitempty"`
}

// Set is the product comparison selection.
type Set struct {
	ProductIDs []string               `json:"product_ids"`
	ShopIDs    []string               `json:"shop_ids"`
	Quantity   int                    `json:"quantity"`
	Data       map[string][]ShopOffer `json:"data,omitempty"`
}

func emptySet() Set {
	return Set{ProductIDs: []string{}, ShopIDs: []string{}, Quantity: 1, Data: map[string][]ShopOffer{}}
}

func (s Set) clone() Set {
	out := Set{
		ProductIDs: append([]string{}, s.ProductIDs...),
		ShopIDs:    append([]string{}, s.ShopIDs...),
		Quantity:   s.Quantity,
		Data:       make(map[string][]ShopOffer, len(s.Data)),
	}
	for id, offers := range s.Data {
		out.Data[id] = append([]ShopOffer{}, offers...)
	}
	return out
}

func (s Set) contains(productID string) bool {
	for _, id := range s.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

type Service interface {
	Add(ctx context.Context, productID string) error
	Remove(ctx context.Context, productID string)
	Clear(ctx context.Context)
	SetQuantity(ctx context.Context, quantity int)
	SetShops(ctx context.Context, shopIDs []string)
	SetData(ctx context.Context, productID string, offers []ShopOffer) error
	BestOffer(productID string) (ShopOffer, bool)
	ApplyStockStatus(ctx context.Context, productID, shopID, status string) bool

	Set() Set
	MaxItems() int
	Hydrate(s Set)
}

type ServiceParams struct {
	// MaxItems caps the product selection. Zero means DefaultMaxItems.
	MaxItems int
	OnChange func(ctx context.Context)
}

type service struct {
	max      int
	onChange func(ctx context.Context)

	mu  sync.RWMutex
	set Set
}

func NewService(params ServiceParams) (Service, error) {
	limit := params.MaxItems
	if limit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comparison max items must be positive")
	}
	if limit == 0 {
		limit = DefaultMaxItems
	}
	return &service{max: limit, onChange: params.OnChange, set: emptySet()}, nil
}

// Add inserts productID once. Adding past the cap fails and leaves the set unchanged.
func (s *service) Add(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	s.mu.Lock()
	if s.set.contains(productID) {
		s.mu.Unlock()
		return nil
	}
	if len(s.set.ProductIDs) >= s.max {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, MsgSetFull).WithDetails(map[string]any{
			"max_items": s.max,
		})
	}
	s.set.ProductIDs = append(s.set.ProductIDs, productID)
	s.mu.Unlock()
	s.changed(ctx)
	return nil
}

func (s *service) Remove(ctx context.Context, productID string) {
	s.mu.Lock()
	kept := s.set.ProductIDs[:0:0]
	for _, id := range s.set.ProductIDs {
		if id != productID {
			kept = append(kept, id)
		}
	}
	changed := len(kept) != len(s.set.ProductIDs)
	s.set.ProductIDs = kept
	if _, ok := s.set.Data[productID]; ok {
		delete(s.set.Data, productID)
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.changed(ctx)
	}
}

func (s *service) Clear(ctx context.Context) {
	s.mu.Lock()
	s.set = emptySet()
	s.mu.Unlock()
	s.changed(ctx)
}

// SetQuantity stores quantity, clamped to at least 1.
func (s *service) SetQuantity(ctx context.Context, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	s.mu.Lock()
	s.set.Quantity = quantity
	s.mu.Unlock()
	s.changed(ctx)
}

func (s *service) SetShops(ctx context.Context, shopIDs []string) {
	seen := make(map[string]struct{}, len(shopIDs))
	out := make([]string, 0, len(shopIDs))
	for _, id := range shopIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	s.mu.Lock()
	s.set.ShopIDs = out
	s.mu.Unlock()
	s.changed(ctx)
}

// SetData attaches offers to a product already in the set.
func (s *service) SetData(ctx context.Context, productID string, offers []ShopOffer) error {
	s.mu.Lock()
	if !s.set.contains(productID) {
		s.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the comparison set")
	}
	s.set.Data[productID] = append([]ShopOffer{}, offers...)
	s.mu.Unlock()
	s.changed(ctx)
	return nil
}

// BestOffer returns the cheapest offer that is not out of stock.
func (s *service) BestOffer(productID string) (ShopOffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  ShopOffer
		found bool
	)
	for _, offer := range s.set.Data[productID] {
		if offer.StockStatus == "out_of_stock" {
			continue
		}
		if !found || offer.UnitPrice.LessThan(best.UnitPrice) {
			best = offer
			found = true
		}
	}
	return best, found
}

// ApplyStockStatus updates the stock status of a known offer. It reports
// whether an offer was changed.
func (s *service) ApplyStockStatus(ctx context.Context, productID, shopID, status string) bool {
	s.mu.Lock()
	updated := false
	offers := s.set.Data[productID]
	for i := range offers {
		if offers[i].ShopID == shopID && offers[i].StockStatus != status {
			offers[i].StockStatus = status
			updated = true
		}
	}
	s.mu.Unlock()
	if updated {
		s.changed(ctx)
	}
	return updated
}

func (s *service) Set() Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.clone()
}

func (s *service) MaxItems() int {
	return s.max
}

// Hydrate restores a persisted set, dropping duplicates and anything past the cap.
func (s *service) Hydrate(in Set) {
	out := emptySet()
	for _, id := range in.ProductIDs {
		if id == "" || out.contains(id) || len(out.ProductIDs) >= s.max {
			continue
		}
		out.ProductIDs = append(out.ProductIDs, id)
	}
	out.ShopIDs = append(out.ShopIDs, in.ShopIDs...)
	if in.Quantity > 1 {
		out.Quantity = in.Quantity
	}
	for id, offers := range in.Data {
		if out.contains(id) {
			out.Data[id] = append([]ShopOffer{}, offers...)
		}
	}
	s.mu.Lock()
	s.set = out
	s.mu.Unlock()
}

func (s *service) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx)
	}
}
