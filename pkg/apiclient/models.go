package apiclient

import (
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	"github.com/angelmondragon/buildmatch-client/pkg/types"
	"github.com/shopspring/decimal"
)

// User mirrors the server-owned account record.
type User struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	Phone       *string            `json:"phone,omitempty"`
	Name        string             `json:"name"`
	UserType    enums.UserType     `json:"user_type"`
	Location    *types.GeoLocation `json:"location,omitempty"`
	Address     *string            `json:"address,omitempty"`
	Preferences *UserPreferences   `json:"preferences,omitempty"`
	IsVerified  bool               `json:"is_verified"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type UserPreferences struct {
	Language string `json:"language,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string             `json:"email" validate:"required,email"`
	Password string             `json:"password" validate:"required,min=6"`
	Name     string             `json:"name" validate:"required"`
	UserType enums.UserType     `json:"user_type" validate:"required,oneof=buyer seller"`
	Phone    *string            `json:"phone,omitempty"`
	Location *types.GeoLocation `json:"location,omitempty"`
	Address  *string            `json:"address,omitempty"`
}

// ProfileUpdate is a partial user update. Nil fields are left untouched server-side.
type ProfileUpdate struct {
	Name        *string            `json:"name,omitempty"`
	Phone       *string            `json:"phone,omitempty"`
	Address     *string            `json:"address,omitempty"`
	Location    *types.GeoLocation `json:"location,omitempty"`
	Preferences *UserPreferences   `json:"preferences,omitempty"`
}

// BOM is a bill of materials as returned by the server.
type BOM struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id,omitempty"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Items       []BOMItem       `json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type BOMItem struct {
	ID                  string           `json:"id"`
	BOMID               string           `json:"bom_id"`
	VariantID           string           `json:"variant_id"`
	Quantity            decimal.Decimal  `json:"quantity"`
	Unit                string           `json:"unit"`
	WasteFactor         decimal.Decimal  `json:"waste_factor"`
	TotalQuantityNeeded decimal.Decimal  `json:"total_quantity_needed"`
	UnitPrice           *decimal.Decimal `json:"unit_price,omitempty"`
	TotalCost           *decimal.Decimal `json:"total_cost,omitempty"`
	Notes               *string          `json:"notes,omitempty"`
	SortOrder           int              `json:"sort_order"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

type CreateBOMRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

type UpdateBOMRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type AddBOMItemRequest struct {
	VariantID   string           `json:"variant_id"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Unit        string           `json:"unit"`
	WasteFactor *decimal.Decimal `json:"waste_factor,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
	SortOrder   *int             `json:"sort_order,omitempty"`
}

// RemoveItemResult carries the optional server bookkeeping returned on item delete.
type RemoveItemResult struct {
	LastUpdated *time.Time       `json:"last_updated,omitempty"`
	TotalCost   *decimal.Decimal `json:"total_cost,omitempty"`
}

type CreateRFQRequest struct {
	BOMID    string     `json:"bom_id"`
	ShopIDs  []string   `json:"shop_ids"`
	Message  *string    `json:"message,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type RFQ struct {
	ID        string    `json:"id"`
	BOMID     string    `json:"bom_id"`
	Status    string    `json:"status"`
	ShopIDs   []string  `json:"shop_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	Body string `json:"message"`
}

type RFQMessage struct {
	ID        string    `json:"id"`
	RFQID     string    `json:"rfq_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
