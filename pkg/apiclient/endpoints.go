package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
)

// Fallback messages used when the server does not supply one.
const (
	MsgLoginFailed         = "Login failed"
	MsgRegistrationFailed  = "Registration failed"
	MsgLogoutFailed        = "Logout failed"
	MsgVerifyFailed        = "Session verification failed"
	MsgCreateBOMFailed     = "Failed to create BOM"
	MsgLoadBOMFailed       = "Failed to load BOM"
	MsgUpdateBOMFailed     = "Failed to update BOM"
	MsgAddItemFailed       = "Failed to add item to BOM"
	MsgRemoveItemFailed    = "Failed to remove item from BOM"
	MsgUpdateProfileFailed = "Failed to update profile"
	MsgSubmitRFQFailed     = "Failed to submit RFQ"
	MsgSendMessageFailed   = "Failed to send message"
	MsgHealthFailed        = "API unavailable"
)

// Login exchanges credentials for a user and bearer token. Never sends Authorization.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, call{
		op: "login", method: http.MethodPost, path: "/api/auth/login",
		body: req, public: true, fallback: MsgLoginFailed,
	}, &out); err != nil {
		return nil, err
	}
	if err := out.validate(MsgLoginFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns its session. Never sends Authorization.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, call{
		op: "register", method: http.MethodPost, path: "/api/auth/register",
		body: req, public: true, fallback: MsgRegistrationFailed,
	}, &out); err != nil {
		return nil, err
	}
	if err := out.validate(MsgRegistrationFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, call{
		op: "logout", method: http.MethodPost, path: "/api/auth/logout",
		fallback: MsgLogoutFailed,
	}, nil)
}

// VerifyToken validates token with the server and returns its user.
func (c *Client) VerifyToken(ctx context.Context, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgVerifyFailed)
	}
	var out struct {
		User *User `json:"user"`
	}
	if err := c.do(ctx, call{
		op: "verify", method: http.MethodGet, path: "/api/auth/verify",
		token: token, fallback: MsgVerifyFailed,
	}, &out); err != nil {
		return nil, err
	}
	if out.User == nil || out.User.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgVerifyFailed)
	}
	return out.User, nil
}

func (c *Client) CreateBOM(ctx context.Context, req CreateBOMRequest) (*BOM, error) {
	var out BOM
	if err := c.do(ctx, call{
		op: "bom_create", method: http.MethodPost, path: "/api/boms",
		body: req, fallback: MsgCreateBOMFailed,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBOM(ctx context.Context, bomID string) (*BOM, error) {
	var out BOM
	if err := c.do(ctx, call{
		op: "bom_get", method: http.MethodGet, path: "/api/boms/" + url.PathEscape(bomID),
		fallback: MsgLoadBOMFailed,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBOM(ctx context.Context, bomID string, req UpdateBOMRequest) (*BOM, error) {
	var out BOM
	if err := c.do(ctx, call{
		op: "bom_update", method: http.MethodPatch, path: "/api/boms/" + url.PathEscape(bomID),
		body: req, fallback: MsgUpdateBOMFailed,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddBOMItem(ctx context.Context, bomID string, req AddBOMItemRequest) (*BOMItem, error) {
	var out BOMItem
	if err := c.do(ctx, call{
		op: "bom_item_add", method: http.MethodPost, path: "/api/boms/" + url.PathEscape(bomID) + "/items",
		body: req, fallback: MsgAddItemFailed,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveBOMItem deletes an item. The result is empty when the server replies 204.
func (c *Client) RemoveBOMItem(ctx context.Context, bomID, itemID string) (*RemoveItemResult, error) {
	var out RemoveItemResult
	if err := c.do(ctx, call{
		op:       "bom_item_remove",
		method:   http.MethodDelete,
		path:     "/api/boms/" + url.PathEscape(bomID) + "/items/" + url.PathEscape(itemID),
		fallback: MsgRemoveItemFailed,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req ProfileUpdate) (*User, error) {
	var out User
	if err := c.do(ctx, call{
		op: "profile_update", method: http.MethodPatch, path: "/api/users/profile",
		body: req, fallback: MsgUpdateProfileFailed,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRFQ(ctx context.Context, req CreateRFQRequest) (*RFQ, error) {
	var out RFQ
	if err := c.do(ctx, call{
		op: "rfq_create", method: http.MethodPost, path: "/api/rfqs",
		body: req, fallback: MsgSubmitRFQFailed,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendRFQMessage(ctx context.Context, rfqID string, req SendMessageRequest) (*RFQMessage, error) {
	var out RFQMessage
	if err := c.do(ctx, call{
		op: "rfq_message", method: http.MethodPost, path: "/api/rfqs/" + url.PathEscape(rfqID) + "/messages",
		body: req, fallback: MsgSendMessageFailed,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health pings the API without credentials.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, call{
		op: "health", method: http.MethodGet, path: "/api/health",
		public: true, fallback: MsgHealthFailed,
	}, nil)
}

func (r *AuthResult) validate(fallback string) error {
	if strings.TrimSpace(r.Token) == "" || r.User.ID == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, fallback).WithDetails(map[string]any{"reason": "malformed auth response"})
	}
	return nil
}
