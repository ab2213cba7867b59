package rfq

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/validators"
)

const (
	MsgAuthRequired = "Authentication required"
	maxMessageLen   = 4000
)

type API interface {
	CreateRFQ(ctx context.Context, req apiclient.CreateRFQRequest) (*apiclient.RFQ, error)
	SendRFQMessage(ctx context.Context, rfqID string, req apiclient.SendMessageRequest) (*apiclient.RFQMessage, error)
}

type Session interface {
	Authenticated() bool
}

// SubmitInput asks one or more shops to quote a BOM.
type SubmitInput struct {
	BOMID    string     `json:"bom_id" validate:"required"`
	ShopIDs  []string   `json:"shop_ids" validate:"required,min=1,dive,required"`
	Message  string     `json:"message" validate:"max=4000"`
	Deadline *time.Time `json:"deadline"`
}

type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*apiclient.RFQ, error)
	SendMessage(ctx context.Context, rfqID, body string) (*apiclient.RFQMessage, error)
}

type ServiceParams struct {
	API     API
	Session Session
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	api     API
	session Session
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rfq api required")
	}
	if params.Session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{api: params.API, session: params.Session, logg: logg, now: now}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*apiclient.RFQ, error) {
	if !s.session.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgAuthRequired)
	}
	input.BOMID = strings.TrimSpace(input.BOMID)
	input.Message = validators.SanitizeString(input.Message, 0)
	if err := validators.Struct(input); err != nil {
		return nil, err
	}
	if input.Deadline != nil && !input.Deadline.After(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deadline must be in the future").WithDetails(map[string]string{
			"deadline": "must be in the future",
		})
	}

	req := apiclient.CreateRFQRequest{
		BOMID:    input.BOMID,
		ShopIDs:  dedupe(input.ShopIDs),
		Deadline: input.Deadline,
	}
	if input.Message != "" {
		msg := input.Message
		req.Message = &msg
	}
	created, err := s.api.CreateRFQ(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithBOMID(ctx, input.BOMID), map[string]any{
		"rfq_id": created.ID,
		"shops":  len(req.ShopIDs),
	}), "rfq submitted")
	return created, nil
}

func (s *service) SendMessage(ctx context.Context, rfqID, body string) (*apiclient.RFQMessage, error) {
	if !s.session.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, MsgAuthRequired)
	}
	rfqID = strings.TrimSpace(rfqID)
	if rfqID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rfq id is required")
	}
	body = validators.SanitizeString(body, 0)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}
	if len(body) > maxMessageLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message is too long")
	}
	return s.api.SendRFQMessage(ctx, rfqID, apiclient.SendMessageRequest{Body: body})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
