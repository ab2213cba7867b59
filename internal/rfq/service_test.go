package rfq

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
)

type stubSession bool

func (s stubSession) Authenticated() bool { return bool(s) }

type fakeAPI struct {
	created []apiclient.CreateRFQRequest
	sent    []apiclient.SendMessageRequest
	err     error
}

func (f *fakeAPI) CreateRFQ(_ context.Context, req apiclient.CreateRFQRequest) (*apiclient.RFQ, error) {
	f.created = append(f.created, req)
	if f.err != nil {
		return nil, f.err
	}
	return &apiclient.RFQ{ID: "rfq-1", BOMID: req.BOMID, Status: "open", ShopIDs: req.ShopIDs}, nil
}

func (f *fakeAPI) SendRFQMessage(_ context.Context, rfqID string, req apiclient.SendMessageRequest) (*apiclient.RFQMessage, error) {
	f.sent = append(f.sent, req)
	if f.err != nil {
		return nil, f.err
	}
	return &apiclient.RFQMessage{ID: "m-1", RFQID: rfqID, Body: req.Body}, nil
}

var fixedNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, api API, authed bool) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{API: api, Session: stubSession(authed), Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestSubmitRequiresSession(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api, false)
	_, err := svc.Submit(context.Background(), SubmitInput{BOMID: "bom-1", ShopIDs: []string{"s1"}})
	if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) || pkgerrors.As(err).Message() != MsgAuthRequired {
		t.Fatalf("expected auth required, got %v", err)
	}
	if len(api.created) != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestSubmitValidatesAndDedupes(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api, true)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, SubmitInput{BOMID: "bom-1"}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without shops, got %v", err)
	}
	past := fixedNow.Add(-time.Hour)
	if _, err := svc.Submit(ctx, SubmitInput{BOMID: "bom-1", ShopIDs: []string{"s1"}, Deadline: &past}); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for past deadline, got %v", err)
	}

	future := fixedNow.Add(48 * time.Hour)
	got, err := svc.Submit(ctx, SubmitInput{BOMID: " bom-1 ", ShopIDs: []string{"s1", "s2", "s1"}, Message: " need by friday ", Deadline: &future})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.ID != "rfq-1" {
		t.Fatalf("unexpected rfq %+v", got)
	}
	req := api.created[len(api.created)-1]
	if req.BOMID != "bom-1" || len(req.ShopIDs) != 2 || req.Message == nil || *req.Message != "need by friday" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestSubmitPropagatesServerError(t *testing.T) {
	api := &fakeAPI{err: pkgerrors.New(pkgerrors.CodeConflict, "RFQ already open for this BOM")}
	svc := newTestService(t, api, true)
	_, err := svc.Submit(context.Background(), SubmitInput{BOMID: "bom-1", ShopIDs: []string{"s1"}})
	if err == nil || pkgerrors.As(err).Message() != "RFQ already open for this BOM" {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestSendMessage(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api, true)
	ctx := context.Background()
	if _, err := svc.SendMessage(ctx, "", "hi"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, "rfq-1", strings.Repeat("x", maxMessageLen+1)); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected length error, got %v", err)
	}
	msg, err := svc.SendMessage(ctx, "rfq-1", " Can you deliver Monday? ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Body != "Can you deliver Monday?" || msg.RFQID != "rfq-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
}
