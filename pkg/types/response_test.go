package types

import (
	"encoding/json"
	"testing"
)

func TestErrorBodyResolveMessage(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantMsg  string
		wantCode string
	}{
		{name: "flat", raw: `{"message":"Invalid credentials"}`, wantMsg: "Invalid credentials"},
		{name: "envelope", raw: `{"error":{"code":"NOT_FOUND","message":"BOM not found"}}`, wantMsg: "BOM not found", wantCode: "NOT_FOUND"},
		{name: "string", raw: `{"error":"Email already registered"}`, wantMsg: "Email already registered"},
		{name: "flat wins", raw: `{"message":"first","error":"second"}`, wantMsg: "first"},
		{name: "empty", raw: `{}`},
		{name: "unknown shape", raw: `{"error":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body ErrorBody
			if err := json.Unmarshal([]byte(tt.raw), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			msg, code := body.ResolveMessage()
			if msg != tt.wantMsg || code != tt.wantCode {
				t.Fatalf("got (%q,%q) want (%q,%q)", msg, code, tt.wantMsg, tt.wantCode)
			}
		})
	}
}

func TestCoordinatesValidate(t *testing.T) {
	if err := (Coordinates{Lat: 19.43, Lng: -99.13}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Coordinates{Lat: 91}).Validate(); err == nil {
		t.Fatalf("expected latitude range error")
	}
	if err := (Coordinates{Lng: -181}).Validate(); err == nil {
		t.Fatalf("expected longitude range error")
	}
}
