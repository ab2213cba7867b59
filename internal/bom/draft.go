package bom

import (
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	"github.com/shopspring/decimal"
)

// Draft is the single open bill of materials. ID == "" means no server BOM.
type Draft struct {
	ID          string              `json:"id,omitempty"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Status      string              `json:"status,omitempty"`
	Items       []apiclient.BOMItem `json:"items"`
	TotalCost   decimal.Decimal     `json:"total_cost"`
	ItemCount   int                 `json:"item_count"`
	LastUpdated *time.Time          `json:"last_updated,omitempty"`
}

// Active reports whether the draft is backed by a server BOM.
func (d Draft) Active() bool {
	return d.ID != ""
}

func emptyDraft() Draft {
	return Draft{Items: []apiclient.BOMItem{}}
}

func (d Draft) clone() Draft {
	items := make([]apiclient.BOMItem, len(d.Items))
	copy(items, d.Items)
	d.Items = items
	if d.LastUpdated != nil {
		ts := *d.LastUpdated
		d.LastUpdated = &ts
	}
	return d
}

func draftFromBOM(b *apiclient.BOM) Draft {
	d := emptyDraft()
	d.ID = b.ID
	d.Title = b.Title
	if b.Description != nil {
		d.Description = *b.Description
	}
	d.Status = b.Status
	d.TotalCost = b.TotalCost
	if len(b.Items) > 0 {
		d.Items = append(d.Items, b.Items...)
	}
	d.ItemCount = len(d.Items)
	d.LastUpdated = serverTime(b.UpdatedAt, b.CreatedAt)
	return d
}

// serverTime returns the first non-zero timestamp, or nil when the server sent none.
func serverTime(candidates ...time.Time) *time.Time {
	for _, ts := range candidates {
		if !ts.IsZero() {
			out := ts.UTC()
			return &out
		}
	}
	return nil
}
