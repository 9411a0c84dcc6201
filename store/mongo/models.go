package mongo

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/newsprint/paywall/access"
	"github.com/newsprint/paywall/content"
	"github.com/newsprint/paywall/entitlement"
	"github.com/newsprint/paywall/id"
	"github.com/newsprint/paywall/purchase"
	"github.com/newsprint/paywall/types"
)

// ==================== Content models ====================

type itemModel struct {
	grove.BaseModel `grove:"table:paywall_content"`

	ID              string    `grove:"id,pk"            bson:"_id"`
	Title           string    `grove:"title"            bson:"title"`
	Author          string    `grove:"author"           bson:"author"`
	CreatorID       string    `grove:"creator_id"       bson:"creator_id"`
	TokenID         string    `grove:"token_id"         bson:"token_id"`
	LicenseKind     string    `grove:"license_kind"     bson:"license_kind"`
	PriceUnits      string    `grove:"price_units"      bson:"price_units"`
	PriceSymbol     string    `grove:"price_symbol"     bson:"price_symbol"`
	DurationSeconds int64     `grove:"duration_seconds" bson:"duration_seconds"`
	Excerpt         string    `grove:"excerpt"          bson:"excerpt"`
	Tags            []string  `grove:"tags"             bson:"tags,omitempty"`
	PublishedAt     time.Time `grove:"published_at"     bson:"published_at"`
	ParentIDs       []string  `grove:"parent_ids"       bson:"parent_ids,omitempty"`
	PayloadLocator  string    `grove:"payload_locator"  bson:"payload_locator"`
	CreatedAt       time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toItemModel(it *content.Item) *itemModel {
	return &itemModel{
		ID:              it.ID,
		Title:           it.Title,
		Author:          it.Author,
		CreatorID:       it.CreatorID.Normalize().String(),
		TokenID:         it.TokenID,
		LicenseKind:     string(it.LicenseKind),
		PriceUnits:      it.Price.BaseString(),
		PriceSymbol:     it.Price.Symbol,
		DurationSeconds: it.DurationSeconds,
		Excerpt:         it.Excerpt,
		Tags:            it.Tags,
		PublishedAt:     it.PublishedAt,
		ParentIDs:       it.ParentIDs,
		PayloadLocator:  it.PayloadLocator,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
}

func fromItemModel(m *itemModel) (*content.Item, error) {
	price, err := parseAmount(m.PriceUnits, m.PriceSymbol)
	if err != nil {
		return nil, err
	}

	return &content.Item{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              m.ID,
		Title:           m.Title,
		Author:          m.Author,
		CreatorID:       content.Address(m.CreatorID),
		TokenID:         m.TokenID,
		LicenseKind:     content.LicenseKind(m.LicenseKind),
		Price:           price,
		DurationSeconds: m.DurationSeconds,
		Excerpt:         m.Excerpt,
		Tags:            m.Tags,
		PublishedAt:     m.PublishedAt,
		ParentIDs:       m.ParentIDs,
		PayloadLocator:  m.PayloadLocator,
	}, nil
}

// ==================== Receipt models ====================

type receiptModel struct {
	grove.BaseModel `grove:"table:paywall_receipts"`

	ID           string    `grove:"id,pk"         bson:"_id"`
	ContentID    string    `grove:"content_id"    bson:"content_id"`
	Viewer       string    `grove:"viewer"        bson:"viewer"`
	Kind         string    `grove:"kind"          bson:"kind"`
	AmountUnits  string    `grove:"amount_units"  bson:"amount_units"`
	AmountSymbol string    `grove:"amount_symbol" bson:"amount_symbol"`
	TxRef        string    `grove:"tx_ref"        bson:"tx_ref"`
	SettledAt    time.Time `grove:"settled_at"    bson:"settled_at"`
	CreatedAt    time.Time `grove:"created_at"    bson:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"    bson:"updated_at"`
}

func toReceiptModel(r *purchase.Receipt) *receiptModel {
	return &receiptModel{
		ID:           r.ID.String(),
		ContentID:    r.ContentID,
		Viewer:       r.Viewer.Normalize().String(),
		Kind:         string(r.Kind),
		AmountUnits:  r.Amount.BaseString(),
		AmountSymbol: r.Amount.Symbol,
		TxRef:        r.TxRef,
		SettledAt:    r.SettledAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromReceiptModel(m *receiptModel) (*purchase.Receipt, error) {
	receiptID, err := id.ParseReceiptID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(m.AmountUnits, m.AmountSymbol)
	if err != nil {
		return nil, err
	}

	return &purchase.Receipt{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:        receiptID,
		ContentID: m.ContentID,
		Viewer:    content.Address(m.Viewer),
		Kind:      content.LicenseKind(m.Kind),
		Amount:    amount,
		TxRef:     m.TxRef,
		SettledAt: m.SettledAt,
	}, nil
}

// ==================== Access event models ====================

type accessEventModel struct {
	grove.BaseModel `grove:"table:paywall_access_events"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	ContentID string    `grove:"content_id" bson:"content_id"`
	Viewer    string    `grove:"viewer"     bson:"viewer"`
	Granted   bool      `grove:"granted"    bson:"granted"`
	Reason    string    `grove:"reason"     bson:"reason"`
	Timestamp time.Time `grove:"timestamp"  bson:"timestamp"`
}

func toAccessEventModel(e *access.Event) *accessEventModel {
	return &accessEventModel{
		ID:        e.ID.String(),
		ContentID: e.ContentID,
		Viewer:    e.Viewer.Normalize().String(),
		Granted:   e.Granted,
		Reason:    string(e.Reason),
		Timestamp: e.Timestamp,
	}
}

func fromAccessEventModel(m *accessEventModel) (*access.Event, error) {
	eventID, err := id.ParseAccessEventID(m.ID)
	if err != nil {
		return nil, err
	}

	return &access.Event{
		ID:        eventID,
		ContentID: m.ContentID,
		Viewer:    content.Address(m.Viewer),
		Granted:   m.Granted,
		Reason:    entitlement.Reason(m.Reason),
		Timestamp: m.Timestamp,
	}, nil
}

func parseAmount(units, symbol string) (types.Amount, error) {
	if units == "" {
		return types.ZeroAmount(symbol), nil
	}
	var a types.Amount
	raw := `{"units":"` + units + `","symbol":"` + symbol + `"}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return types.Amount{}, err
	}
	return a, nil
}
