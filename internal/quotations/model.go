package quotations

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

type Quotation struct {
	ID          int64
	Number      string
	ClientID    int64
	Status      Status
	Currency    string
	ValidUntil  time.Time
	Notes       *string
	Items       []Item
	TotalAmount decimal.Decimal
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item is a quotation line. UnitPrice is a snapshot taken at creation and
// never recomputed from the catalog.
type Item struct {
	Position        int
	ProductID       int64
	SKU             string
	Name            string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	LineTotal       decimal.Decimal
	Notes           *string
}

// EffectiveStatus derives the status as of now. Open quotations whose
// valid_until day is before today's UTC date read as expired.
func (q Quotation) EffectiveStatus(now time.Time) Status {
	if q.Status != StatusDraft && q.Status != StatusSent {
		return q.Status
	}
	if Overdue(q.ValidUntil, now) {
		return StatusExpired
	}
	return q.Status
}

// Overdue reports whether validUntil lies before the UTC calendar day of now.
func Overdue(validUntil, now time.Time) bool {
	return DateOf(validUntil).Before(DateOf(now))
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
