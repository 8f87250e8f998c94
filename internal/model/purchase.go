package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
)

// PurchaseRequest is the ticket purchase payload accepted at intake and
// carried unchanged through the queue.  Optional text fields are pointers so
// that an absent or null value can be told apart from an empty string;
// ConcertID and Quantity are pointers so the consumer can detect a missing
// value instead of reading a zero.
//
// Fields:
//
//	ConcertID    – concert the tickets are for (required by the consumer).
//	Name         – purchaser name.
//	Email        – purchaser email.
//	Phone        – purchaser phone.
//	Quantity     – number of tickets, must be at least 1.
//	CreditCard   – card number as submitted (never logged).
//	Expiration   – card expiration (never logged).
//	SecurityCode – card security code (never logged).
//	Address, City, Province, PostalCode, Country – billing address.
//	PurchaseDate – client supplied purchase timestamp (see Timestamp).
type PurchaseRequest struct {
	ConcertID    *int       `json:"concertId"`
	Name         *string    `json:"name"`
	Email        *string    `json:"email"`
	Phone        *string    `json:"phone"`
	Quantity     *int       `json:"quantity"`
	CreditCard   *string    `json:"creditCard"`
	Expiration   *string    `json:"expiration"`
	SecurityCode *string    `json:"securityCode"`
	Address      *string    `json:"address"`
	City         *string    `json:"city"`
	Province     *string    `json:"province"`
	PostalCode   *string    `json:"postalCode"`
	Country      *string    `json:"country"`
	PurchaseDate *Timestamp `json:"purchaseDate"`
}

// Timestamp is a purchase date as clients send it: RFC 3339, or a zone-less
// date-time or plain date, both read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("purchaseDate: %w", err)
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("purchaseDate: unrecognized time %q", s)
}

// PurchaseRecord is the row written to ticket_purchases.  Every text column
// holds an explicit value ("" when the request omitted it).  ID is assigned
// by the database on insert.
type PurchaseRecord struct {
	ID           uint64    `db:"id"`
	ConcertID    int       `db:"concert_id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	Quantity     int       `db:"quantity"`
	CreditCard   string    `db:"credit_card"`
	Expiration   string    `db:"expiration"`
	SecurityCode string    `db:"security_code"`
	Address      string    `db:"address"`
	City         string    `db:"city"`
	Province     string    `db:"province"`
	PostalCode   string    `db:"postal_code"`
	Country      string    `db:"country"`
	PurchaseDate time.Time `db:"purchase_date"`
}

var (
	ErrEmptyPayload     = errors.New("empty payload")
	ErrMissingConcertID = errors.New("concertId is required")
	ErrMissingQuantity  = errors.New("quantity is required")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrConcertIDRange   = errors.New("concertId out of range")
	ErrQuantityRange    = errors.New("quantity out of range")
)

// ValidationError reports a payload that parsed but breaks a business rule.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid purchase: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Decode parses exactly one JSON object into a PurchaseRequest.  Type
// mismatches, trailing data and non-object payloads are errors.
func Decode(body []byte) (PurchaseRequest, error) {
	var req PurchaseRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return PurchaseRequest{}, fmt.Errorf("decode purchase: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return PurchaseRequest{}, errors.New("decode purchase: unexpected data after JSON object")
	}
	return req, nil
}

// Validate checks the rules the consumer enforces before persisting.  Both
// integers map to INT columns, so values outside int32 can never be stored.
func (r PurchaseRequest) Validate() error {
	switch {
	case r.ConcertID == nil:
		return &ValidationError{Err: ErrMissingConcertID}
	case *r.ConcertID < math.MinInt32 || *r.ConcertID > math.MaxInt32:
		return &ValidationError{Err: ErrConcertIDRange}
	case r.Quantity == nil:
		return &ValidationError{Err: ErrMissingQuantity}
	case *r.Quantity < 1:
		return &ValidationError{Err: ErrInvalidQuantity}
	case *r.Quantity > math.MaxInt32:
		return &ValidationError{Err: ErrQuantityRange}
	}
	return nil
}

// Normalize derives the storage record.  The request is not modified.  A
// missing purchase date is replaced by fallbackDate (the enqueue time of the
// message carrying the request).
func (r PurchaseRequest) Normalize(fallbackDate time.Time) PurchaseRecord {
	rec := PurchaseRecord{
		Name:         str(r.Name),
		Email:        str(r.Email),
		Phone:        str(r.Phone),
		CreditCard:   str(r.CreditCard),
		Expiration:   str(r.Expiration),
		SecurityCode: str(r.SecurityCode),
		Address:      str(r.Address),
		City:         str(r.City),
		Province:     str(r.Province),
		PostalCode:   str(r.PostalCode),
		Country:      str(r.Country),
		PurchaseDate: fallbackDate.UTC(),
	}
	if r.ConcertID != nil {
		rec.ConcertID = *r.ConcertID
	}
	if r.Quantity != nil {
		rec.Quantity = *r.Quantity
	}
	if r.PurchaseDate != nil {
		rec.PurchaseDate = r.PurchaseDate.UTC()
	}
	return rec
}

// LogFields is the only view of a purchase that may reach a log line.  Card
// data is reduced to the last four digits and the email local part is masked.
func (r PurchaseRequest) LogFields() log.JSON {
	f := log.JSON{
		"email":    maskEmail(str(r.Email)),
		"card":     maskCard(str(r.CreditCard)),
		"country":  str(r.Country),
		"has_date": r.PurchaseDate != nil,
	}
	if r.ConcertID != nil {
		f["concert_id"] = *r.ConcertID
	}
	if r.Quantity != nil {
		f["quantity"] = *r.Quantity
	}
	return f
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func maskCard(card string) string {
	digits := make([]byte, 0, len(card))
	for i := 0; i < len(card); i++ {
		if card[i] >= '0' && card[i] <= '9' {
			digits = append(digits, card[i])
		}
	}
	if len(digits) == 0 {
		return ""
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}

func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
