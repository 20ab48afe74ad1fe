package portalpay

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Amount is an integral quantity of money denominated in a CurrencyUnit.
type Amount uint64

// AmountZero is the zero amount.
const AmountZero Amount = 0

// CurrencyUnit identifies the denomination of an amount
type CurrencyUnit string

const (
	UnitSat  CurrencyUnit = "sat"
	UnitMsat CurrencyUnit = "msat"
	UnitUsd  CurrencyUnit = "usd"
	UnitEur  CurrencyUnit = "eur"
)

// ParseCurrencyUnit parses a unit string (case-insensitive)
func ParseCurrencyUnit(s string) (CurrencyUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sat":
		return UnitSat, nil
	case "msat":
		return UnitMsat, nil
	case "usd":
		return UnitUsd, nil
	case "eur":
		return UnitEur, nil
	default:
		return "", fmt.Errorf("unknown currency unit: %q", s)
	}
}

func (u CurrencyUnit) String() string {
	return string(u)
}

// MeltQuoteState is the lifecycle state of an outgoing payment quote
type MeltQuoteState string

const (
	MeltStateUnpaid  MeltQuoteState = "UNPAID"
	MeltStatePending MeltQuoteState = "PENDING"
	MeltStatePaid    MeltQuoteState = "PAID"
	MeltStateFailed  MeltQuoteState = "FAILED"
)

// PaymentHash is the fixed-width key addressing a payment record.
type PaymentHash [32]byte

func (h PaymentHash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler so hashes render as hex in JSON
func (h PaymentHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (h *PaymentHash) UnmarshalText(data []byte) error {
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("invalid payment hash: %w", err)
	}
	if len(decoded) != len(h) {
		return fmt.Errorf("invalid payment hash length: %d", len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// PaymentHashFromHex parses a hex-encoded payment hash
func PaymentHashFromHex(s string) (PaymentHash, error) {
	var h PaymentHash
	err := h.UnmarshalText([]byte(s))
	return h, err
}

// PaymentIdentifierKind discriminates PaymentIdentifier variants
type PaymentIdentifierKind string

const (
	// IdentifierPaymentHash is the hash-keyed variant backends store records under
	IdentifierPaymentHash PaymentIdentifierKind = "payment_hash"
	// IdentifierOfferID is a string-keyed variant used by offer-based protocols
	IdentifierOfferID PaymentIdentifierKind = "offer_id"
)

// PaymentIdentifier uniquely addresses a payment record at a backend.
// Exactly one of Hash or ID is meaningful depending on Kind.
type PaymentIdentifier struct {
	Kind PaymentIdentifierKind `json:"kind"`
	Hash PaymentHash           `json:"hash,omitzero"`
	ID   string                `json:"id,omitempty"`
}

// NewHashIdentifier builds a hash-keyed payment identifier
func NewHashIdentifier(hash PaymentHash) PaymentIdentifier {
	return PaymentIdentifier{Kind: IdentifierPaymentHash, Hash: hash}
}

// NewOfferIdentifier builds an offer-keyed payment identifier
func NewOfferIdentifier(id string) PaymentIdentifier {
	return PaymentIdentifier{Kind: IdentifierOfferID, ID: id}
}

func (p PaymentIdentifier) String() string {
	if p.Kind == IdentifierPaymentHash {
		return p.Hash.String()
	}
	return p.ID
}

// ============================================================================
// Payment options (request variants)
// ============================================================================

// MeltOptions carries an explicit amount override for an outgoing payment
type MeltOptions struct {
	AmountMsat Amount `json:"amount_msat"`
}

// IncomingPaymentOptions is implemented by incoming payment request variants
type IncomingPaymentOptions interface {
	incomingPaymentOptions()
}

// Bolt11IncomingOptions requests a bolt11 invoice for the given amount
type Bolt11IncomingOptions struct {
	Amount      Amount  `json:"amount"`
	Description string  `json:"description,omitempty"`
	UnixExpiry  *uint64 `json:"unix_expiry,omitempty"`
}

func (Bolt11IncomingOptions) incomingPaymentOptions() {}

// Bolt12IncomingOptions requests a bolt12 offer. Amount may be omitted for
// amountless offers.
type Bolt12IncomingOptions struct {
	Amount      *Amount `json:"amount,omitempty"`
	Description string  `json:"description,omitempty"`
	UnixExpiry  *uint64 `json:"unix_expiry,omitempty"`
}

func (Bolt12IncomingOptions) incomingPaymentOptions() {}

// OutgoingPaymentOptions is implemented by outgoing payment request variants
type OutgoingPaymentOptions interface {
	outgoingPaymentOptions()
}

// Bolt11OutgoingOptions pays a bolt11 invoice. InvoiceAmountMsat carries the
// amount embedded in the invoice, when the invoice has one; MeltOptions takes
// precedence when both are present.
type Bolt11OutgoingOptions struct {
	Invoice           string       `json:"invoice"`
	MeltOptions       *MeltOptions `json:"melt_options,omitempty"`
	InvoiceAmountMsat *Amount      `json:"invoice_amount_msat,omitempty"`
	MaxFeeAmount      *Amount      `json:"max_fee_amount,omitempty"`
}

func (Bolt11OutgoingOptions) outgoingPaymentOptions() {}

// AmountMsat resolves the payment amount: explicit melt options first, then
// the amount embedded in the invoice.
func (o Bolt11OutgoingOptions) AmountMsat() (Amount, bool) {
	if o.MeltOptions != nil {
		return o.MeltOptions.AmountMsat, true
	}
	if o.InvoiceAmountMsat != nil {
		return *o.InvoiceAmountMsat, true
	}
	return AmountZero, false
}

// Bolt12OutgoingOptions pays a bolt12 offer
type Bolt12OutgoingOptions struct {
	Offer       string       `json:"offer"`
	MeltOptions *MeltOptions `json:"melt_options,omitempty"`
}

func (Bolt12OutgoingOptions) outgoingPaymentOptions() {}

// ============================================================================
// Responses
// ============================================================================

// PaymentQuoteResponse is the quote for an outgoing payment
type PaymentQuoteResponse struct {
	RequestLookupID *PaymentIdentifier `json:"request_lookup_id,omitempty"`
	Amount          Amount             `json:"amount"`
	Fee             Amount             `json:"fee"`
	State           MeltQuoteState     `json:"state"`
	Unit            CurrencyUnit       `json:"unit"`
}

// MakePaymentResponse reports the outcome of an executed outgoing payment
type MakePaymentResponse struct {
	PaymentLookupID PaymentIdentifier `json:"payment_lookup_id"`
	PaymentProof    string            `json:"payment_proof,omitempty"`
	Status          MeltQuoteState    `json:"status"`
	TotalSpent      Amount            `json:"total_spent"`
	Unit            CurrencyUnit      `json:"unit"`
}

// CreateIncomingPaymentResponse is returned when an incoming payment request
// is created. Request is the external-facing token handed to the payer.
type CreateIncomingPaymentResponse struct {
	RequestLookupID PaymentIdentifier `json:"request_lookup_id"`
	Request         string            `json:"request"`
	Expiry          *uint64           `json:"expiry,omitempty"`
}

// WaitPaymentResponse describes a settled incoming payment
type WaitPaymentResponse struct {
	PaymentIdentifier PaymentIdentifier `json:"payment_identifier"`
	PaymentAmount     Amount            `json:"payment_amount"`
	Unit              CurrencyUnit      `json:"unit"`
	PaymentID         string            `json:"payment_id"`
}

// EventKind discriminates backend events
type EventKind string

// EventPaymentReceived signals that an incoming payment settled
const EventPaymentReceived EventKind = "payment_received"

// Event is an asynchronous notification emitted on the payment event stream
type Event struct {
	Kind    EventKind           `json:"kind"`
	Payment WaitPaymentResponse `json:"payment"`
}

// Bolt11Settings is the capability descriptor a backend reports via GetSettings
type Bolt11Settings struct {
	MPP                bool         `json:"mpp"`
	Unit               CurrencyUnit `json:"unit"`
	InvoiceDescription bool         `json:"invoice_description"`
	Amountless         bool         `json:"amountless"`
	Bolt12             bool         `json:"bolt12"`
}
