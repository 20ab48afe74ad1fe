// Package simnet implements a simulated payment backend that settles every
// incoming payment request it creates the instant it is created. It exposes
// the same asynchronous contract a real backend would (event stream, quote /
// execute / check phases) so a settlement system can be exercised end to end
// without a payment network.
package simnet

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	portalpay "github.com/portalpay/portalpay"
)

// defaultNotifyBuffer bounds the settlement signal channel. Signals sent while
// no consumer is attached are retained up to this depth; beyond it, sends are
// dropped rather than blocking creation.
const defaultNotifyBuffer = 32

// Wallet is the simulated backend. It implements portalpay.MintPayment with
// an auto-pay policy: every created incoming request is inserted pre-settled
// and a settlement signal is emitted immediately.
type Wallet struct {
	settings portalpay.Bolt11Settings
	ledger   *ledger
	notify   chan portalpay.PaymentHash
	stream   streamController
}

// Option configures a Wallet
type Option func(*walletOptions)

type walletOptions struct {
	notifyBuffer       int
	invoiceDescription bool
}

// WithNotifyBuffer sets the settlement signal channel capacity
func WithNotifyBuffer(n int) Option {
	return func(o *walletOptions) {
		if n > 0 {
			o.notifyBuffer = n
		}
	}
}

// WithInvoiceDescription controls whether the capability descriptor
// advertises invoice description support
func WithInvoiceDescription(enabled bool) Option {
	return func(o *walletOptions) {
		o.invoiceDescription = enabled
	}
}

// New creates a simulated wallet denominated in the given unit
func New(unit portalpay.CurrencyUnit, opts ...Option) *Wallet {
	options := walletOptions{
		notifyBuffer:       defaultNotifyBuffer,
		invoiceDescription: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Wallet{
		settings: portalpay.Bolt11Settings{
			MPP:                false,
			Unit:               unit,
			InvoiceDescription: options.invoiceDescription,
			Amountless:         false,
			Bolt12:             false,
		},
		ledger: newLedger(),
		notify: make(chan portalpay.PaymentHash, options.notifyBuffer),
	}
}

// GetSettings returns the serialized capability descriptor
func (w *Wallet) GetSettings(_ context.Context) (json.RawMessage, error) {
	data, err := json.Marshal(w.settings)
	if err != nil {
		return nil, portalpay.NewPaymentError(portalpay.ErrCodeSerialization, fmt.Sprintf("encode settings: %v", err), nil)
	}
	return data, nil
}

// Unit returns the unit this wallet is denominated in
func (w *Wallet) Unit() portalpay.CurrencyUnit {
	return w.settings.Unit
}

// Balance returns the total settled amount held by this wallet
func (w *Wallet) Balance() (portalpay.Amount, portalpay.CurrencyUnit) {
	return w.ledger.settledTotal(w.settings.Unit), w.settings.Unit
}

// CreateIncomingPaymentRequest inserts a pre-settled record and emits a
// settlement signal. The record is visible in the ledger before the signal is
// sent, so a consumer woken by the signal always observes the settled record.
func (w *Wallet) CreateIncomingPaymentRequest(_ context.Context, unit portalpay.CurrencyUnit, options portalpay.IncomingPaymentOptions) (*portalpay.CreateIncomingPaymentResponse, error) {
	bolt11, ok := options.(portalpay.Bolt11IncomingOptions)
	if !ok {
		return nil, portalpay.NewUnsupportedMethodError("bolt12")
	}

	request := uuid.NewString()
	hash := newPaymentHash()

	w.ledger.insert(hash, paymentRecord{
		request: request,
		settled: true,
		amount:  bolt11.Amount,
		unit:    unit,
	})

	// Best effort: never block or fail creation because no one is listening.
	select {
	case w.notify <- hash:
	default:
	}

	return &portalpay.CreateIncomingPaymentResponse{
		RequestLookupID: portalpay.NewHashIdentifier(hash),
		Request:         request,
		Expiry:          nil,
	}, nil
}

// GetPaymentQuote quotes an outgoing bolt11 payment: fresh lookup id,
// requested amount, zero fee, unpaid.
func (w *Wallet) GetPaymentQuote(_ context.Context, _ portalpay.CurrencyUnit, options portalpay.OutgoingPaymentOptions) (*portalpay.PaymentQuoteResponse, error) {
	bolt11, ok := options.(portalpay.Bolt11OutgoingOptions)
	if !ok {
		return nil, portalpay.NewUnsupportedMethodError("bolt12")
	}

	amountMsat, ok := bolt11.AmountMsat()
	if !ok {
		return nil, portalpay.NewAmountUnknownError()
	}

	lookupID := portalpay.NewHashIdentifier(newPaymentHash())
	return &portalpay.PaymentQuoteResponse{
		RequestLookupID: &lookupID,
		Amount:          amountMsat,
		Fee:             portalpay.AmountZero,
		State:           portalpay.MeltStateUnpaid,
		Unit:            portalpay.UnitMsat,
	}, nil
}

// MakePayment marks the record matching the request token as settled and
// returns proof of payment. Idempotent: re-executing an already settled
// request yields the same result with no further side effects.
func (w *Wallet) MakePayment(_ context.Context, _ portalpay.CurrencyUnit, options portalpay.OutgoingPaymentOptions) (*portalpay.MakePaymentResponse, error) {
	bolt11, ok := options.(portalpay.Bolt11OutgoingOptions)
	if !ok {
		return nil, portalpay.NewUnsupportedMethodError("bolt12")
	}

	hash, rec, ok := w.ledger.markSettledByRequest(bolt11.Invoice)
	if !ok {
		return nil, portalpay.NewPaymentNotFoundError()
	}

	return &portalpay.MakePaymentResponse{
		PaymentLookupID: portalpay.NewHashIdentifier(hash),
		PaymentProof:    rec.request,
		Status:          portalpay.MeltStatePaid,
		TotalSpent:      rec.amount,
		Unit:            rec.unit,
	}, nil
}

// CheckIncomingPaymentStatus reports zero or one settlement for the
// identifier. Absence and non-settlement are valid empty results.
func (w *Wallet) CheckIncomingPaymentStatus(_ context.Context, id portalpay.PaymentIdentifier) ([]portalpay.WaitPaymentResponse, error) {
	if id.Kind != portalpay.IdentifierPaymentHash {
		return []portalpay.WaitPaymentResponse{}, nil
	}

	rec, ok := w.ledger.get(id.Hash)
	if !ok || !rec.settled {
		return []portalpay.WaitPaymentResponse{}, nil
	}

	return []portalpay.WaitPaymentResponse{{
		PaymentIdentifier: id,
		PaymentAmount:     rec.amount,
		Unit:              rec.unit,
		PaymentID:         rec.request,
	}}, nil
}

// CheckOutgoingPayment reports the current state of an outgoing payment.
// Unknown identifiers are an error here: the caller asked about a payment
// this backend was never told about.
func (w *Wallet) CheckOutgoingPayment(_ context.Context, id portalpay.PaymentIdentifier) (*portalpay.MakePaymentResponse, error) {
	if id.Kind != portalpay.IdentifierPaymentHash {
		return nil, portalpay.NewPaymentNotFoundError()
	}

	rec, ok := w.ledger.get(id.Hash)
	if !ok {
		return nil, portalpay.NewPaymentNotFoundError()
	}

	status := portalpay.MeltStateUnpaid
	if rec.settled {
		status = portalpay.MeltStatePaid
	}
	return &portalpay.MakePaymentResponse{
		PaymentLookupID: id,
		PaymentProof:    rec.request,
		Status:          status,
		TotalSpent:      rec.amount,
		Unit:            rec.unit,
	}, nil
}

// WaitPaymentEvent attaches the single event stream consumer. Raw settlement
// signals are resolved against the ledger at delivery time; stale signals
// (missing or unsettled records) are dropped, not surfaced as errors. If a
// consumer is already attached the returned channel is closed immediately.
func (w *Wallet) WaitPaymentEvent(ctx context.Context) (<-chan portalpay.Event, error) {
	cancel, ok := w.stream.attach()
	if !ok {
		empty := make(chan portalpay.Event)
		close(empty)
		return empty, nil
	}

	out := make(chan portalpay.Event)
	go func() {
		// Detach before closing so a consumer observing the closed channel
		// already sees the slot released and the active flag cleared.
		defer close(out)
		defer w.stream.detach()

		for {
			select {
			case <-ctx.Done():
				return
			case <-cancel:
				return
			case hash := <-w.notify:
				rec, ok := w.ledger.get(hash)
				if !ok || !rec.settled {
					continue
				}
				event := portalpay.Event{
					Kind: portalpay.EventPaymentReceived,
					Payment: portalpay.WaitPaymentResponse{
						PaymentIdentifier: portalpay.NewHashIdentifier(hash),
						PaymentAmount:     rec.amount,
						Unit:              rec.unit,
						PaymentID:         rec.request,
					},
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				case <-cancel:
					return
				}
			}
		}
	}()
	return out, nil
}

// IsWaitInvoiceActive reports whether an event stream consumer is attached
func (w *Wallet) IsWaitInvoiceActive() bool {
	return w.stream.isActive()
}

// CancelWaitInvoice cooperatively terminates the attached event stream.
// Already delivered events and ledger state are unaffected.
func (w *Wallet) CancelWaitInvoice() {
	w.stream.cancelAttached()
}

// newPaymentHash draws a random 256-bit hash. The key space makes collisions
// cryptographically negligible, matching what a real payment hash provides.
func newPaymentHash() portalpay.PaymentHash {
	var hash portalpay.PaymentHash
	// rand.Read never fails on supported platforms
	_, _ = rand.Read(hash[:])
	return hash
}

var _ portalpay.MintPayment = (*Wallet)(nil)
