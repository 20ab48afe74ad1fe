package portalpay

import (
	"context"
	"encoding/json"
)

// MintPayment is the payment backend capability surface a settlement system
// composes against. Real implementations talk to a payment network; simulated
// ones settle inline. All blocking operations take a context.
type MintPayment interface {
	// GetSettings returns the serialized capability descriptor for this backend
	GetSettings(ctx context.Context) (json.RawMessage, error)

	// CreateIncomingPaymentRequest creates a new incoming payment request in
	// the given unit and returns its identifier, external request token and
	// optional expiry
	CreateIncomingPaymentRequest(ctx context.Context, unit CurrencyUnit, options IncomingPaymentOptions) (*CreateIncomingPaymentResponse, error)

	// GetPaymentQuote quotes an outgoing payment without executing it
	GetPaymentQuote(ctx context.Context, unit CurrencyUnit, options OutgoingPaymentOptions) (*PaymentQuoteResponse, error)

	// MakePayment executes an outgoing payment
	MakePayment(ctx context.Context, unit CurrencyUnit, options OutgoingPaymentOptions) (*MakePaymentResponse, error)

	// CheckIncomingPaymentStatus reports settlements for the identified
	// incoming request. An unknown or unsettled identifier yields an empty
	// slice, not an error.
	CheckIncomingPaymentStatus(ctx context.Context, id PaymentIdentifier) ([]WaitPaymentResponse, error)

	// CheckOutgoingPayment reports the current state of an outgoing payment
	CheckOutgoingPayment(ctx context.Context, id PaymentIdentifier) (*MakePaymentResponse, error)

	// WaitPaymentEvent hands out the backend's event stream. The stream has
	// at most one live consumer: while one is attached, further calls return
	// a channel that is already closed. The returned channel is closed when
	// the context is done or the stream is cancelled.
	WaitPaymentEvent(ctx context.Context) (<-chan Event, error)

	// IsWaitInvoiceActive reports whether a consumer is currently attached to
	// the event stream
	IsWaitInvoiceActive() bool

	// CancelWaitInvoice asks the currently attached event stream to terminate
	CancelWaitInvoice()
}
