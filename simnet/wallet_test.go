package simnet

import (
	"context"
	"encoding/json"
	"testing"

	portalpay "github.com/portalpay/portalpay"
)

func amountPtr(a portalpay.Amount) *portalpay.Amount {
	return &a
}

func TestGetSettings(t *testing.T) {
	w := New(portalpay.UnitMsat)

	raw, err := w.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}

	var settings portalpay.Bolt11Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		t.Fatalf("settings did not round-trip: %v", err)
	}
	if settings.MPP {
		t.Error("expected mpp disabled")
	}
	if settings.Unit != portalpay.UnitMsat {
		t.Errorf("expected unit msat, got %s", settings.Unit)
	}
	if !settings.InvoiceDescription {
		t.Error("expected invoice descriptions supported")
	}
	if settings.Amountless || settings.Bolt12 {
		t.Error("expected amountless and bolt12 disabled")
	}
}

func TestCreateIncoming_AutoSettles(t *testing.T) {
	w := New(portalpay.UnitMsat)
	ctx := context.Background()

	created, err := w.CreateIncomingPaymentRequest(ctx, portalpay.UnitMsat, portalpay.Bolt11IncomingOptions{Amount: 1000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Request == "" {
		t.Error("expected a request token")
	}
	if created.Expiry != nil {
		t.Error("expected no expiry from the simulated backend")
	}
	if created.RequestLookupID.Kind != portalpay.IdentifierPaymentHash {
		t.Errorf("expected hash-keyed identifier, got %s", created.RequestLookupID.Kind)
	}

	statuses, err := w.CheckIncomingPaymentStatus(ctx, created.RequestLookupID)
	if err != nil {
		t.Fatalf("status check failed: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected exactly one settlement, got %d", len(statuses))
	}
	got := statuses[0]
	if got.PaymentAmount != 1000 || got.Unit != portalpay.UnitMsat || got.PaymentID != created.Request {
		t.Errorf("unexpected settlement: %+v", got)
	}
}

func TestCheckIncoming_AbsenceIsEmpty(t *testing.T) {
	w := New(portalpay.UnitMsat)
	ctx := context.Background()

	statuses, err := w.CheckIncomingPaymentStatus(ctx, portalpay.NewHashIdentifier(newPaymentHash()))
	if err != nil {
		t.Fatalf("expected absence to not be an error, got %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected empty result, got %d entries", len(statuses))
	}

	// Non-hash identifiers are also a valid empty result
	statuses, err = w.CheckIncomingPaymentStatus(ctx, portalpay.NewOfferIdentifier("offer-1"))
	if err != nil {
		t.Fatalf("expected non-hash identifier to not be an error, got %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected empty result, got %d entries", len(statuses))
	}
}

func TestGetPaymentQuote(t *testing.T) {
	w := New(portalpay.UnitMsat)
	ctx := context.Background()

	quote, err := w.GetPaymentQuote(ctx, portalpay.UnitMsat, portalpay.Bolt11OutgoingOptions{
		Invoice:     "inv-quote",
		MeltOptions: &portalpay.MeltOptions{AmountMsat: 2500},
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote.Amount != 2500 {
		t.Errorf("expected amount 2500, got %d", quote.Amount)
	}
	if quote.Fee != portalpay.AmountZero {
		t.Errorf("expected zero fee, got %d", quote.Fee)
	}
	if quote.State != portalpay.MeltStateUnpaid {
		t.Errorf("expected unpaid state, got %s", quote.State)
	}
	if quote.RequestLookupID == nil || quote.RequestLookupID.Kind != portalpay.IdentifierPaymentHash {
		t.Error("expected a fresh hash-keyed lookup id")
	}

	// Amount embedded in the invoice is used when no explicit override exists
	quote2, err := w.GetPaymentQuote(ctx, portalpay.UnitMsat, portalpay.Bolt11OutgoingOptions{
		Invoice:           "inv-embedded",
		InvoiceAmountMsat: amountPtr(700),
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if quote2.Amount != 700 {
		t.Errorf("expected embedded amount 700, got %d", quote2.Amount)
	}

	if quote.RequestLookupID.Hash == quote2.RequestLookupID.Hash {
		t.Error("expected distinct lookup ids per quote")
	}
}

func TestGetPaymentQuote_AmountUnknown(t *testing.T) {
	w := New(portalpay.UnitMsat)

	_, err := w.GetPaymentQuote(context.Background(), portalpay.UnitMsat, portalpay.Bolt11OutgoingOptions{Invoice: "inv-no-amount"})
	if !portalpay.IsAmountUnknown(err) {
		t.Errorf("expected amount_unknown, got %v", err)
	}
}

func TestUnsupportedVariants(t *testing.T) {
	w := New(portalpay.UnitMsat)
	ctx := context.Background()

	_, err := w.CreateIncomingPaymentRequest(ctx, portalpay.UnitMsat, portalpay.Bolt12IncomingOptions{Amount: amountPtr(10)})
	if !portalpay.IsUnsupportedMethod(err) {
		t.Errorf("expected unsupported_method for bolt12 incoming, got %v", err)
	}

	_, err = w.GetPaymentQuote(ctx, portalpay.UnitMsat, portalpay.Bolt12OutgoingOptions{Offer: "offer-1"})
	if !portalpay.IsUnsupportedMethod(err) {
		t.Errorf("expected unsupported_method for bolt12 quote, got %v", err)
	}

	_, err = w.MakePayment(ctx, portalpay.UnitMsat, portalpay.Bolt12OutgoingOptions{Offer: "offer-1"})
	if !portalpay.IsUnsupportedMethod(err) {
		t.Errorf("expected unsupported_method for bolt12 payment, got %v", err)
	}

	// Rejected requests must not touch the ledger
	if total, _ := w.Balance(); total != 0 {
		t.Errorf("expected untouched ledger, balance %d", total)
	}
}

func TestMakePayment_SettlesMatchingRequest(t *testing.T) {
	w := New(portalpay.UnitMsat)
	ctx := context.Background()

	created, err := w.CreateIncomingPaymentRequest(ctx, portalpay.UnitMsat, portalpay.Bolt11IncomingOptions{Amount: 1000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	paid, err := w.MakePayment(ctx, portalpay.UnitMsat, portalpay.Bolt11OutgoingOptions{Invoice: created.Request})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if paid.Status != portalpay.MeltStatePaid {
		t.Errorf("expected paid status, got %s", paid.Status)
	}
	if paid.TotalSpent != 1000 {
		t.Errorf("expected total spent 1000, got %d", paid.TotalSpent)
	}
	if paid.PaymentProof != created.Request {
		t.Errorf("expected proof %q, got %q", created.Request, paid.PaymentProof)
	}
	if paid.PaymentLookupID.Hash != created.RequestLookupID.Hash {
		t.Error("expected payment lookup id to match the created record")
	}

	// Idempotent: paying again yields the same settled result
	again, err := w.MakePayment(ctx, portalpay.UnitMsat, portalpay.Bolt11OutgoingOptions{Invoice: created.Request})
	if err != nil {
		t.Fatalf("repeat payment failed: %v", err)
	}
	if *again != *paid {
		t.Errorf("expected identical result on repeat, got %+v vs %+v", again, paid)
	}
}

func TestMakePayment_NotFound(t *testing.T) {
	w := New(portalpay.UnitMsat)

	_, err := w.MakePayment(context.Background(), portalpay.UnitMsat, portalpay.Bolt11OutgoingOptions{Invoice: "no-such-invoice"})
	if !portalpay.IsPaymentNotFound(err) {
		t.Errorf("expected payment_not_found, got %v", err)
	}
}

func TestCheckOutgoingPayment(t *testing.T) {
	w := New(portalpay.UnitMsat)
	ctx := context.Background()

	created, err := w.CreateIncomingPaymentRequest(ctx, portalpay.UnitMsat, portalpay.Bolt11IncomingOptions{Amount: 400})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	status, err := w.CheckOutgoingPayment(ctx, created.RequestLookupID)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if status.Status != portalpay.MeltStatePaid {
		t.Errorf("expected paid (auto-settled) record, got %s", status.Status)
	}
	if status.PaymentProof != created.Request || status.TotalSpent != 400 {
		t.Errorf("unexpected status: %+v", status)
	}

	_, err = w.CheckOutgoingPayment(ctx, portalpay.NewHashIdentifier(newPaymentHash()))
	if !portalpay.IsPaymentNotFound(err) {
		t.Errorf("expected payment_not_found for unknown hash, got %v", err)
	}

	_, err = w.CheckOutgoingPayment(ctx, portalpay.NewOfferIdentifier("offer-1"))
	if !portalpay.IsPaymentNotFound(err) {
		t.Errorf("expected payment_not_found for non-hash identifier, got %v", err)
	}
}

// Full quote -> request -> detect -> confirm walkthrough
func TestEndToEndScenario(t *testing.T) {
	w := New(portalpay.UnitMsat)
	ctx := context.Background()

	created, err := w.CreateIncomingPaymentRequest(ctx, portalpay.UnitMsat, portalpay.Bolt11IncomingOptions{Amount: 1000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	statuses, err := w.CheckIncomingPaymentStatus(ctx, created.RequestLookupID)
	if err != nil || len(statuses) != 1 {
		t.Fatalf("expected one settlement, got %d (err %v)", len(statuses), err)
	}
	if statuses[0].PaymentAmount != 1000 || statuses[0].Unit != portalpay.UnitMsat || statuses[0].PaymentID != created.Request {
		t.Fatalf("unexpected settlement: %+v", statuses[0])
	}

	events, err := w.WaitPaymentEvent(ctx)
	if err != nil {
		t.Fatalf("stream attach failed: %v", err)
	}
	event := recvEvent(t, events)
	if event.Kind != portalpay.EventPaymentReceived {
		t.Fatalf("expected payment_received, got %s", event.Kind)
	}
	if event.Payment.PaymentIdentifier.Hash != created.RequestLookupID.Hash ||
		event.Payment.PaymentAmount != 1000 ||
		event.Payment.Unit != portalpay.UnitMsat ||
		event.Payment.PaymentID != created.Request {
		t.Fatalf("unexpected event payload: %+v", event.Payment)
	}

	paid, err := w.MakePayment(ctx, portalpay.UnitMsat, portalpay.Bolt11OutgoingOptions{Invoice: created.Request})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if paid.TotalSpent != 1000 || paid.Status != portalpay.MeltStatePaid {
		t.Fatalf("unexpected payment result: %+v", paid)
	}

	outgoing, err := w.CheckOutgoingPayment(ctx, created.RequestLookupID)
	if err != nil {
		t.Fatalf("outgoing check failed: %v", err)
	}
	if outgoing.Status != portalpay.MeltStatePaid || outgoing.PaymentProof != created.Request {
		t.Fatalf("unexpected outgoing status: %+v", outgoing)
	}

	w.CancelWaitInvoice()
}

func TestBalance(t *testing.T) {
	w := New(portalpay.UnitMsat)
	ctx := context.Background()

	for _, amount := range []portalpay.Amount{100, 250} {
		if _, err := w.CreateIncomingPaymentRequest(ctx, portalpay.UnitMsat, portalpay.Bolt11IncomingOptions{Amount: amount}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	total, unit := w.Balance()
	if total != 350 {
		t.Errorf("expected balance 350, got %d", total)
	}
	if unit != portalpay.UnitMsat {
		t.Errorf("expected unit msat, got %s", unit)
	}
}
