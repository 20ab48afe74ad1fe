package simnet

import (
	"sync"

	portalpay "github.com/portalpay/portalpay"
)

// paymentRecord is one ledger entry. Immutable apart from settled, which only
// ever transitions false -> true.
type paymentRecord struct {
	request string
	settled bool
	amount  portalpay.Amount
	unit    portalpay.CurrencyUnit
}

// ledger is the shared map of payment records. All access goes through the
// mutex; the lock is never held across a channel operation.
type ledger struct {
	mu      sync.Mutex
	entries map[portalpay.PaymentHash]*paymentRecord
}

func newLedger() *ledger {
	return &ledger{
		entries: make(map[portalpay.PaymentHash]*paymentRecord),
	}
}

// insert adds a record. The caller guarantees the hash is fresh.
func (l *ledger) insert(hash portalpay.PaymentHash, rec paymentRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[hash] = &rec
}

// get returns a snapshot copy of the record for hash
func (l *ledger) get(hash portalpay.PaymentHash) (paymentRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.entries[hash]
	if !ok {
		return paymentRecord{}, false
	}
	return *rec, true
}

// markSettledByRequest finds the record whose request token matches, marks it
// settled and returns its hash and updated snapshot. Linear scan: one backend
// holds at most a handful of open requests at a time.
func (l *ledger) markSettledByRequest(request string) (portalpay.PaymentHash, paymentRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for hash, rec := range l.entries {
		if rec.request == request {
			rec.settled = true
			return hash, *rec, true
		}
	}
	return portalpay.PaymentHash{}, paymentRecord{}, false
}

// settledTotal sums the settled amounts recorded in the given unit
func (l *ledger) settledTotal(unit portalpay.CurrencyUnit) portalpay.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total portalpay.Amount
	for _, rec := range l.entries {
		if rec.settled && rec.unit == unit {
			total += rec.amount
		}
	}
	return total
}
