// Package balance aggregates settled amounts across the payment backends
// registered with a settlement system and renders a per-backend breakdown
// with grand totals per unit.
package balance

import (
	"fmt"
	"io"
	"sort"

	portalpay "github.com/portalpay/portalpay"
)

// Balancer is implemented by backends that can report their settled total.
// Backends that cannot are skipped by Snapshot.
type Balancer interface {
	Balance() (portalpay.Amount, portalpay.CurrencyUnit)
}

// Row is one backend's balance
type Row struct {
	Backend string                 `json:"backend"`
	Unit    portalpay.CurrencyUnit `json:"unit"`
	Amount  portalpay.Amount       `json:"amount"`
}

// Report is the per-backend breakdown plus totals per unit
type Report struct {
	Rows   []Row                                       `json:"rows"`
	Totals map[portalpay.CurrencyUnit]portalpay.Amount `json:"totals"`
}

// Snapshot walks the registry and collects balances from every backend that
// reports one. Zero balances are omitted from the rows but still contribute
// a unit entry to Totals when any backend serves that unit.
func Snapshot(registry *portalpay.Registry) Report {
	report := Report{
		Totals: make(map[portalpay.CurrencyUnit]portalpay.Amount),
	}

	for _, unit := range registry.Units() {
		for name, backend := range registry.Backends(unit) {
			balancer, ok := backend.(Balancer)
			if !ok {
				continue
			}
			amount, balanceUnit := balancer.Balance()
			if _, seen := report.Totals[balanceUnit]; !seen {
				report.Totals[balanceUnit] = 0
			}
			report.Totals[balanceUnit] += amount
			if amount > 0 {
				report.Rows = append(report.Rows, Row{Backend: name, Unit: balanceUnit, Amount: amount})
			}
		}
	}

	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].Unit != report.Rows[j].Unit {
			return report.Rows[i].Unit < report.Rows[j].Unit
		}
		return report.Rows[i].Backend < report.Rows[j].Backend
	})
	return report
}

// Render writes the report as text: one line per non-zero backend balance,
// then a total line per unit.
func Render(w io.Writer, report Report) error {
	for i, row := range report.Rows {
		if _, err := fmt.Fprintf(w, "%d: %s %d %s\n", i, row.Backend, row.Amount, row.Unit); err != nil {
			return err
		}
	}

	units := make([]portalpay.CurrencyUnit, 0, len(report.Totals))
	for unit := range report.Totals {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })

	for _, unit := range units {
		if _, err := fmt.Fprintf(w, "Total balance across all backends: %d %s\n", report.Totals[unit], unit); err != nil {
			return err
		}
	}
	return nil
}
