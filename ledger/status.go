/*
status.go - Point-in-time installment status derivation

PURPOSE:
  Status is never trusted as stored. This file derives it from the
  facts: a recorded payment wins unconditionally, otherwise the due
  date against "now" decides pending vs overdue.

IDEMPOTENCE:
  Deriving twice with the same now yields the same result. A later now
  can move pending -> overdue (and an extended due date could move it
  back on re-derivation) but can never flip paid to anything else.

DEGRADATION:
  A record whose stored due date failed to parse is skipped: its last
  known status is returned untouched together with a
  DataIntegrityWarning. The sweep and read paths log the warning and
  keep going.
*/
package ledger

import "time"

// DeriveStatus computes an installment's status at now.
// The returned error, when non-nil, is always a *DataIntegrityWarning
// and the returned status is the record's last known label.
func DeriveStatus(inst Installment, now time.Time) (InstallmentStatus, error) {
	if inst.Paid() {
		// Terminal. Payment always wins over the date comparison.
		return StatusPaid, nil
	}
	if inst.BadDueDate {
		return inst.Status, &DataIntegrityWarning{
			Kind:   "installment",
			ID:     string(inst.ID),
			Detail: "unparseable due date, status left as last known",
		}
	}
	if now.After(inst.DueDate) {
		return StatusOverdue, nil
	}
	return StatusPending, nil
}

// DeriveAll refreshes the Status label of every installment in the
// purchase in place and returns any integrity warnings encountered.
// Safe to call on every read path and from the periodic sweep.
func DeriveAll(p *Purchase, now time.Time) []*DataIntegrityWarning {
	var warnings []*DataIntegrityWarning
	for i := range p.Installments {
		status, err := DeriveStatus(p.Installments[i], now)
		if err != nil {
			warnings = append(warnings, err.(*DataIntegrityWarning))
			continue
		}
		p.Installments[i].Status = status
	}
	return warnings
}
