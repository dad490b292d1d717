package guestlists

import (
	"github.com/serataapp/serata-backend/internal/assignments"
	"github.com/serataapp/serata-backend/pkg/db/models"
	pkgerrors "github.com/serataapp/serata-backend/pkg/errors"
)

// checkAdmission is the fast-fail half of the slot-ledger decision,
// evaluated in a fixed order so callers get deterministic errors:
// list active, then capacity. Capacity is re-checked atomically by
// TryAdmit afterwards; this read only exists to fail fast and to
// order the errors.
func checkAdmission(list *models.GuestList) error {
	if !list.Active {
		return pkgerrors.New(pkgerrors.CodeListClosed, "guest list is closed")
	}
	if list.Capacity != nil && list.CurrentCount >= *list.Capacity {
		return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "guest list is full")
	}
	return nil
}

// checkQuota is the per-promoter half. The count it receives must be
// taken after TryAdmit claims the slot: the list row lock serializes
// racing admissions, so a count started behind it includes the
// competitors' committed entries.
func checkQuota(grant *assignments.ResourceGrant, liveCount int64) error {
	if grant != nil && grant.Quota != nil && liveCount >= int64(*grant.Quota) {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "promoter quota exhausted for this list")
	}
	return nil
}
