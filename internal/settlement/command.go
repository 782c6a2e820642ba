package settlement

import (
	"strings"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

// Gateway webhook event names.
const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// ResolveCommand asks the coordinator to apply an observed gateway outcome to
// the payment identified by Reference. Webhooks and manual verification both
// build one.
type ResolveCommand struct {
	Reference string
	Outcome   enums.PaymentOutcome
	Source    enums.ResolveSource
}

func (c ResolveCommand) validate() error {
	if strings.TrimSpace(c.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if !c.Outcome.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment outcome")
	}
	if !c.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown resolve source")
	}
	return nil
}

// Result is the payment state after a resolve. Applied is true only for the
// call that moved the payment out of pending.
type Result struct {
	Payment *models.Payment
	Order   *models.Order
	Applied bool
}

// WebhookEvent is the decoded gateway push body.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData carries the transaction the event refers to. Status is
// informational; Event decides the outcome.
type WebhookData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// OutcomeForEvent maps a webhook event name to a payment outcome. ok is false
// for events settlement does not act on.
func OutcomeForEvent(event string) (enums.PaymentOutcome, bool) {
	switch event {
	case EventChargeSuccess:
		return enums.PaymentOutcomeSuccess, true
	case EventChargeFailed:
		return enums.PaymentOutcomeFailed, true
	default:
		return "", false
	}
}
