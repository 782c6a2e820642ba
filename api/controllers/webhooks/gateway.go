package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/gateway"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

const maxWebhookBytes = 1 << 20

type WebhookService interface {
	HandleWebhook(ctx context.Context, event settlement.WebhookEvent) (*settlement.Result, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, event, reference string) (bool, error)
	Release(ctx context.Context, event, reference string) error
}

type signatureVerifier interface {
	VerifySignature(payload []byte, signature string) bool
}

// GatewayWebhook handles charge pushes from the payment gateway. Anything the
// gateway should not retry is acknowledged with 200.
func GatewayWebhook(svc WebhookService, verifier signatureVerifier, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !verifier.VerifySignature(payload, r.Header.Get(gateway.SignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "invalid webhook signature"))
			return
		}

		var event settlement.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		event.Event = strings.TrimSpace(event.Event)
		event.Data.Reference = strings.TrimSpace(event.Data.Reference)

		if logg != nil {
			ctx = logg.WithReference(ctx, event.Data.Reference)
			ctx = logg.WithFields(ctx, map[string]any{
				"webhook_event":  event.Event,
				"webhook_status": event.Data.Status,
			})
		}

		if _, ok := settlement.OutcomeForEvent(event.Event); !ok {
			if _, err := svc.HandleWebhook(ctx, event); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Info(ctx, "webhook.ignored")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		// a signed event with no reference can never settle; acknowledge so the
		// gateway stops redelivering it
		if event.Data.Reference == "" {
			if logg != nil {
				logg.Warn(ctx, "webhook.missing_reference")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, event.Event, event.Data.Reference)
			switch {
			case err != nil:
				if logg != nil {
					logg.Warn(ctx, "webhook.guard_unavailable")
				}
			case seen:
				if logg != nil {
					logg.Info(ctx, "webhook.duplicate")
				}
				responses.WriteSuccess(w, nil)
				return
			}
		}

		if _, err := svc.HandleWebhook(ctx, event); err != nil {
			switch {
			case pkgerrors.IsCode(err, pkgerrors.CodeUnknownReference):
				if logg != nil {
					logg.Warn(ctx, "webhook.unknown_reference")
				}
				responses.WriteSuccess(w, nil)
				return
			case pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock):
				if logg != nil {
					logg.Warn(ctx, "webhook.out_of_stock")
				}
				responses.WriteSuccess(w, nil)
				return
			}
			if guard != nil {
				if releaseErr := guard.Release(ctx, event.Event, event.Data.Reference); releaseErr != nil && logg != nil {
					logg.Error(ctx, "webhook.guard_release_failed", releaseErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "webhook.processed")
		}
		responses.WriteSuccess(w, nil)
	}
}
