package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/middleware"
	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	internalorders "github.com/angelmondragon/settlement-backend/internal/orders"
	internalpayments "github.com/angelmondragon/settlement-backend/internal/payments"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type Verifier interface {
	VerifyAndResolve(ctx context.Context, reference string, actorID uuid.UUID) (*settlement.Result, error)
}

// VerifyResponse is the payment state after a manual verification, with the
// order once one exists.
type VerifyResponse struct {
	Payment internalpayments.PaymentDTO `json:"payment"`
	Order   *internalorders.OrderDTO    `json:"order,omitempty"`
	Applied bool                        `json:"applied"`
}

// Initialize opens a gateway checkout for one item and records the pending payment.
func Initialize(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		buyerID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body internalpayments.InitializeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuid.Parse(body.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid itemId"))
			return
		}

		email := strings.TrimSpace(body.Email)
		if email == "" {
			email = middleware.EmailFromContext(r.Context())
		}

		payment, err := svc.Initialize(r.Context(), internalpayments.InitializeInput{
			BuyerID:         buyerID,
			BuyerEmail:      email,
			ItemID:          itemID,
			AmountMinor:     body.Amount,
			DeliveryAddress: validators.SanitizeString(body.DeliveryAddress, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, internalpayments.NewInitializeResponse(payment))
	}
}

// Verify asks the gateway for the outcome of a reference and applies it.
func Verify(svc Verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reference, err := validators.ParseReferenceParam(r, "reference")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithReference(ctx, reference)
		}

		result, err := svc.VerifyAndResolve(ctx, reference, actorID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newVerifyResponse(result))
	}
}

func newVerifyResponse(result *settlement.Result) VerifyResponse {
	resp := VerifyResponse{Applied: result.Applied}
	if result.Payment != nil {
		resp.Payment = internalpayments.NewPaymentDTO(result.Payment)
	}
	if result.Order != nil {
		dto := internalorders.NewOrderDTO(result.Order)
		resp.Order = &dto
	}
	return resp
}

func actorFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
