package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/api/middleware"
	internalpayments "github.com/angelmondragon/settlement-backend/internal/payments"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

type stubPaymentsService struct {
	input internalpayments.InitializeInput
	err   error
}

func (s *stubPaymentsService) Initialize(_ context.Context, input internalpayments.InitializeInput) (*models.Payment, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Payment{
		ID:               uuid.New(),
		Reference:        "stl_0123",
		ItemID:           input.ItemID,
		BuyerID:          input.BuyerID,
		AmountMinor:      input.AmountMinor,
		Currency:         enums.CurrencyNGN,
		AuthorizationURL: "https://checkout.example/stl_0123",
		Status:           enums.PaymentStatusPending,
	}, nil
}

func (s *stubPaymentsService) GetByReference(context.Context, string) (*models.Payment, error) {
	panic("not implemented")
}

type stubVerifier struct {
	result *settlement.Result
	err    error
	ref    string
	actor  uuid.UUID
}

func (s *stubVerifier) VerifyAndResolve(_ context.Context, reference string, actorID uuid.UUID) (*settlement.Result, error) {
	s.ref, s.actor = reference, actorID
	return s.result, s.err
}

func initializeRequest(t *testing.T, userID, email, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initialize", strings.NewReader(body))
	ctx := middleware.WithUserID(req.Context(), userID)
	if email != "" {
		ctx = middleware.WithEmail(ctx, email)
	}
	return req.WithContext(ctx)
}

func TestInitializeReturnsCheckout(t *testing.T) {
	svc := &stubPaymentsService{}
	buyer, item := uuid.New(), uuid.New()
	body := `{"itemId":"` + item.String() + `","amount":250000,"deliveryAddress":"  22 Awolowo Rd, Ikoyi  "}`

	rec := httptest.NewRecorder()
	Initialize(svc, nil).ServeHTTP(rec, initializeRequest(t, buyer.String(), "buyer@example.com", body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data internalpayments.InitializeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://checkout.example/stl_0123", resp.Data.PaymentURL)
	assert.Equal(t, "stl_0123", resp.Data.Reference)
	assert.Equal(t, "2500.00", resp.Data.AmountDisplay)
	assert.Equal(t, "NGN", resp.Data.Currency)

	assert.Equal(t, buyer, svc.input.BuyerID)
	assert.Equal(t, item, svc.input.ItemID)
	assert.Equal(t, "buyer@example.com", svc.input.BuyerEmail)
	assert.Equal(t, "22 Awolowo Rd, Ikoyi", svc.input.DeliveryAddress)
}

func TestInitializePrefersBodyEmail(t *testing.T) {
	svc := &stubPaymentsService{}
	body := `{"itemId":"` + uuid.NewString() + `","amount":100,"deliveryAddress":"12 Allen Ave","email":"other@example.com"}`

	rec := httptest.NewRecorder()
	Initialize(svc, nil).ServeHTTP(rec, initializeRequest(t, uuid.NewString(), "claim@example.com", body))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "other@example.com", svc.input.BuyerEmail)
}

func TestInitializeValidatesBody(t *testing.T) {
	svc := &stubPaymentsService{}
	bodies := []string{
		`{}`,
		`{"itemId":"nope","amount":100,"deliveryAddress":"12 Allen Ave"}`,
		`{"itemId":"` + uuid.NewString() + `","amount":0,"deliveryAddress":"12 Allen Ave"}`,
		`{"itemId":"` + uuid.NewString() + `","amount":100,"deliveryAddress":"x"}`,
		`{"itemId":"` + uuid.NewString() + `","amount":100,"deliveryAddress":"12 Allen Ave","email":"bad"}`,
	}
	for _, body := range bodies {
		rec := httptest.NewRecorder()
		Initialize(svc, nil).ServeHTTP(rec, initializeRequest(t, uuid.NewString(), "", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, uuid.Nil, svc.input.BuyerID)
}

func TestInitializeSurfacesServiceErrors(t *testing.T) {
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodeOutOfStock:  http.StatusBadRequest,
		pkgerrors.CodeForbidden:   http.StatusForbidden,
		pkgerrors.CodeNotFound:    http.StatusNotFound,
		pkgerrors.CodeGatewayDown: http.StatusServiceUnavailable,
		pkgerrors.CodeValidation:  http.StatusBadRequest,
	}
	for code, status := range cases {
		svc := &stubPaymentsService{err: pkgerrors.New(code, "rejected")}
		body := `{"itemId":"` + uuid.NewString() + `","amount":100,"deliveryAddress":"12 Allen Ave"}`
		rec := httptest.NewRecorder()
		Initialize(svc, nil).ServeHTTP(rec, initializeRequest(t, uuid.NewString(), "buyer@example.com", body))
		assert.Equal(t, status, rec.Code, string(code))
		assert.Contains(t, rec.Body.String(), string(code))
	}
}

func TestVerifyReturnsPaymentAndOrder(t *testing.T) {
	paidAt := time.Now().UTC()
	payment := &models.Payment{ID: uuid.New(), Reference: "stl_abc", AmountMinor: 5000, Currency: enums.CurrencyNGN, Status: enums.PaymentStatusSuccess, PaidAt: &paidAt}
	order := &models.Order{ID: uuid.New(), PaymentID: payment.ID, Reference: "stl_abc", Status: enums.OrderStatusPendingDelivery}
	verifier := &stubVerifier{result: &settlement.Result{Payment: payment, Order: order, Applied: true}}
	actor := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/verify/stl_abc", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("reference", "stl_abc")
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	req = req.WithContext(middleware.WithUserID(ctx, actor.String()))

	rec := httptest.NewRecorder()
	Verify(verifier, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "stl_abc", verifier.ref)
	assert.Equal(t, actor, verifier.actor)

	var resp struct {
		Data VerifyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Applied)
	assert.Equal(t, "success", resp.Data.Payment.Status)
	require.NotNil(t, resp.Data.Order)
	assert.Equal(t, order.ID.String(), resp.Data.Order.ID)
}

func TestVerifyWithoutOrderOmitsIt(t *testing.T) {
	payment := &models.Payment{ID: uuid.New(), Reference: "stl_abc", Status: enums.PaymentStatusPending}
	verifier := &stubVerifier{result: &settlement.Result{Payment: payment}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/verify/stl_abc", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("reference", "stl_abc")
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	req = req.WithContext(middleware.WithUserID(ctx, uuid.NewString()))

	rec := httptest.NewRecorder()
	Verify(verifier, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"order"`)
}

func TestVerifyRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/verify/stl_abc", nil)
	rec := httptest.NewRecorder()
	Verify(&stubVerifier{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
