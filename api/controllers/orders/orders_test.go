package orders

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

	"github.com/angelmondragon/settlement-backend/api/middleware"
	internalorders "github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

type stubOrdersService struct {
	get           func(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error)
	markDelivered func(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error)
	cancel        func(ctx context.Context, input internalorders.CancelInput) (*models.Order, error)
}

func (s *stubOrdersService) Get(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	return s.get(ctx, orderID, actorID)
}

func (s *stubOrdersService) MarkDelivered(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	return s.markDelivered(ctx, orderID, actorID)
}

func (s *stubOrdersService) Cancel(ctx context.Context, input internalorders.CancelInput) (*models.Order, error) {
	return s.cancel(ctx, input)
}

func (s *stubOrdersService) AutoComplete(context.Context, uuid.UUID, time.Time) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubOrdersService) ListAutoCompletable(context.Context, time.Time, int) ([]models.Order, error) {
	panic("not implemented")
}

func newOrderRequest(method, orderID, userID, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/v1/orders/"+orderID, nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1/orders/"+orderID, strings.NewReader(body))
	}
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", orderID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if userID != "" {
		ctx = middleware.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func sampleOrder(id, buyer uuid.UUID, status enums.OrderStatus) *models.Order {
	return &models.Order{
		ID:              id,
		PaymentID:       uuid.New(),
		Reference:       "stl_ref",
		ItemID:          uuid.New(),
		BuyerID:         buyer,
		SellerID:        uuid.New(),
		AmountMinor:     250000,
		Currency:        enums.CurrencyNGN,
		DeliveryAddress: "22 Awolowo Rd, Ikoyi",
		Status:          status,
	}
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return payload.Error.Code
}

func TestDetailReturnsOrder(t *testing.T) {
	orderID, buyer := uuid.New(), uuid.New()
	svc := &stubOrdersService{
		get: func(_ context.Context, gotOrder, gotActor uuid.UUID) (*models.Order, error) {
			if gotOrder != orderID || gotActor != buyer {
				t.Fatalf("unexpected ids %s %s", gotOrder, gotActor)
			}
			return sampleOrder(orderID, buyer, enums.OrderStatusPendingDelivery), nil
		},
	}

	rec := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(rec, newOrderRequest(http.MethodGet, orderID.String(), buyer.String(), ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body struct {
		Data internalorders.OrderDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ID != orderID.String() || body.Data.AmountDisplay != "2500.00" {
		t.Fatalf("unexpected order payload %+v", body.Data)
	}
}

func TestDetailRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	Detail(&stubOrdersService{}, nil).ServeHTTP(rec, newOrderRequest(http.MethodGet, uuid.NewString(), "", ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestDetailRejectsBadOrderID(t *testing.T) {
	rec := httptest.NewRecorder()
	Detail(&stubOrdersService{}, nil).ServeHTTP(rec, newOrderRequest(http.MethodGet, "not-a-uuid", uuid.NewString(), ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestMarkDeliveredMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   pkgerrors.Code
	}{
		{"not found", pkgerrors.New(pkgerrors.CodeNotFound, "order not found"), http.StatusNotFound, pkgerrors.CodeNotFound},
		{"forbidden", pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm delivery"), http.StatusForbidden, pkgerrors.CodeForbidden},
		{"terminal", pkgerrors.New(pkgerrors.CodeInvalidOrderState, "order is not pending delivery"), http.StatusConflict, pkgerrors.CodeInvalidOrderState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrdersService{
				markDelivered: func(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
					return nil, tc.err
				},
			}
			rec := httptest.NewRecorder()
			MarkDelivered(svc, nil).ServeHTTP(rec, newOrderRequest(http.MethodPut, uuid.NewString(), uuid.NewString(), ""))
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
			if code := decodeErrorCode(t, rec); code != string(tc.code) {
				t.Fatalf("expected code %s got %s", tc.code, code)
			}
		})
	}
}

func TestMarkDeliveredReturnsDeliveredOrder(t *testing.T) {
	orderID, buyer := uuid.New(), uuid.New()
	svc := &stubOrdersService{
		markDelivered: func(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
			return sampleOrder(orderID, buyer, enums.OrderStatusDelivered), nil
		},
	}
	rec := httptest.NewRecorder()
	MarkDelivered(svc, nil).ServeHTTP(rec, newOrderRequest(http.MethodPut, orderID.String(), buyer.String(), ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"delivered"`) {
		t.Fatalf("expected delivered status in %s", rec.Body.String())
	}
}

func TestCancelPassesReason(t *testing.T) {
	orderID, actor := uuid.New(), uuid.New()
	var captured internalorders.CancelInput
	svc := &stubOrdersService{
		cancel: func(_ context.Context, input internalorders.CancelInput) (*models.Order, error) {
			captured = input
			return sampleOrder(orderID, actor, enums.OrderStatusCancelled), nil
		},
	}
	rec := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(rec, newOrderRequest(http.MethodPut, orderID.String(), actor.String(), `{"reason":"changed my mind"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.OrderID != orderID || captured.ActorID != actor || captured.Reason != "changed my mind" {
		t.Fatalf("unexpected cancel input %+v", captured)
	}
}

func TestCancelValidatesBody(t *testing.T) {
	called := false
	svc := &stubOrdersService{
		cancel: func(context.Context, internalorders.CancelInput) (*models.Order, error) {
			called = true
			return nil, nil
		},
	}
	for _, body := range []string{`{}`, `{"reason":""}`, `{"reason":"x","extra":1}`, `{"reason":"` + strings.Repeat("a", 501) + `"}`} {
		rec := httptest.NewRecorder()
		Cancel(svc, nil).ServeHTTP(rec, newOrderRequest(http.MethodPut, uuid.NewString(), uuid.NewString(), body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s got %d", body, rec.Code)
		}
	}
	if called {
		t.Fatalf("service should not run for invalid bodies")
	}
}
