package webhooks

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/settlement-backend/internal/settlement"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/gateway"
)

const testSecret = "sk_test_secret"

func TestGatewayWebhook_SuccessAndIdempotent(t *testing.T) {
	client := newTestClient(t)
	service := &fakeWebhookService{}
	guard := newTestGuard(t, newInMemoryStore())
	handler := GatewayWebhook(service, client, guard, nil)

	payload := []byte(`{"event":"charge.success","data":{"reference":"stl_abc","status":"success"}}`)
	rec := serve(handler, payload, client.Sign(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.callCount() != 1 {
		t.Fatalf("expected service called once, got %d", service.callCount())
	}
	if got := service.last().Data.Reference; got != "stl_abc" {
		t.Fatalf("expected reference stl_abc, got %q", got)
	}

	rec = serve(handler, payload, client.Sign(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d", rec.Code)
	}
	if service.callCount() != 1 {
		t.Fatalf("duplicate should not reach the service, got %d calls", service.callCount())
	}
}

func TestGatewayWebhook_InvalidSignature(t *testing.T) {
	client := newTestClient(t)
	service := &fakeWebhookService{}
	handler := GatewayWebhook(service, client, newTestGuard(t, newInMemoryStore()), nil)

	payload := []byte(`{"event":"charge.success","data":{"reference":"stl_abc"}}`)
	for _, sig := range []string{"", "deadbeef", client.Sign([]byte("other body"))} {
		rec := serve(handler, payload, sig)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for signature %q, got %d", sig, rec.Code)
		}
	}
	if service.callCount() != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestGatewayWebhook_UnknownEventAcknowledged(t *testing.T) {
	client := newTestClient(t)
	service := &fakeWebhookService{}
	store := newInMemoryStore()
	handler := GatewayWebhook(service, client, newTestGuard(t, store), nil)

	payload := []byte(`{"event":"transfer.success","data":{"reference":"trf_1"}}`)
	rec := serve(handler, payload, client.Sign(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.keys) != 0 {
		t.Fatalf("ignored events must not claim guard keys")
	}
}

func TestGatewayWebhook_AcknowledgesTerminalBusinessErrors(t *testing.T) {
	cases := map[string]error{
		"unknown reference": pkgerrors.New(pkgerrors.CodeUnknownReference, "unknown payment reference"),
		"out of stock":      pkgerrors.New(pkgerrors.CodeOutOfStock, "item is out of stock"),
	}
	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t)
			service := &fakeWebhookService{err: failure}
			handler := GatewayWebhook(service, client, newTestGuard(t, newInMemoryStore()), nil)

			payload := []byte(`{"event":"charge.success","data":{"reference":"stl_missing"}}`)
			rec := serve(handler, payload, client.Sign(payload))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
		})
	}
}

func TestGatewayWebhook_TransientErrorReleasesGuard(t *testing.T) {
	client := newTestClient(t)
	service := &fakeWebhookService{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "settle payment")}
	store := newInMemoryStore()
	handler := GatewayWebhook(service, client, newTestGuard(t, store), nil)

	payload := []byte(`{"event":"charge.failed","data":{"reference":"stl_abc"}}`)
	rec := serve(handler, payload, client.Sign(payload))
	if rec.Code < http.StatusInternalServerError {
		t.Fatalf("expected 5xx so the gateway retries, got %d", rec.Code)
	}
	if len(store.keys) != 0 {
		t.Fatalf("expected guard key released after failure")
	}

	service.setErr(nil)
	rec = serve(handler, payload, client.Sign(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected redelivery to succeed, got %d", rec.Code)
	}
	if service.callCount() != 2 {
		t.Fatalf("expected redelivery to reach the service, got %d calls", service.callCount())
	}
}

func TestGatewayWebhook_GuardOutageFailsOpen(t *testing.T) {
	client := newTestClient(t)
	service := &fakeWebhookService{}
	store := newInMemoryStore()
	store.setErr = errors.New("redis unavailable")
	handler := GatewayWebhook(service, client, newTestGuard(t, store), nil)

	payload := []byte(`{"event":"charge.success","data":{"reference":"stl_abc"}}`)
	rec := serve(handler, payload, client.Sign(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if service.callCount() != 1 {
		t.Fatalf("expected service to run without the guard, got %d calls", service.callCount())
	}
}

func TestGatewayWebhook_RejectsMalformedBody(t *testing.T) {
	client := newTestClient(t)
	service := &fakeWebhookService{}
	handler := GatewayWebhook(service, client, nil, nil)

	payload := []byte(`{not json`)
	rec := serve(handler, payload, client.Sign(payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for %s, got %d", payload, rec.Code)
	}
	if service.callCount() != 0 {
		t.Fatalf("service should not run for malformed bodies")
	}
}

func TestGatewayWebhook_AcknowledgesMissingReference(t *testing.T) {
	client := newTestClient(t)
	service := &fakeWebhookService{}
	store := newInMemoryStore()
	handler := GatewayWebhook(service, client, newTestGuard(t, store), nil)

	for _, payload := range [][]byte{
		[]byte(`{"event":"charge.success","data":{"reference":"  "}}`),
		[]byte(`{"event":"charge.failed","data":{}}`),
	} {
		rec := serve(handler, payload, client.Sign(payload))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", payload, rec.Code)
		}
	}
	if service.callCount() != 0 {
		t.Fatalf("service should not run without a reference")
	}
	if len(store.keys) != 0 {
		t.Fatalf("no guard key should be claimed without a reference")
	}
}

func serve(handler http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set(gateway.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newTestClient(t *testing.T) *gateway.Client {
	t.Helper()
	client, err := gateway.NewClient(testSecret)
	if err != nil {
		t.Fatalf("gateway client: %v", err)
	}
	return client
}

func newTestGuard(t *testing.T, store *inMemoryStore) *settlement.WebhookGuard {
	t.Helper()
	guard, err := settlement.NewWebhookGuard(store, time.Hour)
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

type fakeWebhookService struct {
	mu    sync.Mutex
	calls []settlement.WebhookEvent
	err   error
}

func (f *fakeWebhookService) HandleWebhook(_ context.Context, event settlement.WebhookEvent) (*settlement.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, event)
	if f.err != nil {
		return nil, f.err
	}
	return &settlement.Result{Applied: true}, nil
}

func (f *fakeWebhookService) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeWebhookService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeWebhookService) last() settlement.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type inMemoryStore struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	setErr error
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{keys: map[string]struct{}{}}
}

func (s *inMemoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *inMemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func (s *inMemoryStore) WebhookKey(event, reference string) string {
	return "webhook:" + event + ":" + reference
}
