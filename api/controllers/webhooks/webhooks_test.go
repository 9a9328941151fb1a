package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mazaj-interiors/payments-backend/internal/gateway"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/paytabs"
	"github.com/mazaj-interiors/payments-backend/internal/gateway/tamara"
	"github.com/mazaj-interiors/payments-backend/internal/reconcile"
	"github.com/mazaj-interiors/payments-backend/pkg/enums"
	pkgerrors "github.com/mazaj-interiors/payments-backend/pkg/errors"
	"github.com/mazaj-interiors/payments-backend/pkg/logger"
)

const testServerKey = "test-server-key"

type stubApplier struct {
	results []gateway.Result
	outcome reconcile.Outcome
	err     error
}

func (s *stubApplier) Apply(ctx context.Context, result gateway.Result) (reconcile.Outcome, error) {
	s.results = append(s.results, result)
	if s.err != nil {
		return "", s.err
	}
	return s.outcome, nil
}

type stubGuard struct {
	seen     map[string]bool
	released []string
}

func newStubGuard() *stubGuard {
	return &stubGuard{seen: map[string]bool{}}
}

func (s *stubGuard) CheckAndMark(ctx context.Context, provider, eventID string) bool {
	key := provider + ":" + eventID
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	return true
}

func (s *stubGuard) Release(ctx context.Context, provider, eventID string) {
	key := provider + ":" + eventID
	delete(s.seen, key)
	s.released = append(s.released, key)
}

type stubKeyHolder struct{}

func (stubKeyHolder) ServerKey() string { return testServerKey }

type stubFetcher struct {
	remote *tamara.RemoteOrder
	err    error
}

func (s *stubFetcher) GetOrder(ctx context.Context, tamaraOrderID string) (*tamara.RemoteOrder, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.remote, nil
}

func (s *stubFetcher) GetOrderByReference(ctx context.Context, orderID string) (*tamara.RemoteOrder, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.remote, nil
}

func webhookTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func signedPayTabsBody(t *testing.T) string {
	t.Helper()

	fields := map[string]string{
		"tran_ref":    "TST2201",
		"cart_id":     "ord_1",
		"cart_amount": "115.00",
		"respStatus":  "A",
	}
	fields["signature"] = paytabs.ComputeSignature(fields, testServerKey)
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return values.Encode()
}

func TestPayTabsCallback_applied(t *testing.T) {
	applier := &stubApplier{outcome: reconcile.OutcomeApplied}
	handler := PayTabsCallback(applier, stubKeyHolder{}, newStubGuard(), webhookTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paytabs", strings.NewReader(signedPayTabsBody(t)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(applier.results) != 1 {
		t.Fatalf("apply calls = %d", len(applier.results))
	}
	result := applier.results[0]
	if !result.SignatureValid || result.OrderID != "ord_1" || result.Normalized != enums.NormalizedSuccess {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPayTabsCallback_unparseableStillAcknowledged(t *testing.T) {
	applier := &stubApplier{outcome: reconcile.OutcomeApplied}
	handler := PayTabsCallback(applier, stubKeyHolder{}, newStubGuard(), webhookTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paytabs", strings.NewReader(`{broken`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)

	// PayTabs retries on non-200; garbage gets a 200 and is dropped.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(applier.results) != 0 {
		t.Fatal("unparseable payload must not reach the engine")
	}
}

func TestPayTabsCallback_duplicateSuppressed(t *testing.T) {
	applier := &stubApplier{outcome: reconcile.OutcomeApplied}
	guard := newStubGuard()
	handler := PayTabsCallback(applier, stubKeyHolder{}, guard, webhookTestLogger())

	body := signedPayTabsBody(t)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paytabs", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d status = %d", i, rec.Code)
		}
	}
	if len(applier.results) != 1 {
		t.Fatalf("apply calls = %d, duplicate must stop at the guard", len(applier.results))
	}
}

func TestPayTabsCallback_applyFailureReleasesGuard(t *testing.T) {
	applier := &stubApplier{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	guard := newStubGuard()
	handler := PayTabsCallback(applier, stubKeyHolder{}, guard, webhookTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paytabs", strings.NewReader(signedPayTabsBody(t)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(guard.released) != 1 {
		t.Fatal("failed apply must release the dedup claim so the retry can land")
	}
}

type stubDriver struct {
	payments []string
	err      error
}

func (s *stubDriver) HandleAuthorizedHint(ctx context.Context, paymentID string) (reconcile.Outcome, error) {
	s.payments = append(s.payments, paymentID)
	if s.err != nil {
		return "", s.err
	}
	return reconcile.OutcomeApplied, nil
}

func TestTabbyWebhook(t *testing.T) {
	driver := &stubDriver{}
	handler := TabbyWebhook(driver, newStubGuard(), webhookTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/tabby", strings.NewReader(`{"id": "pay-1", "status": "authorized"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(driver.payments) != 1 || driver.payments[0] != "pay-1" {
		t.Fatalf("driver calls = %v", driver.payments)
	}
}

func TestTabbyWebhook_dedupPerStatus(t *testing.T) {
	driver := &stubDriver{}
	guard := newStubGuard()
	handler := TabbyWebhook(driver, guard, webhookTestLogger())

	deliver := func(body string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/tabby", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler(rec, req)
	}

	deliver(`{"id": "pay-1", "status": "authorized"}`)
	deliver(`{"id": "pay-1", "status": "authorized"}`)
	// A later different transition for the same payment must get through.
	deliver(`{"id": "pay-1", "status": "closed"}`)

	if len(driver.payments) != 2 {
		t.Fatalf("driver calls = %d", len(driver.payments))
	}
}

func TestTabbyWebhook_missingID(t *testing.T) {
	driver := &stubDriver{}
	handler := TabbyWebhook(driver, newStubGuard(), webhookTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/tabby", strings.NewReader(`{"status": "authorized"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func approvedRemote() *tamara.RemoteOrder {
	return &tamara.RemoteOrder{
		OrderID:          "tam-1",
		OrderReferenceID: "ord_1",
		Status:           "approved",
		TotalAmount:      tamara.Money{Amount: "300.00", Currency: "SAR"},
	}
}

func TestTamaraWebhook_refetchesInsteadOfTrusting(t *testing.T) {
	applier := &stubApplier{outcome: reconcile.OutcomeApplied}
	fetcher := &stubFetcher{remote: approvedRemote()}
	handler := TamaraWebhook(applier, fetcher, newStubGuard(), webhookTestLogger())

	// The push claims declined; the retrieved order says approved.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/tamara",
		strings.NewReader(`{"order_id": "tam-1", "order_reference_id": "ord_1", "order_status": "declined"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(applier.results) != 1 {
		t.Fatalf("apply calls = %d", len(applier.results))
	}
	if applier.results[0].Normalized != enums.NormalizedSuccess {
		t.Fatalf("normalized = %q, retrieved state must win", applier.results[0].Normalized)
	}
}

func TestTamaraConfirm_approvedClaimVerified(t *testing.T) {
	applier := &stubApplier{outcome: reconcile.OutcomeApplied}
	fetcher := &stubFetcher{remote: approvedRemote()}
	handler := TamaraConfirm(applier, fetcher, webhookTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/tamara/confirm?orderId=ord_1&paymentStatus=approved", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(applier.results) != 1 || applier.results[0].Normalized != enums.NormalizedSuccess {
		t.Fatalf("apply results = %+v", applier.results)
	}
}

func TestTamaraConfirm_approvedClaimButProviderDisagrees(t *testing.T) {
	applier := &stubApplier{outcome: reconcile.OutcomePending}
	declined := approvedRemote()
	declined.Status = "declined"
	fetcher := &stubFetcher{remote: declined}
	handler := TamaraConfirm(applier, fetcher, webhookTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/tamara/confirm?orderId=ord_1&paymentStatus=approved", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// The forged approved claim must arrive as the retrieved failure.
	if applier.results[0].Normalized != enums.NormalizedFailed {
		t.Fatalf("normalized = %q", applier.results[0].Normalized)
	}
}

func TestTamaraConfirm_declinedRedirect(t *testing.T) {
	applier := &stubApplier{outcome: reconcile.OutcomeApplied}
	fetcher := &stubFetcher{}
	handler := TamaraConfirm(applier, fetcher, webhookTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/tamara/confirm?orderId=ord_1&paymentStatus=declined", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if applier.results[0].Normalized != enums.NormalizedFailed {
		t.Fatalf("normalized = %q", applier.results[0].Normalized)
	}
	if applier.results[0].Provider != enums.ProviderTamara {
		t.Fatalf("provider = %q", applier.results[0].Provider)
	}
}

func TestTamaraConfirm_missingOrderID(t *testing.T) {
	handler := TamaraConfirm(&stubApplier{}, &stubFetcher{}, webhookTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/tamara/confirm", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
