package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"member-core/internal/service"
	"member-core/pkg/errno"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayments struct {
	createdFor uint64
	statusFor  uint64
}

func (f *fakePayments) CreatePaymentIntent(ctx context.Context, userID uint64, tier string) (*service.PaymentIntentInfo, error) {
	f.createdFor = userID
	return &service.PaymentIntentInfo{PaymentID: 42, DepositAddress: "0xabc", AmountUsdCents: 2900, Chain: "polygon"}, nil
}

func (f *fakePayments) GetPaymentStatus(ctx context.Context, paymentID, userID uint64) (*service.PaymentStatusSnapshot, error) {
	f.statusFor = userID
	return &service.PaymentStatusSnapshot{PaymentID: paymentID}, nil
}

func newPaymentTestRouter(payments service.PaymentProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPaymentHandler(payments)
	r := gin.New()
	r.POST("/payments", h.CreatePayment)
	r.GET("/payments/:id", h.GetPayment)
	return r
}

func responseCode(t *testing.T, body []byte) int {
	t.Helper()
	var envelope struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Code
}

func TestCreatePaymentRejectsMissingIdentity(t *testing.T) {
	fake := &fakePayments{}
	r := newPaymentTestRouter(fake)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"tier":"basic"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, errno.ErrUnauthorized.Code, responseCode(t, w.Body.Bytes()))
	assert.Zero(t, fake.createdFor, "handler must not reach the service without an identity")
}

func TestCreatePaymentPassesHeaderIdentity(t *testing.T) {
	fake := &fakePayments{}
	r := newPaymentTestRouter(fake)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"tier":"basic"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "7")
	r.ServeHTTP(w, req)

	assert.Equal(t, errno.OK.Code, responseCode(t, w.Body.Bytes()))
	assert.Equal(t, uint64(7), fake.createdFor)
}

func TestGetPaymentRejectsInvalidIdentity(t *testing.T) {
	fake := &fakePayments{}
	r := newPaymentTestRouter(fake)

	for _, header := range []string{"", "0", "not-a-number"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/42", nil)
		if header != "" {
			req.Header.Set("X-User-ID", header)
		}
		r.ServeHTTP(w, req)

		assert.Equal(t, errno.ErrUnauthorized.Code, responseCode(t, w.Body.Bytes()), "header %q", header)
		assert.Zero(t, fake.statusFor)
	}
}
