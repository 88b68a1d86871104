package handler

import (
	"strconv"

	"member-core/internal/handler/request"
	"member-core/internal/handler/response"
	"member-core/internal/service"
	"member-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	payments service.PaymentProvider
}

func NewPaymentHandler(payments service.PaymentProvider) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreatePayment reserves a deposit address for the caller's membership
// purchase and returns it together with the amount due.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req request.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errno.ErrUnauthorized)
		return
	}

	info, err := h.payments.CreatePaymentIntent(c.Request.Context(), userID, req.Tier)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, info)
}

// GetPayment returns the progress of one payment. Only the owner may read it.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, errno.ErrUnauthorized)
		return
	}

	snapshot, err := h.payments.GetPaymentStatus(c.Request.Context(), paymentID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, snapshot)
}

// currentUserID stands in for the auth middleware of the API gateway. A
// missing or malformed header is rejected, never mapped to a default user.
// TODO: replace with the JWT claims lookup once the gateway issues tokens.
func currentUserID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
