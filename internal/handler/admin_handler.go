package handler

import (
	"member-core/internal/handler/request"
	"member-core/internal/handler/response"
	"member-core/internal/service"
	"member-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	membership *service.MembershipService
}

func NewAdminHandler(membership *service.MembershipService) *AdminHandler {
	return &AdminHandler{membership: membership}
}

// CreditMembership activates a membership without an on-chain payment, e.g.
// support compensation or an invoice settled off-chain. The activation path is
// the same as settlement's; no commissions are paid since there is no payment
// intent to key them on.
func (h *AdminHandler) CreditMembership(c *gin.Context) {
	var req request.ManualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	if err := h.membership.Activate(c.Request.Context(), req.UserID, req.Tier, req.AmountUsdCents, nil); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, nil)
}
