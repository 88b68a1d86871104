package request

type CreatePaymentRequest struct {
	Tier string `json:"tier" binding:"required"`
}
