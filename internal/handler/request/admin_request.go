package request

type ManualCreditRequest struct {
	UserID         uint64 `json:"user_id" binding:"required"`
	Tier           string `json:"tier" binding:"required"`
	AmountUsdCents int64  `json:"amount_usd_cents"`
}
