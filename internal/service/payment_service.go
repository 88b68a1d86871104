package service

import (
	"context"
	"fmt"
	"time"

	"member-core/internal/model"
	"member-core/pkg/address"
	"member-core/pkg/bip32"
	"member-core/pkg/config"
	"member-core/pkg/errno"
	"member-core/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentStatusSnapshot is the read model the web layer polls.
type PaymentStatusSnapshot struct {
	PaymentID        uint64          `json:"payment_id"`
	Tier             string          `json:"tier"`
	Chain            string          `json:"chain"`
	DepositAddress   string          `json:"deposit_address"`
	AmountUsdCents   int64           `json:"amount_usd_cents"`
	Status           string          `json:"status"`
	SweepStatus      string          `json:"sweep_status"`
	TxHash           string          `json:"tx_hash,omitempty"`
	SweepTxHash      string          `json:"sweep_tx_hash,omitempty"`
	ExpectedUnits    decimal.Decimal `json:"expected_units"`
	ReceivedUnits    decimal.Decimal `json:"received_units"`
	OverpaymentUnits decimal.Decimal `json:"overpayment_units"`
	ConfirmedAt      *time.Time      `json:"confirmed_at,omitempty"`
	SweptAt          *time.Time      `json:"swept_at,omitempty"`
	AppliedAt        *time.Time      `json:"applied_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PaymentService reserves deposit addresses for membership purchases.
//
// The derivation index comes from an atomic Redis counter, so addresses never
// collide even across service instances. Only the account xpub is held here;
// child addresses are derived at m/0/<index> and the matching private keys
// exist solely inside the reserve service.
type PaymentService struct {
	db         *gorm.DB
	redis      *redis.Client
	accountKey bip32.ExtendedKey
	ethGen     *address.ETHGenerator
	cfg        *config.Config
}

func NewPaymentService(db *gorm.DB, rdb *redis.Client, accountKey bip32.ExtendedKey, cfg *config.Config) (*PaymentService, error) {
	if accountKey.IsPrivate() {
		return nil, fmt.Errorf("payment service must only hold the extended public key")
	}

	return &PaymentService{
		db:         db,
		redis:      rdb,
		accountKey: accountKey,
		ethGen:     address.NewETHGenerator(),
		cfg:        cfg,
	}, nil
}

// CreatePaymentIntent reserves a fresh deposit address for one purchase.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, userID uint64, tier string) (*PaymentIntentInfo, error) {
	plan, ok := s.cfg.Membership.Plan(tier)
	if !ok {
		return nil, errno.ErrPlanNotFound
	}

	var user model.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	chain := s.cfg.Chain.Name
	redisKey := fmt.Sprintf("member:hd_index:%s", chain)
	index, err := s.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate derivation index: %w", err)
	}
	derivationIndex := int(index)

	depositAddress, err := s.deriveAddress(uint32(derivationIndex))
	if err != nil {
		return nil, err
	}

	intent := model.PaymentIntent{
		UserID:          userID,
		Tier:            tier,
		AmountUsdCents:  plan.AmountUsdCents,
		Chain:           chain,
		DepositAddress:  depositAddress,
		DerivationIndex: derivationIndex,
		Status:          model.PaymentStatusPending,
		SweepStatus:     model.SweepStatusPending,
		ExpectedUnits:   usdCentsToUnits(plan.AmountUsdCents, s.cfg.Chain.TokenDecimals),
	}
	if err := s.db.Create(&intent).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	logger.Info("payment intent created",
		zap.Uint64("payment_id", intent.ID),
		zap.Uint64("user_id", userID),
		zap.String("tier", tier),
		zap.String("deposit_address", depositAddress),
		zap.Int("derivation_index", derivationIndex))

	return &PaymentIntentInfo{
		PaymentID:      intent.ID,
		DepositAddress: depositAddress,
		AmountUsdCents: plan.AmountUsdCents,
		Chain:          chain,
	}, nil
}

// GetPaymentStatus returns the snapshot for one payment, enforcing ownership.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, paymentID, userID uint64) (*PaymentStatusSnapshot, error) {
	var intent model.PaymentIntent
	if err := s.db.WithContext(ctx).First(&intent, paymentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if intent.UserID != userID {
		return nil, errno.ErrPaymentForbidden
	}

	return &PaymentStatusSnapshot{
		PaymentID:        intent.ID,
		Tier:             intent.Tier,
		Chain:            intent.Chain,
		DepositAddress:   intent.DepositAddress,
		AmountUsdCents:   intent.AmountUsdCents,
		Status:           intent.Status,
		SweepStatus:      intent.SweepStatus,
		TxHash:           intent.TxHash,
		SweepTxHash:      intent.SweepTxHash,
		ExpectedUnits:    intent.ExpectedUnits,
		ReceivedUnits:    intent.ReceivedUnits,
		OverpaymentUnits: intent.OverpaymentUnits,
		ConfirmedAt:      intent.ConfirmedAt,
		SweptAt:          intent.SweptAt,
		AppliedAt:        intent.AppliedAt,
		CreatedAt:        intent.CreatedAt,
	}, nil
}

// deriveAddress derives the deposit address at m/0/<index> from the account
// xpub.
func (s *PaymentService) deriveAddress(index uint32) (string, error) {
	externalKey, err := s.accountKey.Derive(0)
	if err != nil {
		return "", fmt.Errorf("failed to derive external chain key: %w", err)
	}
	childKey, err := externalKey.Derive(index)
	if err != nil {
		return "", fmt.Errorf("failed to derive child key %d: %w", index, err)
	}
	pubKey, err := childKey.ECPubKey()
	if err != nil {
		return "", fmt.Errorf("failed to extract public key: %w", err)
	}

	addr, err := s.ethGen.PubKeyToAddress(pubKey.SerializeUncompressed())
	if err != nil {
		return "", fmt.Errorf("failed to build deposit address: %w", err)
	}
	return addr, nil
}

var _ PaymentProvider = (*PaymentService)(nil)
