package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"member-core/internal/model"
	"member-core/pkg/config"
	"member-core/pkg/logger"
	"member-core/pkg/monitor"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// transferTopic is keccak256("Transfer(address,address,uint256)").
var transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// ChainConnectionError signals that the RPC endpoint failed mid-scan. The
// cursor has already been advanced to the last fully scanned chunk, so the
// caller can simply retry the whole pipeline later.
type ChainConnectionError struct {
	Op        string
	FromBlock uint64
	ToBlock   uint64
	Err       error
}

func (e *ChainConnectionError) Error() string {
	if e.FromBlock == 0 && e.ToBlock == 0 {
		return fmt.Sprintf("chain rpc %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("chain rpc %s failed for blocks %d-%d: %v", e.Op, e.FromBlock, e.ToBlock, e.Err)
}

func (e *ChainConnectionError) Unwrap() error { return e.Err }

// ScanResult reports one scanner pass.
type ScanResult struct {
	ScannedFromBlock uint64 `json:"scanned_from_block"`
	ScannedToBlock   uint64 `json:"scanned_to_block"`
	ConfirmedCount   int    `json:"confirmed_count"`
}

// ScannerService watches the token contract for transfers into reserved
// deposit addresses and confirms the matching payment intents.
type ScannerService struct {
	db       *gorm.DB
	client   ChainClient
	cfg      *config.ChainConfig
	contract common.Address
}

func NewScannerService(db *gorm.DB, client ChainClient, cfg *config.ChainConfig) *ScannerService {
	return &ScannerService{
		db:       db,
		client:   client,
		cfg:      cfg,
		contract: common.HexToAddress(cfg.TokenContract),
	}
}

// Scan runs one windowed pass over Transfer logs.
//
// The cursor only moves forward, and on a mid-scan RPC failure it stops at
// the last block chunk that fully succeeded, so nothing is ever skipped. A
// pass with no pending intents still advances the cursor to the finalized
// head: deposits made before any intent existed have nothing to match anyway,
// and a stale cursor would make the next burst of purchases scan months of
// history.
func (s *ScannerService) Scan(ctx context.Context) (*ScanResult, error) {
	timer := time.Now()
	defer func() {
		monitor.Business.PipelineStageDuration.WithLabelValues("scan").Observe(time.Since(timer).Seconds())
	}()

	latest, err := s.blockNumber(ctx)
	if err != nil {
		return nil, &ChainConnectionError{Op: "blockNumber", Err: err}
	}
	if latest < s.cfg.Confirmations {
		return &ScanResult{}, nil
	}
	finalized := latest - s.cfg.Confirmations

	var pending []model.PaymentIntent
	if err := s.db.
		Where("status = ? AND deposit_address <> ''", model.PaymentStatusPending).
		Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("failed to load pending intents: %w", err)
	}

	fromBlock, err := s.resolveFromBlock(finalized)
	if err != nil {
		return nil, err
	}
	if fromBlock > finalized {
		return &ScanResult{ScannedFromBlock: fromBlock, ScannedToBlock: finalized}, nil
	}

	if len(pending) == 0 {
		if err := s.advanceCursor(finalized); err != nil {
			return nil, err
		}
		monitor.Business.ScanBlocksBehind.Set(0)
		return &ScanResult{ScannedFromBlock: fromBlock, ScannedToBlock: finalized}, nil
	}

	toBlock := fromBlock + s.cfg.MaxBlocksPerScan - 1
	if toBlock > finalized {
		toBlock = finalized
	}

	byAddress := make(map[common.Address]*model.PaymentIntent, len(pending))
	addresses := make([]common.Address, 0, len(pending))
	for i := range pending {
		addr := common.HexToAddress(pending[i].DepositAddress)
		byAddress[addr] = &pending[i]
		addresses = append(addresses, addr)
	}

	result := &ScanResult{ScannedFromBlock: fromBlock, ScannedToBlock: toBlock}
	confirmedThisPass := make(map[common.Address]bool)

	// lastGood tracks the newest block we may safely persist as scanned.
	var lastGood uint64
	var scannedAny bool

	for chunkStart := fromBlock; chunkStart <= toBlock; chunkStart += s.cfg.BlockChunkSize {
		chunkEnd := chunkStart + s.cfg.BlockChunkSize - 1
		if chunkEnd > toBlock {
			chunkEnd = toBlock
		}

		for groupStart := 0; groupStart < len(addresses); groupStart += s.cfg.AddressChunkSize {
			groupEnd := groupStart + s.cfg.AddressChunkSize
			if groupEnd > len(addresses) {
				groupEnd = len(addresses)
			}

			logs, err := s.filterTransfers(ctx, chunkStart, chunkEnd, addresses[groupStart:groupEnd])
			if err != nil {
				// Persist progress up to the last fully scanned chunk,
				// never into or past the failing one. The pending
				// intents stay pending for the next pass.
				if scannedAny {
					if cerr := s.advanceCursor(lastGood); cerr != nil {
						logger.Error("failed to persist partial scan cursor", zap.Error(cerr))
					}
					result.ScannedToBlock = lastGood
				} else {
					result.ScannedToBlock = 0
				}
				return result, &ChainConnectionError{Op: "getLogs", FromBlock: chunkStart, ToBlock: chunkEnd, Err: err}
			}

			for i := range logs {
				if s.confirmFromLog(&logs[i], byAddress, confirmedThisPass) {
					result.ConfirmedCount++
				}
			}
		}

		lastGood = chunkEnd
		scannedAny = true
	}

	if err := s.advanceCursor(toBlock); err != nil {
		return result, err
	}
	monitor.Business.ScanBlocksBehind.Set(float64(finalized - toBlock))

	return result, nil
}

func (s *ScannerService) blockNumber(ctx context.Context) (uint64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	return s.client.BlockNumber(reqCtx)
}

func (s *ScannerService) filterTransfers(ctx context.Context, fromBlock, toBlock uint64, recipients []common.Address) ([]types.Log, error) {
	topics := make([]common.Hash, 0, len(recipients))
	for _, addr := range recipients {
		topics = append(topics, common.BytesToHash(addr.Bytes()))
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{s.contract},
		Topics: [][]common.Hash{
			{transferTopic},
			nil,    // any sender
			topics, // our deposit addresses
		},
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()
	return s.client.FilterLogs(reqCtx, query)
}

// confirmFromLog matches one Transfer log against the pending intents and
// confirms via a single conditional update. The affected-row count is the
// source of truth: a concurrent scanner instance cannot double-confirm.
func (s *ScannerService) confirmFromLog(lg *types.Log, byAddress map[common.Address]*model.PaymentIntent, confirmedThisPass map[common.Address]bool) bool {
	if len(lg.Topics) != 3 || len(lg.Data) != 32 {
		return false
	}

	to := common.BytesToAddress(lg.Topics[2].Bytes())
	intent, ok := byAddress[to]
	if !ok {
		return false
	}

	// A second unrelated transfer can land on the same address within one
	// window; only the first match counts in this pass.
	if confirmedThisPass[to] {
		logger.Warn("additional transfer to already-confirmed address in same pass",
			zap.String("address", to.Hex()),
			zap.String("tx", lg.TxHash.Hex()))
		return false
	}

	from := common.BytesToAddress(lg.Topics[1].Bytes())
	value := decimal.NewFromBigInt(new(big.Int).SetBytes(lg.Data), 0)
	minUnits := usdCentsToUnits(intent.AmountUsdCents, s.cfg.TokenDecimals)

	if value.LessThan(minUnits) {
		// Partial payments never confirm; the intent stays pending.
		logger.Warn("transfer below expected amount, leaving intent pending",
			zap.Uint64("payment_id", intent.ID),
			zap.String("received_units", value.String()),
			zap.String("expected_units", minUnits.String()))
		return false
	}

	overpayment := value.Sub(minUnits)
	if overpayment.IsPositive() {
		logger.Info("overpayment recorded",
			zap.Uint64("payment_id", intent.ID),
			zap.String("overpayment_units", overpayment.String()))
	}

	now := time.Now()
	res := s.db.Model(&model.PaymentIntent{}).
		Where("id = ? AND status = ?", intent.ID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":            model.PaymentStatusConfirmed,
			"tx_hash":           lg.TxHash.Hex(),
			"from_address":      from.Hex(),
			"to_address":        to.Hex(),
			"received_units":    value,
			"overpayment_units": overpayment,
			"confirmed_at":      now,
		})
	if res.Error != nil {
		logger.Error("failed to confirm payment", zap.Uint64("payment_id", intent.ID), zap.Error(res.Error))
		return false
	}
	if res.RowsAffected == 0 {
		// Lost the race against another scanner instance.
		return false
	}

	confirmedThisPass[to] = true
	monitor.Business.PaymentsConfirmedTotal.WithLabelValues(s.cfg.Name).Inc()
	monitor.Business.PaymentAmountTotal.WithLabelValues(s.cfg.Name).Add(float64(intent.AmountUsdCents))

	logger.Info("payment confirmed",
		zap.Uint64("payment_id", intent.ID),
		zap.Uint64("user_id", intent.UserID),
		zap.String("tx", lg.TxHash.Hex()),
		zap.String("received_units", value.String()))
	return true
}

// resolveFromBlock returns the first block of this window: cursor+1 when a
// cursor exists, otherwise a bounded look-back from the finalized head.
func (s *ScannerService) resolveFromBlock(finalized uint64) (uint64, error) {
	var cursor model.ChainCursor
	err := s.db.Where("chain = ? AND contract = ?", s.cfg.Name, s.contract.Hex()).First(&cursor).Error
	if err == nil {
		return cursor.LastScannedBlock + 1, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, fmt.Errorf("failed to load chain cursor: %w", err)
	}

	if finalized > s.cfg.FallbackWindow {
		return finalized - s.cfg.FallbackWindow, nil
	}
	return 0, nil
}

// advanceCursor moves the watermark forward, never backward.
func (s *ScannerService) advanceCursor(toBlock uint64) error {
	cursor := model.ChainCursor{Chain: s.cfg.Name, Contract: s.contract.Hex()}
	if err := s.db.Where("chain = ? AND contract = ?", s.cfg.Name, s.contract.Hex()).
		FirstOrCreate(&cursor).Error; err != nil {
		return fmt.Errorf("failed to upsert chain cursor: %w", err)
	}

	res := s.db.Model(&model.ChainCursor{}).
		Where("id = ? AND last_scanned_block < ?", cursor.ID, toBlock).
		Update("last_scanned_block", toBlock)
	if res.Error != nil {
		return fmt.Errorf("failed to advance chain cursor: %w", res.Error)
	}
	return nil
}
