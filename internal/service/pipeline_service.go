package service

import (
	"context"

	"member-core/pkg/logger"

	"go.uber.org/zap"
)

// PipelineService sequences scan -> sweep -> apply for one scheduler tick.
//
// Later stages only consume state earlier stages already committed, so a
// failed scan does not block sweeping or settling what previous ticks
// confirmed. The tick still reports the first failure so the scheduler
// retries it.
type PipelineService struct {
	scanner *ScannerService
	sweeper *SweeperService
	settler *SettlementService
}

func NewPipelineService(scanner *ScannerService, sweeper *SweeperService, settler *SettlementService) *PipelineService {
	return &PipelineService{
		scanner: scanner,
		sweeper: sweeper,
		settler: settler,
	}
}

// PipelineResult reports one full tick.
type PipelineResult struct {
	Scan    *ScanResult   `json:"scan,omitempty"`
	Sweep   *SweepOutcome `json:"sweep,omitempty"`
	Applied int           `json:"applied"`
}

// RunOnce executes one tick to completion. All blocking is on external I/O;
// every stage mutation is guarded by conditional updates, so overlapping
// invocations are safe.
func (p *PipelineService) RunOnce(ctx context.Context) (*PipelineResult, error) {
	result := &PipelineResult{}
	var firstErr error

	scan, err := p.scanner.Scan(ctx)
	result.Scan = scan
	if err != nil {
		logger.Error("pipeline scan stage failed", zap.Error(err))
		firstErr = err
	}

	sweep, err := p.sweeper.SweepPending(ctx)
	result.Sweep = sweep
	if err != nil {
		logger.Error("pipeline sweep stage failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	applied, err := p.settler.ApplySwept(ctx)
	result.Applied = applied
	if err != nil {
		logger.Error("pipeline apply stage failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	logger.Info("pipeline tick finished",
		zap.Int("confirmed", confirmedCount(scan)),
		zap.Int("swept", sweptCount(sweep)),
		zap.Int("applied", applied))
	return result, firstErr
}

func confirmedCount(r *ScanResult) int {
	if r == nil {
		return 0
	}
	return r.ConfirmedCount
}

func sweptCount(o *SweepOutcome) int {
	if o == nil {
		return 0
	}
	return o.SweptCount
}
