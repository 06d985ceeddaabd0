// Package anchor implements the control loop described in spec §4.F: a
// single long-running task that pulls pending batch commitments from the
// sequencer and anchors them on L2 through the registry contract, gated by
// a circuit breaker and a gas-price ceiling. Its shape follows the
// teacher's own sync-stage loop (zk/stages/stage_l1_sequencer_sync.go): a
// select-driven loop around a structured logger, with errors classified
// rather than just bubbled.
package anchor

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"

	"github.com/stateset/anchor/breaker"
	"github.com/stateset/anchor/client"
	"github.com/stateset/anchor/config"
	"github.com/stateset/anchor/errs"
	"github.com/stateset/anchor/health"
	"github.com/stateset/anchor/stats"
	"github.com/stateset/anchor/types"
)

// Service is the anchor control loop. It holds no state of its own beyond
// its collaborators — AnchorStats, the circuit breaker, and the health
// surface's State are all shared handles the caller also wires into the
// HTTP surface (design note "Cyclic ownership between surface and loop").
type Service struct {
	cfg      config.AnchorConfig
	registry client.Registry
	sequencer client.Sequencer
	stats    *stats.Stats
	breaker  *breaker.CircuitBreaker
	health   *health.State
	logger   log.Logger
}

// New constructs a Service around its collaborators. registry and
// sequencer are the capability interfaces (spec §9 design note on dynamic
// dispatch), so callers can pass fakes in tests.
func New(cfg config.AnchorConfig, registry client.Registry, sequencer client.Sequencer, st *stats.Stats, b *breaker.CircuitBreaker, h *health.State, logger log.Logger) *Service {
	return &Service{
		cfg:       cfg,
		registry:  registry,
		sequencer: sequencer,
		stats:     st,
		breaker:   b,
		health:    h,
		logger:    logger,
	}
}

// Startup performs the six-step start-up sequence in spec §4.F: seeding
// service-started, resolving the signer, checking the chain id against the
// configured expectation, and verifying the signer is an authorized
// sequencer. Any failure here is fatal and Run must not be called.
func (s *Service) Startup(ctx context.Context) error {
	s.stats.SeedServiceStarted(time.Now())

	observedChainID := s.registry.ChainID()
	if s.cfg.ExpectedL2ChainID != 0 && observedChainID != s.cfg.ExpectedL2ChainID {
		return errs.NewChainIDMismatch(s.cfg.ExpectedL2ChainID, observedChainID)
	}

	signer := s.signerAddress()

	authorized, err := s.registry.IsAuthorized(ctx, signer)
	if err != nil {
		return errs.NewCheckFailed(err)
	}
	if !authorized {
		return errs.NewNotAuthorized(signer.Hex())
	}

	s.health.SetReady(true)
	s.health.MarkL2Healthy()

	s.logger.Info("anchor service started", "signer", signer.Hex(), "chain_id", observedChainID)
	return nil
}

// signerAddress extracts the signer address from the registry client when
// it exposes one; fakes used in tests that don't care about the address
// get the zero address, since only the production RegistryClient's
// authorization check is meaningful.
func (s *Service) signerAddress() common.Address {
	type hasSignerAddress interface {
		SignerAddress() common.Address
	}
	if withAddr, ok := s.registry.(hasSignerAddress); ok {
		return withAddr.SignerAddress()
	}
	return common.Address{}
}

// Run executes the main cycle (spec §4.F) every cfg.AnchorInterval until
// ctx is cancelled. It never returns nil on its own; it returns ctx.Err()
// when cancellation is observed at a suspension point.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.cycle(ctx); err != nil {
			return err
		}

		if !s.sleep(ctx, s.cfg.AnchorInterval) {
			return ctx.Err()
		}
	}
}

// cycle runs exactly one pass of the main loop (steps 1-9 of spec §4.F). A
// nil return means the cycle completed (possibly having done no work); a
// non-nil return is always ctx.Err(), signalling cancellation.
func (s *Service) cycle(ctx context.Context) error {
	s.stats.IncCycles()
	now := time.Now()

	if !s.breaker.AllowRequest(now) {
		s.stats.IncBreakerOpenSkips()
		s.stats.SetCircuitBreakerState(s.breaker.State().String())
		return nil
	}
	s.stats.SetCircuitBreakerState(s.breaker.State().String())

	if s.cfg.MaxGasPriceGwei > 0 {
		gasPrice, err := s.registry.GasPrice(ctx)
		if err != nil {
			s.recordFailure(stats.L2Connection, err, now)
			return nil
		}
		ceiling := s.cfg.MaxGasPriceWei()
		if gasPrice.Cmp(ceiling) > 0 {
			s.stats.RecordGasSkip()
			s.logger.Warn("gas price above ceiling, skipping cycle",
				"gas_price_wei", humanize.Comma(gasPrice.Int64()),
				"ceiling_wei", humanize.Comma(ceiling.Int64()))
			return nil
		}
	}

	batches, err := s.sequencer.GetPendingCommitments(ctx)
	if err != nil {
		s.recordFailure(stats.SequencerAPI, err, now)
		return nil
	}
	s.stats.MarkSequencerHealthy(time.Now())
	s.health.MarkSequencerHealthy()

	if len(batches) == 0 {
		return nil
	}

	if s.cfg.MaxCommitmentsPerCycle > 0 && len(batches) > s.cfg.MaxCommitmentsPerCycle {
		batches = batches[:s.cfg.MaxCommitmentsPerCycle]
	}

	for _, batch := range batches {
		if batch.EventCount < s.cfg.MinEventsForAnchor {
			continue
		}
		if err := s.anchorWithRetries(ctx, batch); err != nil {
			return err
		}
	}

	s.stats.MarkL2Healthy(time.Now())
	s.health.MarkL2Healthy()
	return nil
}

// anchorWithRetries runs the per-batch retry loop described in spec §4.F.
// Only retryable (Transient) errors are retried; any other error ends the
// loop at once. It returns non-nil only when ctx was cancelled mid-loop;
// exhausting the retry budget is reported through stats/health, not as a
// Go error.
func (s *Service) anchorWithRetries(ctx context.Context, batch types.BatchCommitment) error {
	var lastErr error

	for attempt := uint32(1); attempt <= s.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		txHash, blockNumber, gasUsed, err := s.registry.CommitBatch(ctx, batch)
		if err == nil {
			elapsed := uint64(time.Since(start).Milliseconds())
			s.stats.RecordSuccess(batch.BatchID, batch.EventCount, elapsed, time.Now())
			s.breaker.RecordSuccess()

			notifyErr := s.sequencer.NotifyAnchored(ctx, batch.BatchID.String(), types.AnchorNotification{
				ChainTxHash: txHash,
				ChainID:     s.registry.ChainID(),
				BlockNumber: &blockNumber,
				GasUsed:     &gasUsed,
			})
			if notifyErr != nil {
				s.logger.Warn("notify-anchored failed, batch already committed on-chain", "batch_id", batch.BatchID, "err", notifyErr)
				s.stats.RecordSequencerAPIFailureOnly()
				s.health.RecordError(notifyErr)
			}
			return nil
		}

		lastErr = err
		s.logger.Warn("commitBatch attempt failed", "batch_id", batch.BatchID, "attempt", attempt, "err", err)

		if !errs.IsRetryable(err) {
			break
		}

		if attempt < s.cfg.MaxRetries {
			backoff := s.cfg.RetryDelay * time.Duration(attempt)
			if !s.sleep(ctx, backoff) {
				return ctx.Err()
			}
		}
	}

	consecutive := s.stats.RecordFailure(stats.Transaction)
	s.breaker.RecordFailure(consecutive, time.Now())
	s.health.RecordError(lastErr)
	return nil
}

func (s *Service) recordFailure(category stats.FailureCategory, err error, now time.Time) {
	consecutive := s.stats.RecordFailure(category)
	s.breaker.RecordFailure(consecutive, now)
	s.health.RecordError(err)
	s.logger.Warn("cycle step failed", "category", category, "err", err)
}

// sleep waits for d or ctx cancellation, returning false if ctx was
// cancelled first.
func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
