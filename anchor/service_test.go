package anchor

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/stateset/anchor/breaker"
	"github.com/stateset/anchor/config"
	"github.com/stateset/anchor/errs"
	"github.com/stateset/anchor/health"
	"github.com/stateset/anchor/stats"
	"github.com/stateset/anchor/types"
)

// fakeRegistry is an in-memory client.Registry used to drive the control
// loop's decisions deterministically, per spec §9's capability-interface
// design note.
type fakeRegistry struct {
	mu sync.Mutex

	authorized      bool
	authorizeErr    error
	chainID         uint64
	gasPrice        *big.Int
	gasPriceErr     error
	commitErrSeq    []error // consumed in order; nil entries mean success
	commitCallCount int
	lastCommitted   *types.BatchCommitment
	signer          common.Address
}

func (f *fakeRegistry) IsAuthorized(ctx context.Context, address common.Address) (bool, error) {
	return f.authorized, f.authorizeErr
}

func (f *fakeRegistry) TotalCommitments(ctx context.Context) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (f *fakeRegistry) GasPrice(ctx context.Context) (*big.Int, error) {
	if f.gasPriceErr != nil {
		return nil, f.gasPriceErr
	}
	if f.gasPrice == nil {
		return big.NewInt(1), nil
	}
	return f.gasPrice, nil
}

func (f *fakeRegistry) CommitBatch(ctx context.Context, batch types.BatchCommitment) (string, uint64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.commitCallCount
	f.commitCallCount++
	b := batch
	f.lastCommitted = &b

	if idx < len(f.commitErrSeq) && f.commitErrSeq[idx] != nil {
		return "", 0, 0, f.commitErrSeq[idx]
	}
	return "0x01", 100, 50000, nil
}

func (f *fakeRegistry) ChainID() uint64 {
	return f.chainID
}

func (f *fakeRegistry) SignerAddress() common.Address {
	return f.signer
}

// fakeSequencer is an in-memory client.Sequencer.
type fakeSequencer struct {
	mu sync.Mutex

	pending          []types.BatchCommitment
	pendingErr       error
	notifyErr        error
	notifyCallCount  int
	lastNotification types.AnchorNotification
}

func (f *fakeSequencer) GetPendingCommitments(ctx context.Context) ([]types.BatchCommitment, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	return f.pending, nil
}

func (f *fakeSequencer) NotifyAnchored(ctx context.Context, batchID string, notification types.AnchorNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifyCallCount++
	f.lastNotification = notification
	return f.notifyErr
}

func (f *fakeSequencer) Health(ctx context.Context) bool {
	return true
}

func testService(t *testing.T, cfg config.AnchorConfig, reg *fakeRegistry, seq *fakeSequencer) (*Service, *stats.Stats, *health.State) {
	t.Helper()
	st := stats.New()
	h := health.NewState(st)
	b := breaker.New(cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerResetTimeout, cfg.CircuitBreakerHalfOpenSuccessThreshold)
	svc := New(cfg, reg, seq, st, b, h, log.Root())
	return svc, st, h
}

func baseConfig() config.AnchorConfig {
	return config.AnchorConfig{
		AnchorInterval:                 time.Millisecond,
		MinEventsForAnchor:             1,
		MaxRetries:                     3,
		RetryDelay:                     time.Millisecond,
		CircuitBreakerFailureThreshold: 5,
		CircuitBreakerResetTimeout:     time.Minute,
		CircuitBreakerHalfOpenSuccessThreshold: 3,
	}
}

func TestHappyPathAnchorsAndNotifies(t *testing.T) {
	batchID := uuid.New()
	reg := &fakeRegistry{authorized: true, chainID: 1}
	seq := &fakeSequencer{pending: []types.BatchCommitment{{BatchID: batchID, EventCount: 10, SequenceStart: 1, SequenceEnd: 10}}}

	svc, st, _ := testService(t, baseConfig(), reg, seq)
	require.NoError(t, svc.Startup(context.Background()))
	require.NoError(t, svc.cycle(context.Background()))

	require.Equal(t, 1, seq.notifyCallCount)
	require.Equal(t, "0x01", seq.lastNotification.ChainTxHash)

	snap := st.Snapshot()
	require.Equal(t, uint64(1), snap.TotalAnchored)
	require.Equal(t, uint64(10), snap.TotalEventsAnchored)
	require.Equal(t, uint64(0), snap.ConsecutiveFailures)
}

func TestBelowThresholdNeverCallsCommitBatch(t *testing.T) {
	reg := &fakeRegistry{authorized: true, chainID: 1}
	seq := &fakeSequencer{pending: []types.BatchCommitment{{BatchID: uuid.New(), EventCount: 5}}}

	cfg := baseConfig()
	cfg.MinEventsForAnchor = 10

	svc, st, _ := testService(t, cfg, reg, seq)
	require.NoError(t, svc.cycle(context.Background()))

	require.Equal(t, 0, reg.commitCallCount)
	snap := st.Snapshot()
	require.Equal(t, uint64(0), snap.TotalAnchored)
	require.Equal(t, uint64(0), snap.TotalFailed)
}

func TestUnauthorizedSignerFailsStartup(t *testing.T) {
	reg := &fakeRegistry{authorized: false, chainID: 1}
	seq := &fakeSequencer{}

	svc, _, h := testService(t, baseConfig(), reg, seq)
	err := svc.Startup(context.Background())
	require.Error(t, err)
	require.Equal(t, errs.Fatal, errs.SeverityOf(err))
	require.False(t, h.Ready(time.Now()))
}

func TestGasCeilingSkipsCycleWithoutFetch(t *testing.T) {
	reg := &fakeRegistry{authorized: true, chainID: 1, gasPrice: big.NewInt(100_000_000_000)}
	seq := &fakeSequencer{pending: []types.BatchCommitment{{BatchID: uuid.New(), EventCount: 10}}}

	cfg := baseConfig()
	cfg.MaxGasPriceGwei = 50

	svc, st, _ := testService(t, cfg, reg, seq)
	require.NoError(t, svc.cycle(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, uint64(1), snap.GasPriceSkips)
	require.Equal(t, 0, reg.commitCallCount)
}

func TestBreakerOpenSkipsCycleEntirely(t *testing.T) {
	reg := &fakeRegistry{authorized: true, chainID: 1}
	seq := &fakeSequencer{pending: []types.BatchCommitment{{BatchID: uuid.New(), EventCount: 10}}}

	cfg := baseConfig()
	svc, st, _ := testService(t, cfg, reg, seq)

	for i := 0; i < 5; i++ {
		svc.breaker.RecordFailure(uint64(i+1), time.Now())
	}
	require.Equal(t, breaker.Open, svc.breaker.State())

	require.NoError(t, svc.cycle(context.Background()))
	snap := st.Snapshot()
	require.Equal(t, uint64(1), snap.CircuitBreakerOpenSkips)
	require.Equal(t, 0, seq.notifyCallCount)
}

func TestRetriesThenSuccess(t *testing.T) {
	batchID := uuid.New()
	reg := &fakeRegistry{
		authorized: true, chainID: 1,
		commitErrSeq: []error{errs.NewSubmissionFailed(nil), errs.NewSubmissionFailed(nil), nil},
	}
	seq := &fakeSequencer{pending: []types.BatchCommitment{{BatchID: batchID, EventCount: 10}}}

	cfg := baseConfig()
	cfg.MaxRetries = 3
	cfg.RetryDelay = time.Millisecond

	svc, st, _ := testService(t, cfg, reg, seq)
	require.NoError(t, svc.cycle(context.Background()))

	require.Equal(t, 3, reg.commitCallCount)
	snap := st.Snapshot()
	require.Equal(t, uint64(1), snap.TotalAnchored)
	require.Equal(t, uint64(0), snap.TotalFailed)
	require.Equal(t, uint64(0), snap.ConsecutiveFailures)
}

func TestExhaustedRetriesRecordsExactlyOneFailure(t *testing.T) {
	batchID := uuid.New()
	reg := &fakeRegistry{
		authorized: true, chainID: 1,
		commitErrSeq: []error{errs.NewSubmissionFailed(nil), errs.NewSubmissionFailed(nil), errs.NewSubmissionFailed(nil)},
	}
	seq := &fakeSequencer{pending: []types.BatchCommitment{{BatchID: batchID, EventCount: 10}}}

	cfg := baseConfig()
	cfg.MaxRetries = 3
	cfg.RetryDelay = time.Millisecond

	svc, st, h := testService(t, cfg, reg, seq)
	require.NoError(t, svc.cycle(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, uint64(0), snap.TotalAnchored)
	require.Equal(t, uint64(1), snap.TotalFailed)
	require.Len(t, h.RecentErrors(10), 1)
}

func TestNotifyFailureIsNonBlocking(t *testing.T) {
	batchID := uuid.New()
	reg := &fakeRegistry{authorized: true, chainID: 1}
	seq := &fakeSequencer{
		pending:   []types.BatchCommitment{{BatchID: batchID, EventCount: 10}},
		notifyErr: errs.NewNotificationFailed(nil),
	}

	svc, st, _ := testService(t, baseConfig(), reg, seq)
	require.NoError(t, svc.cycle(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, uint64(1), snap.TotalAnchored)
	require.Equal(t, uint64(0), snap.ConsecutiveFailures)
	require.Equal(t, uint64(1), snap.SequencerAPIFailures)
}

func TestMaxCommitmentsPerCycleTruncatesToCap(t *testing.T) {
	reg := &fakeRegistry{authorized: true, chainID: 1}
	seq := &fakeSequencer{pending: []types.BatchCommitment{
		{BatchID: uuid.New(), EventCount: 10},
		{BatchID: uuid.New(), EventCount: 10},
		{BatchID: uuid.New(), EventCount: 10},
	}}

	cfg := baseConfig()
	cfg.MaxCommitmentsPerCycle = 1

	svc, _, _ := testService(t, cfg, reg, seq)
	require.NoError(t, svc.cycle(context.Background()))

	require.Equal(t, 1, reg.commitCallCount)
}

func TestZeroMaxCommitmentsPerCycleIsUnlimited(t *testing.T) {
	reg := &fakeRegistry{authorized: true, chainID: 1}
	seq := &fakeSequencer{pending: []types.BatchCommitment{
		{BatchID: uuid.New(), EventCount: 10},
		{BatchID: uuid.New(), EventCount: 10},
	}}

	cfg := baseConfig()
	cfg.MaxCommitmentsPerCycle = 0

	svc, _, _ := testService(t, cfg, reg, seq)
	require.NoError(t, svc.cycle(context.Background()))

	require.Equal(t, 2, reg.commitCallCount)
}

func TestRunExitsOnContextCancellation(t *testing.T) {
	reg := &fakeRegistry{authorized: true, chainID: 1}
	seq := &fakeSequencer{}

	cfg := baseConfig()
	cfg.AnchorInterval = 50 * time.Millisecond
	svc, _, _ := testService(t, cfg, reg, seq)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after cancellation")
	}
}
