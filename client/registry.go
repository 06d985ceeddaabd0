package client

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/stateset/anchor/errs"
	"github.com/stateset/anchor/types"
)

// Registry is the small capability interface the anchor control loop
// consumes (design note "Dynamic dispatch over the chain provider"): the
// four operations the loop uses (chain id, gas price, authorization check,
// commit) plus the TotalCommitments view read, so tests can inject an
// in-memory fake without pulling in an RPC client.
type Registry interface {
	IsAuthorized(ctx context.Context, address common.Address) (bool, error)
	TotalCommitments(ctx context.Context) (*big.Int, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	CommitBatch(ctx context.Context, batch types.BatchCommitment) (txHash string, blockNumber uint64, gasUsed uint64, err error)
	ChainID() uint64
}

// RegistryClient is the production Registry backed by a real go-ethereum
// RPC connection, grounded on the ethclient/bind idiom used throughout
// test/operations/manager.go.
type RegistryClient struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	signer   *bind.TransactOpts
	chainID  uint64
}

// Dial connects to rpcURL, derives a signer from privateKeyHex, and builds a
// RegistryClient bound to the contract at address. It reads the chain id
// from the node; callers are responsible for comparing it against any
// expected value (spec §4.F step 3) since that comparison is a fatal
// start-up decision, not a client concern.
func Dial(ctx context.Context, rpcURL string, address common.Address, privateKeyHex string) (*RegistryClient, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errs.NewL2ConnectionFailed(rpcURL, err)
	}

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		return nil, errs.NewL2RPCError(err)
	}

	privateKey, err := crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, errs.NewInvalidPrivateKey()
	}

	signer, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, errs.NewInvalidPrivateKey()
	}

	contract := bind.NewBoundContract(address, RegistryABI, ec, ec, ec)

	return &RegistryClient{
		client:   ec,
		contract: contract,
		address:  address,
		signer:   signer,
		chainID:  chainID.Uint64(),
	}, nil
}

// SignerAddress returns the address derived from the configured private key.
func (c *RegistryClient) SignerAddress() common.Address {
	return c.signer.From
}

// ChainID returns the chain id observed at dial time.
func (c *RegistryClient) ChainID() uint64 {
	return c.chainID
}

// IsAuthorized checks whether address is an authorized sequencer.
func (c *RegistryClient) IsAuthorized(ctx context.Context, address common.Address) (bool, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "authorizedSequencers", address)
	if err != nil {
		return false, errs.NewCheckFailed(err)
	}
	if len(out) != 1 {
		return false, errs.NewCheckFailed(fmt.Errorf("unexpected authorizedSequencers output arity: %d", len(out)))
	}
	authorized, ok := out[0].(bool)
	if !ok {
		return false, errs.NewCheckFailed(fmt.Errorf("unexpected authorizedSequencers output type"))
	}
	return authorized, nil
}

// TotalCommitments reads the contract's running commitment count.
func (c *RegistryClient) TotalCommitments(ctx context.Context) (*big.Int, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "totalCommitments")
	if err != nil {
		return nil, errs.NewL2RPCError(err)
	}
	if len(out) != 1 {
		return nil, errs.NewL2RPCError(fmt.Errorf("unexpected totalCommitments output arity: %d", len(out)))
	}
	total, ok := out[0].(*big.Int)
	if !ok {
		return nil, errs.NewL2RPCError(fmt.Errorf("unexpected totalCommitments output type"))
	}
	return total, nil
}

// GasPrice reads the provider's current suggested gas price.
func (c *RegistryClient) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errs.NewGasPriceError(err)
	}
	return price, nil
}

// CommitBatch encodes and submits the nine-argument commitBatch
// transaction, then awaits its receipt. See spec §4.A for the exact
// encoding rules.
func (c *RegistryClient) CommitBatch(ctx context.Context, batch types.BatchCommitment) (string, uint64, uint64, error) {
	batchID := types.UUIDToBytes32(batch.BatchID)
	tenantID := types.UUIDToBytes32(batch.TenantID)
	storeID := types.UUIDToBytes32(batch.StoreID)

	eventsRoot, err := types.ParseBytes32(batch.EventsRoot)
	if err != nil {
		return "", 0, 0, errs.NewInvalidBytes32(err)
	}
	prevStateRoot, err := types.ParseBytes32(batch.PrevStateRoot)
	if err != nil {
		return "", 0, 0, errs.NewInvalidBytes32(err)
	}
	newStateRoot, err := types.ParseBytes32(batch.NewStateRoot)
	if err != nil {
		return "", 0, 0, errs.NewInvalidBytes32(err)
	}

	opts := *c.signer
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, "commitBatch",
		batchID, tenantID, storeID,
		eventsRoot, prevStateRoot, newStateRoot,
		batch.SequenceStart, batch.SequenceEnd, batch.EventCount,
	)
	if err != nil {
		return "", 0, 0, classifySubmissionError(err)
	}

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		return "", 0, 0, errs.NewConfirmationTimeout()
	}

	blockNumber := uint64(0)
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status == 0 {
		return tx.Hash().Hex(), blockNumber, receipt.GasUsed, errs.NewReverted(tx.Hash().Hex())
	}

	return tx.Hash().Hex(), blockNumber, receipt.GasUsed, nil
}

func classifySubmissionError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return errs.NewInsufficientFunds("unknown", "unknown")
	case strings.Contains(msg, "nonce"):
		return errs.NewNonceError(err)
	default:
		return errs.NewSubmissionFailed(err)
	}
}

func trimHexPrefix(s string) string {
	return strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
}
