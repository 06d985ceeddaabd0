// Package config defines the daemon's configuration surface (spec §6) and
// loads it via urfave/cli/v2 flags with environment-variable fallbacks,
// mirroring how the teacher's own cmd entrypoints wire urfave/cli against
// flag.EnvVars rather than reaching for viper or cobra.
package config

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/stateset/anchor/errs"
)

// AnchorConfig is the fully validated, typed configuration for one daemon
// process. Every field corresponds to a row in spec §6's configuration
// table.
type AnchorConfig struct {
	L2RPCURL             string
	SetRegistryAddress   common.Address
	SequencerPrivateKey  string
	SequencerAPIURL      string
	AnchorInterval       time.Duration
	MinEventsForAnchor   uint32
	MaxRetries           uint32
	RetryDelay           time.Duration
	MaxGasPriceGwei      uint64
	HealthPort           int
	ExpectedL2ChainID    uint64
	MaxCommitmentsPerCycle int
	SequencerRequestTimeout time.Duration
	SequencerConnectTimeout time.Duration

	CircuitBreakerFailureThreshold         uint64
	CircuitBreakerResetTimeout             time.Duration
	CircuitBreakerHalfOpenSuccessThreshold uint64
}

// MaxGasPriceWei converts the configured gwei ceiling to wei, as compared
// against registry.GasPrice's result. Returns nil when the ceiling is
// disabled.
func (c AnchorConfig) MaxGasPriceWei() *big.Int {
	if c.MaxGasPriceGwei == 0 {
		return nil
	}
	wei := new(big.Int).Mul(new(big.Int).SetUint64(c.MaxGasPriceGwei), big.NewInt(1_000_000_000))
	return wei
}

const (
	flagL2RPCURL            = "l2-rpc-url"
	flagRegistryAddress     = "set-registry-address"
	flagSequencerPrivateKey = "sequencer-private-key"
	flagSequencerAPIURL     = "sequencer-api-url"
	flagAnchorInterval      = "anchor-interval-secs"
	flagMinEvents           = "min-events-for-anchor"
	flagMaxRetries          = "max-retries"
	flagRetryDelay          = "retry-delay-secs"
	flagMaxGasPrice         = "max-gas-price-gwei"
	flagHealthPort          = "health-port"
	flagExpectedChainID     = "expected-l2-chain-id"
	flagMaxCommitments      = "max-commitments-per-cycle"
	flagSeqRequestTimeout   = "sequencer-request-timeout-secs"
	flagSeqConnectTimeout   = "sequencer-connect-timeout-secs"
	flagBreakerThreshold    = "circuit-breaker-failure-threshold"
	flagBreakerResetTimeout = "circuit-breaker-reset-timeout-secs"
	flagBreakerHalfOpen     = "circuit-breaker-half-open-success-threshold"
)

// Flags returns the urfave/cli flag set for every option in spec §6, each
// bound to the environment variable named in the spec's configuration
// table.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagL2RPCURL, EnvVars: []string{"L2_RPC_URL"}, Value: "http://localhost:8547"},
		&cli.StringFlag{Name: flagRegistryAddress, EnvVars: []string{"SET_REGISTRY_ADDRESS"}, Required: true},
		&cli.StringFlag{Name: flagSequencerPrivateKey, EnvVars: []string{"SEQUENCER_PRIVATE_KEY"}, Required: true},
		&cli.StringFlag{Name: flagSequencerAPIURL, EnvVars: []string{"SEQUENCER_API_URL"}, Value: "http://localhost:3000"},
		&cli.Uint64Flag{Name: flagAnchorInterval, EnvVars: []string{"ANCHOR_INTERVAL_SECS"}, Value: 60},
		&cli.Uint64Flag{Name: flagMinEvents, EnvVars: []string{"MIN_EVENTS_FOR_ANCHOR"}, Value: 100},
		&cli.Uint64Flag{Name: flagMaxRetries, EnvVars: []string{"MAX_RETRIES"}, Value: 3},
		&cli.Uint64Flag{Name: flagRetryDelay, EnvVars: []string{"RETRY_DELAY_SECS"}, Value: 5},
		&cli.Uint64Flag{Name: flagMaxGasPrice, EnvVars: []string{"MAX_GAS_PRICE_GWEI"}, Value: 0},
		&cli.IntFlag{Name: flagHealthPort, EnvVars: []string{"HEALTH_PORT"}, Value: 9090},
		&cli.Uint64Flag{Name: flagExpectedChainID, EnvVars: []string{"EXPECTED_L2_CHAIN_ID"}, Value: 0},
		&cli.IntFlag{Name: flagMaxCommitments, EnvVars: []string{"MAX_COMMITMENTS_PER_CYCLE"}, Value: 0},
		&cli.Uint64Flag{Name: flagSeqRequestTimeout, EnvVars: []string{"SEQUENCER_REQUEST_TIMEOUT_SECS"}, Value: 10},
		&cli.Uint64Flag{Name: flagSeqConnectTimeout, EnvVars: []string{"SEQUENCER_CONNECT_TIMEOUT_SECS"}, Value: 3},
		&cli.Uint64Flag{Name: flagBreakerThreshold, EnvVars: []string{"CIRCUIT_BREAKER_FAILURE_THRESHOLD"}, Value: 5},
		&cli.Uint64Flag{Name: flagBreakerResetTimeout, EnvVars: []string{"CIRCUIT_BREAKER_RESET_TIMEOUT_SECS"}, Value: 60},
		&cli.Uint64Flag{Name: flagBreakerHalfOpen, EnvVars: []string{"CIRCUIT_BREAKER_HALF_OPEN_SUCCESS_THRESHOLD"}, Value: 3},
	}
}

// FromContext validates and builds an AnchorConfig from a populated cli
// context (i.e. inside a cli.App's Action, after Flags() have been parsed).
func FromContext(c *cli.Context) (AnchorConfig, error) {
	rpcURL := c.String(flagL2RPCURL)
	if rpcURL == "" {
		return AnchorConfig{}, errs.NewMissingEnvVar("L2_RPC_URL")
	}

	registryRaw := c.String(flagRegistryAddress)
	if registryRaw == "" {
		return AnchorConfig{}, errs.NewMissingEnvVar("SET_REGISTRY_ADDRESS")
	}
	if !common.IsHexAddress(registryRaw) {
		return AnchorConfig{}, errs.NewInvalidAddress(registryRaw)
	}

	privateKey := c.String(flagSequencerPrivateKey)
	if privateKey == "" {
		return AnchorConfig{}, errs.NewMissingEnvVar("SEQUENCER_PRIVATE_KEY")
	}

	sequencerURL := c.String(flagSequencerAPIURL)
	if sequencerURL == "" {
		return AnchorConfig{}, errs.NewMissingEnvVar("SEQUENCER_API_URL")
	}

	healthPort := c.Int(flagHealthPort)
	if healthPort <= 0 || healthPort > 65535 {
		return AnchorConfig{}, errs.NewInvalidValue("HEALTH_PORT", "must be a valid TCP port")
	}

	maxRetries := c.Uint64(flagMaxRetries)
	if maxRetries == 0 {
		return AnchorConfig{}, errs.NewInvalidValue("MAX_RETRIES", "must be at least 1")
	}

	return AnchorConfig{
		L2RPCURL:               rpcURL,
		SetRegistryAddress:     common.HexToAddress(registryRaw),
		SequencerPrivateKey:    privateKey,
		SequencerAPIURL:        sequencerURL,
		AnchorInterval:         time.Duration(c.Uint64(flagAnchorInterval)) * time.Second,
		MinEventsForAnchor:     uint32(c.Uint64(flagMinEvents)),
		MaxRetries:             uint32(maxRetries),
		RetryDelay:             time.Duration(c.Uint64(flagRetryDelay)) * time.Second,
		MaxGasPriceGwei:        c.Uint64(flagMaxGasPrice),
		HealthPort:             healthPort,
		ExpectedL2ChainID:      c.Uint64(flagExpectedChainID),
		MaxCommitmentsPerCycle: c.Int(flagMaxCommitments),
		SequencerRequestTimeout: time.Duration(c.Uint64(flagSeqRequestTimeout)) * time.Second,
		SequencerConnectTimeout: time.Duration(c.Uint64(flagSeqConnectTimeout)) * time.Second,

		CircuitBreakerFailureThreshold:         c.Uint64(flagBreakerThreshold),
		CircuitBreakerResetTimeout:             time.Duration(c.Uint64(flagBreakerResetTimeout)) * time.Second,
		CircuitBreakerHalfOpenSuccessThreshold: c.Uint64(flagBreakerHalfOpen),
	}, nil
}
