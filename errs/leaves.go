package errs

// Config errors. Every leaf is Fatal: a daemon that cannot read its own
// configuration cannot do anything safely.

func NewMissingEnvVar(name string) *Error {
	return newError(CategoryConfig, "MissingEnvVar", Fatal, nil, "missing required environment variable: %s", name)
}

func NewInvalidValue(field, message string) *Error {
	return newError(CategoryConfig, "InvalidValue", Fatal, nil, "invalid configuration value for %s: %s", field, message)
}

func NewInvalidPrivateKey() *Error {
	return newError(CategoryConfig, "InvalidPrivateKey", Fatal, nil, "invalid private key format")
}

func NewInvalidAddress(address string) *Error {
	return newError(CategoryConfig, "InvalidAddress", Fatal, nil, "invalid address format: %s", address)
}

func NewInvalidURL(url string) *Error {
	return newError(CategoryConfig, "InvalidUrl", Fatal, nil, "invalid URL format: %s", url)
}

// L2Connection errors. Transient except ChainIdMismatch and NotInitialized,
// which are Fatal — both indicate the daemon is talking to the wrong chain
// or was never wired up, and no amount of retrying fixes that.

func NewL2ConnectionFailed(url string, cause error) *Error {
	return newError(CategoryL2Connection, "ConnectionFailed", Transient, cause, "failed to connect to L2 RPC at %s", url)
}

func NewL2RPCError(cause error) *Error {
	return newError(CategoryL2Connection, "RpcError", Transient, cause, "L2 RPC request failed")
}

func NewChainIDMismatch(expected, actual uint64) *Error {
	return newError(CategoryL2Connection, "ChainIdMismatch", Fatal, nil, "chain ID mismatch: expected %d, got %d", expected, actual)
}

func NewGasPriceError(cause error) *Error {
	return newError(CategoryL2Connection, "GasPriceError", Transient, cause, "failed to get gas price")
}

func NewL2Timeout(seconds uint64) *Error {
	return newError(CategoryL2Connection, "Timeout", Transient, nil, "L2 connection timeout after %ds", seconds)
}

func NewL2NotInitialized() *Error {
	return newError(CategoryL2Connection, "NotInitialized", Fatal, nil, "L2 provider not initialized")
}

// SequencerAPI errors. Transient for connection/timeout/5xx, Warning
// otherwise — except NoPendingCommitments, which the control loop treats
// as a plain empty-backlog signal rather than a failure at all (it never
// reaches this constructor in practice; kept for parity with the source
// taxonomy and for completeness of the metric label set).

func NewSequencerConnectionFailed(url string, cause error) *Error {
	return newError(CategorySequencerAPI, "ConnectionFailed", Transient, cause, "failed to connect to sequencer API at %s", url)
}

func NewSequencerHTTPError(status int, body string) *Error {
	sev := Warning
	if status >= 500 {
		sev = Transient
	}
	return newError(CategorySequencerAPI, "HttpError", sev, nil, "sequencer API returned error status %d: %s", status, body)
}

func NewSequencerParseError(cause error) *Error {
	return newError(CategorySequencerAPI, "ParseError", Warning, cause, "failed to parse sequencer API response")
}

func NewSequencerTimeout(seconds uint64) *Error {
	return newError(CategorySequencerAPI, "Timeout", Transient, nil, "sequencer API request timeout after %ds", seconds)
}

func NewNoPendingCommitments() *Error {
	return newError(CategorySequencerAPI, "NoPendingCommitments", Transient, nil, "no pending commitments available")
}

func NewNotificationFailed(cause error) *Error {
	return newError(CategorySequencerAPI, "NotificationFailed", Warning, cause, "failed to notify sequencer of anchoring")
}

// Transaction errors. Transient for submission/nonce/timeout/gas-high,
// Warning for reverted, Critical for insufficient-funds/encoding/invalid-bytes.

func NewSubmissionFailed(cause error) *Error {
	return newError(CategoryTransaction, "SubmissionFailed", Transient, cause, "transaction failed to submit")
}

func NewReverted(reason string) *Error {
	return newError(CategoryTransaction, "Reverted", Warning, nil, "transaction reverted: %s", reason)
}

func NewConfirmationTimeout() *Error {
	return newError(CategoryTransaction, "ConfirmationTimeout", Transient, nil, "transaction timed out waiting for confirmation")
}

func NewGasPriceTooHigh(currentGwei, maxGwei uint64) *Error {
	return newError(CategoryTransaction, "GasPriceTooHigh", Transient, nil, "gas price %d gwei exceeds maximum %d gwei", currentGwei, maxGwei)
}

func NewInsufficientFunds(required, available string) *Error {
	return newError(CategoryTransaction, "InsufficientFunds", Critical, nil, "insufficient funds for gas: required %s, available %s", required, available)
}

func NewNonceError(cause error) *Error {
	return newError(CategoryTransaction, "NonceError", Transient, cause, "nonce error")
}

func NewEncodingError(cause error) *Error {
	return newError(CategoryTransaction, "EncodingError", Critical, cause, "failed to encode transaction data")
}

func NewInvalidBytes32(cause error) *Error {
	return newError(CategoryTransaction, "InvalidBytes32", Critical, cause, "invalid bytes32 value")
}

// Authorization errors. Always Fatal.

func NewNotAuthorized(address string) *Error {
	return newError(CategoryAuthorization, "NotAuthorized", Fatal, nil, "sequencer address %s is not authorized in SetRegistry", address)
}

func NewCheckFailed(cause error) *Error {
	return newError(CategoryAuthorization, "CheckFailed", Fatal, cause, "failed to check authorization")
}

func NewAuthInvalidPrivateKey() *Error {
	return newError(CategoryAuthorization, "InvalidPrivateKey", Fatal, nil, "invalid private key")
}

// Internal is the catch-all category for errors with no more specific home.
// Always Critical.

func NewInternal(context string, cause error) *Error {
	return newError(CategoryInternal, "Internal", Critical, cause, "%s", context)
}
