package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stateset/anchor/errs"
	"github.com/stateset/anchor/types"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultConnectTimeout = 3 * time.Second
)

// Sequencer is the capability interface the control loop consumes for
// talking to the off-chain sequencer (spec §4.B).
type Sequencer interface {
	GetPendingCommitments(ctx context.Context) ([]types.BatchCommitment, error)
	NotifyAnchored(ctx context.Context, batchID string, notification types.AnchorNotification) error
	Health(ctx context.Context) bool
}

// SequencerAPIClient is the production Sequencer backed by net/http. The
// client never retries on its own — the control loop owns retry policy
// (spec §4.B). A client-side rate limiter guards against the control loop
// hammering a sequencer that is already struggling, on top of the server's
// own throttling.
type SequencerAPIClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewSequencerAPIClient builds a client with the default timeouts.
func NewSequencerAPIClient(baseURL string) *SequencerAPIClient {
	return NewSequencerAPIClientWithTimeouts(baseURL, DefaultRequestTimeout, DefaultConnectTimeout)
}

// NewSequencerAPIClientWithTimeouts builds a client with explicit request
// and connect timeouts. A trailing slash on baseURL is stripped.
func NewSequencerAPIClientWithTimeouts(baseURL string, requestTimeout, connectTimeout time.Duration) *SequencerAPIClient {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{DialContext: dialer.DialContext}

	return &SequencerAPIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(20), 20),
	}
}

// GetPendingCommitments fetches the sequencer's current backlog.
func (c *SequencerAPIClient) GetPendingCommitments(ctx context.Context) ([]types.BatchCommitment, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.NewSequencerTimeout(0)
	}

	url := c.baseURL + "/v1/commitments/pending"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.NewInternal("building pending-commitments request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyHTTPError(c.baseURL, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.NewSequencerHTTPError(resp.StatusCode, string(body))
	}

	var decoded types.PendingCommitmentsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errs.NewSequencerParseError(err)
	}

	return decoded.Commitments, nil
}

// NotifyAnchored tells the sequencer that batchID is now on-chain.
func (c *SequencerAPIClient) NotifyAnchored(ctx context.Context, batchID string, notification types.AnchorNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return errs.NewInternal("marshalling anchor notification", err)
	}

	url := fmt.Sprintf("%s/v1/commitments/%s/anchored", c.baseURL, batchID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errs.NewInternal("building notify-anchored request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPError(c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errs.NewNotificationFailed(fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	return nil
}

// Health reports whether GET {base}/health returned a 2xx status.
func (c *SequencerAPIClient) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func classifyHTTPError(url string, err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return errs.NewSequencerTimeout(0)
	}
	return errs.NewSequencerConnectionFailed(url, err)
}
