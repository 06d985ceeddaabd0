package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/stateset/anchor/client"
)

// newFakeReconcileServer answers every eth_getTransactionReceipt request
// with the same BatchCommitted-tagged receipt for confirmedHash, the same
// shape client/reconcile_test.go uses to drive BatchHeaderRange without a
// live node.
func newFakeReconcileServer(t *testing.T, confirmedHash string) *httptest.Server {
	t.Helper()
	topic := client.BatchCommittedTopic.Hex()
	logsBloom := "0x" + strings.Repeat("00", 256)
	blockHash := "0x" + strings.Repeat("11", 32)

	receipt := `{
		"type": "0x0",
		"status": "0x1",
		"cumulativeGasUsed": "0x5208",
		"logsBloom": "` + logsBloom + `",
		"logs": [{
			"address": "0x0000000000000000000000000000000000000001",
			"topics": ["` + topic + `", "0x` + strings.Repeat("00", 32) + `"],
			"data": "0x",
			"blockNumber": "0x1",
			"transactionHash": "` + confirmedHash + `",
			"transactionIndex": "0x0",
			"blockHash": "` + blockHash + `",
			"logIndex": "0x0",
			"removed": false
		}],
		"transactionHash": "` + confirmedHash + `",
		"contractAddress": null,
		"gasUsed": "0x5208",
		"effectiveGasPrice": "0x1",
		"blockHash": "` + blockHash + `",
		"blockNumber": "0x1",
		"transactionIndex": "0x0"
	}`

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "eth_getTransactionReceipt", req.Method)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + receipt + `}`))
	}))
}

// TestReconcileCommandReportsConfirmedBatch exercises the `anchor reconcile`
// subcommand end to end: flag parsing, dialing the configured RPC URL, and
// printing BatchHeaderRange's verdict for the operator.
func TestReconcileCommandReportsConfirmedBatch(t *testing.T) {
	confirmedHash := "0x" + strings.Repeat("02", 32)
	srv := newFakeReconcileServer(t, confirmedHash)
	defer srv.Close()

	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name: "reconcile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "l2-rpc-url"},
					&cli.StringSliceFlag{Name: "tx"},
				},
				Action: reconcile,
			},
		},
	}

	stdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := app.RunContext(context.Background(), []string{"anchor", "reconcile", "--l2-rpc-url", srv.URL, "--tx", confirmedHash})

	w.Close()
	os.Stdout = stdout
	out, _ := io.ReadAll(r)

	require.NoError(t, runErr)
	require.Contains(t, string(out), "confirmed")
}
