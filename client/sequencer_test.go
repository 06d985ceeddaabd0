package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stateset/anchor/errs"
	"github.com/stateset/anchor/types"
)

func TestGetPendingCommitmentsHappyPath(t *testing.T) {
	batchID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/commitments/pending", r.URL.Path)
		resp := types.PendingCommitmentsResponse{
			Commitments: []types.BatchCommitment{{BatchID: batchID, EventCount: 10}},
			Total:       1,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewSequencerAPIClient(srv.URL)
	got, err := c.GetPendingCommitments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, batchID, got[0].BatchID)
}

func TestGetPendingCommitmentsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewSequencerAPIClient(srv.URL)
	_, err := c.GetPendingCommitments(context.Background())
	require.Error(t, err)
	require.Equal(t, errs.Transient, errs.SeverityOf(err))
}

func TestNotifyAnchoredSendsExpectedBody(t *testing.T) {
	batchID := uuid.New()
	var gotPath string
	var gotBody types.AnchorNotification

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewSequencerAPIClient(srv.URL)
	err := c.NotifyAnchored(context.Background(), batchID.String(), types.AnchorNotification{
		ChainTxHash: "0x01",
		ChainID:     195,
	})
	require.NoError(t, err)
	require.Equal(t, "/v1/commitments/"+batchID.String()+"/anchored", gotPath)
	require.Equal(t, "0x01", gotBody.ChainTxHash)
	require.Equal(t, uint64(195), gotBody.ChainID)
}

func TestNotifyAnchoredNon2xxIsWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewSequencerAPIClient(srv.URL)
	err := c.NotifyAnchored(context.Background(), uuid.New().String(), types.AnchorNotification{})
	require.Error(t, err)
	require.Equal(t, errs.Warning, errs.SeverityOf(err))
}

func TestHealthReflectsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewSequencerAPIClient(srv.URL)
	require.True(t, c.Health(context.Background()))
}

func TestBaseURLStripsTrailingSlash(t *testing.T) {
	c := NewSequencerAPIClient("http://example.com/")
	require.Equal(t, "http://example.com", c.baseURL)
}

func TestNewSequencerAPIClientWithTimeoutsSetsClientTimeout(t *testing.T) {
	c := NewSequencerAPIClientWithTimeouts("http://example.com", 5*time.Second, time.Second)
	require.Equal(t, 5*time.Second, c.http.Timeout)
}
