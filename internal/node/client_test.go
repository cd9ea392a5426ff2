package node

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracleScope/internal/register"
	"oracleScope/internal/scans"
)

const scanBoxesBody = `[
  {
    "confirmationsNum": 3,
    "box": {
      "boxId": "E1",
      "value": 1000000,
      "creationHeight": 420,
      "additionalRegisters": {
        "R4": "0e06312e32333435",
        "R5": {"serializedValue": "05e807", "sigmaType": "SLong", "renderedValue": "500"},
        "R7": "0500"
      }
    }
  },
  {
    "box": {
      "boxId": "E2",
      "value": 5,
      "creationHeight": 421
    }
  }
]`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryBackoff(time.Millisecond)}, opts...)
	client, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return client
}

func TestScanBoxesDecodesBoxes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/scan/unspentBoxes/7", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api_key"))
		_, _ = w.Write([]byte(scanBoxesBody))
	}, WithAPIKey("secret"))

	boxes, err := client.ScanBoxes(context.Background(), "7")
	require.NoError(t, err)
	require.Len(t, boxes, 2)

	first := boxes[0]
	assert.Equal(t, "E1", first.ID)
	assert.Equal(t, uint64(1000000), first.Value)
	assert.Equal(t, uint64(420), first.CreationHeight)
	// R7 follows a gap at R6 and is dropped.
	require.Len(t, first.Registers, 2)
	s, ok := register.DecodeString(first.Registers[0])
	require.True(t, ok)
	assert.Equal(t, "1.2345", s)
	n, ok := register.DecodeInteger(first.Registers[1])
	require.True(t, ok)
	assert.Equal(t, int64(500), n)

	assert.Empty(t, boxes[1].Registers)
}

func TestScanBoxesRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}, WithMaxRetries(3))

	boxes, err := client.ScanBoxes(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, boxes)
	assert.Equal(t, int32(3), calls.Load())
}

func TestScanBoxesGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithMaxRetries(2))

	_, err := client.ScanBoxes(context.Background(), "1")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected status error, got %v", err)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestScanBoxesDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, WithMaxRetries(5))

	_, err := client.ScanBoxes(context.Background(), "99")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegisterScan(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scan/register", r.URL.Path)
		var req registerScanRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Pool Deposit Scan", req.ScanName)
		assert.Equal(t, "equals", req.TrackingRule.Predicate)
		assert.Equal(t, "R1", req.TrackingRule.Register)
		_, _ = w.Write([]byte(`{"scanId": 12}`))
	})

	id, err := client.RegisterScan(context.Background(), "Pool Deposit Scan", scans.Equals("R1", register.EncodeBytes([]byte{0x01})))
	require.NoError(t, err)
	assert.Equal(t, "12", id)
}

func TestRegisterScanIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithMaxRetries(3))

	_, err := client.RegisterScan(context.Background(), "x", scans.ContainsAsset("t"))
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://node")
	assert.Error(t, err, "unsupported scheme")
	_, err = NewClient("")
	assert.Error(t, err, "empty url")
}
