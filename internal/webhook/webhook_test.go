package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"voalzira/internal/models"
)

func samplePayload() OrderPayload {
	return OrderPayload{
		OrderID:    "ord-1",
		Items:      []models.OrderItem{{ProductID: "c3", Type: models.Slice, Quantity: 2, PriceCents: 1200}},
		Total:      "21.60",
		TotalCents: 2160,
		Customer:   Customer{Name: "Maria", WhatsApp: "+55 21 90000-0000"},
		Store:      models.Store{ID: "1", Name: "Tijuca"},
	}
}

func TestFirePostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, zaptest.NewLogger(t))
	n.Fire(samplePayload())
	n.Wait()

	require.NotNil(t, got)
	assert.Equal(t, "ord-1", got["orderId"])
	assert.Equal(t, 21.6, got["total"])
	assert.Equal(t, float64(2160), got["totalCents"])
	assert.Equal(t, "Maria", got["customer"].(map[string]any)["name"])
	assert.Equal(t, "c3", got["items"].([]any)[0].(map[string]any)["cakeId"])

	ds := n.Deliveries()
	require.Len(t, ds, 1)
	assert.Equal(t, http.StatusNoContent, ds[0].StatusCode)
	assert.Empty(t, ds[0].Error)
}

func TestFireRecordsFailureWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second, zaptest.NewLogger(t))
	n.Fire(samplePayload())
	n.Wait()

	assert.Equal(t, int32(1), calls.Load())
	ds := n.Deliveries()
	require.Len(t, ds, 1)
	assert.Equal(t, http.StatusBadGateway, ds[0].StatusCode)
	assert.Contains(t, ds[0].Error, "502")
}

func TestFireUnreachableEndpoint(t *testing.T) {
	n := New("http://127.0.0.1:1/hook", 200*time.Millisecond, zaptest.NewLogger(t))
	n.Fire(samplePayload())
	n.Wait()
	ds := n.Deliveries()
	require.Len(t, ds, 1)
	assert.NotEmpty(t, ds[0].Error)
}

func TestFireWithoutURLIsNoop(t *testing.T) {
	n := New("", 0, nil)
	n.Fire(samplePayload())
	n.Wait()
	assert.Empty(t, n.Deliveries())
}

func TestSetURL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	n := New("", time.Second, nil)
	n.SetURL(srv.URL)
	assert.Equal(t, srv.URL, n.URL())
	n.Fire(samplePayload())
	n.Wait()
	assert.Equal(t, int32(1), hits.Load())
}
