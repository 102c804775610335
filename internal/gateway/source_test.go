package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceAPI_UpdateOrderMetadata(t *testing.T) {
	var gotBody struct {
		Number   string      `json:"number"`
		MetaData []MetaField `json:"meta_data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck", user)
		assert.Equal(t, "cs", pass)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/orders/42", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewSourceAPI(srv.URL, "ck", "cs", time.Second)
	err := c.UpdateOrderMetadata(context.Background(), 42, "10042", map[string]string{
		MetaDestinationNumber: "10042",
		MetaDestinationID:     "dst-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "10042", gotBody.Number)
	// Fields are serialized in key order so request bodies are stable.
	require.Len(t, gotBody.MetaData, 2)
	assert.Equal(t, MetaField{Key: MetaDestinationID, Value: "dst-1"}, gotBody.MetaData[0])
	assert.Equal(t, MetaField{Key: MetaDestinationNumber, Value: "10042"}, gotBody.MetaData[1])
}

func TestSourceAPI_UpdateOrderMetadata_OmitsEmptyNumber(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewSourceAPI(srv.URL, "ck", "cs", time.Second)
	err := c.UpdateOrderMetadata(context.Background(), 42, "", map[string]string{MetaDestinationID: "dst-1"})
	require.NoError(t, err)

	_, hasNumber := gotBody["number"]
	assert.False(t, hasNumber, "an empty number must not overwrite the source order's number")
}

func TestSourceAPI_Unconfigured(t *testing.T) {
	c := NewSourceAPI("", "", "", time.Second)
	err := c.UpdateOrderStatus(context.Background(), 42, "completed")
	require.Error(t, err)

	var serr *SyncError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailureConfiguration, serr.Kind)
}

func TestSourceAPI_GetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/42", r.URL.Path)
		w.Write([]byte(`{"id":42,"number":"42","status":"processing","meta_data":[{"key":"_destination_order_id","value":"dst-1"}]}`))
	}))
	defer srv.Close()

	c := NewSourceAPI(srv.URL, "ck", "cs", time.Second)
	order, err := c.GetOrder(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, "processing", order.Status)
	assert.Equal(t, "dst-1", order.Meta(MetaDestinationID))
	assert.Equal(t, "", order.Meta("_missing"))
}

func TestSourceAPI_ListRecentOrders_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewSourceAPI(srv.URL, "ck", "cs", time.Second)
	_, err := c.ListRecentOrders(context.Background(), 50)
	require.Error(t, err)

	var serr *SyncError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, FailureServer, serr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, serr.StatusCode)
	assert.True(t, serr.Retryable())
}
