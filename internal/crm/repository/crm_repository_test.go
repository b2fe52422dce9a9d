package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"shop_support_console/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	logger.Log = logger.Initialize("test", os.TempDir())
	os.Exit(m.Run())
}

func TestDecodeCustomersSkipsMalformed(t *testing.T) {
	data := json.RawMessage(`[
		{"_id":"cust-1","name":"Kim","vehicles":[{"_id":"v1","make":"Hyundai"}]},
		{"_id":7,"name":"bad id"},
		{"name":"no id"}
	]`)

	customers := decodeCustomers(data)
	assert.Len(t, customers, 1)
	assert.Equal(t, "cust-1", customers[0].ID)
	assert.Len(t, customers[0].Vehicles, 1)
}

func TestDecodeCustomersNotAnArray(t *testing.T) {
	assert.Nil(t, decodeCustomers(json.RawMessage(`{"nope":true}`)))
}

func TestListCustomers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers", r.URL.Path)
		assert.Equal(t, "kim", r.URL.Query().Get("search"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[{"_id":"cust-1","name":"Kim"}]}`))
	}))
	defer srv.Close()

	backend := NewCRMBackend(srv.URL, "service-token")
	customers, err := backend.ListCustomers(context.Background(), "kim", 0, 0)

	assert.NoError(t, err)
	assert.Len(t, customers, 1)
	assert.Equal(t, "Kim", customers[0].Name)
}
