package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"stockflow/repositories"
	"stockflow/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := services.Bootstrap(log, repositories.NewStarter(db, log))
	require.NoError(t, err)

	srv := httptest.NewServer(New(log, app.Bus, app.Counter.Snapshot).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func Test_Messages_Dispatched_Returns_201(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	code, body := post(t, srv,
		`{"type_name":"CreateBatch","payload":{"ref":"batch-001","sku":"LAMP","qty":10}}`)
	req.Equal(http.StatusCreated, code)
	req.Equal("dispatched", gjson.Get(body, "status").String())
	req.Equal("batch-001", gjson.Get(body, "result.ref").String())

	code, body = post(t, srv,
		`{"type_name":"Allocate","payload":{"orderid":"order-1","sku":"LAMP","qty":3}}`)
	req.Equal(http.StatusCreated, code)
	req.Equal("batch-001", gjson.Get(body, "result.batchref").String())
}

func Test_Messages_Rejected_Lists_Every_Field(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	code, body := post(t, srv,
		`{"type_name":"Allocate","payload":{"sku":"LAMP","qty":"three"}}`)
	req.Equal(http.StatusBadRequest, code)
	req.Equal("rejected", gjson.Get(body, "status").String())
	req.Equal(int64(2), gjson.Get(body, "field_errors.#").Int())
}

func Test_Messages_Unknown_Type_Is_400(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	code, body := post(t, srv,
		`{"type_name":"Teleport","payload":{}}`)
	req.Equal(http.StatusBadRequest, code)
	req.Contains(gjson.Get(body, "error").String(), "unknown message type")
}

func Test_Messages_Unprocessable_Mapping(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Unknown SKU: nothing to allocate against.
	code, body := post(t, srv,
		`{"type_name":"Allocate","payload":{"orderid":"order-1","sku":"NO-SUCH","qty":1}}`)
	req.Equal(http.StatusNotFound, code)
	req.Equal("not_found", gjson.Get(body, "kind").String())

	_, _ = post(t, srv,
		`{"type_name":"CreateBatch","payload":{"ref":"batch-001","sku":"LAMP","qty":1}}`)
	code, body = post(t, srv,
		`{"type_name":"Allocate","payload":{"orderid":"order-1","sku":"LAMP","qty":50}}`)
	req.Equal(http.StatusConflict, code)
	req.Equal("out_of_stock", gjson.Get(body, "kind").String())
}

func Test_Messages_Skipped_Is_200(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	payload := `{"type_name":"CreateBatch","payload":{"ref":"batch-001","sku":"LAMP","qty":10}}`
	code, _ := post(t, srv, payload)
	req.Equal(http.StatusCreated, code)

	code, body := post(t, srv, payload)
	req.Equal(http.StatusOK, code)
	req.Equal("skipped", gjson.Get(body, "status").String())
	req.Contains(gjson.Get(body, "reason").String(), "already created")
}

func Test_Messages_Bad_Envelope_Is_400(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	for _, body := range []string{
		`not json at all`,
		`{"payload":{}}`,
		`{"type_name":"Allocate"}`,
		`{"type_name":"Allocate","payload":"string"}`,
	} {
		code, resp := post(t, srv, body)
		req.Equal(http.StatusBadRequest, code, "body %q", body)
		req.Contains(gjson.Get(resp, "error").String(), "invalid message envelope")
	}
}

func Test_Healthz_And_Stats(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	_, _ = post(t, srv,
		`{"type_name":"CreateBatch","payload":{"ref":"batch-001","sku":"LAMP","qty":10}}`)

	resp, err = http.Get(srv.URL + "/stats")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	var stats map[string]uint64
	req.NoError(json.NewDecoder(resp.Body).Decode(&stats))
	req.Equal(uint64(1), stats["BatchCreated"])
}
