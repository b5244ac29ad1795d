package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/eaugeas/keyset/errors"
	"github.com/eaugeas/keyset/keyset"
	"github.com/eaugeas/keyset/logs"
	"github.com/eaugeas/keyset/metrics"
	"github.com/eaugeas/keyset/rpcs"
	"github.com/eaugeas/keyset/store"
)

var logger = logs.NewLogrus(logs.LogrusLoggerProperties{
	Level:  logrus.DebugLevel,
	Output: io.Discard,
})

type apiTest struct {
	t       *testing.T
	handler http.Handler
	store   *store.Store
}

func newAPITest(t *testing.T, opts store.Opts) *apiTest {
	opts.Logger = logger
	opts.Metrics = metrics.New()

	s := store.New(opts)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	return &apiTest{
		t:     t,
		store: s,
		handler: NewHandler(Props{
			Store:     s,
			Metrics:   opts.Metrics,
			Logger:    logger,
			BodyLimit: 1 << 16,
		}),
	}
}

func (a *apiTest) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *apiTest) decode(rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (a *apiTest) errorOf(rec *httptest.ResponseRecorder) errs.Error {
	var e errs.Error
	a.decode(rec, &e)
	return e
}

func TestAPISets(t *testing.T) {
	api := newAPITest(t, store.Opts{})

	rec := api.do("POST", "/sets", `{"name":"users","kind":"avl"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do("POST", "/sets", `{"name":"orders"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do("POST", "/sets", `{"name":"users"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errs.ErrorCodeSetExists, api.errorOf(rec).ErrorCode)

	rec = api.do("POST", "/sets", `{"name":"bad","kind":"splay"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrorCodeUnknownKind, api.errorOf(rec).ErrorCode)

	rec = api.do("POST", "/sets", `{"kind":"avl"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errs.ErrorCodeBadRequest, api.errorOf(rec).ErrorCode)

	rec = api.do("GET", "/sets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListSetsResponse
	api.decode(rec, &list)
	assert.Equal(t, []string{"orders", "users"}, list.Names)

	rec = api.do("GET", "/stats?set=users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.Stats
	api.decode(rec, &stats)
	assert.Equal(t, keyset.AVL, stats.Kind)

	rec = api.do("DELETE", "/sets", `{"name":"users"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do("DELETE", "/sets", `{"name":"users"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrorCodeSetNotFound, api.errorOf(rec).ErrorCode)
}

func TestAPIKeys(t *testing.T) {
	api := newAPITest(t, store.Opts{})
	require.Equal(t, http.StatusNoContent, api.do("POST", "/sets", `{"name":"s"}`).Code)

	rec := api.do("PUT", "/keys", `{"set":"s","keys":[12,31,20,17,11,8,3,24,15,33,20]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var inserted InsertKeysResponse
	api.decode(rec, &inserted)
	assert.Equal(t, 10, inserted.Inserted)
	assert.Len(t, inserted.Results, 11)
	assert.False(t, inserted.Results[10].Applied)

	rec = api.do("DELETE", "/keys", `{"set":"s","keys":[20,21]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted DeleteKeysResponse
	api.decode(rec, &deleted)
	assert.Equal(t, 1, deleted.Deleted)

	rec = api.do("POST", "/keys/search", `{"set":"s","keys":[3,20,33]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var found SearchKeysResponse
	api.decode(rec, &found)
	assert.Equal(t, []bool{true, false, true}, found.Found)

	rec = api.do("POST", "/keys/range", `{"set":"s","min":10,"max":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var keys RangeResponse
	api.decode(rec, &keys)
	assert.Equal(t, []int{11, 12, 15, 17}, keys.Keys)

	rec = api.do("POST", "/keys/range", `{"set":"s","min":100,"max":200}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "{\"keys\":[]}\n", rec.Body.String())

	rec = api.do("POST", "/keys/range", `{"set":"s","min":20,"max":10}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("POST", "/keys/runs", `{"set":"s","min":0,"max":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs RunsResponse
	api.decode(rec, &runs)
	assert.Equal(t, []Run{{3, 3}, {8, 8}, {11, 12}, {15, 15}, {17, 17}}, runs.Runs)

	rec = api.do("GET", "/stats?set=s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats store.Stats
	api.decode(rec, &stats)
	assert.Equal(t, store.Stats{Name: "s", Kind: keyset.RedBlack, Len: 9, Height: stats.Height, Valid: true}, stats)
	assert.LessOrEqual(t, stats.Height, 6)
}

func TestAPIErrors(t *testing.T) {
	api := newAPITest(t, store.Opts{})

	rec := api.do("PUT", "/keys", `{"set":"missing","keys":[1]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do("GET", "/stats", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("PUT", "/keys", `{"set":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do("PATCH", "/keys", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = api.do("GET", "/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, api.store.Stop())
	rec = api.do("GET", "/sets", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, errs.ErrorCodeUnavailable, api.errorOf(rec).ErrorCode)
}

func TestAPICreateOnWriteAndCapacity(t *testing.T) {
	api := newAPITest(t, store.Opts{CreateOnWrite: true, Set: keyset.Opts{Capacity: 2}})

	rec := api.do("PUT", "/keys", `{"set":"auto","keys":[1,2,3]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var inserted InsertKeysResponse
	api.decode(rec, &inserted)
	assert.Equal(t, 2, inserted.Inserted)
	assert.NotEmpty(t, inserted.Results[2].Error)
	assert.Equal(t, errs.ErrorCodeCapacityExceeded, inserted.Results[2].ErrorCode)
	assert.Contains(t, rec.Body.String(), `"errorCode":1003`)
}

func TestAPIMetrics(t *testing.T) {
	api := newAPITest(t, store.Opts{})
	require.Equal(t, http.StatusNoContent, api.do("POST", "/sets", `{"name":"m"}`).Code)
	require.Equal(t, http.StatusOK, api.do("PUT", "/keys", `{"set":"m","keys":[1,2]}`).Code)

	rec := api.do("GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `keyset_operations_total{op="insert",result="applied",set="m"} 2`)
}

func TestAPICors(t *testing.T) {
	s := store.New(store.Opts{Logger: logger})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	handler := NewHandler(Props{
		Store:  s,
		Logger: logger,
		Cors: rpcs.HttpCorsPreProcessorProps{
			Enabled:        true,
			AllowedOrigins: []string{"http://app.example"},
			AllowedMethods: []string{"GET", "PUT"},
		},
	})

	req := httptest.NewRequest("OPTIONS", "/keys", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", "PUT")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/sets", nil)
	req.Header.Set("Origin", "http://app.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerServeAndShutdown(t *testing.T) {
	s := store.New(store.Opts{Logger: logger})
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(Props{Store: s, Logger: logger, ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() { errC <- srv.Serve(ctx, listener) }()

	res, err := http.Post("http://"+listener.Addr().String()+"/sets", "application/json",
		strings.NewReader(`{"name":"live"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	cancel()
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
