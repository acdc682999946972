// Copyright 2020 Dell Inc. or its subsidiaries.

package provision

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/dell-storage/vplex-host-libs/vplex/client"
)

// applianceCall is one recorded request to the fake appliance.
type applianceCall struct {
	Method string
	Path   string
	Body   []byte
}

// fakeVplex is an in-process stand-in for a VPLEX management endpoint.
// Tests stub the routes they need and assert on the recorded mutations.
// Unstubbed routes answer 404, which the client reports as NotFound.
type fakeVplex struct {
	t      *testing.T
	router *mux.Router
	server *httptest.Server
	api    *client.Client

	mu    sync.Mutex
	calls []applianceCall
}

func newFakeVplex(t *testing.T) *fakeVplex {
	f := &fakeVplex{t: t, router: mux.NewRouter()}
	f.server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, applianceCall{Method: r.Method, Path: r.URL.Path, Body: body})
		f.mu.Unlock()
		r.Body = ioutil.NopCloser(bytes.NewReader(body))
		f.router.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)

	endpoint, err := url.Parse(f.server.URL)
	require.Nil(t, err)
	port, err := strconv.Atoi(endpoint.Port())
	require.Nil(t, err)

	f.api, err = client.New(&client.Config{
		Host:     endpoint.Hostname(),
		Port:     port,
		User:     "service",
		Password: "Password123!",
	})
	require.Nil(t, err)
	return f
}

// stub answers the route with a fixed status and JSON body.
func (f *fakeVplex) stub(method, path string, status int, body interface{}) {
	f.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, body)
	}).Methods(method)
}

func (f *fakeVplex) stubFunc(method, path string, fn http.HandlerFunc) {
	f.router.HandleFunc(path, fn).Methods(method)
}

// healthyClusters stubs the cluster list and per-cluster gets for the given
// names, all reporting ok status.
func (f *fakeVplex) healthyClusters(names ...string) {
	var list []map[string]interface{}
	for _, name := range names {
		list = append(list, map[string]interface{}{
			"name":               name,
			"operational_status": "ok",
		})
		f.stub("GET", "/vplex/v2/clusters/"+name, http.StatusOK, map[string]interface{}{
			"name":               name,
			"operational_status": "ok",
		})
	}
	f.stub("GET", "/vplex/v2/clusters", http.StatusOK, list)
}

// degradedClusters is healthyClusters with the last named cluster degraded.
func (f *fakeVplex) degradedClusters(names ...string) {
	var list []map[string]interface{}
	for i, name := range names {
		status := "ok"
		if i == len(names)-1 {
			status = "degraded"
		}
		list = append(list, map[string]interface{}{
			"name":               name,
			"operational_status": status,
		})
		f.stub("GET", "/vplex/v2/clusters/"+name, http.StatusOK, map[string]interface{}{
			"name":               name,
			"operational_status": status,
		})
	}
	f.stub("GET", "/vplex/v2/clusters", http.StatusOK, list)
}

// mutations returns every recorded non-GET call.
func (f *fakeVplex) mutations() []applianceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []applianceCall
	for _, call := range f.calls {
		if call.Method != "GET" {
			out = append(out, call)
		}
	}
	return out
}

// mutationBody decodes the body of the single mutation whose path ends with
// the given suffix, failing the test when it was never issued.
func (f *fakeVplex) mutationBody(method, pathSuffix string, out interface{}) {
	f.t.Helper()
	for _, call := range f.mutations() {
		if call.Method == method && strings.HasSuffix(call.Path, pathSuffix) {
			require.Nil(f.t, json.Unmarshal(call.Body, out))
			return
		}
	}
	f.t.Fatalf("no %s call with path suffix %s was recorded", method, pathSuffix)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// patchOps decodes a recorded PATCH body into op/path/value triples.
func patchOps(t *testing.T, body []byte) []map[string]interface{} {
	t.Helper()
	var ops []map[string]interface{}
	require.Nil(t, json.Unmarshal(body, &ops))
	return ops
}
