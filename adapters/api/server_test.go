package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"transcssr/adapters/registry"
	"transcssr/domain/core"
	"transcssr/internal/testkit"
)

func newTestServer() *Server {
	params := core.DefaultParams()
	params.LMaxCSSR = 2
	params.LMaxWords = 3
	params.LMaxICT = 5
	return NewServer(Config{Port: "0", Params: params}, registry.NewMemoryStore())
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func reconstructPeriodTwo(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := postJSON(t, h, "/machines", map[string]interface{}{
		"name":    "period2",
		"y":       string(testkit.Periodic("01", 1000)),
		"outputs": "01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("reconstruct returned %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		ID              string `json:"id"`
		States          int    `json:"states"`
		RecurrentStates int    `json:"recurrent_states"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RecurrentStates != 2 {
		t.Fatalf("period-2 reconstruction found %d recurrent states, want 2", resp.RecurrentStates)
	}
	return resp.ID
}

func TestReconstructAndFetchDOT(t *testing.T) {
	h := newTestServer().Handler()
	id := reconstructPeriodTwo(t, h)

	rec := get(h, "/machines/"+id)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET machine returned %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("content type %q, want text/vnd.graphviz", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "digraph") {
		t.Errorf("body does not look like DOT: %q", rec.Body.String()[:40])
	}
}

func TestListMachines(t *testing.T) {
	h := newTestServer().Handler()
	reconstructPeriodTwo(t, h)

	rec := get(h, "/machines")
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d", rec.Code)
	}
	var records []struct {
		Name       string `json:"Name"`
		StateCount int    `json:"StateCount"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name != "period2" {
		t.Errorf("unexpected listing: %+v", records)
	}
}

func TestFilterEndpoint(t *testing.T) {
	h := newTestServer().Handler()
	id := reconstructPeriodTwo(t, h)

	rec := postJSON(t, h, fmt.Sprintf("/machines/%s/filter", id), map[string]interface{}{
		"y": "010101",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("filter returned %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Predictions [][]float64 `json:"predictions"`
		Violations  []struct {
			Step int `json:"Step"`
		} `json:"violations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Predictions) != 6 {
		t.Errorf("got %d prediction rows, want 6", len(resp.Predictions))
	}
	if len(resp.Violations) != 0 {
		t.Errorf("admissible stream produced violations: %+v", resp.Violations)
	}
}

func TestMeasuresEndpoint(t *testing.T) {
	h := newTestServer().Handler()
	id := reconstructPeriodTwo(t, h)

	rec := get(h, fmt.Sprintf("/machines/%s/measures?l_max=4", id))
	if rec.Code != http.StatusOK {
		t.Fatalf("measures returned %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Cmu float64 `json:"Cmu"`
		Hmu float64 `json:"Hmu"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if math.Abs(resp.Cmu-1) > 1e-6 {
		t.Errorf("Cmu = %g, want 1", resp.Cmu)
	}
	if math.Abs(resp.Hmu) > 1e-6 {
		t.Errorf("hmu = %g, want 0", resp.Hmu)
	}
}

func TestMeasuresEndpoint_DepthBounds(t *testing.T) {
	h := newTestServer().Handler()
	id := reconstructPeriodTwo(t, h)

	for _, bad := range []string{"0", "-1", "17", "30", "abc"} {
		rec := get(h, fmt.Sprintf("/machines/%s/measures?l_max=%s", id, bad))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("l_max=%s returned %d, want 400", bad, rec.Code)
		}
	}

	// The maximum allowed depth still serves.
	if rec := get(h, fmt.Sprintf("/machines/%s/measures?l_max=16", id)); rec.Code != http.StatusOK {
		t.Errorf("l_max=16 returned %d, want 200", rec.Code)
	}
}

func TestGetMachine_NotFound(t *testing.T) {
	h := newTestServer().Handler()
	missing := core.NewID().String()
	if rec := get(h, "/machines/"+missing); rec.Code != http.StatusNotFound {
		t.Errorf("missing machine returned %d, want 404", rec.Code)
	}
}

func TestGetMachine_BadID(t *testing.T) {
	h := newTestServer().Handler()
	if rec := get(h, "/machines/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed ID returned %d, want 400", rec.Code)
	}
}

func TestReconstruct_BadRequest(t *testing.T) {
	h := newTestServer().Handler()
	req := httptest.NewRequest(http.MethodPost, "/machines", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON returned %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer().Handler()
	if rec := get(h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz returned %d", rec.Code)
	}
}
