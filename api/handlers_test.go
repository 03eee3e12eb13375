package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"geodirectory/db"
	"geodirectory/pkg/directory"
	"geodirectory/pkg/shared"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	database, err := db.New(&db.Config{
		Driver:         db.DriverSQLite,
		DBPath:         ":memory:",
		MaxOpenConns:   1,
		MaxIdleConns:   1,
		AutoInitialize: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	handlers := NewHandlers(database, nil, zap.NewNop())
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, nil, testAPIKey)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *shared.Error   `json:"error,omitempty"`
}

func doRequest(t *testing.T, method, url string, body interface{}, apiKey string) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, env
}

func TestAuthRequired(t *testing.T) {
	server := newTestServer(t)

	resp, env := doRequest(t, http.MethodGet, server.URL+"/api/v1/buildings", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Errorf("unexpected error payload: %+v", env.Error)
	}

	resp, _ = doRequest(t, http.MethodGet, server.URL+"/api/v1/buildings", nil, "wrong-key")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for wrong key", resp.StatusCode)
	}
}

func TestHealthAndMetricsOpen(t *testing.T) {
	server := newTestServer(t)

	// Health needs no key. The bus is absent in tests, so the endpoint
	// reports unhealthy.
	resp, env := doRequest(t, http.MethodGet, server.URL+"/health", nil, "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503 without a bus", resp.StatusCode)
	}
	if !env.Success {
		t.Error("health payload should still be a success envelope")
	}

	metricsResp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", metricsResp.StatusCode)
	}
}

func TestBuildingEndpoints(t *testing.T) {
	server := newTestServer(t)

	resp, env := doRequest(t, http.MethodPost, server.URL+"/api/v1/buildings", directory.CreateBuildingRequest{
		Address:   "Moscow, Lenina 1, office 3",
		Latitude:  55.7558,
		Longitude: 37.6173,
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %+v", resp.StatusCode, env.Error)
	}

	var created directory.Building
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("failed to decode building: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	resp, env = doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/v1/buildings?id=%d", server.URL, created.ID), nil, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}

	resp, env = doRequest(t, http.MethodGet, server.URL+"/api/v1/buildings?id=999", nil, testAPIKey)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unexpected error payload: %+v", env.Error)
	}

	resp, env = doRequest(t, http.MethodPost, server.URL+"/api/v1/buildings", directory.CreateBuildingRequest{
		Address:   "abc",
		Latitude:  55.7558,
		Longitude: 37.6173,
	}, testAPIKey)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("validation status = %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_FAILED" {
		t.Errorf("unexpected error payload: %+v", env.Error)
	}

	resp, _ = doRequest(t, http.MethodPatch, server.URL+"/api/v1/buildings", nil, testAPIKey)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("patch status = %d, want 405", resp.StatusCode)
	}
}

func TestOrganizationFlow(t *testing.T) {
	server := newTestServer(t)

	_, env := doRequest(t, http.MethodPost, server.URL+"/api/v1/buildings", directory.CreateBuildingRequest{
		Address:   "Moscow, Lenina 1, office 3",
		Latitude:  55.7558,
		Longitude: 37.6173,
	}, testAPIKey)
	var building directory.Building
	if err := json.Unmarshal(env.Data, &building); err != nil {
		t.Fatalf("failed to decode building: %v", err)
	}

	_, env = doRequest(t, http.MethodPost, server.URL+"/api/v1/activities", directory.CreateActivityRequest{
		Name: "Food",
	}, testAPIKey)
	var activity directory.Activity
	if err := json.Unmarshal(env.Data, &activity); err != nil {
		t.Fatalf("failed to decode activity: %v", err)
	}

	resp, env := doRequest(t, http.MethodPost, server.URL+"/api/v1/organizations", directory.CreateOrganizationRequest{
		Name:        "Horns and Hooves LLC",
		BuildingID:  building.ID,
		ActivityIDs: []int64{activity.ID},
	}, testAPIKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %+v", resp.StatusCode, env.Error)
	}

	var org directory.Organization
	if err := json.Unmarshal(env.Data, &org); err != nil {
		t.Fatalf("failed to decode organization: %v", err)
	}
	if org.Building == nil || len(org.Activities) != 1 {
		t.Errorf("relations not attached: %+v", org)
	}

	resp, env = doRequest(t, http.MethodGet,
		server.URL+"/api/v1/organizations/search/radius?lat=55.75&lon=37.62&radius_km=5", nil, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("radius status = %d, want 200: %+v", resp.StatusCode, env.Error)
	}
	var found []directory.Organization
	if err := json.Unmarshal(env.Data, &found); err != nil {
		t.Fatalf("failed to decode organizations: %v", err)
	}
	if len(found) != 1 || found[0].ID != org.ID {
		t.Errorf("radius search missed the organization: %v", found)
	}

	resp, env = doRequest(t, http.MethodGet,
		server.URL+"/api/v1/organizations/search/radius?lat=55.75&lon=37.62", nil, testAPIKey)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing params status = %d, want 400", resp.StatusCode)
	}

	resp, env = doRequest(t, http.MethodGet,
		server.URL+"/api/v1/organizations/search/activity-tree?name=Food", nil, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tree status = %d, want 200: %+v", resp.StatusCode, env.Error)
	}
	if err := json.Unmarshal(env.Data, &found); err != nil {
		t.Fatalf("failed to decode organizations: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("tree search missed the organization: %v", found)
	}

	resp, env = doRequest(t, http.MethodDelete,
		fmt.Sprintf("%s/api/v1/organizations?id=%d", server.URL, org.ID), nil, testAPIKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200: %+v", resp.StatusCode, env.Error)
	}

	resp, _ = doRequest(t, http.MethodGet,
		fmt.Sprintf("%s/api/v1/organizations?id=%d", server.URL, org.ID), nil, testAPIKey)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted org status = %d, want 404", resp.StatusCode)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	server := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/buildings",
		bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("X-API-Key", testAPIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
