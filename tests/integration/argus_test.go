//go:build integration

// Package integration provides end-to-end tests against a running Argus server.
//
// The server must be started over a store seeded by the seed tool:
//
//	go run ./cmd/seed campus --db-path ./argus.db --entities 50 --days 7
//	ARGUS_DB_PATH=./argus.db go run ./cmd/argus
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The seed data is random, so every scenario discovers its subjects through
// the API first and asserts on relationships rather than fixed values.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

func baseURL() string {
	if u := os.Getenv("ARGUS_TEST_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

type profile struct {
	EntityID   string `json:"entity_id"`
	Name       string `json:"name"`
	CardID     string `json:"card_id"`
	DeviceHash string `json:"device_hash"`
	FaceID     string `json:"face_id"`
	Email      string `json:"email"`
}

type candidate struct {
	EntityID      string   `json:"entity_id"`
	Confidence    float64  `json:"confidence"`
	MatchedFields []string `json:"matched_fields"`
}

type resolution struct {
	Status          string       `json:"status"`
	BestMatch       *candidate   `json:"best_match"`
	Alternatives    []*candidate `json:"alternatives"`
	TotalCandidates int          `json:"total_candidates"`
}

type exactResolution struct {
	Outcome    string   `json:"outcome"`
	EntityID   string   `json:"entity_id"`
	Confidence float64  `json:"confidence"`
	Matched    []string `json:"matched_entities"`
}

type alertReport struct {
	Alerts []struct {
		EntityID string `json:"entity_id"`
		Severity string `json:"severity"`
		Status   string `json:"status"`
	} `json:"alerts"`
	Summary struct {
		Total    int `json:"total_entities"`
		Active   int `json:"active_entities"`
		Warning  int `json:"warning_entities"`
		Critical int `json:"critical_entities"`
	} `json:"summary"`
}

// call issues a request and decodes the JSON body into out when non-nil.
func call(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL()+path, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}
	return resp.StatusCode
}

func seededProfiles(t *testing.T, n int) []profile {
	t.Helper()
	var resp struct {
		Profiles []profile `json:"profiles"`
	}
	if code := call(t, http.MethodGet, fmt.Sprintf("/profiles?limit=%d", n), nil, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200 listing profiles, got %d", code)
	}
	if len(resp.Profiles) < 2 {
		t.Skip("store is not seeded; run the seed tool first")
	}
	return resp.Profiles
}

func TestFuzzyResolution_AllIdentifiers(t *testing.T) {
	p := seededProfiles(t, 10)[0]

	var res resolution
	code := call(t, http.MethodPost, "/resolve", map[string]string{
		"card_id":     p.CardID,
		"device_hash": p.DeviceHash,
		"email":       p.Email,
		"name":        p.Name,
	}, &res)

	if code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if res.Status != "matched" || res.BestMatch == nil || res.BestMatch.EntityID != p.EntityID {
		t.Fatalf("Expected %s to resolve to itself, got %+v", p.EntityID, res)
	}
	if res.BestMatch.Confidence < 0.5 {
		t.Errorf("Expected high confidence, got %.2f", res.BestMatch.Confidence)
	}
	if len(res.Alternatives) > 4 {
		t.Errorf("Expected at most 4 alternatives, got %d", len(res.Alternatives))
	}
}

func TestExactResolution_Conflict(t *testing.T) {
	profiles := seededProfiles(t, 50)

	var a, b *profile
	for i := range profiles {
		if profiles[i].FaceID == "" {
			continue
		}
		if a == nil {
			a = &profiles[i]
			continue
		}
		b = &profiles[i]
		break
	}
	if a == nil || b == nil {
		t.Skip("need two seeded profiles with face ids")
	}

	var res exactResolution
	code := call(t, http.MethodGet, fmt.Sprintf("/resolve?card_id=%s&face_id=%s", a.CardID, b.FaceID), nil, &res)

	if code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d", code)
	}
	if res.Outcome != "conflict" || res.EntityID != "" || len(res.Matched) != 2 {
		t.Errorf("Expected a conflict without a winner, got %+v", res)
	}
}

func TestExactResolution_CardOnly(t *testing.T) {
	p := seededProfiles(t, 10)[1]

	var res exactResolution
	code := call(t, http.MethodGet, "/resolve?card_id="+p.CardID, nil, &res)
	if code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}
	if res.EntityID != p.EntityID || res.Confidence != 0.95 {
		t.Errorf("Expected %s at 0.95, got %+v", p.EntityID, res)
	}
}

func TestResolve_NoIdentifier_Error(t *testing.T) {
	if code := call(t, http.MethodPost, "/resolve", map[string]string{}, nil); code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", code)
	}
}

func TestTimeline_NewestFirst(t *testing.T) {
	p := seededProfiles(t, 10)[0]

	var resp struct {
		Timeline struct {
			Entries []struct {
				Timestamp time.Time `json:"timestamp"`
			} `json:"entries"`
		} `json:"timeline"`
	}
	if code := call(t, http.MethodGet, "/entities/"+p.EntityID+"/timeline?days=7", nil, &resp); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}

	entries := resp.Timeline.Entries
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Fatalf("Entry %d is newer than entry %d", i, i-1)
		}
	}
}

func TestUnknownEntity_NotFound(t *testing.T) {
	for _, path := range []string{
		"/profiles/no-such-entity",
		"/entities/no-such-entity/timeline",
		"/entities/no-such-entity/anomalies",
	} {
		if code := call(t, http.MethodGet, path, nil, nil); code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, code)
		}
	}
}

func TestAlerts_SummaryAndWorkflow(t *testing.T) {
	var report alertReport
	if code := call(t, http.MethodGet, "/alerts?limit=500", nil, &report); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}

	s := report.Summary
	if s.Active+s.Warning+s.Critical != s.Total {
		t.Errorf("Summary tiers do not add up: %+v", s)
	}
	if len(report.Alerts) > s.Warning+s.Critical {
		t.Errorf("More alerts than flagged entities: %d > %d", len(report.Alerts), s.Warning+s.Critical)
	}
	for i := 1; i < len(report.Alerts); i++ {
		if report.Alerts[i-1].Severity == "warning" && report.Alerts[i].Severity == "critical" {
			t.Fatal("Critical alerts must sort before warnings")
		}
	}
	if len(report.Alerts) == 0 {
		t.Skip("no flagged entities to update")
	}

	target := report.Alerts[0].EntityID
	if code := call(t, http.MethodPut, "/alerts/"+target+"?status=investigating", nil, nil); code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", code)
	}

	var filtered alertReport
	call(t, http.MethodGet, "/alerts?status=investigating&limit=500", nil, &filtered)
	found := false
	for _, a := range filtered.Alerts {
		if a.EntityID == target {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected %s in investigating alerts", target)
	}

	// Restore for repeat runs
	call(t, http.MethodPut, "/alerts/"+target+"?status=open", nil, nil)
}
