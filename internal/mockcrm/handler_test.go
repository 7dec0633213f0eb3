package mockcrm

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
)

func testServer(t *testing.T, snapshotPath string) (*httptest.Server, *Store) {
	t.Helper()
	store := NewStore(snapshotPath, nil)
	r := chi.NewRouter()
	NewHandler(store, nil).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp, decoded
}

func TestCreateLead(t *testing.T) {
	srv, _ := testServer(t, "")

	resp, body := postJSON(t, srv.URL+"/crm/leads", map[string]string{
		"name":   "John Smith",
		"phone":  "9876543210",
		"city":   "Delhi",
		"source": "Instagram",
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["lead_id"] == "" || body["status"] != "NEW" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestCreateLeadMissingFields(t *testing.T) {
	srv, _ := testServer(t, "")

	resp, _ := postJSON(t, srv.URL+"/crm/leads", map[string]string{"name": "John Smith"})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestScheduleVisit(t *testing.T) {
	srv, store := testServer(t, "")
	lead := store.CreateLead("John Smith", "9876543210", "Delhi", "")

	resp, body := postJSON(t, srv.URL+"/crm/visits", map[string]string{
		"lead_id":    lead.LeadID,
		"visit_time": "next Friday 10 AM",
	})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if body["visit_id"] == "" || body["status"] != "SCHEDULED" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestScheduleVisitUnknownLead(t *testing.T) {
	srv, _ := testServer(t, "")

	resp, _ := postJSON(t, srv.URL+"/crm/visits", map[string]string{
		"lead_id":    "missing",
		"visit_time": "tomorrow 9 AM",
	})

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateLeadStatus(t *testing.T) {
	srv, store := testServer(t, "")
	lead := store.CreateLead("John Smith", "9876543210", "Delhi", "")

	resp, body := postJSON(t, srv.URL+"/crm/leads/"+lead.LeadID+"/status", map[string]string{
		"status": "WON",
		"notes":  "deal closed",
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["status"] != "WON" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestUpdateLeadStatusInvalidValue(t *testing.T) {
	srv, store := testServer(t, "")
	lead := store.CreateLead("John Smith", "9876543210", "Delhi", "")

	resp, _ := postJSON(t, srv.URL+"/crm/leads/"+lead.LeadID+"/status", map[string]string{
		"status": "MAYBE",
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateLeadStatusUnknownLead(t *testing.T) {
	srv, _ := testServer(t, "")

	resp, _ := postJSON(t, srv.URL+"/crm/leads/missing/status", map[string]string{"status": "WON"})

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListAndExportEndpoints(t *testing.T) {
	srv, store := testServer(t, "")
	lead := store.CreateLead("John Smith", "9876543210", "Delhi", "")
	if _, err := store.ScheduleVisit(lead.LeadID, "tomorrow 9 AM", ""); err != nil {
		t.Fatalf("ScheduleVisit: %v", err)
	}

	for path, countKey := range map[string]string{
		"/crm/leads/all":  "count",
		"/crm/visits/all": "count",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		resp.Body.Close()
		if body[countKey] != float64(1) {
			t.Errorf("%s: expected count 1, got %v", path, body[countKey])
		}
	}

	resp, err := http.Get(srv.URL + "/crm/data/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	var export map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if export["lead_count"] != float64(1) || export["visit_count"] != float64(1) {
		t.Errorf("unexpected export: %v", export)
	}
}

func TestSaveDataWritesBackupFile(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "data", "crm_data_latest.json")
	srv, store := testServer(t, snapshotPath)
	store.CreateLead("John Smith", "9876543210", "Delhi", "")

	resp, err := http.Post(srv.URL+"/crm/data/save", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data, err := os.ReadFile(body["file_path"])
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	var backup map[string]any
	if err := json.Unmarshal(data, &backup); err != nil {
		t.Fatalf("backup is not valid JSON: %v", err)
	}
	if backup["lead_count"] != float64(1) {
		t.Errorf("unexpected backup: %v", backup)
	}
}

func TestSnapshotWrittenAfterMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "crm_data_latest.json")
	store := NewStore(path, nil)

	store.CreateLead("John Smith", "9876543210", "Delhi", "")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if snapshot["lead_count"] != float64(1) {
		t.Errorf("unexpected snapshot: %v", snapshot)
	}
}
