package mockcrm

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voiceops/crmbot/pkg/logging"
)

// Handler serves the mock CRM HTTP API.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates a new mock CRM handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes mounts the CRM endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/crm/leads", h.CreateLead)
	r.Post("/crm/visits", h.ScheduleVisit)
	r.Post("/crm/leads/{leadID}/status", h.UpdateLeadStatus)
	r.Get("/crm/leads/all", h.ListLeads)
	r.Get("/crm/visits/all", h.ListVisits)
	r.Get("/crm/data/export", h.ExportData)
	r.Post("/crm/data/save", h.SaveData)
}

type createLeadRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	City   string `json:"city"`
	Source string `json:"source,omitempty"`
}

// CreateLead handles POST /crm/leads requests.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.City) == "" {
		writeError(w, http.StatusBadRequest, "name, phone and city are required")
		return
	}

	lead := h.store.CreateLead(req.Name, req.Phone, req.City, req.Source)
	h.logger.Info("lead created", "lead_id", lead.LeadID, "name", lead.Name)

	writeJSON(w, http.StatusCreated, map[string]string{
		"lead_id": lead.LeadID,
		"status":  lead.Status,
	})
}

type scheduleVisitRequest struct {
	LeadID    string `json:"lead_id"`
	VisitTime string `json:"visit_time"`
	Notes     string `json:"notes,omitempty"`
}

// ScheduleVisit handles POST /crm/visits requests.
func (h *Handler) ScheduleVisit(w http.ResponseWriter, r *http.Request) {
	var req scheduleVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.LeadID) == "" || strings.TrimSpace(req.VisitTime) == "" {
		writeError(w, http.StatusBadRequest, "lead_id and visit_time are required")
		return
	}

	visit, err := h.store.ScheduleVisit(req.LeadID, req.VisitTime, req.Notes)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Info("visit scheduled", "visit_id", visit.VisitID, "lead_id", visit.LeadID)

	writeJSON(w, http.StatusCreated, map[string]string{
		"visit_id": visit.VisitID,
		"status":   visit.Status,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// UpdateLeadStatus handles POST /crm/leads/{leadID}/status requests.
func (h *Handler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	lead, err := h.store.UpdateLeadStatus(leadID, req.Status, req.Notes)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Info("lead status updated", "lead_id", lead.LeadID, "status", lead.Status)

	writeJSON(w, http.StatusOK, map[string]string{
		"lead_id": lead.LeadID,
		"status":  lead.Status,
	})
}

// ListLeads handles GET /crm/leads/all requests.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads := h.store.Leads()
	writeJSON(w, http.StatusOK, map[string]any{
		"leads": leads,
		"count": len(leads),
	})
}

// ListVisits handles GET /crm/visits/all requests.
func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	visits := h.store.Visits()
	writeJSON(w, http.StatusOK, map[string]any{
		"visits": visits,
		"count":  len(visits),
	})
}

// ExportData handles GET /crm/data/export requests.
func (h *Handler) ExportData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Export())
}

// SaveData handles POST /crm/data/save requests.
func (h *Handler) SaveData(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.Save()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info("crm data saved", "file_path", path)

	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "data saved",
		"file_path": path,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
