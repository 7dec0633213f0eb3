// Package mockcrm is the development CRM backend: an in-memory
// lead/visit store with JSON snapshots, exposed over the same routes
// the real CRM would serve.
package mockcrm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voiceops/crmbot/internal/intent"
	"github.com/voiceops/crmbot/pkg/logging"
)

// Lead is a stored CRM lead.
type Lead struct {
	LeadID    string    `json:"lead_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	City      string    `json:"city"`
	Source    string    `json:"source,omitempty"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Visit is a stored visit for a lead.
type Visit struct {
	VisitID   string    `json:"visit_id"`
	LeadID    string    `json:"lead_id"`
	VisitTime string    `json:"visit_time"`
	Notes     string    `json:"notes,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps leads and visits in memory and snapshots them to disk
// after each mutation. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	leads  map[string]*Lead
	visits map[string]*Visit

	snapshotPath string
	logger       *logging.Logger
}

// NewStore creates a store. snapshotPath may be empty to disable
// snapshots.
func NewStore(snapshotPath string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		leads:        map[string]*Lead{},
		visits:       map[string]*Visit{},
		snapshotPath: snapshotPath,
		logger:       logger,
	}
}

// CreateLead stores a new lead with status NEW.
func (s *Store) CreateLead(name, phone, city, source string) *Lead {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead := &Lead{
		LeadID:    "lead-" + uuid.NewString()[:8],
		Name:      name,
		Phone:     phone,
		City:      city,
		Source:    source,
		Status:    "NEW",
		CreatedAt: time.Now().UTC(),
	}
	s.leads[lead.LeadID] = lead
	s.snapshotLocked()
	return lead
}

// ScheduleVisit stores a visit for an existing lead with status
// SCHEDULED. Returns an error when the lead does not exist.
func (s *Store) ScheduleVisit(leadID, visitTime, notes string) (*Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[leadID]; !ok {
		return nil, fmt.Errorf("lead %s not found", leadID)
	}
	visit := &Visit{
		VisitID:   "visit-" + uuid.NewString()[:8],
		LeadID:    leadID,
		VisitTime: visitTime,
		Notes:     notes,
		Status:    "SCHEDULED",
		CreatedAt: time.Now().UTC(),
	}
	s.visits[visit.VisitID] = visit
	s.snapshotLocked()
	return visit, nil
}

// UpdateLeadStatus transitions an existing lead to a valid status.
func (s *Store) UpdateLeadStatus(leadID, status, notes string) (*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[leadID]
	if !ok {
		return nil, fmt.Errorf("lead %s not found", leadID)
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("invalid status %s", status)
	}
	lead.Status = status
	if notes != "" {
		lead.Notes = notes
	}
	s.snapshotLocked()
	return lead, nil
}

// Leads returns all stored leads.
func (s *Store) Leads() []*Lead {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		out = append(out, lead)
	}
	return out
}

// Visits returns all stored visits.
func (s *Store) Visits() []*Visit {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Visit, 0, len(s.visits))
	for _, visit := range s.visits {
		out = append(out, visit)
	}
	return out
}

// Export returns the full store contents for the export endpoint.
func (s *Store) Export() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportLocked()
}

func (s *Store) exportLocked() map[string]any {
	leads := make([]*Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		leads = append(leads, lead)
	}
	visits := make([]*Visit, 0, len(s.visits))
	for _, visit := range s.visits {
		visits = append(visits, visit)
	}
	return map[string]any{
		"exported_at": time.Now().UTC(),
		"lead_count":  len(leads),
		"visit_count": len(visits),
		"leads":       leads,
		"visits":      visits,
	}
}

// Save writes a timestamped backup of the store contents alongside the
// regular snapshot and returns the path of the written file.
func (s *Store) Save() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := "data"
	if s.snapshotPath != "" {
		dir = filepath.Dir(s.snapshotPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "crm_backup_"+time.Now().Format("20060102_150405")+".json")
	data, err := json.MarshalIndent(s.exportLocked(), "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) snapshotLocked() {
	if s.snapshotPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o755); err != nil {
		s.logger.Warn("snapshot dir failed", "error", err)
		return
	}
	data, err := json.MarshalIndent(s.exportLocked(), "", "  ")
	if err != nil {
		s.logger.Warn("snapshot marshal failed", "error", err)
		return
	}
	if err := os.WriteFile(s.snapshotPath, data, 0o644); err != nil {
		s.logger.Warn("snapshot write failed", "error", err)
	}
}

func validStatus(status string) bool {
	for _, s := range intent.LeadStatuses {
		if s == status {
			return true
		}
	}
	return false
}
