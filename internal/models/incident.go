package models

import "time"

// IncidentSeverity ranks how urgent a reported incident is.
type IncidentSeverity string

const (
	SeverityLow      IncidentSeverity = "low"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityHigh     IncidentSeverity = "high"
	SeverityCritical IncidentSeverity = "critical"
)

// Incident is a disaster or emergency report filed by a citizen or an agency.
type Incident struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	Severity    IncidentSeverity `json:"severity"`
	Location    string           `json:"location"`
	ReportedBy  string           `json:"reportedBy"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Lifecycle
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i Incident) EntityID() string { return i.ID }
func (i Incident) OwnerID() string  { return i.ReportedBy }
func (i Incident) State() Lifecycle { return i.Lifecycle }

func (i Incident) WithState(l Lifecycle) Incident {
	i.Lifecycle = l
	return i
}
