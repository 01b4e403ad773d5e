package events

import (
	"time"

	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
)

// LeadCreatedV1 is emitted once per saved voice lead.
type LeadCreatedV1 struct {
	LeadID        string    `json:"lead_id"`
	CallID        string    `json:"call_id"`
	ClientName    string    `json:"client_name"`
	PhoneNumber   string    `json:"phone_number"`
	Email         string    `json:"email"`
	Zip           string    `json:"zip"`
	PartRequested string    `json:"part_requested"`
	Make          string    `json:"make"`
	Model         string    `json:"model"`
	Year          string    `json:"year"`
	Trim          string    `json:"trim"`
	Status        string    `json:"status"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
}

func (LeadCreatedV1) EventType() string {
	return "leads.lead.created.v1"
}

func (e LeadCreatedV1) LeadKey() string {
	return e.LeadID
}

// NewLeadCreated copies the published fields of lead.
func NewLeadCreated(lead *leads.LeadRecord) LeadCreatedV1 {
	return LeadCreatedV1{
		LeadID:        lead.ID,
		CallID:        lead.CallID,
		ClientName:    lead.ClientName,
		PhoneNumber:   lead.PhoneNumber,
		Email:         lead.Email,
		Zip:           lead.Zip,
		PartRequested: lead.PartRequested,
		Make:          lead.Make,
		Model:         lead.Model,
		Year:          lead.Year,
		Trim:          lead.Trim,
		Status:        lead.Status,
		Source:        lead.Source,
		CreatedAt:     lead.CreatedAt,
	}
}
