package leads

import "time"

const (
	StatusQuoted = "Quoted"
	SourceVoice  = "voice_ai"
	NoteAuthor   = "AI Agent"
)

// LeadRecord is a finalized sales lead captured by the voice agent. It is
// immutable once created.
type LeadRecord struct {
	ID            string    `json:"id"`
	CallID        string    `json:"call_id,omitempty"`
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
	Notes         string    `json:"notes"`
	NotesAddedBy  string    `json:"notes_added_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// Vehicle renders make, model and year for summaries.
func (l *LeadRecord) Vehicle() string {
	return l.Year + " " + l.Make + " " + l.Model
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status string
	Since  time.Time
	Limit  int
	Offset int
}
