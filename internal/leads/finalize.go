package leads

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
)

var leadNamespace = uuid.MustParse("6f1c2a8e-3b7d-4e0a-9c55-2d8e4b1f7a90")

// Capture describes the call a lead came from.
type Capture struct {
	CallID      string
	CallerPhone string
	Turns       int
	Now         time.Time
}

// Finalize turns collected slots into a LeadRecord. The phone must be exactly
// ten digits; every other field falls back to its sentinel.
func Finalize(values slots.Values, capture Capture) (*LeadRecord, error) {
	phone := values.Value(slots.Phone)
	if phone == "" {
		return nil, &ValidationError{Field: "phone", Reason: "missing"}
	}
	if !slots.ValidPhone(phone) {
		return nil, &ValidationError{Field: "phone", Reason: "must be exactly 10 digits"}
	}

	var defaulted []string
	pick := func(key slots.Key, fallback string) string {
		if v, ok := values.Get(key); ok {
			return v
		}
		defaulted = append(defaulted, string(key))
		return fallback
	}

	now := capture.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	lead := &LeadRecord{
		ID:            leadID(capture.CallID),
		CallID:        capture.CallID,
		ClientName:    pick(slots.Name, slots.NameDefault),
		PhoneNumber:   phone,
		Email:         pick(slots.Email, slots.EmailDefault),
		Zip:           pick(slots.Zip, slots.ZipUnknown),
		PartRequested: pick(slots.PartRequested, slots.Unknown),
		Make:          pick(slots.Make, slots.Unknown),
		Model:         pick(slots.Model, slots.Unknown),
		Year:          pick(slots.Year, slots.Unknown),
		Trim:          pick(slots.Trim, slots.Unknown),
		Status:        StatusQuoted,
		Source:        SourceVoice,
		NotesAddedBy:  NoteAuthor,
		CreatedAt:     now,
	}
	lead.Notes = buildNotes(values, capture, defaulted)
	return lead, nil
}

func buildNotes(values slots.Values, capture Capture, defaulted []string) string {
	parts := []string{"Voice AI Lead. Conversation captured."}
	if capture.CallID != "" {
		parts = append(parts, fmt.Sprintf("Call %s, %d turns.", capture.CallID, capture.Turns))
	}
	if capture.CallerPhone != "" && capture.CallerPhone != values.Value(slots.Phone) {
		parts = append(parts, fmt.Sprintf("Caller ID %s differs from the given number.", capture.CallerPhone))
	}
	if !values.Flag(slots.ZipConfirmed) && values.Filled(slots.Zip) && values.Value(slots.Zip) != slots.ZipUnknown {
		parts = append(parts, "ZIP not confirmed.")
	}
	if len(defaulted) > 0 {
		parts = append(parts, "Not provided: "+strings.Join(defaulted, ", ")+".")
	}
	return strings.Join(parts, " ")
}

// leadID is derived from the call so a retried save cannot create a second lead.
func leadID(callID string) string {
	if callID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(leadNamespace, []byte(callID)).String()
}
