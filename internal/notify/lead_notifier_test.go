package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
)

type recordingSender struct {
	messages []EmailMessage
	failFor  string
}

func (r *recordingSender) Send(_ context.Context, msg EmailMessage) error {
	if msg.To == r.failFor {
		return errors.New("mailbox unavailable")
	}
	r.messages = append(r.messages, msg)
	return nil
}

func sampleLead() *leads.LeadRecord {
	return &leads.LeadRecord{
		ID:            "lead-1",
		ClientName:    "John Smith",
		PhoneNumber:   "9876543210",
		Email:         "john@example.com",
		Zip:           "110001",
		PartRequested: "brake pads",
		Make:          "Honda",
		Model:         "Civic",
		Year:          "2018",
		Trim:          "Unknown",
		Status:        leads.StatusQuoted,
	}
}

func TestLeadNotifierEmailsEveryRecipient(t *testing.T) {
	sender := &recordingSender{}
	notifier := NewLeadNotifier(sender, "sales@firstused.com, , parts@firstused.com", nil)

	if err := notifier.PublishLeadCreated(context.Background(), sampleLead()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.messages) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.messages))
	}
	msg := sender.messages[0]
	if msg.To != "sales@firstused.com" || sender.messages[1].To != "parts@firstused.com" {
		t.Errorf("unexpected recipients %q, %q", msg.To, sender.messages[1].To)
	}
	if !strings.Contains(msg.Subject, "John Smith") || !strings.Contains(msg.Subject, "brake pads") {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"9876543210", "2018 Honda Civic", "110001", "lead-1"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestLeadNotifierReportsFailures(t *testing.T) {
	sender := &recordingSender{failFor: "parts@firstused.com"}
	notifier := NewLeadNotifier(sender, "sales@firstused.com,parts@firstused.com", nil)

	err := notifier.PublishLeadCreated(context.Background(), sampleLead())
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if len(sender.messages) != 1 {
		t.Errorf("the healthy recipient should still be emailed")
	}
}

func TestLeadNotifierDisabled(t *testing.T) {
	var nilNotifier *LeadNotifier
	if err := nilNotifier.PublishLeadCreated(context.Background(), sampleLead()); err != nil {
		t.Fatalf("nil notifier should be a no-op: %v", err)
	}
	sender := &recordingSender{}
	if err := NewLeadNotifier(sender, "", nil).PublishLeadCreated(context.Background(), sampleLead()); err != nil {
		t.Fatalf("no recipients should be a no-op: %v", err)
	}
	if len(sender.messages) != 0 {
		t.Error("no email expected without recipients")
	}
}
