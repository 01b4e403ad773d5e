package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

// LeadNotifier emails every new voice lead to the sales inbox.
type LeadNotifier struct {
	email      EmailSender
	recipients []string
	logger     *logging.Logger
}

// NewLeadNotifier accepts a comma separated recipient list.
func NewLeadNotifier(email EmailSender, recipients string, logger *logging.Logger) *LeadNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	var to []string
	for _, r := range strings.Split(recipients, ",") {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	return &LeadNotifier{email: email, recipients: to, logger: logger}
}

// PublishLeadCreated implements leads.Publisher.
func (n *LeadNotifier) PublishLeadCreated(ctx context.Context, lead *leads.LeadRecord) error {
	if n == nil || n.email == nil || len(n.recipients) == 0 || lead == nil {
		return nil
	}

	msg := EmailMessage{
		Subject: fmt.Sprintf("New voice lead - %s (%s)", lead.ClientName, lead.PartRequested),
		Body:    leadBody(lead),
	}
	var errs []error
	for _, recipient := range n.recipients {
		msg.To = recipient
		if err := n.email.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d lead emails failed: %w", len(errs), len(n.recipients), errors.Join(errs...))
	}
	return nil
}

func leadBody(lead *leads.LeadRecord) string {
	return fmt.Sprintf(`A new lead came in over the phone.

Name: %s
Mobile: %s
Email: %s
ZIP: %s
Part: %s
Vehicle: %s
Trim: %s
Status: %s

Notes: %s
Lead ID: %s`,
		lead.ClientName, lead.PhoneNumber, lead.Email, lead.Zip, lead.PartRequested,
		lead.Vehicle(), lead.Trim, lead.Status, lead.Notes, lead.ID)
}

var _ leads.Publisher = (*LeadNotifier)(nil)
