package leads

import (
	"context"

	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

// Publisher is notified after a lead is stored.
type Publisher interface {
	PublishLeadCreated(ctx context.Context, lead *LeadRecord) error
}

// PublishingRepository fans newly created leads out to publishers. A repeat
// save of an existing lead publishes nothing. Publisher failures are logged
// and never fail the create.
type PublishingRepository struct {
	Repository
	publishers []Publisher
	logger     *logging.Logger
}

func NewPublishingRepository(inner Repository, logger *logging.Logger, publishers ...Publisher) *PublishingRepository {
	if inner == nil {
		panic("leads: inner repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	active := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &PublishingRepository{Repository: inner, publishers: active, logger: logger}
}

func (r *PublishingRepository) Create(ctx context.Context, lead *LeadRecord) (*LeadRecord, error) {
	stored, _, err := r.Insert(ctx, lead)
	return stored, err
}

func (r *PublishingRepository) Insert(ctx context.Context, lead *LeadRecord) (*LeadRecord, bool, error) {
	stored, inserted, err := r.Repository.Insert(ctx, lead)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		r.logger.Debug("lead already stored, skipping publishers", "lead_id", stored.ID)
		return stored, false, nil
	}
	for _, p := range r.publishers {
		if err := p.PublishLeadCreated(ctx, stored); err != nil {
			r.logger.Warn("lead publisher failed", "error", err, "lead_id", stored.ID)
		}
	}
	return stored, true, nil
}
