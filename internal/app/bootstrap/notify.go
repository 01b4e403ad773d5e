package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/autoparts-voice-agent/internal/config"
	"github.com/wolfman30/autoparts-voice-agent/internal/events"
	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
	"github.com/wolfman30/autoparts-voice-agent/internal/notify"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

// BuildEmailSender picks the sales notification transport. Missing
// credentials degrade to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			logger.Info("sales notifications via sendgrid")
			return sender
		}
		logger.Warn("sendgrid selected without api key; using stub email sender")
	case "ses":
		logger.Info("sales notifications via ses", "region", awsCfg.Region)
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	}
	return notify.NewStubEmailSender(logger)
}

// BuildLeadPublishers returns the fan-out targets for saved leads.
func BuildLeadPublishers(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) []leads.Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	var publishers []leads.Publisher
	if cfg.LeadEventsQueueURL != "" {
		publishers = append(publishers, events.NewSQSLeadPublisher(sqs.NewFromConfig(awsCfg), cfg.LeadEventsQueueURL))
		logger.Info("lead events publishing to sqs", "queue_url", cfg.LeadEventsQueueURL)
	}
	if cfg.SalesNotifyEmail != "" {
		publishers = append(publishers, notify.NewLeadNotifier(BuildEmailSender(cfg, awsCfg, logger), cfg.SalesNotifyEmail, logger))
	}
	return publishers
}
