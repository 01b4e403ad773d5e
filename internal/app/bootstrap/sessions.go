package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/autoparts-voice-agent/internal/config"
	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
	"github.com/wolfman30/autoparts-voice-agent/internal/session"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

// BuildSessionStore selects the conversation store named by SESSION_STORE.
// Redis falls back to memory when the client is unavailable so a single
// instance keeps answering calls.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, awsCfg aws.Config, logger *logging.Logger) (dialogue.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.SessionStore {
	case "redis":
		if redisClient == nil {
			logger.Warn("redis session store requested but redis unavailable; using memory")
			return session.NewMemoryStore(cfg.SessionTTL), nil
		}
		logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
		return session.NewRedisStore(redisClient, cfg.SessionTTL), nil
	case "dynamodb", "dynamo":
		logger.Info("using dynamodb session store", "table", cfg.SessionTable, "ttl", cfg.SessionTTL.String())
		return session.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.SessionTable, cfg.SessionTTL), nil
	case "memory", "":
		logger.Info("using in-memory session store", "ttl", cfg.SessionTTL.String())
		return session.NewMemoryStore(cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session store %q", cfg.SessionStore)
	}
}
