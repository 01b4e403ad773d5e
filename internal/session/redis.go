package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const redisKeyPrefix = "autoparts:call:"

// RedisStore keeps each session in a hash holding the encoded state and its
// version. Put runs under WATCH so concurrent writers cannot both win.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client required")
	}
	return &RedisStore{client: client, ttl: ttl, tracer: otel.Tracer("autoparts.internal.session.redis")}
}

func redisKey(callID string) string {
	return redisKeyPrefix + callID
}

func (s *RedisStore) Get(ctx context.Context, callID string) (*dialogue.ConversationState, error) {
	ctx, span := s.tracer.Start(ctx, "session.redis.get", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("autoparts.call_id", callID))

	fields, err := s.client.HGetAll(ctx, redisKey(callID)).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	if len(fields) == 0 {
		return dialogue.NewConversationState(callID), nil
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session: redis version: %w", err)
	}
	return decodeState([]byte(fields["state"]), version)
}

func (s *RedisStore) Put(ctx context.Context, state *dialogue.ConversationState) error {
	ctx, span := s.tracer.Start(ctx, "session.redis.put", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	data, err := encodeState(state)
	if err != nil {
		return err
	}
	key := redisKey(state.CallID)
	next := state.Version + 1

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, "version").Result()
		var stored int64
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if stored, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return err
			}
		}
		if stored != state.Version {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "state", data, "version", next)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		state.Version = next
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, redis.TxFailedErr):
		return ErrConflict
	default:
		span.RecordError(err)
		return fmt.Errorf("session: redis put: %w", err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, callID string) error {
	if err := s.client.Del(ctx, redisKey(callID)).Err(); err != nil {
		return fmt.Errorf("session: redis delete: %w", err)
	}
	return nil
}
