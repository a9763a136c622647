package session

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/cart"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

var _ Store = (*RedisStore)(nil)

const (
	sessionKeyPrefix = "session:"
	seqField         = "__seq"
	defaultTTL       = 14 * 24 * time.Hour
)

// putLineScript upserts one cart line. A line keeps the sequence number it
// got on first insert so that listing order is stable.
var putLineScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
local seq = nil
if cur then
  seq = string.match(cur, '^(%d+):')
end
if not seq then
  seq = tostring(redis.call('HINCRBY', KEYS[1], '` + seqField + `', 1))
end
redis.call('HSET', KEYS[1], ARGV[1], seq .. ':' .. ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return seq
`)

// RedisStore keeps each session in Redis. The cart lives in its own hash
// (one field per product, value "<seq>:<quantity>") so that a mutation only
// rewrites the touched product's field.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.LoggerV2
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *logging.LoggerV2) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logging.NewLoggerV2("session-store")
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cartKey(sessionID string) string {
	return sessionKeyPrefix + sessionID + ":" + cart.SessionKey
}

func valuesKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

type storedLine struct {
	cart.Line
	seq int64
}

// CartLines returns the session's lines in insertion order. Entries that do
// not parse are deleted and skipped.
func (s *RedisStore) CartLines(ctx context.Context, sessionID string) ([]cart.Line, error) {
	key := cartKey(sessionID)

	raw, err := s.client.HGetAll(ctx, key).Result()
	if wrongType(err) {
		return nil, s.resetCart(ctx, sessionID)
	}
	if err != nil && err != redis.Nil {
		s.logger.Error("Failed to load cart", logging.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, errors.Unavailable("load cart", err)
	}

	lines := make([]storedLine, 0, len(raw))
	var corrupt []string
	for field, value := range raw {
		if field == seqField {
			continue
		}
		line, ok := parseStoredLine(field, value)
		if !ok {
			corrupt = append(corrupt, field)
			continue
		}
		lines = append(lines, line)
	}

	if len(corrupt) > 0 {
		s.logger.Warn("Dropping malformed cart entries", logging.Fields{
			"session_id": sessionID,
			"fields":     corrupt,
		})
		if err := s.client.HDel(ctx, key, corrupt...).Err(); err != nil {
			s.logger.Warn("Failed to drop malformed cart entries", logging.Fields{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		if lines[i].seq != lines[j].seq {
			return lines[i].seq < lines[j].seq
		}
		return lines[i].ProductID < lines[j].ProductID
	})

	out := make([]cart.Line, len(lines))
	for i, l := range lines {
		out[i] = l.Line
	}
	return out, nil
}

func parseStoredLine(field, value string) (storedLine, bool) {
	seqStr, qtyStr, found := strings.Cut(value, ":")
	if !found || field == "" {
		return storedLine{}, false
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return storedLine{}, false
	}
	qty, err := strconv.Atoi(qtyStr)
	if err != nil || qty <= 0 {
		return storedLine{}, false
	}
	return storedLine{Line: cart.Line{ProductID: field, Quantity: qty}, seq: seq}, true
}

func (s *RedisStore) PutCartLine(ctx context.Context, sessionID, productID string, quantity int) error {
	keys := []string{cartKey(sessionID)}
	args := []interface{}{productID, quantity, int64(s.ttl / time.Second)}

	err := putLineScript.Run(ctx, s.client, keys, args...).Err()
	if wrongType(err) {
		if err := s.resetCart(ctx, sessionID); err != nil {
			return err
		}
		err = putLineScript.Run(ctx, s.client, keys, args...).Err()
	}
	if err != nil {
		s.logger.Error("Failed to write cart line", logging.Fields{
			"session_id": sessionID,
			"product_id": productID,
			"error":      err.Error(),
		})
		return errors.Unavailable("write cart line", err)
	}
	return nil
}

func (s *RedisStore) DeleteCartLines(ctx context.Context, sessionID string, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	err := s.client.HDel(ctx, cartKey(sessionID), productIDs...).Err()
	if wrongType(err) {
		return s.resetCart(ctx, sessionID)
	}
	if err != nil {
		return errors.Unavailable("delete cart lines", err)
	}
	return nil
}

// resetCart drops a cart key that does not hold a hash, leaving an empty cart.
func (s *RedisStore) resetCart(ctx context.Context, sessionID string) error {
	s.logger.Warn("Resetting corrupted cart", logging.Fields{"session_id": sessionID})
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return errors.Unavailable("reset cart", err)
	}
	return nil
}

// wrongType reports a command run against a key of another type. Script
// errors carry the message after a prefix.
func wrongType(err error) bool {
	return err != nil && strings.Contains(err.Error(), "WRONGTYPE")
}

func (s *RedisStore) ClearCart(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return errors.Unavailable("clear cart", err)
	}
	return nil
}

func (s *RedisStore) Value(ctx context.Context, sessionID, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, valuesKey(sessionID), key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Unavailable("read session value", err)
	}
	return v, true, nil
}

func (s *RedisStore) SetValue(ctx context.Context, sessionID, key, value string) error {
	k := valuesKey(sessionID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, k, key, value)
	pipe.Expire(ctx, k, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Unavailable("write session value", err)
	}
	return nil
}

func (s *RedisStore) DeleteValue(ctx context.Context, sessionID, key string) error {
	if err := s.client.HDel(ctx, valuesKey(sessionID), key).Err(); err != nil {
		return errors.Unavailable("delete session value", err)
	}
	return nil
}

func (s *RedisStore) Destroy(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, cartKey(sessionID), valuesKey(sessionID)).Err(); err != nil {
		return errors.Unavailable("destroy session", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Unavailable("ping redis", err)
	}
	return nil
}
