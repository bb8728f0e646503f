package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erain9/tradeshield/pkg/core"
)

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var defaultOptions = &RedisOptions{
	Addr:     "localhost:6379",
	Password: "",
	DB:       0,
}

// SetDefaultRedisOptions sets the default options for Redis connections
func SetDefaultRedisOptions(options *RedisOptions) {
	defaultOptions = options
}

// GetRedisClient creates a new Redis client using the default options
func GetRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     defaultOptions.Addr,
		Password: defaultOptions.Password,
		DB:       defaultOptions.DB,
	})
}

// RedisBackend implements the ShieldBackend interface with Redis storage.
// Order records and bucket vectors are whole-value JSON; id and reply
// counters are Redis INCR sequences, so allocation survives restarts.
type RedisBackend struct {
	client *redis.Client
	ctx    context.Context
	prefix string
	logger *zap.Logger
}

// NewRedisBackend creates a new instance of RedisBackend
func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) *RedisBackend {
	return &RedisBackend{
		client: client,
		ctx:    context.Background(),
		prefix: prefix,
		logger: logger,
	}
}

func (b *RedisBackend) orderKey(kind core.OrderKind, id uint64) string {
	return fmt.Sprintf("%s:order:%s:%d", b.prefix, kind, id)
}

func (b *RedisBackend) orderSeqKey(kind core.OrderKind) string {
	return fmt.Sprintf("%s:seq:order:%s", b.prefix, kind)
}

func (b *RedisBackend) bucketKey(kind core.OrderKind, key string) string {
	return fmt.Sprintf("%s:bucket:%s:%s", b.prefix, kind, key)
}

func (b *RedisBackend) bucketSetKey(kind core.OrderKind) string {
	return fmt.Sprintf("%s:buckets:%s", b.prefix, kind)
}

func (b *RedisBackend) ownerKey(kind core.OrderKind, owner string) string {
	return fmt.Sprintf("%s:owner:%s:%s", b.prefix, kind, owner)
}

func (b *RedisBackend) replySeqKey() string {
	return b.prefix + ":seq:reply"
}

func (b *RedisBackend) contKey(id uint64) string {
	return fmt.Sprintf("%s:cont:%d", b.prefix, id)
}

func (b *RedisBackend) contSetKey() string {
	return b.prefix + ":conts"
}

// NextOrderID allocates a fresh order id for the kind via INCR
func (b *RedisBackend) NextOrderID(kind core.OrderKind) uint64 {
	id, err := b.client.Incr(b.ctx, b.orderSeqKey(kind)).Result()
	if err != nil {
		b.logger.Error("failed to allocate order id",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return 0
	}
	return uint64(id)
}

// GetOrder retrieves an order from Redis by kind and id
func (b *RedisBackend) GetOrder(kind core.OrderKind, id uint64) *core.Order {
	data, err := b.client.Get(b.ctx, b.orderKey(kind, id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			b.logger.Error("failed to get order",
				zap.Uint64("orderID", id),
				zap.Error(err))
		}
		return nil
	}

	var order core.Order
	if err := json.Unmarshal(data, &order); err != nil {
		b.logger.Error("failed to unmarshal order",
			zap.Uint64("orderID", id),
			zap.Error(err))
		return nil
	}

	return &order
}

// StoreOrder stores a new order record in Redis
func (b *RedisBackend) StoreOrder(order *core.Order) error {
	key := b.orderKey(order.Kind(), order.ID())

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	// SETNX keeps ids unique even if an allocator is replayed
	stored, err := b.client.SetNX(b.ctx, key, data, 0).Result()
	if err != nil {
		return err
	}
	if !stored {
		return core.ErrOrderExists
	}

	return nil
}

// UpdateOrder updates an existing order record in Redis
func (b *RedisBackend) UpdateOrder(order *core.Order) error {
	key := b.orderKey(order.Kind(), order.ID())

	exists, err := b.client.Exists(b.ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return core.ErrOrderNotFound
	}

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	return b.client.Set(b.ctx, key, data, 0).Err()
}

// DeleteOrder deletes an order record
func (b *RedisBackend) DeleteOrder(kind core.OrderKind, id uint64) {
	if err := b.client.Del(b.ctx, b.orderKey(kind, id)).Err(); err != nil {
		b.logger.Error("failed to delete order",
			zap.Uint64("orderID", id),
			zap.Error(err))
	}
}

// GetBucket loads the sorted id vector for a bucket key
func (b *RedisBackend) GetBucket(kind core.OrderKind, key string) []uint64 {
	data, err := b.client.Get(b.ctx, b.bucketKey(kind, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			b.logger.Error("failed to get bucket",
				zap.String("bucket", key),
				zap.Error(err))
		}
		return nil
	}

	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		b.logger.Error("failed to unmarshal bucket",
			zap.String("bucket", key),
			zap.Error(err))
		return nil
	}

	return ids
}

// SaveBucket writes the whole id vector back; an empty vector removes
// the bucket and its membership in the key set.
func (b *RedisBackend) SaveBucket(kind core.OrderKind, key string, ids []uint64) {
	if len(ids) == 0 {
		pipe := b.client.TxPipeline()
		pipe.Del(b.ctx, b.bucketKey(kind, key))
		pipe.SRem(b.ctx, b.bucketSetKey(kind), key)
		if _, err := pipe.Exec(b.ctx); err != nil {
			b.logger.Error("failed to delete bucket",
				zap.String("bucket", key),
				zap.Error(err))
		}
		return
	}

	data, err := json.Marshal(ids)
	if err != nil {
		b.logger.Error("failed to marshal bucket",
			zap.String("bucket", key),
			zap.Error(err))
		return
	}

	pipe := b.client.TxPipeline()
	pipe.Set(b.ctx, b.bucketKey(kind, key), data, 0)
	pipe.SAdd(b.ctx, b.bucketSetKey(kind), key)
	if _, err := pipe.Exec(b.ctx); err != nil {
		b.logger.Error("failed to save bucket",
			zap.String("bucket", key),
			zap.Error(err))
	}
}

// BucketKeys returns all non-empty bucket keys for a kind, sorted so
// iteration order is stable across runs
func (b *RedisBackend) BucketKeys(kind core.OrderKind) []string {
	keys, err := b.client.SMembers(b.ctx, b.bucketSetKey(kind)).Result()
	if err != nil {
		b.logger.Error("failed to list buckets",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil
	}
	sort.Strings(keys)
	return keys
}

// OwnerOrders returns the owner's order ids in insertion order
func (b *RedisBackend) OwnerOrders(kind core.OrderKind, owner string) []uint64 {
	values, err := b.client.LRange(b.ctx, b.ownerKey(kind, owner), 0, -1).Result()
	if err != nil {
		b.logger.Error("failed to list owner orders",
			zap.String("owner", owner),
			zap.Error(err))
		return nil
	}

	ids := make([]uint64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			b.logger.Error("corrupt owner index entry",
				zap.String("owner", owner),
				zap.String("entry", value))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// AppendToOwner appends an order id to the owner's secondary index
func (b *RedisBackend) AppendToOwner(kind core.OrderKind, owner string, id uint64) {
	if err := b.client.RPush(b.ctx, b.ownerKey(kind, owner), strconv.FormatUint(id, 10)).Err(); err != nil {
		b.logger.Error("failed to append owner index",
			zap.String("owner", owner),
			zap.Uint64("orderID", id),
			zap.Error(err))
	}
}

// RemoveFromOwner removes an order id from the owner's secondary index
func (b *RedisBackend) RemoveFromOwner(kind core.OrderKind, owner string, id uint64) {
	if err := b.client.LRem(b.ctx, b.ownerKey(kind, owner), 1, strconv.FormatUint(id, 10)).Err(); err != nil {
		b.logger.Error("failed to remove owner index entry",
			zap.String("owner", owner),
			zap.Uint64("orderID", id),
			zap.Error(err))
	}
}

// NextReplyID allocates a fresh continuation id via INCR
func (b *RedisBackend) NextReplyID() uint64 {
	id, err := b.client.Incr(b.ctx, b.replySeqKey()).Result()
	if err != nil {
		b.logger.Error("failed to allocate reply id", zap.Error(err))
		return 0
	}
	return uint64(id)
}

// StoreContinuation stores reply metadata keyed by continuation id
func (b *RedisBackend) StoreContinuation(id uint64, cont *core.Continuation) error {
	data, err := json.Marshal(cont)
	if err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	pipe.Set(b.ctx, b.contKey(id), data, 0)
	pipe.SAdd(b.ctx, b.contSetKey(), strconv.FormatUint(id, 10))
	_, err = pipe.Exec(b.ctx)
	return err
}

// GetContinuation retrieves reply metadata by continuation id
func (b *RedisBackend) GetContinuation(id uint64) *core.Continuation {
	data, err := b.client.Get(b.ctx, b.contKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			b.logger.Error("failed to get continuation",
				zap.Uint64("replyID", id),
				zap.Error(err))
		}
		return nil
	}

	var cont core.Continuation
	if err := json.Unmarshal(data, &cont); err != nil {
		b.logger.Error("failed to unmarshal continuation",
			zap.Uint64("replyID", id),
			zap.Error(err))
		return nil
	}

	return &cont
}

// DeleteContinuation erases a consumed continuation
func (b *RedisBackend) DeleteContinuation(id uint64) {
	pipe := b.client.TxPipeline()
	pipe.Del(b.ctx, b.contKey(id))
	pipe.SRem(b.ctx, b.contSetKey(), strconv.FormatUint(id, 10))
	if _, err := pipe.Exec(b.ctx); err != nil {
		b.logger.Error("failed to delete continuation",
			zap.Uint64("replyID", id),
			zap.Error(err))
	}
}

// Continuations returns all live continuations
func (b *RedisBackend) Continuations() map[uint64]core.Continuation {
	members, err := b.client.SMembers(b.ctx, b.contSetKey()).Result()
	if err != nil {
		b.logger.Error("failed to list continuations", zap.Error(err))
		return nil
	}

	out := make(map[uint64]core.Continuation, len(members))
	for _, member := range members {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		if cont := b.GetContinuation(id); cont != nil {
			out[id] = *cont
		}
	}
	return out
}
