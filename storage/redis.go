package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/martinemde/vanna/user"
)

// RedisStore keeps each conversation as a JSON string and indexes a user's
// conversations in a sorted set scored by update time.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

// WithTTL expires conversations ttl after their last write.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore connects to a Redis server.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(rdb, opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: "vanna:conversation:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) indexKey(userID string) string {
	return s.prefix + "user:" + userID
}

// save writes conv under WATCH so the ownership check and the write are
// atomic. mustExist selects update semantics.
func (s *RedisStore) save(ctx context.Context, conv *Conversation, mustExist bool) error {
	if conv.User == nil {
		return fmt.Errorf("conversation %s has no user", conv.ID)
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	key := s.key(conv.ID)
	write := func(tx *backend.Tx) error {
		existing, err := s.decode(tx.Get(ctx, key))
		switch {
		case errors.Is(err, ErrConversationNotFound):
			if mustExist {
				return fmt.Errorf("update %s: %w", conv.ID, ErrConversationNotFound)
			}
		case err != nil:
			return err
		case !existing.OwnedBy(conv.User):
			return fmt.Errorf("save %s: %w", conv.ID, ErrConversationOwned)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.ZAdd(ctx, s.indexKey(conv.User.ID), backend.Z{
				Score:  float64(conv.UpdatedAt.UnixMicro()),
				Member: conv.ID,
			})
			if s.ttl > 0 {
				pipe.Expire(ctx, s.indexKey(conv.User.ID), s.ttl)
			}
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, write, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConversationNotFound), errors.Is(err, ErrConversationOwned):
		return err
	default:
		return fmt.Errorf("failed to save to redis: %w", err)
	}
}

func (s *RedisStore) Create(ctx context.Context, conv *Conversation) error {
	return s.save(ctx, conv, false)
}

func (s *RedisStore) decode(cmd *backend.StringCmd) (*Conversation, error) {
	val, err := cmd.Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal([]byte(val), &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*Conversation, error) {
	return s.decode(s.client.Get(ctx, s.key(id)))
}

func (s *RedisStore) Get(ctx context.Context, id string, u *user.User) (*Conversation, error) {
	conv, err := s.load(ctx, id)
	if errors.Is(err, ErrConversationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !conv.OwnedBy(u) {
		return nil, nil
	}
	return conv, nil
}

func (s *RedisStore) Update(ctx context.Context, conv *Conversation) error {
	return s.save(ctx, conv, true)
}

func (s *RedisStore) Delete(ctx context.Context, id string, u *user.User) (bool, error) {
	conv, err := s.Get(ctx, id, u)
	if err != nil || conv == nil {
		return false, err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(u.ID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete from redis: %w", err)
	}
	return true, nil
}

// List reads the user's index newest first. Index entries whose
// conversation has expired, or now belongs to someone else, are pruned as
// they are found.
func (s *RedisStore) List(ctx context.Context, u *user.User, limit, offset int) ([]*Conversation, error) {
	if u == nil {
		return []*Conversation{}, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(u.ID), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(ids) == 0 {
		return []*Conversation{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	out := make([]*Conversation, 0, len(ids))
	var stale []any
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var conv Conversation
		if err := json.Unmarshal([]byte(raw), &conv); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conversation %s: %w", ids[i], err)
		}
		if !conv.OwnedBy(u) {
			stale = append(stale, ids[i])
			continue
		}
		out = append(out, &conv)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(u.ID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune stale index entries: %w", err)
		}
	}
	return out, nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
