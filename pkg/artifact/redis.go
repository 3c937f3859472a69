package artifact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"fraudml/pkg/model"
)

// DefaultRedisPrefix namespaces artifact keys.
const DefaultRedisPrefix = "fraudml:artifact:"

// RedisStore keeps each artifact as a gob-encoded string value.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore stores artifacts under prefix+name. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Save(ctx context.Context, name string, a *model.Artifact) error {
	if err := checkName(name); err != nil {
		return err
	}
	payload, err := a.MarshalBinary()
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	// No expiry: artifacts live until the next training run replaces them.
	if err := s.client.Set(ctx, s.prefix+name, payload, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, name string) (*model.Artifact, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	payload, err := s.client.Get(ctx, s.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &NotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	var a model.Artifact
	if err := a.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return &a, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var (
		names  []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		for _, k := range keys {
			names = append(names, strings.TrimPrefix(k, s.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(names)
	return names, nil
}
