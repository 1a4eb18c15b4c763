package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// hostKeyPrefix namespaces registry entries in Redis.
	hostKeyPrefix = "whiteboard:host:"
	// hostIndexKey is the set of registered host names.
	hostIndexKey = "whiteboard:hosts"
)

// Redis is a registry backed by Redis, for deployments where joining clients
// resolve hosts registered from other machines. SETNX gives the same
// reject-duplicates policy as the in-memory registry, atomically.
type Redis struct {
	client      *redis.Client
	defaultPort int
	logger      *zap.Logger
}

// NewRedis creates a Redis-backed registry.
func NewRedis(client *redis.Client, defaultPort int, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, defaultPort: defaultPort, logger: logger}
}

// Register claims a username, rejecting duplicates.
func (r *Redis) Register(ctx context.Context, username, address string, port int) (int, error) {
	if port == 0 {
		port = r.defaultPort
	}
	body, err := json.Marshal(Registration{Username: username, Address: address, Port: port})
	if err != nil {
		return 0, fmt.Errorf("marshal registration: %w", err)
	}
	ok, err := r.client.SetNX(ctx, hostKeyPrefix+username, body, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("register host: %w", err)
	}
	if !ok {
		return 0, ErrHostTaken
	}
	if err := r.client.SAdd(ctx, hostIndexKey, username).Err(); err != nil {
		r.logger.Warn("host index update failed", zap.String("username", username), zap.Error(err))
	}
	return port, nil
}

// Lookup resolves a host username to its session endpoint.
func (r *Redis) Lookup(ctx context.Context, username string) (Registration, error) {
	body, err := r.client.Get(ctx, hostKeyPrefix+username).Bytes()
	if errors.Is(err, redis.Nil) {
		return Registration{}, ErrHostNotFound
	}
	if err != nil {
		return Registration{}, fmt.Errorf("lookup host: %w", err)
	}
	var reg Registration
	if err := json.Unmarshal(body, &reg); err != nil {
		return Registration{}, fmt.Errorf("unmarshal registration: %w", err)
	}
	return reg, nil
}

// Unregister removes a host entry.
func (r *Redis) Unregister(ctx context.Context, username string) error {
	if err := r.client.Del(ctx, hostKeyPrefix+username).Err(); err != nil {
		return fmt.Errorf("unregister host: %w", err)
	}
	if err := r.client.SRem(ctx, hostIndexKey, username).Err(); err != nil {
		r.logger.Warn("host index update failed", zap.String("username", username), zap.Error(err))
	}
	return nil
}

// Hosts lists registered host names.
func (r *Redis) Hosts(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, hostIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	return names, nil
}
