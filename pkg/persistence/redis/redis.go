// Package redis provides Redis persistence for flow checkpoints and processed chunks.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

var _ persistence.Persistence = (*Persistence)(nil)

// DefaultPrefix namespaces every key the persistence writes.
const DefaultPrefix = "flowpipe"

// Persistence stores each checkpoint as a JSON string, indexes the checkpoint keys of a
// job in a set and keeps processed chunks in a sorted set scored by processing time.
type Persistence struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewPersistence connects to the redis:// URL and pings the server.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewPersistenceWithClient(client, logger, DefaultPrefix), nil
}

// NewPersistenceWithClient uses an existing client. Keys are written under prefix.
func NewPersistenceWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	return &Persistence{
		client: client,
		prefix: prefix,
		logger: logger.With("module", "redis_persistence"),
	}
}

func (p *Persistence) checkpointKey(key string) string {
	return p.prefix + ":checkpoint:" + key
}

func (p *Persistence) jobCheckpointsKey(jobKey string) string {
	return p.prefix + ":job:" + jobKey + ":checkpoints"
}

func (p *Persistence) jobChunksKey(jobKey string) string {
	return p.prefix + ":job:" + jobKey + ":chunks"
}

// Close closes the client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Checkpoint returns the checkpoint stored under key.
func (p *Persistence) Checkpoint(ctx context.Context, key string) (*models.Checkpoint, error) {
	if err := persistence.ValidateKey(key); err != nil {
		return nil, persistence.NewCheckpointError("Checkpoint", key, err)
	}

	data, err := p.client.Get(ctx, p.checkpointKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewCheckpointError("Checkpoint", key, persistence.ErrCheckpointNotFound)
		}

		return nil, fmt.Errorf("failed to get checkpoint %s: %w", key, err)
	}

	var checkpoint models.Checkpoint

	err = json.Unmarshal(data, &checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", key, err)
	}

	return &checkpoint, nil
}

// Checkpoints returns the checkpoints of a job and its chunks, ordered by key.
func (p *Persistence) Checkpoints(ctx context.Context, jobKey string) ([]*models.Checkpoint, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return nil, persistence.NewCheckpointError("Checkpoints", jobKey, err)
	}

	keys, err := p.client.SMembers(ctx, p.jobCheckpointsKey(jobKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints of %s: %w", jobKey, err)
	}

	checkpoints := make([]*models.Checkpoint, 0, len(keys))
	if len(keys) == 0 {
		return checkpoints, nil
	}

	slices.Sort(keys)

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = p.checkpointKey(key)
	}

	values, err := p.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoints of %s: %w", jobKey, err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var checkpoint models.Checkpoint

		err := json.Unmarshal([]byte(raw), &checkpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", keys[i], err)
		}

		checkpoints = append(checkpoints, &checkpoint)
	}

	return checkpoints, nil
}

// SaveCheckpoint writes the checkpoint and indexes it under its job.
func (p *Persistence) SaveCheckpoint(ctx context.Context, checkpoint *models.Checkpoint) error {
	if err := persistence.ValidateKey(checkpoint.Key); err != nil {
		return persistence.NewCheckpointError("SaveCheckpoint", checkpoint.Key, err)
	}

	jobKey := checkpoint.JobKey
	if jobKey == "" {
		jobKey = persistence.JobKeyOf(checkpoint.Key)
	}

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint %s: %w", checkpoint.Key, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.checkpointKey(checkpoint.Key), data, 0)
		pipe.SAdd(ctx, p.jobCheckpointsKey(jobKey), checkpoint.Key)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", checkpoint.Key, err)
	}

	return nil
}

// ChunkProcessed reports whether hash is recorded for the job.
func (p *Persistence) ChunkProcessed(ctx context.Context, jobKey, hash string) (bool, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return false, persistence.NewCheckpointError("ChunkProcessed", jobKey, err)
	}

	err := p.client.ZScore(ctx, p.jobChunksKey(jobKey), hash).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		return false, fmt.Errorf("failed to check chunk %s of %s: %w", hash, jobKey, err)
	}

	return true, nil
}

// SaveProcessedChunk records the chunk unless it is already present.
func (p *Persistence) SaveProcessedChunk(ctx context.Context, chunk *models.ProcessedChunk) error {
	if err := persistence.ValidateKey(chunk.JobKey); err != nil {
		return persistence.NewCheckpointError("SaveProcessedChunk", chunk.JobKey, err)
	}

	err := p.client.ZAddNX(ctx, p.jobChunksKey(chunk.JobKey), redis.Z{
		Score:  float64(chunk.ProcessedAt.UnixMicro()),
		Member: chunk.Hash,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to save chunk %s of %s: %w", chunk.Hash, chunk.JobKey, err)
	}

	return nil
}

// ProcessedChunks returns the chunks of a job ordered by processing time.
func (p *Persistence) ProcessedChunks(ctx context.Context, jobKey string) ([]*models.ProcessedChunk, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return nil, persistence.NewCheckpointError("ProcessedChunks", jobKey, err)
	}

	members, err := p.client.ZRangeWithScores(ctx, p.jobChunksKey(jobKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks of %s: %w", jobKey, err)
	}

	chunks := make([]*models.ProcessedChunk, 0, len(members))

	for _, member := range members {
		hash, _ := member.Member.(string)

		chunks = append(chunks, &models.ProcessedChunk{
			JobKey:      jobKey,
			Hash:        hash,
			ProcessedAt: time.UnixMicro(int64(member.Score)).UTC(),
		})
	}

	return chunks, nil
}

// Reset deletes the job's checkpoints, their index and its processed chunks.
func (p *Persistence) Reset(ctx context.Context, jobKey string) error {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return persistence.NewCheckpointError("Reset", jobKey, err)
	}

	keys, err := p.client.SMembers(ctx, p.jobCheckpointsKey(jobKey)).Result()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints of %s: %w", jobKey, err)
	}

	redisKeys := []string{p.jobCheckpointsKey(jobKey), p.jobChunksKey(jobKey)}
	for _, key := range keys {
		redisKeys = append(redisKeys, p.checkpointKey(key))
	}

	err = p.client.Del(ctx, redisKeys...).Err()
	if err != nil {
		return fmt.Errorf("failed to reset %s: %w", jobKey, err)
	}

	p.logger.InfoContext(ctx, "Job reset", "job_key", jobKey, "checkpoints", len(keys))

	return nil
}
