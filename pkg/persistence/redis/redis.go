package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clemsos/safe-docs/pkg/persistence"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefixBlob        = "multisig:blob:"
	keyPrefixBlobIndex   = "multisig:blobs:"
	keySchemaVersion     = "multisig:metadata:schema_version"
	currentSchemaVersion = "v1"

	connectTimeout = 5 * time.Second
)

// RedisPersistence shares published blobs between processes. Each account has an
// index set of digests since Redis has no native prefix iteration.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

type RedisConfig struct {
	// Address is host:port
	Address  string
	Password string
	DB       int
	// KeyPrefix is prepended to every key for multi-tenant setups
	KeyPrefix string
}

func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis blob persistence initialized",
		"address", cfg.Address,
		"db", cfg.DB,
		"key_prefix", cfg.KeyPrefix,
	)
	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) blobKey(account common.Address, digest types.Digest) string {
	return r.prefixKey(keyPrefixBlob + persistence.BlobKey(account, digest))
}

func (r *RedisPersistence) indexKey(account common.Address) string {
	return r.prefixKey(keyPrefixBlobIndex + persistence.AccountKey(account))
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

func (r *RedisPersistence) SaveBlob(record *persistence.BlobRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalBlobRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal BlobRecord: %w", err)
	}

	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.blobKey(record.Account, record.Digest), data, 0)
	pipe.SAdd(ctx, r.indexKey(record.Account), record.Digest.Hex())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save BlobRecord: %w", err)
	}
	return nil
}

func (r *RedisPersistence) LoadBlob(account common.Address, digest types.Digest) (*persistence.BlobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := r.client.Get(context.Background(), r.blobKey(account, digest)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load BlobRecord: %w", err)
	}

	record, err := persistence.UnmarshalBlobRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal BlobRecord: %w", err)
	}
	return record, nil
}

func (r *RedisPersistence) ListBlobs(account common.Address) ([]*persistence.BlobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	indexKey := r.indexKey(account)

	digests, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list blob digests: %w", err)
	}

	records := make([]*persistence.BlobRecord, 0, len(digests))
	if len(digests) == 0 {
		return records, nil
	}

	keys := make([]string, len(digests))
	for i, digest := range digests {
		keys[i] = r.blobKey(account, common.HexToHash(digest))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch BlobRecords: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// indexed but gone: repair the index
			r.client.SRem(ctx, indexKey, digests[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for BlobRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalBlobRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal BlobRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}
		records = append(records, record)
	}

	persistence.SortBlobRecords(records)
	return records, nil
}

func (r *RedisPersistence) DeleteBlob(account common.Address, digest types.Digest) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.blobKey(account, digest))
	pipe.SRem(ctx, r.indexKey(account), digest.Hex())
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis blob persistence closed")
	return nil
}

func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
