package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
)

const DefaultQueueKey = "medsupply:offline-orders"

// QueuedOrder is a submission held on the client until the order service
// acknowledges it. ID doubles as the idempotency key.
type QueuedOrder struct {
	ID        string                      `json:"id"`
	Payload   orderapi.CreateOrderRequest `json:"payload"`
	QueuedAt  time.Time                   `json:"queuedAt"`
	Attempts  int                         `json:"attempts"`
	LastError string                      `json:"lastError,omitempty"`
}

// Storage persists the whole queue as one JSON array under a single key.
type Storage interface {
	Load(ctx context.Context) ([]QueuedOrder, error)
	Save(ctx context.Context, orders []QueuedOrder) error
}

type MemoryStorage struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (m *MemoryStorage) Load(context.Context) ([]QueuedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeQueue(m.data)
}

func (m *MemoryStorage) Save(_ context.Context, orders []QueuedOrder) error {
	data, err := encodeQueue(orders)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.saves++
	return nil
}

// Saves counts successful writes.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FileStorage keeps the queue in <dir>/<key>.json and replaces it atomically
// on every save.
type FileStorage struct {
	path string
}

func NewFileStorage(dir, key string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("queue dir: %w", err)
	}
	name := strings.NewReplacer(":", "_", "/", "_", string(filepath.Separator), "_").Replace(key)
	return &FileStorage{path: filepath.Join(dir, name+".json")}, nil
}

func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) Load(context.Context) ([]QueuedOrder, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	return decodeQueue(data)
}

func (f *FileStorage) Save(_ context.Context, orders []QueuedOrder) error {
	data, err := encodeQueue(orders)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".queue-*.tmp")
	if err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write queue: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close queue: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace queue: %w", err)
	}
	return nil
}

// RedisStorage keeps the queue as one JSON string value, for clients that
// share a terminal host with a local Redis.
type RedisStorage struct {
	rdb *redis.Client
	key string
}

func NewRedisStorage(rdb *redis.Client, key string) *RedisStorage {
	return &RedisStorage{rdb: rdb, key: key}
}

func (r *RedisStorage) Load(ctx context.Context) ([]QueuedOrder, error) {
	data, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return decodeQueue(data)
}

func (r *RedisStorage) Save(ctx context.Context, orders []QueuedOrder) error {
	if len(orders) == 0 {
		return r.rdb.Del(ctx, r.key).Err()
	}
	data, err := encodeQueue(orders)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func encodeQueue(orders []QueuedOrder) ([]byte, error) {
	if orders == nil {
		orders = []QueuedOrder{}
	}
	data, err := json.Marshal(orders)
	if err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	return data, nil
}

func decodeQueue(data []byte) ([]QueuedOrder, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var orders []QueuedOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return orders, nil
}
