package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/dmehra2102/medsupply-orders/internal/submission"
	"github.com/dmehra2102/medsupply-orders/pkg/config"
	"github.com/dmehra2102/medsupply-orders/pkg/logging"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
)

const catalogueFile = "catalogue.json"

// runtime is everything a command needs, built from flags and config.
type runtime struct {
	cfg     config.ClientConfig
	log     *slog.Logger
	client  *submission.Client
	queue   *submission.Queue
	reach   submission.Reachability
	monitor *submission.Monitor
	closers []func() error
}

// notify builds the queue's notifier from the command logger; nil means none.
func newRuntime(c *cli.Context, notify func(*slog.Logger) submission.Notifier) (*runtime, error) {
	cfg, err := config.LoadClient(c.String("config"))
	if err != nil {
		return nil, err
	}
	log := logging.NewWriter(os.Stderr, cfg.LogLevel)
	rt := &runtime{
		cfg:    cfg,
		log:    log,
		client: submission.NewClient(log, cfg.APIURL, cfg.SubmitTimeout),
	}

	storage, err := rt.storage()
	if err != nil {
		return nil, err
	}

	if c.Bool("offline") {
		rt.reach = submission.NewStaticReachability(false)
	} else {
		rt.monitor = submission.NewMonitor(rt.log, rt.client, cfg.ProbeInterval)
		rt.reach = rt.monitor
	}

	var notifier submission.Notifier
	if notify != nil {
		notifier = notify(log)
	}
	rt.queue = submission.NewQueue(log, rt.client, rt.reach, storage, notifier)
	if err := rt.queue.Load(c.Context); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) storage() (submission.Storage, error) {
	if rt.cfg.QueueStorage == config.QueueStorageRedis {
		rdb := redis.NewClient(&redis.Options{Addr: rt.cfg.RedisAddr})
		rt.closers = append(rt.closers, rdb.Close)
		return submission.NewRedisStorage(rdb, rt.cfg.QueueKey), nil
	}
	return submission.NewFileStorage(rt.cfg.QueueDir, rt.cfg.QueueKey)
}

func (rt *runtime) Close() {
	for _, fn := range rt.closers {
		_ = fn()
	}
}

// catalogue returns the live product list, falling back to the copy saved by the
// last successful fetch when the order service cannot be reached.
func (rt *runtime) catalogue(ctx context.Context) ([]orderapi.Product, bool, error) {
	path := filepath.Join(rt.cfg.QueueDir, catalogueFile)
	if rt.reach.Reachable(ctx) {
		products, err := rt.client.Products(ctx)
		if err == nil {
			if data, err := json.Marshal(products); err == nil {
				if err := os.MkdirAll(rt.cfg.QueueDir, 0o700); err == nil {
					_ = os.WriteFile(path, data, 0o600)
				}
			}
			return products, false, nil
		}
		rt.log.Warn("product fetch failed, using saved catalogue", "err", err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, true, errors.New("no saved catalogue; run `order-client products` while online first")
	}
	if err != nil {
		return nil, true, fmt.Errorf("read catalogue: %w", err)
	}
	var products []orderapi.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, true, fmt.Errorf("decode catalogue: %w", err)
	}
	return products, true, nil
}
