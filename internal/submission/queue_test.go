package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/medsupply-orders/internal/api"
	catalogapp "github.com/dmehra2102/medsupply-orders/internal/catalog/application"
	catalog "github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	cataloghttp "github.com/dmehra2102/medsupply-orders/internal/catalog/infrastructure/http"
	"github.com/dmehra2102/medsupply-orders/internal/memstore"
	orderapp "github.com/dmehra2102/medsupply-orders/internal/order/application"
	orderhttp "github.com/dmehra2102/medsupply-orders/internal/order/infrastructure/http"
	"github.com/dmehra2102/medsupply-orders/pkg/logging"
	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
)

// orderServer runs the real order API on an in-memory store. Setting failWith
// makes every request answer with that status instead.
type orderServer struct {
	*httptest.Server
	store    *memstore.Store
	failWith atomic.Int32
}

func newOrderServer(t *testing.T) *orderServer {
	t.Helper()
	log := logging.Discard()
	store := memstore.New()
	_, err := store.CreateProduct(context.Background(), catalog.Product{
		Name:          "Opsite (Piece)",
		Price:         decimal.NewFromInt(6000),
		Unit:          "pcs",
		StockQuantity: 40,
	})
	require.NoError(t, err)

	router := api.NewRouter(log,
		orderhttp.NewHandler(log, orderapp.NewService(log, store, nil)),
		cataloghttp.NewHandler(log, catalogapp.NewService(log, store)),
		nil,
	)
	s := &orderServer{store: store}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := s.failWith.Load(); code != 0 {
			http.Error(w, `{"error":"service temporarily unavailable"}`, int(code))
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *orderServer) orders() int {
	_, orders, _ := s.store.Counts()
	return orders
}

func validRequest() orderapi.CreateOrderRequest {
	return orderapi.CreateOrderRequest{
		CustomerData: orderapi.CustomerData{
			Name:            "St. Luke Clinic",
			Email:           "stores@stluke.ng",
			Phone:           "08030000000",
			DeliveryAddress: "12 Ogui Road, Enugu",
		},
		OrderData: orderapi.OrderData{
			DeliveryDate:            "2026-11-02",
			PreferredDeliveryMethod: "delivery_enugu",
			RequestStatus:           "urgent",
		},
		Items: []orderapi.ItemData{{ProductName: "Opsite (Piece)", Quantity: 2}},
	}
}

func newTestQueue(sub Submitter, reach Reachability, storage Storage, n Notifier) *Queue {
	q := NewQueue(logging.Discard(), sub, reach, storage, n)
	var seq atomic.Int64
	q.newID = func() string { return fmt.Sprintf("order-%d", seq.Add(1)) }
	q.now = func() time.Time { return time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC) }
	return q
}

func TestOfflineOrderSurvivesRestartAndSyncsOnce(t *testing.T) {
	srv := newOrderServer(t)
	client := NewClient(logging.Discard(), srv.URL, time.Second)
	reach := NewStaticReachability(false)
	storage, err := NewFileStorage(t.TempDir(), DefaultQueueKey)
	require.NoError(t, err)
	ctx := context.Background()

	q := newTestQueue(client, reach, storage, nil)
	receipt, err := q.Submit(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, receipt.Outcome)
	assert.True(t, receipt.Offline)
	assert.Equal(t, StateQueued, q.State())

	persisted, err := storage.Load(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, receipt.ID, persisted[0].ID)
	assert.Equal(t, receipt.ID, persisted[0].Payload.IdempotencyKey)
	assert.Zero(t, srv.orders())

	restarted := newTestQueue(client, reach, storage, nil)
	require.NoError(t, restarted.Load(ctx))
	assert.Equal(t, StateQueued, restarted.State())

	reach.Set(true)
	report, err := restarted.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Attempted: 1, Submitted: 1}, report)
	assert.Equal(t, 1, srv.orders())
	assert.Empty(t, restarted.Pending())
	assert.Equal(t, StateIdle, restarted.State())

	persisted, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestSubmitQueuesServerErrors(t *testing.T) {
	srv := newOrderServer(t)
	srv.failWith.Store(http.StatusInternalServerError)
	storage := NewMemoryStorage()
	q := newTestQueue(NewClient(logging.Discard(), srv.URL, time.Second), NewStaticReachability(true), storage, nil)

	receipt, err := q.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, receipt.Outcome)
	assert.False(t, receipt.Offline)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "500")
	assert.Equal(t, 1, storage.Saves())

	srv.failWith.Store(0)
	report, err := q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, srv.orders())
}

func TestSubmitSurfacesRejections(t *testing.T) {
	srv := newOrderServer(t)
	storage := NewMemoryStorage()
	q := newTestQueue(NewClient(logging.Discard(), srv.URL, time.Second), NewStaticReachability(true), storage, nil)

	t.Run("invalid payload", func(t *testing.T) {
		req := validRequest()
		req.CustomerData.Name = ""
		receipt, err := q.Submit(context.Background(), req)
		assert.Equal(t, OutcomeRejected, receipt.Outcome)
		var rej *RejectedError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, http.StatusBadRequest, rej.StatusCode)
	})

	t.Run("unknown product", func(t *testing.T) {
		req := validRequest()
		req.Items = []orderapi.ItemData{{ProductName: "Tegaderm", Quantity: 1}}
		_, err := q.Submit(context.Background(), req)
		var rej *RejectedError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, http.StatusUnprocessableEntity, rej.StatusCode)
		assert.Contains(t, rej.Message, "Tegaderm")
	})

	assert.Empty(t, q.Pending())
	assert.Zero(t, storage.Saves())
	assert.Zero(t, srv.orders())
}

type scriptedSubmitter struct {
	mu      sync.Mutex
	calls   []string
	results map[string]Result
	entered chan string
	release chan struct{}
}

func (s *scriptedSubmitter) Submit(ctx context.Context, key string, _ orderapi.CreateOrderRequest) Result {
	s.mu.Lock()
	s.calls = append(s.calls, key)
	res, ok := s.results[key]
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- key
	}
	if s.release != nil {
		<-s.release
	}
	if !ok {
		return Result{Outcome: OutcomeSubmitted, StatusCode: http.StatusCreated, Order: &orderapi.Order{ID: 1}}
	}
	return res
}

func (s *scriptedSubmitter) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recordingNotifier struct {
	mu          sync.Mutex
	transitions []string
	submitted   []string
	dropped     []string
}

func (n *recordingNotifier) StateChanged(from, to State) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions = append(n.transitions, string(from)+">"+string(to))
}

func (n *recordingNotifier) Submitted(id string, _ *orderapi.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, id)
}

func (n *recordingNotifier) Dropped(q QueuedOrder, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropped = append(n.dropped, q.ID)
}

func queueOffline(t *testing.T, q *Queue, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for range n {
		r, err := q.Submit(context.Background(), validRequest())
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	return ids
}

func pendingIDs(q *Queue) []string {
	var ids []string
	for _, p := range q.Pending() {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestSyncKeepsRetryableOrdersInOrder(t *testing.T) {
	sub := &scriptedSubmitter{results: map[string]Result{
		"order-2": {Outcome: OutcomeRetryable, StatusCode: http.StatusServiceUnavailable, Err: errors.New("server responded 503")},
		"order-3": {Outcome: OutcomeRejected, StatusCode: http.StatusUnprocessableEntity, Err: &RejectedError{StatusCode: 422}},
		"order-5": {Outcome: OutcomeRetryable, StatusCode: http.StatusInternalServerError, Err: errors.New("server responded 500")},
	}}
	notifier := &recordingNotifier{}
	reach := NewStaticReachability(false)
	q := newTestQueue(sub, reach, NewMemoryStorage(), notifier)
	queueOffline(t, q, 5)

	reach.Set(true)
	report, err := q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Attempted: 5, Submitted: 2, Retained: 2, Dropped: 1}, report)
	assert.Equal(t, []string{"order-1", "order-2", "order-3", "order-4", "order-5"}, sub.Calls())
	assert.Equal(t, []string{"order-2", "order-5"}, pendingIDs(q))
	for _, p := range q.Pending() {
		assert.Equal(t, 1, p.Attempts)
		assert.NotEmpty(t, p.LastError)
	}
	assert.Equal(t, []string{"order-1", "order-4"}, notifier.submitted)
	assert.Equal(t, []string{"order-3"}, notifier.dropped)
	assert.Equal(t, StateQueued, q.State())
}

func TestSyncStopsAtTransportFailure(t *testing.T) {
	sub := &scriptedSubmitter{results: map[string]Result{
		"order-2": {Outcome: OutcomeRetryable, Err: errors.New("connection refused")},
	}}
	reach := NewStaticReachability(false)
	q := newTestQueue(sub, reach, NewMemoryStorage(), nil)
	queueOffline(t, q, 3)

	reach.Set(true)
	report, err := q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Attempted: 2, Submitted: 1, Retained: 2}, report)
	assert.Equal(t, []string{"order-1", "order-2"}, sub.Calls())

	pending := q.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "order-2", pending[0].ID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "order-3", pending[1].ID)
	assert.Zero(t, pending[1].Attempts)
}

func TestSyncIsSingleFlightAndKeepsNewOrdersLast(t *testing.T) {
	sub := &scriptedSubmitter{
		results: map[string]Result{
			"order-1": {Outcome: OutcomeRetryable, StatusCode: http.StatusBadGateway, Err: errors.New("server responded 502")},
		},
		entered: make(chan string, 1),
		release: make(chan struct{}),
	}
	reach := NewStaticReachability(false)
	q := newTestQueue(sub, reach, NewMemoryStorage(), nil)
	queueOffline(t, q, 1)

	done := make(chan SyncReport)
	go func() {
		report, _ := q.Sync(context.Background())
		done <- report
	}()
	assert.Equal(t, "order-1", <-sub.entered)
	assert.Equal(t, StateSyncing, q.State())

	_, err := q.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)

	queueOffline(t, q, 1)
	close(sub.release)

	report := <-done
	assert.Equal(t, 2, report.Retained)
	assert.Equal(t, []string{"order-1", "order-2"}, pendingIDs(q))
	assert.Equal(t, []string{"order-1"}, sub.Calls())
}

func TestSyncEmptyQueue(t *testing.T) {
	sub := &scriptedSubmitter{}
	storage := NewMemoryStorage()
	q := newTestQueue(sub, NewStaticReachability(true), storage, nil)

	report, err := q.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{}, report)
	assert.Empty(t, sub.Calls())
	assert.Zero(t, storage.Saves())
}

type brokenStorage struct{ MemoryStorage }

func (*brokenStorage) Save(context.Context, []QueuedOrder) error {
	return errors.New("disk full")
}

func TestEnqueueFailureIsReported(t *testing.T) {
	q := newTestQueue(&scriptedSubmitter{}, NewStaticReachability(false), &brokenStorage{}, nil)

	receipt, err := q.Submit(context.Background(), validRequest())
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, receipt.ID)
	assert.Empty(t, q.Pending())
	assert.Equal(t, StateIdle, q.State())
}

func TestQueueStateTransitions(t *testing.T) {
	notifier := &recordingNotifier{}
	reach := NewStaticReachability(true)
	q := newTestQueue(&scriptedSubmitter{}, reach, NewMemoryStorage(), notifier)

	_, err := q.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	reach.Set(false)
	queueOffline(t, q, 1)

	reach.Set(true)
	_, err = q.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"idle>submitting",
		"submitting>idle",
		"idle>queued",
		"queued>syncing",
		"syncing>idle",
	}, notifier.transitions)
}
