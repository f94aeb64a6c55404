package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/medsupply-orders/pkg/orderapi"
)

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateQueued     State = "queued"
	StateSyncing    State = "syncing"
)

type Submitter interface {
	Submit(ctx context.Context, key string, req orderapi.CreateOrderRequest) Result
}

type Reachability interface {
	Reachable(ctx context.Context) bool
}

// Notifier receives queue events. Calls are made without the queue lock held.
type Notifier interface {
	StateChanged(from, to State)
	Submitted(id string, order *orderapi.Order)
	Dropped(q QueuedOrder, err error)
}

// Receipt is what the caller of Submit gets back. OutcomeQueued is a success:
// the order will be delivered later.
type Receipt struct {
	ID       string
	Outcome  Outcome
	Offline  bool
	Order    *orderapi.Order
	Replayed bool
}

type SyncReport struct {
	Attempted int
	Submitted int
	Retained  int
	Dropped   int
}

// Queue is the offline submission state machine. Its state is derived from the
// queued orders and the work in flight, never stored as loose flags.
type Queue struct {
	log       *slog.Logger
	submitter Submitter
	reach     Reachability
	storage   Storage
	notifier  Notifier
	now       func() time.Time
	newID     func() string

	mu       sync.Mutex
	items    []QueuedOrder
	inflight int
	syncing  bool
	state    State
}

func NewQueue(log *slog.Logger, submitter Submitter, reach Reachability, storage Storage, notifier Notifier) *Queue {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Queue{
		log:       log,
		submitter: submitter,
		reach:     reach,
		storage:   storage,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		state:     StateIdle,
	}
}

// Load replaces the in-memory queue with what storage holds.
func (q *Queue) Load(ctx context.Context) error {
	items, err := q.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	q.mutate(func() { q.items = items })
	if len(items) > 0 {
		q.log.Info("offline queue restored", "orders", len(items))
	}
	return nil
}

func (q *Queue) Submit(ctx context.Context, req orderapi.CreateOrderRequest) (Receipt, error) {
	id := q.newID()
	req.IdempotencyKey = id

	if !q.reach.Reachable(ctx) {
		if err := q.enqueue(ctx, QueuedOrder{ID: id, Payload: req, QueuedAt: q.now()}); err != nil {
			return Receipt{}, err
		}
		q.log.Info("order queued while offline", "id", id)
		return Receipt{ID: id, Outcome: OutcomeQueued, Offline: true}, nil
	}

	q.mutate(func() { q.inflight++ })
	res := q.submitter.Submit(ctx, id, req)
	q.mutate(func() { q.inflight-- })

	switch res.Outcome {
	case OutcomeSubmitted:
		q.notifier.Submitted(id, res.Order)
		return Receipt{ID: id, Outcome: OutcomeSubmitted, Order: res.Order, Replayed: res.Replayed}, nil
	case OutcomeRetryable:
		qo := QueuedOrder{ID: id, Payload: req, QueuedAt: q.now(), Attempts: 1, LastError: errString(res.Err)}
		if err := q.enqueue(ctx, qo); err != nil {
			return Receipt{}, errors.Join(res.Err, err)
		}
		q.log.Info("order queued after transient failure", "id", id, "status", res.StatusCode, "err", res.Err)
		return Receipt{ID: id, Outcome: OutcomeQueued}, nil
	default:
		err := res.Err
		if err == nil {
			err = &RejectedError{StatusCode: res.StatusCode}
		}
		return Receipt{ID: id, Outcome: OutcomeRejected}, err
	}
}

// Sync replays a FIFO snapshot of the queue. Submitted and rejected orders
// leave the queue; retryable ones stay in their original order, ahead of
// anything enqueued while the sync ran. A transport failure ends the pass
// early and leaves the untried remainder untouched.
func (q *Queue) Sync(ctx context.Context) (SyncReport, error) {
	var snapshot []QueuedOrder
	var busy bool
	q.mutate(func() {
		if q.syncing {
			busy = true
			return
		}
		if len(q.items) == 0 {
			return
		}
		q.syncing = true
		snapshot = append([]QueuedOrder(nil), q.items...)
	})
	if busy {
		return SyncReport{}, ErrSyncInProgress
	}
	if len(snapshot) == 0 {
		return SyncReport{}, nil
	}

	var report SyncReport
	done := make(map[string]bool, len(snapshot))
	updated := make(map[string]QueuedOrder)
	var dropped []droppedOrder

	for _, item := range snapshot {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++
		res := q.submitter.Submit(ctx, item.ID, item.Payload)
		switch res.Outcome {
		case OutcomeSubmitted:
			report.Submitted++
			done[item.ID] = true
			q.notifier.Submitted(item.ID, res.Order)
		case OutcomeRejected:
			report.Dropped++
			done[item.ID] = true
			dropped = append(dropped, droppedOrder{order: item, err: res.Err})
		default:
			item.Attempts++
			item.LastError = errString(res.Err)
			updated[item.ID] = item
		}
		if res.Outcome == OutcomeRetryable && res.StatusCode == 0 {
			break
		}
	}

	var saveErr error
	q.mutate(func() {
		kept := q.items[:0:0]
		for _, it := range q.items {
			if done[it.ID] {
				continue
			}
			if u, ok := updated[it.ID]; ok {
				it = u
			}
			kept = append(kept, it)
		}
		q.items = kept
		report.Retained = len(kept)
		q.syncing = false
		saveErr = q.storage.Save(context.WithoutCancel(ctx), q.items)
	})

	for _, d := range dropped {
		q.log.Warn("queued order rejected, dropping", "id", d.order.ID, "err", d.err)
		q.notifier.Dropped(d.order, d.err)
	}
	q.log.Info("offline queue synced",
		"attempted", report.Attempted,
		"submitted", report.Submitted,
		"dropped", report.Dropped,
		"retained", report.Retained,
	)
	if saveErr != nil {
		return report, fmt.Errorf("persist queue: %w", saveErr)
	}
	return report, nil
}

func (q *Queue) Pending() []QueuedOrder {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueuedOrder(nil), q.items...)
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// enqueue appends and persists; on a failed save the append is undone so the
// caller never gets a receipt for an order that would not survive a restart.
func (q *Queue) enqueue(ctx context.Context, item QueuedOrder) error {
	var err error
	q.mutate(func() {
		q.items = append(q.items, item)
		if err = q.storage.Save(ctx, q.items); err != nil {
			q.items = q.items[:len(q.items)-1]
		}
	})
	if err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	return nil
}

// mutate runs fn under the lock, then reports any state transition.
func (q *Queue) mutate(fn func()) {
	q.mu.Lock()
	fn()
	from := q.state
	q.state = q.deriveLocked()
	to := q.state
	q.mu.Unlock()

	if from != to {
		q.log.Debug("queue state", "from", from, "to", to)
		q.notifier.StateChanged(from, to)
	}
}

func (q *Queue) deriveLocked() State {
	switch {
	case q.syncing:
		return StateSyncing
	case q.inflight > 0:
		return StateSubmitting
	case len(q.items) > 0:
		return StateQueued
	default:
		return StateIdle
	}
}

type droppedOrder struct {
	order QueuedOrder
	err   error
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type NopNotifier struct{}

func (NopNotifier) StateChanged(State, State)         {}
func (NopNotifier) Submitted(string, *orderapi.Order) {}
func (NopNotifier) Dropped(QueuedOrder, error)        {}

// LogNotifier reports queue events through slog.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) StateChanged(from, to State) {
	n.Log.Info("queue state changed", "from", from, "to", to)
}

func (n LogNotifier) Submitted(id string, o *orderapi.Order) {
	if o == nil {
		n.Log.Info("order submitted", "id", id)
		return
	}
	n.Log.Info("order submitted", "id", id, "order_id", o.ID, "total", o.TotalAmount.StringFixed(2))
}

func (n LogNotifier) Dropped(q QueuedOrder, err error) {
	n.Log.Warn("queued order dropped", "id", q.ID, "attempts", q.Attempts, "err", err)
}
