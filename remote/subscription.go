package remote

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meridianpress/draftsync/internal/common"
	"github.com/meridianpress/draftsync/internal/logging"
	"github.com/meridianpress/draftsync/models"
)

// notifyChannel is the LISTEN/NOTIFY channel the document trigger fires on.
// The payload is the name of the changed collection.
const notifyChannel = "draftsync_documents"

// ChangeFunc receives the full current result set for a subscription every
// time the matching set changes remotely, and once promptly on subscribe.
type ChangeFunc func(entities []models.RemoteEntity)

// listenerConn is the slice of *pgx.Conn the manager needs for the
// dedicated listening connection. Tests substitute a fake.
type listenerConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// connectListener is a test seam around pgx.Connect.
var connectListener = func(ctx context.Context, dsn string) (listenerConn, error) {
	return pgx.Connect(ctx, dsn)
}

type fanout struct {
	collection string
	filter     Filter
	callbacks  map[int]ChangeFunc
}

// Manager multiplexes one upstream LISTEN connection to any number of
// registered callbacks. Registrations sharing a (collection, filter) pair
// share a single re-query per change notification, so adding UI views never
// multiplies network traffic.
//
// The manager does not reconnect after a transport failure: the failure is
// handed to onError as a *common.SubscriptionError and Listen returns.
// Reconnection policy belongs to the surrounding application.
type Manager struct {
	dsn     string
	querier Client
	logger  logging.Logger
	onError func(error)

	mu      sync.Mutex
	fanouts map[string]*fanout
	nextID  int
}

// NewManager builds a subscription manager. querier runs the per-filter
// queries (normally the same PostgresClient used for writes). onError may
// be nil.
func NewManager(dsn string, querier Client, logger logging.Logger, onError func(error)) *Manager {
	if onError == nil {
		onError = func(error) {}
	}
	return &Manager{
		dsn:     dsn,
		querier: querier,
		logger:  logger.With("module", "subscription"),
		onError: onError,
		fanouts: make(map[string]*fanout),
	}
}

// Subscribe registers onChange for a filtered collection and delivers the
// current matching set before returning. The returned unsubscribe func is
// idempotent; every Subscribe must be paired with exactly one call to it
// when the owning view is torn down.
func (m *Manager) Subscribe(ctx context.Context, collection string, f Filter, onChange ChangeFunc) (func(), error) {
	entities, err := m.querier.List(ctx, collection, f)
	if err != nil {
		return nil, &common.SubscriptionError{Collection: collection, Err: err}
	}

	key := collection + "\x00" + f.Key()

	m.mu.Lock()
	fo, ok := m.fanouts[key]
	if !ok {
		fo = &fanout{collection: collection, filter: f, callbacks: make(map[int]ChangeFunc)}
		m.fanouts[key] = fo
	}
	m.nextID++
	id := m.nextID
	fo.callbacks[id] = onChange
	m.mu.Unlock()

	onChange(entities)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(fo.callbacks, id)
			if len(fo.callbacks) == 0 {
				delete(m.fanouts, key)
			}
		})
	}
	return unsubscribe, nil
}

// Listen opens the dedicated notification connection and blocks, fanning
// out fresh result sets on every change, until ctx is cancelled or the
// transport fails. Run it in its own goroutine.
func (m *Manager) Listen(ctx context.Context) error {
	conn, err := connectListener(ctx, m.dsn)
	if err != nil {
		serr := &common.SubscriptionError{Collection: "*", Err: err}
		m.onError(serr)
		return serr
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "listen "+notifyChannel); err != nil {
		serr := &common.SubscriptionError{Collection: "*", Err: err}
		m.onError(serr)
		return serr
	}

	m.logger.Info(ctx, "listening for document changes", "channel", notifyChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			serr := &common.SubscriptionError{Collection: "*", Err: err}
			m.onError(serr)
			return serr
		}
		m.broadcast(ctx, n.Payload)
	}
}

// broadcast re-runs every registered query for the changed collection and
// pushes the full result set to each callback. Result ordering is whatever
// the store returned; no local re-ordering.
func (m *Manager) broadcast(ctx context.Context, collection string) {
	m.mu.Lock()
	targets := make([]*fanout, 0, len(m.fanouts))
	for _, fo := range m.fanouts {
		if fo.collection == collection {
			targets = append(targets, fo)
		}
	}
	m.mu.Unlock()

	for _, fo := range targets {
		entities, err := m.querier.List(ctx, fo.collection, fo.filter)
		if err != nil {
			m.logger.Error(ctx, "change query failed", "collection", fo.collection, "error", err)
			m.onError(&common.SubscriptionError{Collection: fo.collection, Err: err})
			continue
		}

		m.mu.Lock()
		callbacks := make([]ChangeFunc, 0, len(fo.callbacks))
		for _, cb := range fo.callbacks {
			callbacks = append(callbacks, cb)
		}
		m.mu.Unlock()

		for _, cb := range callbacks {
			cb(entities)
		}
	}
}
