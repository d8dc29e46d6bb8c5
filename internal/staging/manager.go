package staging

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
)

// Driver names accepted by NewManager.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Manager hands out Store handles. With the sqlite driver each staging
// identity gets its own database file under dataDir, so concurrent jobs
// never contend on one writer. With the postgres driver every handle is a
// view onto the same shared pool.
//
// Enrichment and financial jobs acquire the store of their source
// segmentation job: all three stages of a crawl share one staging identity.
type Manager struct {
	driver   string
	dataDir  string
	connStr  string
	mu       sync.Mutex
	pgShared *PostgresStore
	handles  map[string]*handle
}

type handle struct {
	store *SQLiteStore
	refs  int
}

func NewManager(driver, dataDir, connStr string) (*Manager, error) {
	switch driver {
	case DriverSQLite:
		if dataDir == "" {
			return nil, eris.New("staging: sqlite driver needs a data directory")
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "staging: create data directory")
		}
	case DriverPostgres:
		if connStr == "" {
			return nil, eris.New("staging: postgres driver needs a connection string")
		}
	default:
		return nil, eris.Errorf("staging: unknown driver %q", driver)
	}
	return &Manager{
		driver:  driver,
		dataDir: dataDir,
		connStr: connStr,
		handles: map[string]*handle{},
	}, nil
}

// Acquire opens (or reuses) the store for the given staging identity and
// runs migrations. Every Acquire must be paired with a Release.
func (m *Manager) Acquire(ctx context.Context, identity string) (Store, error) {
	if identity == "" {
		return nil, eris.New("staging: empty staging identity")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver == DriverPostgres {
		if m.pgShared == nil {
			store, err := NewPostgres(ctx, m.connStr)
			if err != nil {
				return nil, err
			}
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, err
			}
			m.pgShared = store
		}
		return m.pgShared, nil
	}

	if h, ok := m.handles[identity]; ok {
		h.refs++
		return h.store, nil
	}

	store, err := NewSQLite(filepath.Join(m.dataDir, identity+".db"))
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	m.handles[identity] = &handle{store: store, refs: 1}
	return store, nil
}

// Release drops one reference to the identity's store and closes the
// underlying file when the last reference goes away. The shared postgres
// pool stays open until the manager itself is closed.
func (m *Manager) Release(identity string) error {
	if m.driver == DriverPostgres {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handles[identity]
	if !ok {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	delete(m.handles, identity)
	return h.store.Close()
}

// Close releases every open handle. Jobs still holding handles will see
// errors on their next store call.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for id, h := range m.handles {
		if err := h.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.handles, id)
	}
	if m.pgShared != nil {
		if err := m.pgShared.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.pgShared = nil
	}
	return firstErr
}
