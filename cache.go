package wire

import (
	"strconv"
	"sync"

	"github.com/riftwire/pgclient/pkg/protocol"
)

// preparedStatement records everything known about a named statement once
// Parse+Describe have completed: its parameter OIDs and (if available) its
// result row shape.
type preparedStatement struct {
	name      string
	sql       string
	paramOIDs []uint32
	row       protocol.RowDescription
}

// StatementCache tracks the server-side prepared statements this
// connection currently owns, grounded on the teacher's DefaultStatementCache
// but keyed by statement name on the client side of the Parse/Bind split.
type StatementCache struct {
	mu         sync.RWMutex
	statements map[string]*preparedStatement
	counter    int
}

func newStatementCache() *StatementCache {
	return &StatementCache{statements: make(map[string]*preparedStatement, 8)}
}

// next returns a fresh, connection-unique statement name.
func (c *StatementCache) next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return statementNamePrefix + strconv.Itoa(c.counter)
}

func (c *StatementCache) put(stmt *preparedStatement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements[stmt.name] = stmt
}

func (c *StatementCache) get(name string) (*preparedStatement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stmt, ok := c.statements[name]
	return stmt, ok
}

func (c *StatementCache) delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.statements, name)
}

const statementNamePrefix = "pgclient_stmt_"
const portalNamePrefix = "pgclient_portal_"

// PortalCache tracks open portals the same way StatementCache tracks
// prepared statements, needed for the scrollable-cursor layer (cursor.go)
// where a portal outlives a single Execute.
type PortalCache struct {
	mu      sync.RWMutex
	portals map[string]*preparedStatement
	counter int
}

func newPortalCache() *PortalCache {
	return &PortalCache{portals: make(map[string]*preparedStatement, 8)}
}

func (c *PortalCache) next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return portalNamePrefix + strconv.Itoa(c.counter)
}

func (c *PortalCache) put(name string, stmt *preparedStatement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.portals[name] = stmt
}

func (c *PortalCache) delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.portals, name)
}

