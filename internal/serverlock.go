package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/livepad/internal/kv"
)

// serverLockKey marks a store as owned by a running HTTP server. The stdio
// MCP server keeps its own tree and console, so it must not share that store.
const serverLockKey = "livepad_server"

// errStoreInUse is returned by RunMCP while a server holds the lock.
var errStoreInUse = errors.New("store is in use by a running livepad server")

type serverLock struct {
	PID     int       `json:"pid"`
	Host    string    `json:"host"`
	Address string    `json:"address"`
	Started time.Time `json:"started"`
}

// acquireServerLock records this process as the store's server. A lock left
// behind by a crashed server is overwritten.
func acquireServerLock(store kv.Store, addr string) (release func(), err error) {
	host, _ := os.Hostname()
	raw, err := json.Marshal(serverLock{PID: os.Getpid(), Host: host, Address: addr, Started: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	if err := store.Set(serverLockKey, string(raw)); err != nil {
		return nil, fmt.Errorf("write server lock: %w", err)
	}
	return func() { _ = store.Remove(serverLockKey) }, nil
}

// checkServerLock fails with errStoreInUse when a server holds the store.
func checkServerLock(store kv.Store) error {
	raw, ok, err := store.Get(serverLockKey)
	if err != nil {
		return fmt.Errorf("read server lock: %w", err)
	}
	if !ok {
		return nil
	}
	var l serverLock
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return fmt.Errorf("%w (unreadable lock)", errStoreInUse)
	}
	return fmt.Errorf("%w: pid %d on %s serving %s since %s; use its /mcp endpoint or pass --force",
		errStoreInUse, l.PID, l.Host, l.Address, l.Started.Format(time.RFC3339))
}
