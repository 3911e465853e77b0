package libchat

import "sync"

// Conn is the capability interface for a live connection handle: the
// in-memory, process-local object used to push a frame to a currently
// connected client.
//
// Send must fail fast when the underlying transport is gone or its outbound
// queue is full; a failed send is treated as equivalent to "not live" rather
// than a fatal condition. Implementations must be comparable (pointer types),
// since the registry compares handles on unregister.
type Conn interface {
	// Send queues a single text frame for delivery to the client.
	// Returns ErrConnClosed or ErrSendQueueFull when the frame cannot be
	// accepted; it never blocks indefinitely.
	Send(frame []byte) error

	// IsLive reports whether the handle can still accept frames.
	IsLive() bool

	// Close tears down the underlying transport. Idempotent.
	Close() error
}

// ConnectionRegistry is the in-memory, concurrency-safe mapping from user
// identity to the user's single active live connection. It holds at most one
// handle per user: registering a second connection for the same user evicts
// the first (last-connect-wins; no multi-device fan-out).
//
// The registry is not durable. It is rebuilt from scratch on process restart,
// at which point every client must re-handshake; the presence store is the
// durable shadow of this registry.
//
// Thread safety: safe for concurrent use from independent connection
// goroutines with no caller-side locking.
type ConnectionRegistry struct {
	conns sync.Map // userID (int64) -> Conn
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{}
}

// Register stores conn as the live handle for userID, replacing any prior
// handle. Returns the replaced handle (so the caller may close it) and whether
// a replacement happened.
func (r *ConnectionRegistry) Register(userID int64, conn Conn) (Conn, bool) {
	prev, loaded := r.conns.Swap(userID, conn)
	if !loaded {
		return nil, false
	}
	return prev.(Conn), true
}

// Lookup returns the current live handle for userID, if any.
func (r *ConnectionRegistry) Lookup(userID int64) (Conn, bool) {
	v, ok := r.conns.Load(userID)
	if !ok {
		return nil, false
	}
	return v.(Conn), true
}

// Unregister removes the entry for userID only if the currently stored handle
// is conn. This prevents a stale disconnect from evicting a newer connection
// that has already replaced it. Reports whether the entry was removed.
func (r *ConnectionRegistry) Unregister(userID int64, conn Conn) bool {
	return r.conns.CompareAndDelete(userID, conn)
}

// Len returns the number of registered connections. Intended for diagnostics;
// the value may be stale by the time it is returned.
func (r *ConnectionRegistry) Len() int {
	n := 0
	r.conns.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Range calls fn for every registered (userID, conn) pair until fn returns
// false. The snapshot semantics are those of sync.Map.Range.
func (r *ConnectionRegistry) Range(fn func(userID int64, conn Conn) bool) {
	r.conns.Range(func(k, v any) bool {
		return fn(k.(int64), v.(Conn))
	})
}
