package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one RPC call.
type LogContext struct {
	Program    string    // RPC program name (NFS, Mount)
	Procedure  string    // Procedure name (READ, LOOKUP, ...)
	XID        uint32    // RPC transaction id
	ClientAddr string    // Client address (host:port as reported by RemoteAddr)
	AuthFlavor uint32    // RPC auth flavor
	UID        uint32    // Effective user ID from AUTH_UNIX
	GID        uint32    // Effective group ID from AUTH_UNIX
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a call from the given client
func NewLogContext(clientAddr string) *LogContext {
	return &LogContext{
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	cp := *lc
	return &cp
}

// WithProcedure returns a copy with the program and procedure set
func (lc *LogContext) WithProcedure(program, procedure string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Program = program
		clone.Procedure = procedure
	}
	return clone
}

// WithXID returns a copy with the transaction id set
func (lc *LogContext) WithXID(xid uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.XID = xid
	}
	return clone
}

// WithAuth returns a copy with authentication info set
func (lc *LogContext) WithAuth(uid, gid, authFlavor uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UID = uid
		clone.GID = gid
		clone.AuthFlavor = authFlavor
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
