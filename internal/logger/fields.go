package logger

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that output can
// be aggregated and queried uniformly.
const (
	// ========================================================================
	// Protocol & Operation
	// ========================================================================
	KeyProgram   = "program"   // RPC program name: NFS, Mount
	KeyProcedure = "procedure" // Procedure name: GETATTR, LOOKUP, READ, ...
	KeyXID       = "xid"       // RPC transaction id (hex)
	KeyHandle    = "handle"    // File handle (hex opaque)
	KeyExport    = "export"    // Export path: /export, ...
	KeyStatus    = "status"    // NFS status code

	// ========================================================================
	// I/O
	// ========================================================================
	KeyOffset    = "offset"     // File offset for READ
	KeyCount     = "count"      // Byte count requested
	KeyBytesRead = "bytes_read" // Actual bytes read
	KeyEOF       = "eof"        // End of file indicator

	// ========================================================================
	// Client identification
	// ========================================================================
	KeyClient = "client"  // Client address
	KeyConnID = "conn_id" // Connection identity
	KeyUID    = "uid"     // Unix UID from AUTH_UNIX credentials
	KeyGID    = "gid"     // Unix GID from AUTH_UNIX credentials
	KeyAuth   = "auth"    // RPC auth flavor

	// ========================================================================
	// Generic
	// ========================================================================
	KeyError    = "error"
	KeyDuration = "duration_ms"
	KeyAddress  = "address"
)
