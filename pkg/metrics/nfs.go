package metrics

import "time"

// NFSMetrics provides observability for the protocol server.
//
// This interface is optional: pass nil to disable metrics collection with
// zero overhead.
type NFSMetrics interface {
	// RecordRequest records a completed RPC request.
	//
	// program and procedure label the call (e.g. "NFS"/"READ"); status is
	// the NFS status name ("NFS3_OK", "NFS3ERR_NOENT", ...).
	RecordRequest(program, procedure, status string, duration time.Duration)

	// RecordBytesRead records the payload size of a READ reply.
	RecordBytesRead(bytes uint64)

	// ConnectionOpened increments the open-connection gauge.
	ConnectionOpened()

	// ConnectionClosed decrements the open-connection gauge.
	ConnectionClosed()
}
