package pcap

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/marmos91/nfswire/internal/logger"
)

// FileSink serialises finished pcap chunks into one capture file.
//
// Writes from any goroutine are enqueued to a dedicated worker so the
// capture file is only ever touched from one place. A fatal write error is
// reported once through the error handler; every later write is silently
// dropped. SyncClose drains the queue, syncs, and closes the file; it is
// mandatory and must be called exactly once.
type FileSink struct {
	file         *os.File
	errorHandler func(error)

	queue chan []byte
	wg    sync.WaitGroup

	// closeMu fences Write against the queue being closed: writers hold
	// the read side, SyncClose the write side.
	closeMu sync.RWMutex
	closed  bool

	failed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// NewFileSink opens (truncates) path, writes the pcap global header, and
// starts the writer worker. errorHandler may be nil.
func NewFileSink(path string, errorHandler func(error)) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("pcap: open %s: %w", path, err)
	}

	s := &FileSink{
		file:         file,
		errorHandler: errorHandler,
		queue:        make(chan []byte, 64),
	}

	s.wg.Add(1)
	go s.worker()

	s.Write(FileHeader())
	return s, nil
}

// Write enqueues one chunk for the worker. After a fatal write error or
// after close, chunks are dropped without notice.
func (s *FileSink) Write(chunk []byte) {
	if s.failed.Load() {
		return
	}

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return
	}
	s.queue <- chunk
}

// worker drains the queue onto the file.
func (s *FileSink) worker() {
	defer s.wg.Done()

	for chunk := range s.queue {
		if s.failed.Load() {
			continue
		}

		if err := writeRetryingEINTR(s.file, chunk); err != nil {
			s.failed.Store(true)
			logger.Error("pcap sink write failed", "path", s.file.Name(), "error", err)
			if s.errorHandler != nil {
				s.errorHandler(err)
			}
		}
	}
}

// writeRetryingEINTR writes the whole chunk, retrying interrupted system
// calls.
func writeRetryingEINTR(file *os.File, chunk []byte) error {
	for len(chunk) > 0 {
		n, err := file.Write(chunk)
		chunk = chunk[n:]
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}
	}
	return nil
}

// SyncClose drains pending writes, syncs the file, and closes it. Safe
// against duplicate calls: only the first does the work, all callers see
// its result.
func (s *FileSink) SyncClose() error {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()

		close(s.queue)
		s.wg.Wait()

		var syncErr error
		for {
			syncErr = s.file.Sync()
			if !errors.Is(syncErr, syscall.EINTR) {
				break
			}
		}
		closeErr := s.file.Close()

		if syncErr != nil && !s.failed.Load() {
			s.closeErr = fmt.Errorf("pcap: sync: %w", syncErr)
		} else if closeErr != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("pcap: close: %w", closeErr)
		}
	})
	return s.closeErr
}
