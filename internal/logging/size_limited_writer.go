package logging

import (
	"os"
	"sync"
)

// capWriter is a log file sink with a hard size cap. When a write would
// push the file past the cap, the file is truncated and the write starts
// over at offset zero. Session replay data lives in postgres, so losing
// old log lines is acceptable here.
type capWriter struct {
	path string
	cap  int64

	mu   sync.Mutex
	file *os.File
	size int64
}

func newSizeLimitedWriter(path string, maxMB int) (*capWriter, error) {
	if maxMB <= 0 {
		maxMB = 10
	}
	w := &capWriter{path: path, cap: int64(maxMB) << 20}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *capWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		if err := w.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if w.size+int64(len(p)) > w.cap {
		if err := w.open(os.O_TRUNC); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *capWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// open (re)opens the sink with the given mode flag and refreshes the
// tracked size.
func (w *capWriter) open(modeFlag int) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|modeFlag, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file = f
	w.size = info.Size()
	return nil
}
