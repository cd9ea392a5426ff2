package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"oracleScope/internal/model"
)

// rotatedSuffix is appended, after a dot, to a rotated output file.
const rotatedSuffix = "20060102T150405.000000000Z"

// JsonlStorage appends snapshot records to a JSON lines file. Every batch is
// synced to disk before PutSnapshotBatch returns, so a checkpoint saved after
// it never points past the file. With a positive maxBytes the file is rotated
// to path.<utc timestamp> once it reaches that size.
type JsonlStorage struct {
	path     string
	maxBytes int64

	mu   sync.Mutex
	file *os.File
	size int64
	now  func() time.Time
}

// NewJsonlStorage returns a sink writing to path. maxBytes of zero disables
// rotation.
func NewJsonlStorage(path string, maxBytes int64) *JsonlStorage {
	return &JsonlStorage{path: path, maxBytes: maxBytes, now: time.Now}
}

// PutSnapshotBatch appends records as one JSON object per line. The batch is
// encoded before the file is touched, so a record that fails to encode leaves
// the file unchanged.
func (s *JsonlStorage) PutSnapshotBatch(_ context.Context, records []model.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("encode snapshot record: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.open(); err != nil {
		return err
	}
	if s.maxBytes > 0 && s.size > 0 && s.size+int64(buf.Len()) > s.maxBytes {
		if err := s.rotate(); err != nil {
			return err
		}
		if err := s.open(); err != nil {
			return err
		}
	}

	n, err := s.file.Write(buf.Bytes())
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("write snapshot records: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync output file: %w", err)
	}
	return nil
}

// Close releases the output file. The next batch reopens it.
func (s *JsonlStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFile()
}

func (s *JsonlStorage) open() error {
	if s.file != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat output file: %w", err)
	}
	s.file, s.size = file, stat.Size()

	// A crash mid-write leaves a partial last line; start on a fresh one.
	if s.size > 0 {
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, s.size-1); err != nil && err != io.EOF {
			return fmt.Errorf("read output tail: %w", err)
		}
		if last[0] != '\n' {
			n, err := file.Write([]byte{'\n'})
			s.size += int64(n)
			if err != nil {
				return fmt.Errorf("terminate partial record: %w", err)
			}
		}
	}
	return nil
}

func (s *JsonlStorage) rotate() error {
	if err := s.closeFile(); err != nil {
		return err
	}
	rotated := s.path + "." + s.now().UTC().Format(rotatedSuffix)
	if err := os.Rename(s.path, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate output file: %w", err)
	}
	s.size = 0
	return nil
}

func (s *JsonlStorage) closeFile() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}
