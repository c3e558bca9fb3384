package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/edtech-engine/backend/internal/learner"
)

// ActivityLog is an append-only JSON-lines file of learner records
type ActivityLog struct {
	path string
	mu   sync.RWMutex
}

// NewActivityLog opens (or lazily creates) the log at path
func NewActivityLog(path string) (*ActivityLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create activity directory: %w", err)
	}
	return &ActivityLog{path: path}, nil
}

// Append writes one record to the end of the log
func (l *ActivityLog) Append(rec learner.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// All returns every record in append order
func (l *ActivityLog) All() ([]learner.Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	var records []learner.Record
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec learner.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("activity log line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activity log: %w", err)
	}
	return records, nil
}

// ForUser returns the records of one learner
func (l *ActivityLog) ForUser(userID int) ([]learner.Record, error) {
	all, err := l.All()
	if err != nil {
		return nil, err
	}
	var out []learner.Record
	for _, rec := range all {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}
