package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/edtech-engine/backend/internal/search"
)

// ErrNotFound is returned when an item id is not stored.
var ErrNotFound = errors.New("item not found")

// CatalogStorage defines the interface for persisting catalog items
type CatalogStorage interface {
	Save(item search.Item) error
	Get(id string) (*search.Item, error)
	List() ([]search.Item, error)
	Count() (int, error)
	Close() error
}

// storedItem is the on-disk record; Position preserves insertion order.
type storedItem struct {
	Position int64       `json:"position"`
	Item     search.Item `json:"item"`
}

// FileStorage implements CatalogStorage using one JSON file per item
type FileStorage struct {
	baseDir string
	mu      sync.RWMutex
	next    int64
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	fs := &FileStorage{baseDir: baseDir}

	records, err := fs.readAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Position >= fs.next {
			fs.next = rec.Position + 1
		}
	}
	return fs, nil
}

// Save writes the item to a JSON file. Re-saving an id keeps its position.
func (fs *FileStorage) Save(item search.Item) error {
	if item.ID == "" {
		return fmt.Errorf("item id is required")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := filepath.Join(fs.baseDir, safeFilename(item.ID))

	rec := storedItem{Item: item}
	if existing, err := readRecord(path); err == nil {
		rec.Position = existing.Position
	} else {
		rec.Position = fs.next
		fs.next++
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit file: %w", err)
	}

	return nil
}

// Get retrieves an item from disk
func (fs *FileStorage) Get(id string) (*search.Item, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	rec, err := readRecord(filepath.Join(fs.baseDir, safeFilename(id)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if rec.Item.ID != id {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &rec.Item, nil
}

// List returns all items in insertion order
func (fs *FileStorage) List() ([]search.Item, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	records, err := fs.readAll()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Position < records[j].Position
	})

	items := make([]search.Item, len(records))
	for i, rec := range records {
		items[i] = rec.Item
	}
	return items, nil
}

// Count returns the number of stored items
func (fs *FileStorage) Count() (int, error) {
	items, err := fs.List()
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Close is a no-op for file storage
func (fs *FileStorage) Close() error {
	return nil
}

func (fs *FileStorage) readAll() ([]storedItem, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	var records []storedItem
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		rec, err := readRecord(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func readRecord(path string) (*storedItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rec storedItem
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// maxNameLen bounds the filename stem; longer ids keep a prefix plus a hash of the full id.
const maxNameLen = 200

// safeFilename converts an item id to a safe filename
func safeFilename(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			fmt.Fprintf(&b, "_%x_", r)
		}
	}
	name := b.String()
	if len(name) > maxNameLen {
		sum := sha256.Sum256([]byte(id))
		digest := hex.EncodeToString(sum[:])
		name = name[:maxNameLen-len(digest)-1] + "_" + digest
	}
	return name + ".json"
}
