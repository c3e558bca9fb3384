// Package catalog loads learning resources from CSV sources.
//
// Every field missing from a row, or whose column is absent from the header,
// becomes the empty string. Descriptions are reduced to plain text.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/edtech-engine/backend/internal/search"
)

var (
	// ErrNoHeader is returned when the source has no header row.
	ErrNoHeader = errors.New("catalog has no header row")
	// ErrDuplicateID is returned when two rows share an id.
	ErrDuplicateID = errors.New("duplicate item id")
)

var knownColumns = []string{"id", "title", "description", "subject", "url", "difficulty"}

// Parse reads a CSV catalog with a header row.
func Parse(r io.Reader) ([]search.Item, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for _, known := range knownColumns {
			if name == known {
				if _, dup := columns[name]; !dup {
					columns[name] = i
				}
			}
		}
	}

	var items []search.Item
	seen := make(map[string]int)
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", row, err)
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		item := search.Item{
			ID:          field("id"),
			Title:       field("title"),
			Description: StripMarkup(field("description")),
			Subject:     field("subject"),
			URL:         field("url"),
			Difficulty:  field("difficulty"),
		}
		if item.ID == "" {
			item.ID = "row-" + strconv.Itoa(row)
		}
		if prev, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w: %q on rows %d and %d", ErrDuplicateID, item.ID, prev, row)
		}
		seen[item.ID] = row
		items = append(items, item)
	}

	return items, nil
}

// LoadFile parses the CSV catalog at path.
func LoadFile(path string) ([]search.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return Parse(f)
}
