package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/aqualaguna/direct-commerce-sub002/internal/models"
)

// FileSink writes archived records as gzip-compressed JSON lines, one
// file per archive run day.
type FileSink struct {
	Dir string
}

// NewFileSink ensures the archive directory exists.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %v", err)
	}
	return &FileSink{Dir: dir}, nil
}

// Archive appends the records to the current day's archive file. A
// failed write leaves the records in the store for the next run.
func (s *FileSink) Archive(ctx context.Context, records []models.ActivityRecord) error {
	if len(records) == 0 {
		return nil
	}

	name := fmt.Sprintf("activities-%s.jsonl.gz", time.Now().UTC().Format("2006-01-02"))
	path := filepath.Join(s.Dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open archive file: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			gz.Close()
			return fmt.Errorf("failed to encode archived record: %v", err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush archive file: %v", err)
	}
	return nil
}
