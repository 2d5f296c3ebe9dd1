package main

import (
	"fmt"
	"strings"
	"time"

	"sieve/internal/fileutil"
	"sieve/internal/ingest"
	"sieve/internal/services"
)

// maxImageBytes caps how much of a single file the CLI will read.
const maxImageBytes = 64 << 20

func readImage(path string) ([]byte, error) {
	data, err := fileutil.ReadFileLimit(path, maxImageBytes)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func fileItems(paths []string) []ingest.Item {
	items := make([]ingest.Item, 0, len(paths))
	for _, path := range paths {
		items = append(items, ingest.Item{
			Source: path,
			Load:   func() ([]byte, error) { return readImage(path) },
		})
	}
	return items
}

// outcomeStatus names the result of one ingest for display.
func outcomeStatus(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case ingest.IsPostUpload(err):
		return "duplicate (post-upload)"
	case services.Kind(err) == services.KindDuplicateContent:
		return "duplicate"
	default:
		return "failed"
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(value string, width int) string {
	value = strings.TrimSpace(value)
	if width <= 3 || len(value) <= width {
		return value
	}
	return value[:width-3] + "..."
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
