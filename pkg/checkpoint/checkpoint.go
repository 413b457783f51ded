package checkpoint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"prodfetch/pkg/logger"
	"prodfetch/pkg/storage"
)

// ItemCodeColumn is the key column shared by the input list and the checkpoint
const ItemCodeColumn = "Item Code"

// Store appends item outcomes to a CSV checkpoint file
type Store struct {
	path        string
	valueColumn string
	emptyMarker string
	logger      logger.Logger
}

// NewStore creates a Store for path. valueColumn names the second header
// column and emptyMarker is the value written for items with no artifacts.
func NewStore(path, valueColumn, emptyMarker string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{
		path:        path,
		valueColumn: valueColumn,
		emptyMarker: emptyMarker,
		logger:      log,
	}
}

// Path returns the checkpoint file path
func (s *Store) Path() string {
	return s.path
}

// LoadProcessed returns the set of item codes present in the checkpoint.
// A missing or unreadable file yields an empty set and a warning.
func (s *Store) LoadProcessed() map[string]bool {
	processed := make(map[string]bool)

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.WarnWithFields("Checkpoint file not found, starting fresh", map[string]interface{}{
				"path": s.path,
			})
		} else {
			s.logger.WarnWithFields("Failed to open checkpoint, starting fresh", map[string]interface{}{
				"path":  s.path,
				"error": err.Error(),
			})
		}
		return processed
	}
	defer file.Close()

	codes, err := readCodes(file)
	if err != nil {
		s.logger.WarnWithFields("Malformed checkpoint, starting fresh", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return make(map[string]bool)
	}

	for _, code := range codes {
		processed[code] = true
	}

	s.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"path":      s.path,
		"processed": len(processed),
	})
	return processed
}

func readCodes(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := columnIndex(header, ItemCodeColumn)
	if col < 0 {
		return nil, fmt.Errorf("missing %q column", ItemCodeColumn)
	}

	var codes []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if col >= len(record) {
			continue
		}
		if code := strings.TrimSpace(record[col]); code != "" {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// columnIndex finds name in a header row, ignoring surrounding space and a BOM
func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == name {
			return i
		}
	}
	return -1
}

// terminateLastLine writes a newline when a torn write or a hand edit left
// the file without one, so the next row starts on its own line
func terminateLastLine(file *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err != nil {
		return fmt.Errorf("failed to read checkpoint tail: %w", err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := file.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to terminate checkpoint line: %w", err)
	}
	return nil
}

// Append writes one row per ref, or a single empty-marker row when refs is
// empty, and syncs the file before returning
func (s *Store) Append(itemCode string, refs []storage.ArtifactRef) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat checkpoint file: %w", err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		writer.Write([]string{ItemCodeColumn, s.valueColumn})
	} else if err := terminateLastLine(file, info.Size()); err != nil {
		file.Close()
		return err
	}

	if len(refs) == 0 {
		writer.Write([]string{itemCode, s.emptyMarker})
	}
	for _, ref := range refs {
		writer.Write([]string{itemCode, string(ref)})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write checkpoint rows: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	rows := len(refs)
	if rows == 0 {
		rows = 1
	}
	s.logger.DebugWithFields("Checkpoint updated", map[string]interface{}{
		"item_code": itemCode,
		"rows":      rows,
	})
	return nil
}
