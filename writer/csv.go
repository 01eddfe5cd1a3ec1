package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"vnflow/logger"
	"vnflow/models"
)

// CSVSink appends validated ticks to a CSV file with the fixed column header.
// The header is written exactly once, when the file is created or empty;
// every row is flushed immediately so a crash never loses accepted records.
type CSVSink struct {
	path string
	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
	log  *logger.Log
}

// NewCSVSink opens (or creates) the sink file at path and writes the header
// row if the file is new.
func NewCSVSink(path string) (*CSVSink, error) {
	log := logger.GetLogger()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open sink file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat sink file: %w", err)
	}

	s := &CSVSink{
		path: path,
		file: file,
		csv:  csv.NewWriter(file),
		log:  log,
	}

	if info.Size() == 0 {
		if err := s.csv.Write(models.ColumnNames); err != nil {
			file.Close()
			return nil, fmt.Errorf("write sink header: %w", err)
		}
		s.csv.Flush()
		if err := s.csv.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("flush sink header: %w", err)
		}
	}

	log.WithComponent("csv_sink").WithFields(logger.Fields{"path": path}).Info("sink initialized")
	return s, nil
}

// Append writes one tick as a row and flushes it to disk.
func (s *CSVSink) Append(tick models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.csv.Write(tick.Row()); err != nil {
		return fmt.Errorf("write sink row: %w", err)
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return fmt.Errorf("flush sink row: %w", err)
	}

	logger.IncrementSinkRow()
	return nil
}

// Close flushes pending data and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
