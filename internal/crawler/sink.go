package crawler

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// FileSink appends extracted records to a single output file. Every write
// goes straight to the file descriptor so a killed process keeps whatever was
// already extracted.
type FileSink struct {
	path   string
	file   *os.File
	logger *zap.Logger
}

// OpenFileSink opens path for appending, creating it when needed.
func OpenFileSink(path string, logger *zap.Logger) (*FileSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &WriteError{Path: path, Err: fmt.Errorf("open: %w", err)}
	}
	return &FileSink{path: path, file: file, logger: logger}, nil
}

// WriteRecord writes the optional title line and then the content block.
// The two are separate writes, each newline terminated.
func (s *FileSink) WriteRecord(rec record) error {
	if rec.Title != nil {
		if err := s.writeLine(*rec.Title); err != nil {
			return err
		}
	}
	return s.writeLine(rec.Content)
}

func (s *FileSink) writeLine(text string) error {
	buf := make([]byte, 0, len(text)+1)
	buf = append(buf, text...)
	buf = append(buf, '\n')
	if _, err := s.file.Write(buf); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	return nil
}

// Path returns the output file path.
func (s *FileSink) Path() string { return s.path }

// Close releases the file handle.
func (s *FileSink) Close() error {
	if err := s.file.Close(); err != nil {
		s.logger.Warn("closing output failed", zap.String("path", s.path), zap.Error(err))
		return &WriteError{Path: s.path, Err: fmt.Errorf("close: %w", err)}
	}
	return nil
}
