package log

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap/zapcore"
)

const defaultFileSinkMaxBytes int64 = 5 << 20

// ErrNoLogFile is returned by Tail when nothing has been logged to the file yet.
var ErrNoLogFile = errors.New("no log file found")

// FileSink appends log entries as single lines to a file. When the file grows past
// maxBytes it is moved to "<path>.1" and a fresh file is started.
type FileSink struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	fp       *os.File
	size     int64
}

// NewFileSink opens (or creates) the file at path in append mode.
func NewFileSink(path string, maxBytes int64) (*FileSink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("log file path is empty")
	}
	if maxBytes <= 0 {
		maxBytes = defaultFileSinkMaxBytes
	}

	s := &FileSink{path: path, maxBytes: maxBytes}
	if err := s.open(); err != nil {
		return nil, errors.WithStack(err)
	}
	return s, nil
}

// Path returns the file location of the active log.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) open() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create log dir %q", dir)
		}
	}

	fp, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open log file %q", s.path)
	}
	info, err := fp.Stat()
	if err != nil {
		_ = fp.Close()
		return errors.Wrapf(err, "stat log file %q", s.path)
	}

	s.fp = fp
	s.size = info.Size()
	return nil
}

func (s *FileSink) rotate() error {
	if s.fp != nil {
		_ = s.fp.Close()
		s.fp = nil
	}
	if err := os.Rename(s.path, s.path+".1"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "rename log file")
	}
	return s.open()
}

// Hook matches the signature expected by zap.HooksWithFields.
func (s *FileSink) Hook(entry zapcore.Entry, fields []zapcore.Field) error {
	return s.WriteLine(formatEntry(entry, fields))
}

// WriteLine appends line (a trailing newline is added) and rotates when needed.
func (s *FileSink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fp == nil {
		if err := s.open(); err != nil {
			return errors.WithStack(err)
		}
	}

	data := line + "\n"
	if s.size > 0 && s.size+int64(len(data)) > s.maxBytes {
		if err := s.rotate(); err != nil {
			return errors.WithStack(err)
		}
	}

	n, err := s.fp.WriteString(data)
	s.size += int64(n)
	if err != nil {
		return errors.Wrap(err, "write log line")
	}
	return nil
}

// Tail returns at most limit bytes from the end of the active log file.
func (s *FileSink) Tail(limit int64) (string, error) {
	return TailFile(s.path, limit)
}

// Close releases the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fp == nil {
		return nil
	}
	err := s.fp.Close()
	s.fp = nil
	return errors.WithStack(err)
}

// TailFile returns at most limit bytes from the end of the file at path.
// It returns ErrNoLogFile when the file does not exist.
func TailFile(path string, limit int64) (string, error) {
	fp, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoLogFile
		}
		return "", errors.Wrapf(err, "open log file %q", path)
	}
	defer fp.Close()

	info, err := fp.Stat()
	if err != nil {
		return "", errors.Wrap(err, "stat log file")
	}

	offset := int64(0)
	if limit > 0 && info.Size() > limit {
		offset = info.Size() - limit
	}
	if _, err = fp.Seek(offset, io.SeekStart); err != nil {
		return "", errors.Wrap(err, "seek log file")
	}

	body, err := io.ReadAll(fp)
	if err != nil {
		return "", errors.Wrap(err, "read log file")
	}
	return string(body), nil
}

func formatEntry(entry zapcore.Entry, fields []zapcore.Field) string {
	var sb strings.Builder
	sb.WriteString(entry.Time.Format(time.RFC3339))
	sb.WriteString("\t")
	sb.WriteString(strings.ToUpper(entry.Level.String()))
	if entry.LoggerName != "" {
		sb.WriteString("\t")
		sb.WriteString(entry.LoggerName)
	}
	sb.WriteString("\t")
	sb.WriteString(entry.Message)

	if len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			f.AddTo(enc)
		}
		if b, err := json.Marshal(enc.Fields); err == nil {
			sb.WriteString("\t")
			sb.Write(b)
		}
	}

	return sb.String()
}
