// Package interaction keeps the append-only audit trail of generated replies.
package interaction

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Field layout of one line: timestamp, user id, comment, reply.
const (
	Delimiter            = "\t"
	NewlinePlaceholder   = "<br>"
	DelimiterPlaceholder = "<tab>"
)

// ErrLogWrite marks a failed append. It is reported next to a successful
// reply, never instead of it.
var ErrLogWrite = errors.New("log write failure")

// Record is one generated reply.
type Record struct {
	Timestamp time.Time
	UserID    string
	Comment   string
	Reply     string
}

var normalizer = strings.NewReplacer(
	"\r\n", NewlinePlaceholder,
	"\n", NewlinePlaceholder,
	"\r", NewlinePlaceholder,
	Delimiter, DelimiterPlaceholder,
)

// Normalize replaces line breaks and the field delimiter with placeholders.
func Normalize(s string) string { return normalizer.Replace(s) }

// Line renders r as a single delimited line including the trailing newline.
func (r Record) Line() string {
	return strings.Join([]string{
		r.Timestamp.Format(time.RFC3339),
		Normalize(r.UserID),
		Normalize(r.Comment),
		Normalize(r.Reply),
	}, Delimiter) + "\n"
}

// Logger appends records to a writer. Appends are serialized.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	loc    *time.Location
	now    func() time.Time
}

// New logs to w with timestamps in loc (UTC when nil).
func New(w io.Writer, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	l := &Logger{w: w, loc: loc, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// Open appends to the file at path, creating it if needed.
func Open(path string, loc *time.Location) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrLogWrite, path, err)
	}
	return New(f, loc), nil
}

// Log appends one record stamped with the current time.
func (l *Logger) Log(userID, comment, reply string) error {
	if l == nil || l.w == nil {
		return fmt.Errorf("%w: logger not configured", ErrLogWrite)
	}
	rec := Record{Timestamp: l.now().In(l.loc), UserID: userID, Comment: comment, Reply: reply}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.w, rec.Line()); err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	return nil
}

// Close closes the underlying file when there is one.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Read parses log lines back into records. Placeholders are kept as written.
func Read(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, Delimiter)
		if len(parts) != 4 {
			return out, fmt.Errorf("line %d: expected 4 fields, got %d", n, len(parts))
		}
		ts, err := time.Parse(time.RFC3339, parts[0])
		if err != nil {
			return out, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, Record{Timestamp: ts, UserID: parts[1], Comment: parts[2], Reply: parts[3]})
	}
	return out, sc.Err()
}

// Tail returns the last n records of the log file at path.
func Tail(path string, n int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := Read(f)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return recs, nil
}
