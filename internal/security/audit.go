// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultAuditPath is where the audit trail lives relative to the working dir.
var DefaultAuditPath = filepath.Join("logs", "audit.log")

// =============================================================================
// AUDIT RECORD
// =============================================================================

// AuditRecord is a single audit line.
type AuditRecord struct {
	Timestamp time.Time
	User      string
	Host      string
	Tool      string
	Action    string
}

// String renders the canonical one-line form.
func (r AuditRecord) String() string {
	return fmt.Sprintf("[%s] AUDIT | %s@%s | Tool: %s | Action: %s",
		r.Timestamp.UTC().Format(time.RFC3339),
		r.User,
		r.Host,
		r.Tool,
		oneLine(r.Action),
	)
}

// ParseAuditRecord is the inverse of AuditRecord.String.
func ParseAuditRecord(line string) (AuditRecord, error) {
	m := auditLinePattern.FindStringSubmatch(line)
	if m == nil {
		return AuditRecord{}, fmt.Errorf("not an audit record: %q", line)
	}
	ts, err := time.Parse(time.RFC3339, m[1])
	if err != nil {
		return AuditRecord{}, fmt.Errorf("bad audit timestamp: %w", err)
	}
	return AuditRecord{Timestamp: ts, User: m[2], Host: m[3], Tool: m[4], Action: m[5]}, nil
}

var auditLinePattern = regexp.MustCompile(`^\[([^\]]+)\] AUDIT \| ([^@]*)@(\S*) \| Tool: (.*?) \| Action: (.*)$`)

// =============================================================================
// SECRET REDACTION
// =============================================================================

var secretPatterns = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN_REDACTED]"},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*\S+`), "[PASSWORD_REDACTED]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "[AWS_KEY_REDACTED]"},
}

// RedactSecrets masks credentials that commonly end up in action text.
func RedactSecrets(input string) string {
	for _, sp := range secretPatterns {
		input = sp.pattern.ReplaceAllString(input, sp.replace)
	}
	return input
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger appends audit records to a file. Concurrent writers are
// serialized by mu so lines never interleave and order follows write time.
type AuditLogger struct {
	path  string
	file  *os.File
	mu    sync.Mutex
	now   func() time.Time
	count int
}

// NewAuditLogger opens (or creates) the audit log at path for appending.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if path == "" {
		path = DefaultAuditPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &AuditLogger{path: path, file: file, now: time.Now}, nil
}

// Log writes one record for the given operator. The record is synced to
// disk before Log returns. A nil logger discards.
func (l *AuditLogger) Log(id Identity, tool, action string) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("audit log %s is closed", l.path)
	}

	rec := AuditRecord{
		Timestamp: l.now(),
		User:      id.Username,
		Host:      id.Hostname,
		Tool:      tool,
		Action:    RedactSecrets(action),
	}
	if _, err := fmt.Fprintln(l.file, rec.String()); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	l.count++
	return nil
}

// Written reports how many records this logger has appended since open.
func (l *AuditLogger) Written() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Path returns the audit file location.
func (l *AuditLogger) Path() string {
	return l.path
}

// Records reads back every parseable line in the audit file, including lines
// written by other processes.
func (l *AuditLogger) Records() ([]AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []AuditRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rec, err := ParseAuditRecord(scanner.Text())
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Close syncs and closes the file. Further Log calls fail.
func (l *AuditLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Sync()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
