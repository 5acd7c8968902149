package common

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEntry captures a single in-place modification to a calibration
// binary: a patch block apply/remove or an individual table cell write.
type AuditEntry struct {
	Action    string    `json:"action"`
	SoftCode  string    `json:"softCode,omitempty"`
	Parameter string    `json:"parameter,omitempty"`
	Offset    int64     `json:"offset"`
	BeforeHex string    `json:"beforeHex"`
	AfterHex  string    `json:"afterHex"`
	Ts        time.Time `json:"ts"`
}

// BeforeBytes decodes the bytes present before the modification.
func (e AuditEntry) BeforeBytes() ([]byte, error) {
	if strings.TrimSpace(e.BeforeHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(e.BeforeHex)
}

// AfterBytes decodes the bytes written by the modification.
func (e AuditEntry) AfterBytes() ([]byte, error) {
	if strings.TrimSpace(e.AfterHex) == "" {
		return nil, nil
	}
	return hex.DecodeString(e.AfterHex)
}

// AuditLog provides append-only access to a JSONL modification log. The
// undo path replays entries in reverse to restore the pre-patch bytes.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

func (l *AuditLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a new entry, one JSON object per line.
func (l *AuditLog) Append(entry AuditEntry) error {
	if l == nil {
		return errors.New("nil audit log")
	}
	if entry.Action == "" {
		return errors.New("audit entry missing action")
	}
	if entry.Ts.IsZero() {
		entry.Ts = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	dir := filepath.Dir(l.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadAuditLog loads every entry from the supplied JSONL file.
func ReadAuditLog(path string) ([]AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var entries []AuditEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
