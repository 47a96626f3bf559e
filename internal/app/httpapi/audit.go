package httpapi

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// AuditContext accumulates per-request audit fields while a method call is
// dispatched. Handlers fill it in; the audit log receives it afterwards.
type AuditContext struct {
	RequestID string   `json:"request_id"`
	Method    string   `json:"method"`
	Has       []string `json:"has,omitempty"`      // truthy online_score argument names
	NClients  int      `json:"nclients,omitempty"` // clients_interests ids processed
}

type auditEntry struct {
	Time      time.Time `json:"time"`
	RequestID string    `json:"request_id"`
	Login     string    `json:"login"`
	Method    string    `json:"method"`
	Status    int       `json:"status"`
	Has       []string  `json:"has,omitempty"`
	NClients  int       `json:"nclients,omitempty"`
}

type auditSink interface {
	Write(entry auditEntry) error
}

// auditLog keeps a bounded ring of recent method calls and optionally
// persists each entry through a sink.
type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
	max     int
	sink    auditSink
}

func newAuditLog(max int, sink auditSink) *auditLog {
	if max <= 0 {
		max = 200
	}
	return &auditLog{max: max, sink: sink}
}

func (l *auditLog) add(entry auditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best-effort persistence.
		_ = l.sink.Write(entry)
	}
}

func (l *auditLog) list() []auditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]auditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// fileAuditSink appends audit entries as JSONL.
type fileAuditSink struct {
	mu   sync.Mutex
	file *os.File
}

func newFileAuditSink(path string) (*fileAuditSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &fileAuditSink{file: f}, nil
}

func (s *fileAuditSink) Write(entry auditEntry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}
