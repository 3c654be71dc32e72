package internal

import (
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditLog receives one entry per source the pipeline had to skip.
// Implementations must be append-only.
type AuditLog interface {
	Record(event, reason string, dateKey int)
}

// AuditEntry is one recorded event
type AuditEntry struct {
	Event   string `json:"event"`
	Reason  string `json:"reason"`
	Quarter int    `json:"quarter"`
}

// JSONAudit writes entries as zerolog JSON lines. The caller owns the writer,
// including opening the log file in append mode. Every entry carries the run
// id so runs appended to the same file can be told apart.
type JSONAudit struct {
	RunID  string
	logger zerolog.Logger
}

func NewJSONAudit(w io.Writer) *JSONAudit {
	id := uuid.NewString()
	return &JSONAudit{
		RunID:  id,
		logger: zerolog.New(w).With().Timestamp().Str("run", id).Logger(),
	}
}

func (a *JSONAudit) Record(event, reason string, dateKey int) {
	a.logger.Error().
		Str("event", event).
		Str("reason", reason).
		Int("quarter", dateKey).
		Send()
}

// MemoryAudit keeps entries in memory
type MemoryAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *MemoryAudit) Record(event, reason string, dateKey int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, AuditEntry{Event: event, Reason: reason, Quarter: dateKey})
}

// Entries returns a copy of everything recorded so far
func (a *MemoryAudit) Entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]AuditEntry(nil), a.entries...)
}

// multiAudit fans entries out to several sinks
type multiAudit []AuditLog

func (m multiAudit) Record(event, reason string, dateKey int) {
	for _, a := range m {
		a.Record(event, reason, dateKey)
	}
}

// TeeAudit returns a sink recording to all given sinks, skipping nils
func TeeAudit(sinks ...AuditLog) AuditLog {
	var out multiAudit
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type nopAudit struct{}

func (nopAudit) Record(string, string, int) {}

// NopAudit discards everything
var NopAudit AuditLog = nopAudit{}
