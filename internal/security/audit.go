package security

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

// AuditEvent is one line of the audit trail. Only write operations are
// audited; reads are visible in the debug log instead.
type AuditEvent struct {
	Timestamp  time.Time      `json:"timestamp"`
	Operation  OperationType  `json:"operation"`
	Provider   string         `json:"provider"`
	Instrument string         `json:"instrument,omitempty"`
	Reference  string         `json:"reference,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Success    bool           `json:"success"`
	Blocked    bool           `json:"blocked,omitempty"`
	ErrorMsg   string         `json:"error,omitempty"`
	SessionID  string         `json:"session_id"`
}

// AuditConfig holds audit file configuration.
type AuditConfig struct {
	Dir        string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig returns the default audit configuration.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		Dir:        filepath.Join(home, ".config", "stock-analyser", "audit"),
		MaxSize:    50,
		MaxBackups: 30,
		MaxAge:     365,
		Compress:   true,
	}
}

// AuditTrail appends JSON lines describing every attempted write operation.
type AuditTrail struct {
	mu        sync.Mutex
	w         io.Writer
	sessionID string
	now       func() time.Time
}

// NewAuditTrail writes audit events to w.
func NewAuditTrail(w io.Writer) *AuditTrail {
	return &AuditTrail{w: w, sessionID: uuid.NewString(), now: time.Now}
}

// OpenAuditLog creates a rotating audit file under cfg.Dir.
func OpenAuditLog(cfg AuditConfig) (*AuditTrail, error) {
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, apperrors.Wrap(err, "creating audit directory")
	}
	return NewAuditTrail(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}), nil
}

// SessionID identifies this process in the trail.
func (a *AuditTrail) SessionID() string { return a.sessionID }

// Record stamps and appends event. Error text is masked before writing.
func (a *AuditTrail) Record(event AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	event.Timestamp = a.now().UTC()
	event.SessionID = a.sessionID
	event.ErrorMsg = MaskString(event.ErrorMsg)

	data, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, "serializing audit event")
	}
	if _, err := a.w.Write(append(data, '\n')); err != nil {
		return apperrors.Wrap(err, "writing audit event")
	}
	return nil
}

// Close closes the underlying writer when it has one to close.
func (a *AuditTrail) Close() error {
	if c, ok := a.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
