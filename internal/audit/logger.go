package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"academia-identity/backend/internal/audit/domain"
	auditrepo "academia-identity/backend/internal/audit/repository"
)

// SentinelAcademiaID is the academia recorded for events of users not yet attached to one.
const SentinelAcademiaID = "_system"

// AuditLogger writes a single account event. LogEvent is best-effort: failures are logged and
// do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, academiaID, userID, action string, metadata map[string]string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo   auditrepo.Repository
	logger *zap.Logger
}

// NewLogger returns an AuditLogger that persists to repo. logger receives write failures and may be nil.
func NewLogger(repo auditrepo.Repository, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{repo: repo, logger: logger}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, academiaID, userID, action string, metadata map[string]string) {
	if l.repo == nil {
		return
	}
	if academiaID == "" {
		academiaID = SentinelAcademiaID
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		AcademiaID: academiaID,
		UserID:     userID,
		Action:     action,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.logger.Warn("audit: failed to log event", zap.String("action", action), zap.Error(err))
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, map[string]string) {}
