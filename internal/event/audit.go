package event

import (
	"fmt"
	"strings"
	"time"
)

const TypeAudit = "audit"

const auditTTL = time.Hour

// AuditEvent records a moderation or verification action. ActorID 0
// means the system itself acted.
type AuditEvent struct {
	*Base
	Action   string
	ActorID  int64
	TargetID int64
	Details  string
}

func Audit(action string, actorID, targetID int64, details string) {
	Bus.NQ(&AuditEvent{
		Base:     CreateBase(TypeAudit, time.Now().Add(auditTTL)),
		Action:   action,
		ActorID:  actorID,
		TargetID: targetID,
		Details:  details,
	})
}

func (e *AuditEvent) String() string {
	performer := "System"
	if e.ActorID != 0 {
		performer = fmt.Sprintf("ID %d", e.ActorID)
	}
	parts := []string{fmt.Sprintf("Action: %s | Performer: %s", e.Action, performer)}
	if e.TargetID != 0 {
		parts = append(parts, fmt.Sprintf("Target: ID %d", e.TargetID))
	}
	if e.Details != "" {
		parts = append(parts, fmt.Sprintf("Details: %s", e.Details))
	}
	return strings.Join(parts, " | ")
}
