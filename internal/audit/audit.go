// Package audit records who changed what. Recording is best effort: a sink
// failure is logged and swallowed so it can never fail or replace the
// result of the business operation that produced the event.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
	"github.com/phamhoa2416/ticket-booking/internal/model"
)

const linePattern = "[AUDIT] %s | User: %s | Action: %s | Details: %s"

// Actor identifies the caller on whose behalf a mutation runs.
type Actor struct {
	ID   uuid.UUID
	Role model.UserRole
}

// System is the actor used for background work such as expiry sweeps.
var System = Actor{}

func (a Actor) IsSystem() bool { return a.ID == uuid.Nil }

func (a Actor) String() string {
	if a.IsSystem() {
		return "SYSTEM"
	}
	return fmt.Sprintf("User ID: %s, Role: %s", a.ID, a.Role)
}

// Event is one append-only audit entry.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actor_id"`
	ActorRole string         `json:"actor_role"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Failed    bool           `json:"failed,omitempty"`
}

// String renders the event as a single log line.
func (e Event) String() string {
	user := "SYSTEM"
	if e.ActorID != "" {
		user = fmt.Sprintf("User ID: %s, Role: %s", e.ActorID, e.ActorRole)
	}
	return fmt.Sprintf(linePattern, e.Timestamp.UTC().Format(time.RFC3339), user, e.Action, formatDetails(e.Details))
}

// formatDetails prints details with sorted keys so lines are stable.
func formatDetails(d map[string]any) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, d[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Sink stores or forwards audit events.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Recorder fans events out to its sinks and isolates their failures.
type Recorder struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sinks: sinks, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Record emits a successful action.
func (r *Recorder) Record(ctx context.Context, actor Actor, action string, details map[string]any) {
	if r == nil {
		return
	}
	r.emit(ctx, r.event(actor, action, details, false))
}

// Failure emits a failed action together with the error that caused it.
func (r *Recorder) Failure(ctx context.Context, actor Actor, action string, err error, details map[string]any) {
	if r == nil {
		return
	}
	d := make(map[string]any, len(details)+2)
	for k, v := range details {
		d[k] = v
	}
	d["error_code"] = apperr.Code(err)
	d["error_message"] = err.Error()
	r.emit(ctx, r.event(actor, action, d, true))
}

func (r *Recorder) event(actor Actor, action string, details map[string]any, failed bool) Event {
	e := Event{Timestamp: r.now(), Action: action, Details: details, Failed: failed}
	if !actor.IsSystem() {
		e.ActorID = actor.ID.String()
		e.ActorRole = string(actor.Role)
	}
	return e
}

func (r *Recorder) emit(ctx context.Context, e Event) {
	for _, s := range r.sinks {
		r.write(ctx, s, e)
	}
}

func (r *Recorder) write(ctx context.Context, s Sink, e Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("audit sink panicked", "action", e.Action, "panic", p)
		}
	}()
	if err := s.Write(ctx, e); err != nil {
		r.logger.Warn("audit sink failed", "action", e.Action, "error", err)
	}
}
