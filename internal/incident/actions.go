package incident

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Notifier delivers a recorded action to the train crew or an operator
// channel.
type Notifier interface {
	Notify(ctx context.Context, a *Action) error
}

// ActionLog is the in-memory, append-only record of operator commands.
// It is not persisted and starts empty on every boot.
type ActionLog struct {
	mu        sync.Mutex
	actions   []Action
	nextID    int64
	logger    log.Logger
	hooks     *Hooks
	notifiers []Notifier
	now       func() time.Time
}

// NewActionLog creates an empty action log. Notifiers run asynchronously
// after each Record and their failures are only logged.
func NewActionLog(logger log.Logger, hooks Hooks, notifiers ...Notifier) *ActionLog {
	if logger == nil {
		logger = log.Nop()
	}
	return &ActionLog{
		nextID:    1,
		logger:    logger,
		hooks:     &hooks,
		notifiers: notifiers,
		now:       time.Now,
	}
}

// Record validates and appends an action, then emits the notification
// intent.
func (l *ActionLog) Record(ctx context.Context, alertID string, t ActionType, operatorID string) (*Action, error) {
	if strings.TrimSpace(alertID) == "" {
		return nil, fmt.Errorf("%w: alert_id is required", ErrValidation)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, t)
	}
	if strings.TrimSpace(operatorID) == "" {
		return nil, fmt.Errorf("%w: operator_id is required", ErrValidation)
	}

	l.mu.Lock()
	a := Action{
		ID:         l.nextID,
		AlertID:    alertID,
		Type:       t,
		OperatorID: operatorID,
		Timestamp:  l.now().UTC(),
	}
	l.nextID++
	l.actions = append(l.actions, a)
	l.mu.Unlock()

	l.logger.Info(ctx, "notification intent",
		"action_id", a.ID,
		"alert_id", a.AlertID,
		"action", string(a.Type),
		"operator_id", a.OperatorID,
	)

	l.hooks.action(a.Type)
	l.hooks.event(EventActionRecorded, a)

	if len(l.notifiers) > 0 {
		cp := a
		go l.dispatch(context.WithoutCancel(ctx), &cp)
	}
	return &a, nil
}

func (l *ActionLog) dispatch(ctx context.Context, a *Action) {
	for _, n := range l.notifiers {
		if err := n.Notify(ctx, a); err != nil {
			l.logger.Warn(ctx, "action notifier failed", "action_id", a.ID, "error", err)
		}
	}
}

// List returns a copy of every recorded action in insertion order.
func (l *ActionLog) List() []Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Action, len(l.actions))
	copy(out, l.actions)
	return out
}

// Len returns the number of recorded actions.
func (l *ActionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actions)
}
