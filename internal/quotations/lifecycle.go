package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/tierquote/internal/identity"
	"github.com/odyssey-erp/tierquote/internal/shared"
)

type Action string

const (
	ActionSend    Action = "send"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

type transition struct {
	from    []Status
	to      Status
	allowed func(actor identity.Actor, q Quotation) bool
}

func creatorOrPrivileged(actor identity.Actor, q Quotation) bool {
	return q.CreatedBy == actor.ID || actor.Privileged()
}

var transitions = map[Action]transition{
	ActionSend: {
		from:    []Status{StatusDraft},
		to:      StatusSent,
		allowed: creatorOrPrivileged,
	},
	ActionConfirm: {
		from: []Status{StatusSent},
		to:   StatusConfirmed,
		allowed: func(actor identity.Actor, _ Quotation) bool {
			return actor.Can().ConfirmQuotations
		},
	},
	ActionCancel: {
		from:    []Status{StatusDraft, StatusSent},
		to:      StatusCancelled,
		allowed: creatorOrPrivileged,
	},
}

func (t transition) accepts(s Status) bool {
	for _, from := range t.from {
		if from == s {
			return true
		}
	}
	return false
}

func (s *Service) Send(ctx context.Context, actor identity.Actor, id int64) (*Quotation, error) {
	return s.Transition(ctx, actor, id, ActionSend)
}

func (s *Service) Confirm(ctx context.Context, actor identity.Actor, id int64) (*Quotation, error) {
	return s.Transition(ctx, actor, id, ActionConfirm)
}

func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id int64) (*Quotation, error) {
	return s.Transition(ctx, actor, id, ActionCancel)
}

// Transition applies action to quotation id. The state check precedes the
// role check, and the write is a compare-and-set on the observed status so
// that of two racing transitions only one succeeds.
func (s *Service) Transition(ctx context.Context, actor identity.Actor, id int64, action Action) (*Quotation, error) {
	rule, ok := transitions[action]
	if !ok {
		return nil, shared.Validation("action", "unknown action %q", action)
	}
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if q.Status.Terminal() {
		s.observer.Transition(string(action), "invalid_state")
		return nil, shared.InvalidState("quotation %s is %s and cannot %s", q.Number, q.Status, action)
	}
	if !rule.accepts(q.Status) {
		s.observer.Transition(string(action), "invalid_state")
		return nil, shared.InvalidState("cannot %s a %s quotation", action, q.Status)
	}
	if !rule.allowed(actor, *q) {
		s.observer.Transition(string(action), "forbidden")
		return nil, shared.Forbidden("role %s cannot %s quotation %s", actor.Role, action, q.Number)
	}
	if action == ActionSend {
		if err := s.ensureProductsExist(ctx, *q); err != nil {
			return nil, err
		}
	}

	today := DateOf(s.now())
	applied, err := s.repo.Transition(ctx, id, q.Status, rule.to, &today)
	if err != nil {
		return nil, fmt.Errorf("transition quotation: %w", err)
	}
	if !applied {
		s.observer.Transition(string(action), "invalid_state")
		return nil, shared.InvalidState("quotation %s is no longer %s", q.Number, q.Status)
	}

	s.observer.Transition(string(action), "ok")
	s.record(ctx, actor.ID, "quotation."+string(action), id, map[string]any{
		"from": q.Status,
		"to":   rule.to,
	})
	return s.Get(ctx, actor, id)
}

func (s *Service) ensureProductsExist(ctx context.Context, q Quotation) error {
	ids := make([]int64, 0, len(q.Items))
	for _, it := range q.Items {
		ids = append(ids, it.ProductID)
	}
	found, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	for _, it := range q.Items {
		if _, ok := found[it.ProductID]; !ok {
			return shared.NotFound("product", it.ProductID)
		}
	}
	return nil
}

// ExpireOverdue persists the expired status for open quotations whose
// valid_until day is before asOf. Reads derive the same status on their
// own, so the sweep only keeps stored rows in line.
func (s *Service) ExpireOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.ExpireOverdue(ctx, DateOf(asOf))
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.record(ctx, 0, "quotation.expire", id, map[string]any{"as_of": DateOf(asOf).Format(dateLayout)})
	}
	if len(ids) > 0 {
		s.logger.Info("quotations expired", slog.Int("count", len(ids)))
	}
	return len(ids), nil
}
