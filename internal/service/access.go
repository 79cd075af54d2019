package service

import (
	"context"
	"slices"
	"strings"

	"github.com/yakoovad/squad-roster/internal/model"
	"github.com/yakoovad/squad-roster/internal/repository"
)

// EditorResolver computes the caller's capability for a session. Services call it once per
// request and branch on the result.
type EditorResolver struct {
	sessions repository.SessionRepository
}

func NewEditorResolver(sessions repository.SessionRepository) *EditorResolver {
	return &EditorResolver{sessions: sessions}
}

func (r *EditorResolver) Resolve(ctx context.Context, session *model.Session, caller model.Caller) (model.Capability, error) {
	var c model.Capability

	if caller.SystemAdmin {
		c |= model.CapabilitySystemAdmin
	}
	if caller.UserID != "" && caller.UserID == session.CreatedBy {
		c |= model.CapabilityCreator
	}
	if caller.UserID == "" {
		return c, nil
	}

	editors, err := r.sessions.ListEditors(ctx, session.ID)
	if err != nil {
		return 0, err
	}
	if slices.Contains(editors, caller.UserID) {
		c |= model.CapabilityDesignatedEditor
	}
	return c, nil
}

// NormalizeEditorIDs trims ids, drops empty ones and removes duplicates, keeping first-seen order.
func NormalizeEditorIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
