package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/listwizard/internal/store"
	"github.com/rendis/listwizard/pkg/schema"
)

// collaborator persists one session's draft on exit and completion.
type collaborator struct {
	m    *Manager
	sess *Session
}

// Complete attaches the basic-info summary and submits the draft.
func (c *collaborator) Complete(ctx context.Context, d *schema.DraftRecord) error {
	c.sess.saveMu.Lock()
	defer c.sess.saveMu.Unlock()

	now := c.m.clock.Now()
	d.SetSection("basicInfo", BasicInfoSummary(d, now))
	if err := c.m.store.SubmitDraft(ctx, c.sess.DraftID, d); err != nil {
		return err
	}
	c.m.logger.Info("draft submitted",
		slog.String("session_id", c.sess.SessionID()),
		slog.String("draft_id", c.sess.DraftID),
	)
	return c.endSession(ctx, schema.SessionStatusCompleted, d.LastStep, now)
}

// SaveDraft stores the partial draft with the step to resume at.
func (c *collaborator) SaveDraft(ctx context.Context, d *schema.DraftRecord, rawStepID string) error {
	c.sess.saveMu.Lock()
	defer c.sess.saveMu.Unlock()

	if err := c.m.store.SaveDraft(ctx, &store.Draft{ID: c.sess.DraftID, LastStep: rawStepID, Document: d}); err != nil {
		return err
	}
	return c.endSession(ctx, schema.SessionStatusExited, rawStepID, c.m.clock.Now())
}

func (c *collaborator) endSession(ctx context.Context, status schema.SessionStatus, step string, at time.Time) error {
	return c.m.store.UpsertSession(ctx, &store.Session{
		ID:          c.sess.SessionID(),
		DraftID:     c.sess.DraftID,
		Status:      status,
		CurrentStep: step,
		StartedAt:   c.sess.StartedAt,
		EndedAt:     &at,
	})
}

// BasicInfoSummary condenses the answered basic-info questions into the
// basicInfo section that marks the section complete.
func BasicInfoSummary(d *schema.DraftRecord, at time.Time) schema.Section {
	sum := schema.Section{"completedAt": at.UTC().Format(time.RFC3339)}
	if v, ok := d.Field("address", "value"); ok {
		if a, ok := schema.AddressFrom(v); ok {
			sum["address"] = a
		} else {
			sum["address"] = v
		}
	}
	for _, f := range []string{"propertyType", "bedrooms", "bathrooms", "squareFootage", "lotSize"} {
		if v := d.String("propertySpecs", f); v != "" {
			sum[f] = v
		}
	}
	if v := d.String("occupancy", "status"); v != "" {
		sum["occupancy"] = v
	}
	return sum
}
