package mongostore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"debt-collector/internal/audit"
)

// Audit events share history_action_log with dial history. Cycle stats keep
// the action name the dashboard already charts.
var eventActions = map[audit.EventType]string{
	audit.EventTypeDialerStats:  "job_dialer_stats",
	audit.EventTypeDialFailed:   "dialer_failed",
	audit.EventTypeCycleSkipped: "dialer_skipped",
	audit.EventTypeManualCycle:  "dialer_manual",
}

func eventType(action string) (audit.EventType, bool) {
	for t, a := range eventActions {
		if a == action {
			return t, true
		}
	}
	return "", false
}

type auditDoc struct {
	ID         string       `bson:"_id"`
	InstanceID string       `bson:"instance_full_id"`
	Action     string       `bson:"action"`
	OccurredAt time.Time    `bson:"occurred_at"`
	ActorID    string       `bson:"actor_id,omitempty"`
	ActorRole  string       `bson:"actor_role,omitempty"`
	Details    auditDetails `bson:"details"`
}

type auditDetails struct {
	Number   string         `bson:"number,omitempty"`
	ClientID string         `bson:"client_id,omitempty"`
	Message  string         `bson:"message,omitempty"`
	Data     map[string]any `bson:"data,omitempty"`
}

// AuditRepo appends and lists audit events.
type AuditRepo struct {
	col *mongo.Collection
}

var (
	_ audit.Repository = (*AuditRepo)(nil)
	_ audit.Reader     = (*AuditRepo)(nil)
)

func (r *AuditRepo) Append(ctx context.Context, e audit.Event) error {
	action, ok := eventActions[e.Type]
	if !ok {
		return fmt.Errorf("%w: unknown type %q", audit.ErrInvalidEvent, e.Type)
	}
	var data map[string]any
	if e.Metadata != "" {
		if err := json.Unmarshal([]byte(e.Metadata), &data); err != nil {
			return fmt.Errorf("%w: metadata: %v", audit.ErrInvalidEvent, err)
		}
	}
	_, err := r.col.InsertOne(ctx, auditDoc{
		ID:         e.ID,
		InstanceID: e.InstanceID,
		Action:     action,
		OccurredAt: e.CreatedAt,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Details: auditDetails{
			Number:   e.ContactNumber,
			ClientID: e.ClientID,
			Message:  e.Message,
			Data:     data,
		},
	})
	return err
}

// List returns events in [from, to); an empty typ lists every audit type.
func (r *AuditRepo) List(ctx context.Context, instanceID string, typ audit.EventType, from, to time.Time) ([]audit.Event, error) {
	filter := bson.M{"instance_full_id": instanceID}
	if typ != "" {
		action, ok := eventActions[typ]
		if !ok {
			return nil, nil
		}
		filter["action"] = action
	} else {
		actions := make([]string, 0, len(eventActions))
		for _, a := range eventActions {
			actions = append(actions, a)
		}
		filter["action"] = bson.M{"$in": actions}
	}
	if tr := timeRange(from, to); len(tr) > 0 {
		filter["occurred_at"] = tr
	}

	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []auditDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]audit.Event, 0, len(docs))
	for _, d := range docs {
		t, _ := eventType(d.Action)
		e := audit.Event{
			ID:            d.ID,
			InstanceID:    d.InstanceID,
			Type:          t,
			ActorID:       d.ActorID,
			ActorRole:     d.ActorRole,
			ContactNumber: d.Details.Number,
			ClientID:      d.Details.ClientID,
			Message:       d.Details.Message,
			CreatedAt:     d.OccurredAt,
		}
		if len(d.Details.Data) > 0 {
			if b, err := json.Marshal(d.Details.Data); err == nil {
				e.Metadata = string(b)
			}
		}
		out = append(out, e)
	}
	return out, nil
}
