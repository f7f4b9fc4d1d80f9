package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"debt-collector/internal/calls"
)

// actionDialerTrigger tags dial history rows in history_action_log.
const actionDialerTrigger = "dialer_trigger"

// legacyStatusSuccess marks dials written by the previous worker, which logged
// one row per bill of a dispatch, all sharing occurred_at.
const legacyStatusSuccess = "success"

type historyDoc struct {
	ID         string         `bson:"_id"`
	InstanceID string         `bson:"instance_full_id"`
	Action     string         `bson:"action"`
	OccurredAt time.Time      `bson:"occurred_at"`
	FullIDs    []string       `bson:"full_ids"`
	Details    historyDetails `bson:"details"`
}

type historyDetails struct {
	Number   string `bson:"number"`
	ClientID string `bson:"client_id"`
	Status   string `bson:"status"`
}

func (d historyDoc) toEntry() calls.HistoryEntry {
	outcome := calls.Outcome(d.Details.Status)
	if d.Details.Status == legacyStatusSuccess {
		outcome = calls.OutcomeTriggered
	}
	return calls.HistoryEntry{
		ID:            d.ID,
		InstanceID:    d.InstanceID,
		ContactNumber: d.Details.Number,
		ClientID:      d.Details.ClientID,
		BillRefs:      d.FullIDs,
		TriggeredAt:   d.OccurredAt,
		Outcome:       outcome,
	}
}

type gatewayDoc struct {
	GatewayCallID string    `bson:"_id"`
	ChannelName   string    `bson:"channel_name"`
	CallerID      string    `bson:"caller_id"`
	BillRef       string    `bson:"full_id"`
	InstanceID    string    `bson:"instance_full_id"`
	Number        string    `bson:"number"`
	TriggeredAt   time.Time `bson:"triggered_at"`
}

func (d gatewayDoc) toRecord() calls.GatewayCallRecord {
	return calls.GatewayCallRecord{
		GatewayCallID: d.GatewayCallID,
		ChannelName:   d.ChannelName,
		CallerID:      d.CallerID,
		BillRef:       d.BillRef,
		InstanceID:    d.InstanceID,
		ContactNumber: d.Number,
		TriggeredAt:   d.TriggeredAt,
	}
}

// CallRepo keeps dial history in history_action_log and gateway correlation
// records in gateway_calls.
type CallRepo struct {
	log     *mongo.Collection
	gateway *mongo.Collection
}

var _ calls.Repository = (*CallRepo)(nil)

func (r *CallRepo) AppendHistory(ctx context.Context, e calls.HistoryEntry) error {
	if e.ID == "" || e.InstanceID == "" || e.ContactNumber == "" {
		return calls.ErrInvalidEntry
	}
	refs := e.BillRefs
	if refs == nil {
		refs = []string{}
	}
	_, err := r.log.InsertOne(ctx, historyDoc{
		ID:         e.ID,
		InstanceID: e.InstanceID,
		Action:     actionDialerTrigger,
		OccurredAt: e.TriggeredAt,
		FullIDs:    refs,
		Details: historyDetails{
			Number:   e.ContactNumber,
			ClientID: e.ClientID,
			Status:   string(e.Outcome),
		},
	})
	return err
}

func triggeredFilter(instanceID, number string) bson.M {
	return bson.M{
		"instance_full_id": instanceID,
		"action":           actionDialerTrigger,
		"details.number":   number,
		"details.status":   bson.M{"$in": bson.A{string(calls.OutcomeTriggered), legacyStatusSuccess}},
	}
}

// CountSince counts dispatches, not rows: legacy per-bill rows of one
// dispatch share occurred_at and count once.
func (r *CallRepo) CountSince(ctx context.Context, instanceID, number string, since time.Time) (int, error) {
	filter := triggeredFilter(instanceID, number)
	filter["occurred_at"] = bson.M{"$gte": since}
	times, err := r.log.Distinct(ctx, "occurred_at", filter)
	if err != nil {
		return 0, err
	}
	return len(times), nil
}

func (r *CallRepo) MostRecent(ctx context.Context, instanceID, number string) (calls.HistoryEntry, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	var d historyDoc
	if err := r.log.FindOne(ctx, triggeredFilter(instanceID, number), opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return calls.HistoryEntry{}, false, nil
		}
		return calls.HistoryEntry{}, false, err
	}
	return d.toEntry(), true, nil
}

// UpsertGatewayCall replaces the record keyed by the gateway call id.
func (r *CallRepo) UpsertGatewayCall(ctx context.Context, rec calls.GatewayCallRecord) error {
	if rec.GatewayCallID == "" || rec.InstanceID == "" {
		return calls.ErrInvalidEntry
	}
	doc := gatewayDoc{
		GatewayCallID: rec.GatewayCallID,
		ChannelName:   rec.ChannelName,
		CallerID:      rec.CallerID,
		BillRef:       rec.BillRef,
		InstanceID:    rec.InstanceID,
		Number:        rec.ContactNumber,
		TriggeredAt:   rec.TriggeredAt,
	}
	_, err := r.gateway.ReplaceOne(ctx, bson.M{"_id": rec.GatewayCallID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *CallRepo) ListHistory(ctx context.Context, instanceID string, from, to time.Time) ([]calls.HistoryEntry, error) {
	filter := bson.M{"instance_full_id": instanceID, "action": actionDialerTrigger}
	if tr := timeRange(from, to); len(tr) > 0 {
		filter["occurred_at"] = tr
	}
	cur, err := r.log.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []historyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]calls.HistoryEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toEntry())
	}
	return out, nil
}

func (r *CallRepo) ListGatewayCalls(ctx context.Context, instanceID string, from, to time.Time) ([]calls.GatewayCallRecord, error) {
	filter := bson.M{"instance_full_id": instanceID}
	if tr := timeRange(from, to); len(tr) > 0 {
		filter["triggered_at"] = tr
	}
	cur, err := r.gateway.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "triggered_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []gatewayDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]calls.GatewayCallRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toRecord())
	}
	return out, nil
}
