package mongostore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"debt-collector/internal/tenant"
)

type instanceDoc struct {
	OID  primitive.ObjectID `bson:"_id"`
	Name string             `bson:"instance_name"`
	ERP  struct {
		Type string `bson:"type"`
	} `bson:"erp"`
	Status struct {
		Active bool `bson:"active"`
	} `bson:"status"`
	DebugCalls bool `bson:"debug_calls"`

	Charger struct {
		MinDays      bson.RawValue `bson:"minimum_days_to_charge"`
		DialInterval bson.RawValue `bson:"dial_interval"`
		DialPerDay   bson.RawValue `bson:"dial_per_day"`
	} `bson:"charger"`

	Asterisk struct {
		Schema      string        `bson:"schema"`
		Host        string        `bson:"host"`
		Port        bson.RawValue `bson:"port"`
		Username    string        `bson:"username"`
		Password    string        `bson:"password"`
		ChannelType string        `bson:"channel_type"`
		Channel     string        `bson:"channel"`
		Context     string        `bson:"context"`
		Extension   bson.RawValue `bson:"extension"`
		Channels    bson.RawValue `bson:"num_channel_available"`
	} `bson:"asterisk"`

	UpdatedAt time.Time `bson:"updated_at"`
}

func (d instanceDoc) toInstance() tenant.Instance {
	return tenant.Instance{
		ID:         tenant.FullID(d.Name, d.ERP.Type, d.OID.Hex()),
		Name:       d.Name,
		ERPType:    d.ERP.Type,
		Active:     d.Status.Active,
		DebugCalls: d.DebugCalls,
		Policy: tenant.DialPolicy{
			MinDaysToCharge:   rawIntOr(d.Charger.MinDays, tenant.DefaultMinDaysToCharge),
			DialIntervalHours: rawIntOr(d.Charger.DialInterval, tenant.DefaultDialIntervalHours),
			DialsPerDay:       rawIntOr(d.Charger.DialPerDay, tenant.DefaultDialsPerDay),
			ChannelCapacity:   rawIntOr(d.Asterisk.Channels, tenant.DefaultChannelCapacity),
		},
		Gateway: tenant.GatewayConfig{
			Schema:      d.Asterisk.Schema,
			Host:        d.Asterisk.Host,
			Port:        rawString(d.Asterisk.Port),
			Username:    d.Asterisk.Username,
			Password:    d.Asterisk.Password,
			ChannelType: d.Asterisk.ChannelType,
			Trunk:       d.Asterisk.Channel,
			Context:     d.Asterisk.Context,
			Extension:   rawString(d.Asterisk.Extension),
		},
		UpdatedAt: d.UpdatedAt,
	}
}

// TenantRepo reads instance_config documents.
type TenantRepo struct {
	col *mongo.Collection
}

var _ tenant.Repository = (*TenantRepo)(nil)

func (r *TenantRepo) ListActive(ctx context.Context) ([]tenant.Instance, error) {
	cur, err := r.col.Find(ctx, bson.M{"status.active": true})
	if err != nil {
		return nil, err
	}
	var docs []instanceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]tenant.Instance, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toInstance())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get resolves a full id by the ObjectID suffix and checks the rest matches.
func (r *TenantRepo) Get(ctx context.Context, instanceID string) (tenant.Instance, error) {
	i := strings.LastIndex(instanceID, "-")
	if i < 0 {
		return tenant.Instance{}, tenant.ErrNotFound
	}
	oid, err := primitive.ObjectIDFromHex(instanceID[i+1:])
	if err != nil {
		return tenant.Instance{}, tenant.ErrNotFound
	}

	var d instanceDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return tenant.Instance{}, tenant.ErrNotFound
		}
		return tenant.Instance{}, err
	}
	in := d.toInstance()
	if in.ID != instanceID {
		return tenant.Instance{}, tenant.ErrNotFound
	}
	return in, nil
}
