package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"debt-collector/internal/bills"
)

// vencimento_status value the sync pipeline writes for overdue bills.
const statusExpired = "expired"

type billDoc struct {
	OID        bson.RawValue `bson:"_id"`
	ERPID      bson.RawValue `bson:"id"`
	InstanceID string        `bson:"instance_full_id"`
	ClientID   bson.RawValue `bson:"id_cliente"`
	Razao      string        `bson:"razao"`
	Fantasia   string        `bson:"fantasia"`

	ValorAberto bson.RawValue `bson:"valor_aberto"`
	Valor       bson.RawValue `bson:"valor"`
	ExpiredAge  bson.RawValue `bson:"expired_age"`

	Mobile    bson.RawValue `bson:"telefone_celular"`
	Landline  bson.RawValue `bson:"telefone_comercial"`
	Messaging bson.RawValue `bson:"whatsapp"`

	FullID string `bson:"full_id"`
	Status string `bson:"vencimento_status"`
}

func (d billDoc) toBill() bills.Bill {
	id := rawString(d.ERPID)
	if id == "" {
		id = rawString(d.OID)
	}
	owner := d.Razao
	if owner == "" {
		owner = d.Fantasia
	}
	amount := rawMinor(d.ValorAberto)
	if amount == 0 {
		amount = rawMinor(d.Valor)
	}
	status := bills.DueStatus(d.Status)
	if d.Status == statusExpired {
		status = bills.DueStatusOverdue
	}
	return bills.Bill{
		ID:              id,
		InstanceID:      d.InstanceID,
		ClientID:        rawString(d.ClientID),
		OwnerName:       owner,
		AmountOpenMinor: amount,
		ExpiredAgeDays:  rawInt(d.ExpiredAge),
		Phones: bills.Phones{
			Mobile:    rawString(d.Mobile),
			Landline:  rawString(d.Landline),
			Messaging: rawString(d.Messaging),
		},
		BillRef:   d.FullID,
		DueStatus: status,
	}
}

type callHistoryDoc struct {
	OccurredAt time.Time `bson:"occurred_at"`
	Number     string    `bson:"number"`
	Status     string    `bson:"status"`
}

// BillRepo reads overdue bills and pushes call marks onto their embedded
// call_history arrays.
type BillRepo struct {
	col *mongo.Collection
}

var _ bills.Repository = (*BillRepo)(nil)

// ListOverdue returns expired bills in insertion order.
func (r *BillRepo) ListOverdue(ctx context.Context, instanceID string) ([]bills.Bill, error) {
	filter := bson.M{"instance_full_id": instanceID, "vencimento_status": statusExpired}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []billDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]bills.Bill, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toBill())
	}
	return out, nil
}

type markGroup struct {
	instanceID string
	entry      callHistoryDoc
}

// AppendCallMarks pushes one call_history entry per mark. Marks sharing the
// same dispatch are written with a single update.
func (r *BillRepo) AppendCallMarks(ctx context.Context, marks []bills.CallMark) error {
	var (
		order  []markGroup
		groups = map[markGroup][]string{}
	)
	for _, m := range marks {
		g := markGroup{
			instanceID: m.InstanceID,
			entry:      callHistoryDoc{OccurredAt: m.OccurredAt, Number: m.ContactNumber, Status: m.Status},
		}
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], m.BillRef)
	}

	for _, g := range order {
		filter := bson.M{"instance_full_id": g.instanceID, "full_id": bson.M{"$in": groups[g]}}
		update := bson.M{"$push": bson.M{"call_history": g.entry}}
		if _, err := r.col.UpdateMany(ctx, filter, update); err != nil {
			return fmt.Errorf("mongostore: push call history: %w", err)
		}
	}
	return nil
}
