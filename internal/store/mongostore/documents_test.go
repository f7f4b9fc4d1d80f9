package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"debt-collector/internal/bills"
	"debt-collector/internal/calls"
	"debt-collector/internal/tenant"
)

func decode[T any](t *testing.T, doc bson.M) T {
	t.Helper()
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var out T
	require.NoError(t, bson.Unmarshal(raw, &out))
	return out
}

func TestInstanceDoc_LooselyTypedFields(t *testing.T) {
	oid := primitive.NewObjectID()
	d := decode[instanceDoc](t, bson.M{
		"_id":           oid,
		"instance_name": "acme",
		"erp":           bson.M{"type": "ixc"},
		"status":        bson.M{"active": true},
		"charger":       bson.M{"minimum_days_to_charge": "10", "dial_interval": int32(2), "dial_per_day": 5.0},
		"asterisk": bson.M{
			"host":                  "10.0.0.5",
			"port":                  int32(8089),
			"username":              "ari",
			"password":              "secret",
			"channel":               "operadora",
			"extension":             int64(200),
			"num_channel_available": "4",
		},
	})

	in := d.toInstance()
	assert.Equal(t, "acme-ixc-"+oid.Hex(), in.ID)
	assert.True(t, in.Active)
	assert.Equal(t, 10, in.Policy.MinDaysToCharge)
	assert.Equal(t, 2, in.Policy.DialIntervalHours)
	assert.Equal(t, 5, in.Policy.DialsPerDay)
	assert.Equal(t, 4, in.Policy.ChannelCapacity)
	assert.Equal(t, "8089", in.Gateway.Port)
	assert.Equal(t, "200", in.Gateway.Extension)
	assert.Equal(t, "operadora", in.Gateway.Trunk)
	assert.NoError(t, in.Gateway.Validate())
}

func TestInstanceDoc_MissingSettingsUseDefaults(t *testing.T) {
	oid := primitive.NewObjectID()
	in := decode[instanceDoc](t, bson.M{"_id": oid}).toInstance()
	assert.Equal(t, "default-ixc-"+oid.Hex(), in.ID)
	assert.Equal(t, tenant.DefaultDialPolicy(), in.Policy)
	assert.Error(t, in.Gateway.Validate())

	in = decode[instanceDoc](t, bson.M{"_id": oid, "charger": bson.M{"minimum_days_to_charge": nil}}).toInstance()
	assert.Equal(t, tenant.DefaultMinDaysToCharge, in.Policy.MinDaysToCharge)
}

func TestInstanceDoc_ExplicitZeroSettingsAreKept(t *testing.T) {
	in := decode[instanceDoc](t, bson.M{
		"_id":      primitive.NewObjectID(),
		"charger":  bson.M{"minimum_days_to_charge": int32(0), "dial_interval": "0", "dial_per_day": int32(2)},
		"asterisk": bson.M{"num_channel_available": int32(0)},
	}).toInstance()

	assert.Equal(t, tenant.DialPolicy{MinDaysToCharge: 0, DialIntervalHours: 0, DialsPerDay: 2, ChannelCapacity: 0}, in.Policy)
}

func TestBillDoc_ToBill(t *testing.T) {
	b := decode[billDoc](t, bson.M{
		"_id":                primitive.NewObjectID(),
		"id":                 int32(991),
		"instance_full_id":   "acme-ixc-1",
		"id_cliente":         int32(42),
		"fantasia":           "Acme Ltda",
		"valor":              120.5,
		"valor_aberto":       0.0,
		"expired_age":        int32(12),
		"telefone_celular":   "(11) 91111-0000",
		"telefone_comercial": int64(1133334444),
		"full_id":            "acme-ixc-1-42-991",
		"vencimento_status":  "expired",
	}).toBill()

	assert.Equal(t, "991", b.ID)
	assert.Equal(t, "42", b.ClientID)
	assert.Equal(t, "Acme Ltda", b.OwnerName)
	assert.Equal(t, int64(12050), b.AmountOpenMinor)
	assert.Equal(t, 12, b.ExpiredAgeDays)
	assert.Equal(t, "1133334444", b.Phones.Landline)
	assert.Equal(t, "", b.Phones.Messaging)
	assert.Equal(t, bills.DueStatusOverdue, b.DueStatus)
}

func TestRawMinor_RoundsToCents(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{0.1 + 0.2, 30},
		{"19.99", 1999},
		{int32(7), 700},
		{"n/a", 0},
	}
	for _, tc := range cases {
		v := decode[struct {
			V bson.RawValue `bson:"v"`
		}](t, bson.M{"v": tc.in})
		assert.Equal(t, tc.want, rawMinor(v.V), "%v", tc.in)
	}
}

func TestTimeRange_OpenBounds(t *testing.T) {
	assert.Empty(t, timeRange(time.Time{}, time.Time{}))

	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	r := timeRange(from, time.Time{})
	assert.Equal(t, bson.M{"$gte": from}, r)
}

func TestTriggeredFilter_AcceptsLegacyStatus(t *testing.T) {
	f := triggeredFilter("acme-ixc-1", "11999990000")
	assert.Equal(t, bson.M{"$in": bson.A{"triggered", "success"}}, f["details.status"])
	assert.Equal(t, actionDialerTrigger, f["action"])
}

func TestHistoryDoc_LegacyRowIsTriggered(t *testing.T) {
	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	d := decode[historyDoc](t, bson.M{
		"_id":              primitive.NewObjectID(),
		"full_id":          "FAT-1",
		"action":           "dialer_trigger",
		"occurred_at":      ts,
		"instance_full_id": "acme-ixc-1",
		"details":          bson.M{"number": "11999990000", "client_name": "Ana", "status": "success"},
	})
	e := d.toEntry()
	assert.Equal(t, calls.OutcomeTriggered, e.Outcome)
	assert.Equal(t, "11999990000", e.ContactNumber)
	assert.True(t, e.TriggeredAt.Equal(ts))
}
