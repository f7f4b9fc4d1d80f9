package dialer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debt-collector/internal/bills"
)

func bill(client string, age int, amount int64, ref string) bills.Bill {
	return bills.Bill{
		ID:              ref,
		InstanceID:      "inst",
		ClientID:        client,
		OwnerName:       "Owner " + client,
		AmountOpenMinor: amount,
		ExpiredAgeDays:  age,
		BillRef:         ref,
		DueStatus:       bills.DueStatusOverdue,
	}
}

func TestAggregate_FiltersByMinimumAge(t *testing.T) {
	in := []bills.Bill{
		bill("1", 10, 100, "F-1"),
		bill("1", 12, 50, "F-2"),
		bill("2", 20, 300, "F-3"),
		bill("3", 8, 10, "F-4"),
		bill("4", 2, 999, "F-5"),
	}

	aggs, eligible := Aggregate(in, 5)
	assert.Equal(t, 4, eligible)
	require.Len(t, aggs, 3)

	for _, a := range aggs {
		assert.NotEqual(t, "4", a.ClientID, "ineligible client must never aggregate")
	}

	c1 := aggs[0]
	assert.Equal(t, "1", c1.ClientID)
	assert.Equal(t, int64(150), c1.TotalValueMinor)
	assert.Equal(t, 12, c1.MaxExpiredAgeDays)
	assert.Equal(t, []string{"F-1", "F-2"}, c1.BillRefs)
	assert.Equal(t, "inst", c1.InstanceID)
}

func TestAggregate_KeepsEncounterOrderAndDistinctRefs(t *testing.T) {
	in := []bills.Bill{
		bill("b", 30, 1, "R-1"),
		bill("a", 30, 1, "R-2"),
		bill("b", 30, 1, "R-1"),
		bill("b", 30, 1, ""),
	}

	aggs, eligible := Aggregate(in, 7)
	assert.Equal(t, 4, eligible)
	require.Len(t, aggs, 2)
	assert.Equal(t, "b", aggs[0].ClientID)
	assert.Equal(t, "a", aggs[1].ClientID)
	assert.Equal(t, []string{"R-1"}, aggs[0].BillRefs)
	assert.Equal(t, int64(3), aggs[0].TotalValueMinor)
}

func TestAggregate_BillsWithoutClientAreCountedNotGrouped(t *testing.T) {
	aggs, eligible := Aggregate([]bills.Bill{bill("", 40, 1, "X")}, 7)
	assert.Equal(t, 1, eligible)
	assert.Empty(t, aggs)
}

func TestAggregate_FillsMissingOwnerAndPhonesFromLaterBills(t *testing.T) {
	first := bill("c", 10, 1, "A")
	first.OwnerName = ""
	first.Phones = bills.Phones{Mobile: "(11) 99999-0000"}
	second := bill("c", 11, 1, "B")
	second.OwnerName = "Maria"
	second.Phones = bills.Phones{Mobile: "11 98888-0000", Landline: "11 3333-4444"}

	aggs, _ := Aggregate([]bills.Bill{first, second}, 7)
	require.Len(t, aggs, 1)
	assert.Equal(t, "Maria", aggs[0].OwnerName)
	assert.Equal(t, "(11) 99999-0000", aggs[0].Phones.Mobile)
	assert.Equal(t, "11 3333-4444", aggs[0].Phones.Landline)
}
