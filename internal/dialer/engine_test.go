package dialer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debt-collector/internal/audit"
	"debt-collector/internal/bills"
	"debt-collector/internal/calls"
	"debt-collector/internal/telephony"
	"debt-collector/internal/tenant"
)

type stubGateway struct {
	mu   sync.Mutex
	reqs []telephony.OriginateRequest
	res  func(n int) (telephony.OriginateResult, error)
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) Originate(ctx context.Context, req telephony.OriginateRequest) (telephony.OriginateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	n := len(g.reqs)
	if g.res != nil {
		return g.res(n)
	}
	return telephony.OriginateResult{CallID: fmt.Sprintf("call-%d", n), ChannelName: fmt.Sprintf("SIP/trunk-%04d", n), CallerID: req.CallerID}, nil
}

func (g *stubGateway) requests() []telephony.OriginateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]telephony.OriginateRequest(nil), g.reqs...)
}

type harness struct {
	bills   *bills.MemoryRepo
	calls   *calls.MemoryRepo
	audit   *audit.MemoryRepo
	gateway *stubGateway
	engine  *Engine
	clock   time.Time
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	h := &harness{
		bills:   bills.NewMemoryRepo(),
		calls:   calls.NewMemoryRepo(),
		audit:   audit.NewMemoryRepo(),
		gateway: &stubGateway{},
		clock:   now,
	}
	auditSvc := audit.NewService(h.audit)
	d := &Dispatcher{
		Gateways:    func(tenant.GatewayConfig) telephony.Gateway { return h.gateway },
		History:     h.calls,
		Correlation: h.calls,
		Marks:       h.bills,
		Audit:       auditSvc,
		Now:         func() time.Time { return h.clock },
	}
	h.engine = NewEngine(h.bills, h.calls, d, NewMemoryLease(), auditSvc, EngineConfig{
		Location:     time.UTC,
		Pause:        time.Second,
		QueryTimeout: time.Second,
	})
	h.engine.Now = func() time.Time { return h.clock }
	h.engine.Sleep = func(ctx context.Context, d time.Duration) error {
		h.clock = h.clock.Add(d)
		return ctx.Err()
	}
	return h
}

func instance(id string, policy tenant.DialPolicy) tenant.Instance {
	return tenant.Instance{
		ID:     id,
		Name:   id,
		Active: true,
		Policy: policy,
		Gateway: tenant.GatewayConfig{
			Host:        "10.0.0.5",
			Username:    "ari",
			Password:    "secret",
			ChannelType: "SIP",
			Trunk:       "operadora",
		},
	}
}

func withPhone(b bills.Bill, instanceID, mobile string) bills.Bill {
	b.InstanceID = instanceID
	b.Phones = bills.Phones{Mobile: mobile}
	return b
}

func scenarioBills(instanceID string) []bills.Bill {
	return []bills.Bill{
		withPhone(bill("1", 10, 10000, "FAT-1A"), instanceID, "(11) 91111-0000"),
		withPhone(bill("1", 12, 5000, "FAT-1B"), instanceID, "(11) 91111-0000"),
		withPhone(bill("2", 20, 30000, "FAT-2"), instanceID, "(11) 92222-0000"),
		withPhone(bill("3", 8, 1000, "FAT-3"), instanceID, "(11) 93333-0000"),
		withPhone(bill("4", 2, 99999, "FAT-4"), instanceID, "(11) 94444-0000"),
	}
}

func TestEngine_Scenario_TwoChannelQueueMostOverdueFirst(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	h.bills.Add(scenarioBills("scenario")...)
	inst := instance("scenario", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 2})

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)

	assert.False(t, rep.Skipped)
	assert.Equal(t, 4, rep.EligibleCount)
	assert.Equal(t, 3, rep.Candidates)
	assert.Equal(t, 2, rep.Queued)
	assert.Equal(t, []string{"2", "1"}, rep.Queue)
	assert.Equal(t, 2, rep.Triggered)
	assert.Equal(t, 0, rep.Failed)

	reqs := h.gateway.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "SIP/operadora/11922220000", reqs[0].Endpoint)
	assert.Equal(t, "FAT-2", reqs[0].CallerID)
	assert.Equal(t, "SIP/operadora/11911110000", reqs[1].Endpoint)
	assert.Equal(t, "FAT-1A", reqs[1].CallerID)
	assert.Equal(t, "from-internal", reqs[0].Context)
	assert.Equal(t, "100", reqs[0].Extension)

	hist := h.calls.History()
	require.Len(t, hist, 2)
	assert.Equal(t, []string{"FAT-1A", "FAT-1B"}, hist[1].BillRefs)
	assert.Equal(t, at(4, 10, 0).Add(time.Second), hist[1].TriggeredAt, "one pause between dispatches")

	gw := h.calls.GatewayCalls()
	require.Len(t, gw, 2)
	assert.Equal(t, "FAT-2", gw[0].BillRef)
	assert.Equal(t, "call-1", gw[0].GatewayCallID)

	assert.Len(t, h.bills.Marks(), 3)

	var stats []audit.Event
	for _, e := range h.audit.Events() {
		if e.Type == audit.EventTypeDialerStats {
			stats = append(stats, e)
		}
	}
	require.Len(t, stats, 1)
	assert.JSONEq(t, `{"eligible":4,"queue_size":2,"triggered":2,"failed":0}`, stats[0].Metadata)
}

func TestEngine_IneligibleBillsNeverDialed(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	h.bills.Add(scenarioBills("inelig")...)
	inst := instance("inelig", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 10})

	_, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)

	for _, e := range h.calls.History() {
		assert.NotEqual(t, "4", e.ClientID)
	}
	for _, r := range h.gateway.requests() {
		assert.NotEqual(t, "SIP/operadora/11944440000", r.Endpoint)
	}
}

func TestEngine_ExplicitZeroPolicyIsHonoured(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	h.bills.Add(withPhone(bill("5", 3, 500, "FAT-5"), "zero", "(11) 95555-0000"))
	// A call ten minutes ago only blocks when an interval is configured.
	seedFor(t, h.calls, "zero", "11955550000", at(4, 9, 50))
	inst := instance("zero", tenant.DialPolicy{MinDaysToCharge: 0, DialIntervalHours: 0, DialsPerDay: 3, ChannelCapacity: 1})

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.EligibleCount)
	assert.Equal(t, []string{"5"}, rep.Queue)
	assert.Equal(t, 1, rep.Triggered)
}

func TestEngine_SaturdayAfternoonIsNoop(t *testing.T) {
	h := newHarness(t, at(2, 14, 0))
	h.bills.ListErr = errors.New("bills must not be loaded outside the window")
	inst := instance("saturday", tenant.DefaultDialPolicy())

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.Equal(t, SkipWindow, rep.SkipReason)
	assert.Empty(t, h.gateway.requests())
	assert.Empty(t, h.audit.Events())
}

func TestEngine_DebugInstanceIgnoresWindow(t *testing.T) {
	h := newHarness(t, at(3, 22, 0))
	h.bills.Add(scenarioBills("debug")...)
	inst := instance("debug", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 1})
	inst.DebugCalls = true

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
	assert.Equal(t, 1, rep.Triggered)
}

func TestEngine_DailyCapExcludesMostUrgentNumber(t *testing.T) {
	h := newHarness(t, at(4, 18, 0))
	h.bills.Add(scenarioBills("cap")...)
	// client 2 is the most overdue, but its number already took 3 calls today.
	seedFor(t, h.calls, "cap", "11922220000", at(4, 8, 0), at(4, 12, 0), at(4, 13, 30))
	inst := instance("cap", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 2})

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, rep.Queue)
}

func TestEngine_IntervalExcludesRecentlyCalledNumber(t *testing.T) {
	h := newHarness(t, at(4, 14, 0))
	h.bills.Add(scenarioBills("interval")...)
	seedFor(t, h.calls, "interval", "11922220000", at(4, 12, 0))
	inst := instance("interval", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 2})

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.NotContains(t, rep.Queue, "2")
}

func TestEngine_FallsBackToLandlineWhenMobileIsLimited(t *testing.T) {
	h := newHarness(t, at(4, 14, 0))
	b := bill("9", 30, 100, "FAT-9")
	b.InstanceID = "fallback"
	b.Phones = bills.Phones{Mobile: "11999990000", Landline: "1133334444"}
	h.bills.Add(b)
	seedFor(t, h.calls, "fallback", "11999990000", at(4, 13, 0))
	inst := instance("fallback", tenant.DialPolicy{MinDaysToCharge: 7, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 5})

	_, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)

	reqs := h.gateway.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "SIP/operadora/1133334444", reqs[0].Endpoint)
}

func TestEngine_SharedNumberDialedOncePerCycle(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	a := withPhone(bill("a", 40, 1, "A-1"), "shared", "11999990000")
	b := withPhone(bill("b", 30, 1, "B-1"), "shared", "11999990000")
	h.bills.Add(a, b)
	inst := instance("shared", tenant.DialPolicy{MinDaysToCharge: 7, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 5})

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Queued)
	assert.Equal(t, 1, rep.Triggered)
	assert.Equal(t, 1, rep.Deferred)
	assert.Len(t, h.calls.History(), 1)
}

func TestEngine_GatewayHTTP500WritesNoHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newHarness(t, at(4, 10, 0))
	h.engine.Dispatcher.Gateways = func(cfg tenant.GatewayConfig) telephony.Gateway {
		return telephony.NewARIClient(telephony.ARIConfig{BaseURL: srv.URL, Username: cfg.Username, Password: cfg.Password}, nil)
	}
	h.bills.Add(scenarioBills("http500")...)
	inst := instance("http500", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 2})

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Triggered)
	assert.Equal(t, 2, rep.Failed)
	assert.Empty(t, h.calls.History())
	assert.Empty(t, h.calls.GatewayCalls())
	assert.Empty(t, h.bills.Marks())

	failed := 0
	for _, e := range h.audit.Events() {
		if e.Type == audit.EventTypeDialFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)

	// No cap consumed: the same number is still callable right away.
	lim := NewRateLimiter(h.calls, tenant.DialPolicy{DialsPerDay: 3, DialIntervalHours: 4}, time.UTC, time.Second)
	ok, err := lim.CanCall(context.Background(), "http500", "11922220000", at(4, 10, 5))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_OneFailureDoesNotAbortQueue(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	h.gateway.res = func(n int) (telephony.OriginateResult, error) {
		if n == 1 {
			return telephony.OriginateResult{}, fmt.Errorf("%w: status 503", telephony.ErrGatewayStatus)
		}
		return telephony.OriginateResult{CallID: fmt.Sprintf("c%d", n)}, nil
	}
	h.bills.Add(scenarioBills("partial")...)
	inst := instance("partial", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 3})

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 2, rep.Triggered)
}

func TestEngine_InvalidGatewayIsConfigurationError(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	inst := instance("nocreds", tenant.DefaultDialPolicy())
	inst.Gateway.Password = ""

	rep, err := h.engine.RunCycle(context.Background(), inst)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, tenant.ErrInvalidGateway)
	assert.True(t, rep.Skipped)
	assert.Equal(t, SkipConfig, rep.SkipReason)
	assert.Empty(t, h.gateway.requests())
}

func TestEngine_LeaseHeldSkipsCycle(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	h.bills.Add(scenarioBills("leased")...)
	inst := instance("leased", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 10})

	ok, err := h.engine.Lease.Acquire(context.Background(), "leased")
	require.NoError(t, err)
	require.True(t, ok)

	rep, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.Equal(t, SkipLease, rep.SkipReason)
	assert.Empty(t, h.gateway.requests())

	require.NoError(t, h.engine.Lease.Release(context.Background(), "leased"))
	rep, err = h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
}

func TestEngine_LeaseReleasedAfterCycle(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	inst := instance("release", tenant.DefaultDialPolicy())

	_, err := h.engine.RunCycle(context.Background(), inst)
	require.NoError(t, err)

	ok, err := h.engine.Lease.Acquire(context.Background(), "release")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_CancellationBetweenCandidatesLeavesCompleteRecords(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	ctx, cancel := context.WithCancel(context.Background())
	h.engine.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	h.bills.Add(scenarioBills("cancel")...)
	inst := instance("cancel", tenant.DialPolicy{MinDaysToCharge: 5, DialsPerDay: 3, DialIntervalHours: 4, ChannelCapacity: 3})

	rep, err := h.engine.RunCycle(ctx, inst)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rep.Triggered)
	assert.Len(t, h.calls.History(), 1)
	assert.Len(t, h.calls.GatewayCalls(), 1)

	// stats are still recorded for the partial cycle
	var statsSeen bool
	for _, e := range h.audit.Events() {
		statsSeen = statsSeen || e.Type == audit.EventTypeDialerStats
	}
	assert.True(t, statsSeen)
}

func TestEngine_BillsQueryErrorFailsCycle(t *testing.T) {
	h := newHarness(t, at(4, 10, 0))
	h.bills.ListErr = errors.New("connection refused")

	_, err := h.engine.RunCycle(context.Background(), instance("dberr", tenant.DefaultDialPolicy()))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfiguration)
}

func seedFor(t *testing.T, repo *calls.MemoryRepo, instanceID, number string, times ...time.Time) {
	t.Helper()
	for i, ts := range times {
		require.NoError(t, repo.AppendHistory(context.Background(), calls.HistoryEntry{
			ID:            fmt.Sprintf("%s-%s-%d", instanceID, number, i),
			InstanceID:    instanceID,
			ContactNumber: number,
			TriggeredAt:   ts,
			Outcome:       calls.OutcomeTriggered,
		}))
	}
}
