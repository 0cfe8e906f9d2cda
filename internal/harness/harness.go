// Package harness runs declarative YAML dispatch scenarios against a real
// engine wired to fake time and a scripted printer sink. Scenario results
// serialize deterministically for golden-file comparison.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/platefire/expedite/internal/audit"
	"github.com/platefire/expedite/internal/config"
	"github.com/platefire/expedite/internal/engine"
	"github.com/platefire/expedite/internal/order"
	"github.com/platefire/expedite/internal/routing"
	"github.com/platefire/expedite/internal/scheduler"
	"github.com/platefire/expedite/internal/testutil"
	"github.com/platefire/expedite/internal/ticket"
)

// expoUser performs every scenario action, keeping audit output stable.
var expoUser = engine.User{ID: "expo-1", Name: "Expo Station"}

// Run executes the scenario and returns its trace, tickets, and audit
// trail. Infrastructure failures return an error; expectation mismatches
// are reported on the Result instead.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithConfig(scenario, nil)
}

// RunWithConfig executes the scenario on an engine built from cfg: its
// devices, assignments, thresholds, urgent priority, and retry budget all
// apply. Scenario-level settings win where both specify a value. A nil
// cfg uses fast harness defaults.
func RunWithConfig(scenario *Scenario, cfg *config.Config) (*Result, error) {
	dir, err := os.MkdirTemp("", "expedite-harness-")
	if err != nil {
		return nil, fmt.Errorf("harness workdir: %w", err)
	}
	defer os.RemoveAll(dir)

	store, err := audit.Open(filepath.Join(dir, "audit.db"))
	if err != nil {
		return nil, fmt.Errorf("harness audit store: %w", err)
	}
	defer store.Close()

	clock := testutil.NewFakeClock(scenario.startTime())
	sink := testutil.NewSink()
	for _, f := range scenario.Failures {
		sink.FailNext(f.Device, f.Times)
	}

	dispatchOpts := []ticket.DispatcherOption{
		ticket.WithBackoff(time.Millisecond),
		ticket.WithAttemptTimeout(time.Second),
	}
	defaultDevice := scenario.DefaultDevice
	engineOpts := []engine.Option{
		engine.WithClock(clock),
		engine.WithIdentity(engine.StaticIdentity{User: expoUser}),
	}
	if cfg != nil {
		dispatchOpts = append(dispatchOpts, ticket.WithMaxAttempts(cfg.Retry.Attempts))
		engineOpts = append(engineOpts,
			engine.WithDevices(cfg.RoutingDevices()),
			engine.WithOverdueThresholds(cfg.Thresholds()),
			engine.WithUrgentPriority(cfg.UrgentPriority),
		)
		if defaultDevice == "" {
			defaultDevice = cfg.DefaultDevice
		}
	}
	engineOpts = append(engineOpts, engine.WithDefaultDevice(defaultDevice))

	dispatcher := ticket.NewDispatcher(sink, dispatchOpts...)
	eng := engine.New(routing.NewRegistry(), store, dispatcher, engineOpts...)

	ctx := context.Background()
	if cfg != nil {
		for _, a := range cfg.Assignments {
			if _, err := eng.Assign(ctx, a.DeviceID, a.TargetID, routing.TargetType(a.TargetType)); err != nil {
				return nil, fmt.Errorf("installing configured assignment %s->%s: %w", a.DeviceID, a.TargetID, err)
			}
		}
	}
	for _, a := range scenario.Assignments {
		if _, err := eng.Assign(ctx, a.Device, a.Target, routing.TargetType(a.Type)); err != nil {
			return nil, fmt.Errorf("installing assignment %s->%s: %w", a.Device, a.Target, err)
		}
	}

	sched := scheduler.New(eng,
		scheduler.WithClock(clock),
		scheduler.WithOverdueThresholds(eng.OverdueThresholds()),
	)

	r := &runner{
		scenario: scenario,
		engine:   eng,
		sched:    sched,
		clock:    clock,
		sink:     sink,
		orderIDs: make(map[string]string),
		result:   &Result{Pass: true},
	}
	for i, step := range scenario.Flow {
		r.runStep(ctx, i, step)
	}
	r.collectTickets()
	if err := r.collectAudit(ctx); err != nil {
		return nil, err
	}
	return r.result, nil
}

type runner struct {
	scenario *Scenario
	engine   *engine.Engine
	sched    *scheduler.Scheduler
	clock    *testutil.FakeClock
	sink     *testutil.Sink

	// orderIDs maps scenario order numbers to engine order ids.
	orderIDs map[string]string
	result   *Result
}

func (r *runner) runStep(ctx context.Context, index int, step Step) {
	var (
		detail string
		err    error
	)

	switch step.Action {
	case "create":
		detail, err = r.create(ctx, step.Order)
	case "transition":
		err = r.engine.Transition(ctx, r.orderIDs[step.Order], order.Status(step.To))
		detail = step.To
	case "setUrgent":
		err = r.engine.SetUrgent(ctx, r.orderIDs[step.Order], step.Urgent)
		detail = fmt.Sprintf("urgent=%t", step.Urgent)
	case "dispatch":
		detail, err = r.dispatch(ctx, step)
	case "reprint":
		var res *engine.DispatchResult
		res, err = r.engine.Reprint(ctx, r.orderIDs[step.Order])
		if err == nil {
			detail = fmt.Sprintf("failed=%d", len(res.Failed))
		}
	case "advance":
		r.clock.Advance(time.Duration(step.Minutes) * time.Minute)
		detail = fmt.Sprintf("+%dm", step.Minutes)
	case "scan":
		detail = fmt.Sprintf("events=%d", r.scan())
	}

	event := TraceEvent{Step: index, Action: step.Action, Order: step.Order, Detail: detail}
	if err != nil {
		event.Error = errorCode(err)
		event.Detail = ""
	}
	r.result.Trace = append(r.result.Trace, event)
	r.checkExpectation(index, step, err)
}

func (r *runner) create(ctx context.Context, number string) (string, error) {
	spec, ok := r.orderSpec(number)
	if !ok {
		return "", fmt.Errorf("order %q is not declared", number)
	}

	req := engine.NewOrder{
		Number:            spec.Number,
		Type:              order.Type(spec.Type),
		ReservationLinked: spec.ReservationLinked,
	}
	if spec.Type == "" {
		req.Type = order.TypeDineIn
	}
	for _, it := range spec.Items {
		req.Items = append(req.Items, engine.NewItem{
			MenuItemID:   it.MenuItem,
			CategoryID:   it.Category,
			Name:         it.Name,
			Quantity:     it.Quantity,
			Variant:      it.Variant,
			Modifiers:    it.Modifiers,
			Instructions: it.Instructions,
		})
	}

	o, err := r.engine.CreateOrder(ctx, req)
	if err != nil {
		return "", err
	}
	r.orderIDs[number] = o.ID
	return fmt.Sprintf("items=%d", len(o.Items)), nil
}

func (r *runner) dispatch(ctx context.Context, step Step) (string, error) {
	orderID := r.orderIDs[step.Order]

	itemIDs, err := r.resolveItems(orderID, step.Items)
	if err != nil {
		return "", err
	}
	res, err := r.engine.Dispatch(ctx, orderID, itemIDs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("devices=%d fullySent=%d failed=%d",
		len(res.Sent), len(res.FullySent), len(res.Failed)), nil
}

// resolveItems translates scenario menu item ids to order line ids.
func (r *runner) resolveItems(orderID string, menuIDs []string) ([]string, error) {
	if len(menuIDs) == 0 {
		return nil, nil
	}
	o, err := r.engine.Order(orderID)
	if err != nil {
		return nil, err
	}
	byMenu := make(map[string]string, len(o.Items))
	for _, it := range o.Items {
		byMenu[it.MenuItemID] = it.ID
	}
	out := make([]string, 0, len(menuIDs))
	for _, id := range menuIDs {
		lineID, ok := byMenu[id]
		if !ok {
			return nil, fmt.Errorf("menu item %q is not on order", id)
		}
		out = append(out, lineID)
	}
	return out, nil
}

// scan runs one scheduler pass and records any emitted notification.
func (r *runner) scan() int {
	r.sched.Scan()
	n := 0
	for {
		select {
		case e := <-r.sched.Events():
			r.result.Notifications = append(r.result.Notifications,
				fmt.Sprintf("%s #%s", e.Kind, e.OrderNumber))
			n++
		default:
			return n
		}
	}
}

func (r *runner) orderSpec(number string) (OrderSpec, bool) {
	for _, o := range r.scenario.Orders {
		if o.Number == number {
			return o, true
		}
	}
	return OrderSpec{}, false
}

func (r *runner) checkExpectation(index int, step Step, err error) {
	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	got := ""
	if err != nil {
		got = errorCode(err)
	}
	if got != want {
		r.result.Pass = false
		if want == "" {
			r.result.Errors = append(r.result.Errors,
				fmt.Sprintf("flow[%d] %s: unexpected error %s: %v", index, step.Action, got, err))
			return
		}
		r.result.Errors = append(r.result.Errors,
			fmt.Sprintf("flow[%d] %s: want error %s, got %q", index, step.Action, want, got))
	}
}

func (r *runner) collectTickets() {
	for _, t := range r.sink.Delivered() {
		r.result.Tickets = append(r.result.Tickets, ticket.Render(t))
	}
}

func (r *runner) collectAudit(ctx context.Context) error {
	entries, err := r.engine.AuditQuery(ctx, audit.Filter{})
	if err != nil {
		return fmt.Errorf("harness audit query: %w", err)
	}
	// Query returns newest first; golden files read chronologically.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		r.result.Audit = append(r.result.Audit, AuditLine{
			Action: string(e.Action),
			Level:  string(e.Level),
			Order:  e.OrderNumber,
			By:     e.PerformedBy,
		})
	}
	return nil
}

func errorCode(err error) string {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		return string(engineErr.Code)
	}
	var dispatchErr *ticket.DispatchError
	if errors.As(err, &dispatchErr) {
		return string(dispatchErr.Code)
	}
	return "UNKNOWN"
}
