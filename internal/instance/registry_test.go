package instance

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/firefly-engineering/ink/internal/audit"
	"github.com/firefly-engineering/ink/internal/errors"
	"github.com/firefly-engineering/ink/internal/logging"
	"github.com/firefly-engineering/ink/internal/runtime"
)

// seqNames hands out names from a fixed list, then numbered fallbacks.
type seqNames struct {
	mu    sync.Mutex
	names []string
	n     int
}

func (s *seqNames) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if len(s.names) > 0 {
		name := s.names[0]
		s.names = s.names[1:]
		return name, nil
	}
	return fmt.Sprintf("word-%d", s.n), nil
}

type memAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memAudit) Log(e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memAudit) types() []audit.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.EventType
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func testSettings() Settings {
	return Settings{
		Image:                 "squittal",
		ContainerPrefix:       "squittal-",
		MarkerLabel:           "ink_tag",
		OwnerLabel:            "created_by",
		ServicePort:           8080,
		BindIP:                "0.0.0.0",
		Network:               "ink",
		Capacity:              5,
		PortDiscoveryAttempts: 5,
		PortDiscoveryInterval: time.Second,
	}
}

func newTestRegistry(t *testing.T, mock *runtime.MockRuntime, opts ...Option) (*Registry, *[]time.Duration) {
	t.Helper()
	var mu sync.Mutex
	var sleeps []time.Duration
	base := []Option{
		WithLogger(logging.Discard()),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			defer mu.Unlock()
			sleeps = append(sleeps, d)
			return ctx.Err()
		}),
	}
	return NewRegistry(mock, &seqNames{}, testSettings(), append(base, opts...)...), &sleeps
}

func ownedLabels(owner string) map[string]string {
	return map[string]string{"ink_tag": "true", "created_by": owner}
}

func TestCreate_Success(t *testing.T) {
	mock := runtime.NewMockRuntime()
	rec := &memAudit{}
	reg, _ := newTestRegistry(t, mock, WithAudit(rec))

	inst, err := reg.Create(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if inst.Name != "word-1" {
		t.Errorf("Name = %q, want %q", inst.Name, "word-1")
	}
	if inst.Owner != "u1" {
		t.Errorf("Owner = %q, want %q", inst.Owner, "u1")
	}
	if !inst.Reachable() {
		t.Error("created instance has no port")
	}
	if !mock.HasContainer("squittal-word-1") {
		t.Error("container squittal-word-1 not created")
	}

	calls := mock.GetCallsFor("Create")
	if len(calls) != 1 {
		t.Fatalf("Create called %d times, want 1", len(calls))
	}
	opts := calls[0].Args[0].(runtime.CreateOptions)
	if opts.Image != "squittal" || opts.ContainerPort != 8080 || opts.BindIP != "0.0.0.0" || opts.Network != "ink" {
		t.Errorf("CreateOptions = %+v", opts)
	}
	if opts.Labels["ink_tag"] != "true" || opts.Labels["created_by"] != "u1" {
		t.Errorf("Labels = %v", opts.Labels)
	}

	if got := rec.types(); len(got) != 1 || got[0] != audit.EventCreate {
		t.Errorf("audit events = %v, want [create]", got)
	}
}

func TestCreate_OnePerOwner(t *testing.T) {
	mock := runtime.NewMockRuntime()
	reg, _ := newTestRegistry(t, mock)
	ctx := context.Background()

	first, err := reg.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	_, err = reg.Create(ctx, "u1")
	if !errors.IsKind(err, errors.KindCapacity) {
		t.Fatalf("second Create() error = %v, want capacity error", err)
	}
	want := "user already has instance " + first.Name
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}

	mine, _ := reg.ListByOwner(ctx, "u1")
	if len(mine) != 1 {
		t.Errorf("ListByOwner() = %d instances, want 1", len(mine))
	}
}

func TestCreate_ConcurrentSameOwner(t *testing.T) {
	mock := runtime.NewMockRuntime()
	reg, _ := newTestRegistry(t, mock)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Create(context.Background(), "u1"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("%d concurrent creates succeeded, want 1", succeeded)
	}
}

func TestCreate_Capacity(t *testing.T) {
	mock := runtime.NewMockRuntime()
	reg, _ := newTestRegistry(t, mock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := reg.Create(ctx, fmt.Sprintf("user-%d", i)); err != nil {
			t.Fatalf("Create(user-%d) error = %v", i, err)
		}
	}

	_, err := reg.Create(ctx, "user-5")
	if !errors.IsKind(err, errors.KindCapacity) {
		t.Fatalf("Create() past capacity error = %v, want capacity error", err)
	}
	if err.Error() != "already running max instances" {
		t.Errorf("error = %q", err.Error())
	}

	all, _ := reg.List(ctx)
	if len(all) > 5 {
		t.Errorf("List() = %d instances, exceeds capacity 5", len(all))
	}
}

func TestCreate_ImageCheck(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
	}{
		{"missing", nil},
		{"ambiguous", []string{"sha256:a", "sha256:b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := runtime.NewMockRuntime()
			mock.ImageIDs["squittal"] = tt.ids
			reg, _ := newTestRegistry(t, mock)

			_, err := reg.Create(context.Background(), "u1")
			if !errors.IsKind(err, errors.KindConfiguration) {
				t.Fatalf("Create() error = %v, want configuration error", err)
			}
			if len(mock.GetCallsFor("Create")) != 0 {
				t.Error("container created despite image check failure")
			}
		})
	}
}

func TestCreate_PortLagWithinBudget(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.PortLag = 3
	reg, sleeps := newTestRegistry(t, mock)

	inst, err := reg.Create(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !inst.Reachable() {
		t.Error("instance has no port")
	}
	if len(*sleeps) != 3 {
		t.Errorf("slept %d times, want 3", len(*sleeps))
	}
	for _, d := range *sleeps {
		if d != time.Second {
			t.Errorf("sleep = %v, want 1s", d)
		}
	}
}

func TestCreate_PortDiscoveryExhausted(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.PortLag = -1
	rec := &memAudit{}
	reg, sleeps := newTestRegistry(t, mock, WithAudit(rec))

	_, err := reg.Create(context.Background(), "u1")
	if !errors.IsKind(err, errors.KindPortDiscoveryTimeout) {
		t.Fatalf("Create() error = %v, want port discovery timeout", err)
	}
	if err.Error() != "failed to get port of container squittal-word-1 after 5 tries" {
		t.Errorf("error = %q", err.Error())
	}

	if got := len(mock.GetCallsFor("Inspect")); got != 5 {
		t.Errorf("Inspect called %d times, want 5", got)
	}
	if len(*sleeps) != 4 {
		t.Errorf("slept %d times, want 4", len(*sleeps))
	}
	if mock.HasContainer("squittal-word-1") {
		t.Error("half-created container left behind")
	}

	all, _ := reg.List(context.Background())
	if len(all) != 0 {
		t.Errorf("List() = %v, want empty after rollback", all)
	}

	types := rec.types()
	if len(types) != 1 || types[0] != audit.EventRollback {
		t.Errorf("audit events = %v, want [rollback]", types)
	}
}

func TestCreate_RollbackFailureLogged(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.PortLag = -1
	mock.SetError("Remove", fmt.Errorf("daemon hiccup"))
	rec := &memAudit{}
	reg, _ := newTestRegistry(t, mock, WithAudit(rec))

	_, err := reg.Create(context.Background(), "u1")
	if !errors.IsKind(err, errors.KindPortDiscoveryTimeout) {
		t.Fatalf("Create() error = %v, want port discovery timeout", err)
	}

	types := rec.types()
	if len(types) != 1 || types[0] != audit.EventError {
		t.Errorf("audit events = %v, want [error]", types)
	}
}

func TestCreate_StartFailureRollsBack(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.SetError("Start", fmt.Errorf("port already allocated"))
	reg, _ := newTestRegistry(t, mock)

	if _, err := reg.Create(context.Background(), "u1"); err == nil {
		t.Fatal("Create() should fail when start fails")
	}
	if mock.HasContainer("squittal-word-1") {
		t.Error("container left behind after start failure")
	}
}

func TestCreate_FailureLeavesOwnLeftoverRolledBack(t *testing.T) {
	mock := runtime.NewMockRuntime()
	// A previous create for u1 left a stopped container under the next name.
	mock.AddContainer("squittal-word-1", "squittal", ownedLabels("u1"), time.Now(), 8080, 0)
	mock.Containers["squittal-word-1"].Running = false
	mock.Containers["squittal-word-1"].State = "created"
	rec := &memAudit{}
	reg, _ := newTestRegistry(t, mock, WithAudit(rec))

	if _, err := reg.Create(context.Background(), "u1"); err == nil {
		t.Fatal("Create() should fail on a name conflict")
	}
	if mock.HasContainer("squittal-word-1") {
		t.Error("leftover container was not rolled back")
	}
	if got := rec.types(); len(got) != 1 || got[0] != audit.EventRollback {
		t.Errorf("audit events = %v, want [rollback]", got)
	}
}

func TestCreate_NameConflictKeepsOtherInstance(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.AddContainer("squittal-word-1", "squittal", ownedLabels("u2"), time.Now(), 8080, 40000)
	reg, _ := newTestRegistry(t, mock)

	_, err := reg.Create(context.Background(), "u1")
	if !errors.IsKind(err, errors.KindRuntimeUnavailable) {
		t.Fatalf("Create() error = %v, want runtime unavailable", err)
	}
	if !mock.HasContainer("squittal-word-1") {
		t.Error("another owner's instance was removed")
	}
	if n := len(mock.GetCallsFor("Remove")); n != 0 {
		t.Errorf("Remove called %d times, want 0", n)
	}
}

func TestCreate_CancelledDuringDiscovery(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.PortLag = -1
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry(mock, &seqNames{}, testSettings(),
		WithLogger(logging.Discard()),
		WithSleep(func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}))

	_, err := reg.Create(ctx, "u1")
	if err != context.Canceled {
		t.Errorf("Create() error = %v, want context.Canceled", err)
	}
	if mock.HasContainer("squittal-word-1") {
		t.Error("container left behind after cancellation")
	}
}

func TestCreate_EmptyOwner(t *testing.T) {
	reg, _ := newTestRegistry(t, runtime.NewMockRuntime())
	if _, err := reg.Create(context.Background(), ""); err == nil {
		t.Error("Create(\"\") should fail")
	}
}

func TestCreate_ListError(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.SetError("List", errors.RuntimeUnavailable("list", fmt.Errorf("down")))
	reg, _ := newTestRegistry(t, mock)

	_, err := reg.Create(context.Background(), "u1")
	if !errors.IsKind(err, errors.KindRuntimeUnavailable) {
		t.Errorf("Create() error = %v, want runtime unavailable", err)
	}
}

func TestRemove(t *testing.T) {
	mock := runtime.NewMockRuntime()
	reg, _ := newTestRegistry(t, mock)
	ctx := context.Background()

	inst, err := reg.Create(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}

	if err := reg.Remove(ctx, inst.Name); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	all, _ := reg.List(ctx)
	for _, i := range all {
		if i.Name == inst.Name {
			t.Errorf("List() still contains %q after remove", inst.Name)
		}
	}

	stops := mock.GetCallsFor("Stop")
	if len(stops) != 1 || stops[0].Args[0] != "squittal-"+inst.Name {
		t.Errorf("Stop calls = %v", stops)
	}
}

func TestExpire_RecordsOnlyOnSuccess(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.AddContainer("squittal-brave-otter", "squittal", ownedLabels("u1"), time.Now(), 8080, 40000)
	mock.SetError("Remove", fmt.Errorf("device busy"))
	rec := &memAudit{}
	reg, _ := newTestRegistry(t, mock, WithAudit(rec))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := reg.Expire(ctx, "brave-otter"); err == nil {
			t.Fatal("Expire() should surface the remove failure")
		}
	}
	if got := rec.types(); len(got) != 0 {
		t.Errorf("audit events after failed expiries = %v, want none", got)
	}

	mock.SetError("Remove", nil)
	if err := reg.Expire(ctx, "brave-otter"); err != nil {
		t.Fatalf("Expire() error = %v", err)
	}
	got := rec.types()
	if len(got) != 2 || got[0] != audit.EventRemove || got[1] != audit.EventExpire {
		t.Errorf("audit events = %v, want [remove expire]", got)
	}
}

func TestRemove_FullContainerName(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.AddContainer("squittal-brave-otter", "squittal", ownedLabels("u1"), time.Now(), 8080, 40000)
	reg, _ := newTestRegistry(t, mock)

	if err := reg.Remove(context.Background(), "/squittal-brave-otter"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if mock.HasContainer("squittal-brave-otter") {
		t.Error("container still present")
	}
}

func TestRemove_StopFailureSurfaces(t *testing.T) {
	mock := runtime.NewMockRuntime()
	mock.AddContainer("squittal-brave-otter", "squittal", ownedLabels("u1"), time.Now(), 8080, 40000)
	mock.SetError("Stop", fmt.Errorf("timeout"))
	reg, _ := newTestRegistry(t, mock)

	if err := reg.Remove(context.Background(), "brave-otter"); err == nil {
		t.Error("Remove() should surface stop failure")
	}
	if len(mock.GetCallsFor("Remove")) != 0 {
		t.Error("Remove called after stop failed")
	}
}

func TestListByName_ExactMatch(t *testing.T) {
	mock := runtime.NewMockRuntime()
	now := time.Now()
	mock.AddContainer("squittal-brave-otter", "squittal", ownedLabels("u1"), now, 8080, 40000)
	mock.AddContainer("squittal-brave-otters", "squittal", ownedLabels("u2"), now, 8080, 40001)
	reg, _ := newTestRegistry(t, mock)

	got, err := reg.ListByName(context.Background(), "brave-otter")
	if err != nil {
		t.Fatalf("ListByName() error = %v", err)
	}
	if len(got) != 1 || got[0].Port != 40000 {
		t.Errorf("ListByName() = %+v, want only brave-otter", got)
	}

	got, _ = reg.ListByName(context.Background(), "nobody")
	if len(got) != 0 {
		t.Errorf("ListByName(nobody) = %+v, want empty", got)
	}
}

func TestList_IgnoresUnmarkedContainers(t *testing.T) {
	mock := runtime.NewMockRuntime()
	now := time.Now()
	mock.AddContainer("squittal-brave-otter", "squittal", ownedLabels("u1"), now, 8080, 40000)
	mock.AddContainer("squittal-manual", "squittal", map[string]string{}, now, 8080, 40001)
	mock.AddContainer("squittal-other-image", "nginx", ownedLabels("u2"), now, 8080, 40002)
	reg, _ := newTestRegistry(t, mock)

	all, err := reg.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Name != "brave-otter" {
		t.Errorf("List() = %+v, want only brave-otter", all)
	}
	if !all[0].CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", all[0].CreatedAt, now)
	}
}
