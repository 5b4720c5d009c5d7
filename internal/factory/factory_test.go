package factory_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"pmxfactory/internal/channelstrip"
	"pmxfactory/internal/config"
	"pmxfactory/internal/factory"
	"pmxfactory/internal/journal"
	"pmxfactory/internal/metrics"
	"pmxfactory/internal/services"
	"pmxfactory/internal/services/pipewire"
	"pmxfactory/internal/testsupport"
	"pmxfactory/internal/topology"
)

func newFactory(t *testing.T, b *testsupport.Backends, store *journal.Store) (*factory.Factory, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := factory.New(cfg, factory.Backends{Host: b.Host, Linker: b.Linker, Registry: b.Registry}, store, metrics.New(), nil)
	return f, cfg
}

// start runs the actor and returns a function that stops it and waits.
func start(t *testing.T, f *factory.Factory) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("Run returned error: %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Errorf("actor did not stop")
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestChannelStripIDsAreSequential(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	ctx := context.Background()
	for want := uint32(0); want < 3; want++ {
		strip, err := f.CreateChannelStrip(ctx, fmt.Sprintf("strip-%d", want), topology.KindCrossFaded)
		if err != nil {
			t.Fatalf("CreateChannelStrip: %v", err)
		}
		if strip.ID != want {
			t.Fatalf("expected id %d, got %d", want, strip.ID)
		}
	}
	if got := f.Snapshot().NextChannelStripID; got != 3 {
		t.Fatalf("expected next id 3, got %d", got)
	}
}

func TestConcurrentRequestsGetDistinctIDs(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	const n = 20
	ids := make([]uint32, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			strip, err := f.CreateChannelStrip(context.Background(), fmt.Sprintf("c-%d", i), topology.KindBasic)
			ids[i], errs[i] = strip.ID, err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		if id != uint32(i) {
			t.Fatalf("expected ids 0..%d without gaps, got %v", n-1, ids)
		}
	}
	if got := len(b.Registry.Strips()); got != n {
		t.Fatalf("expected %d registrations, got %d", n, got)
	}
}

func TestConcurrentAssembliesNeverInterleave(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	const n = 8
	// Hold the first assembly until every other request is queued behind it.
	var gate sync.Once
	b.Host.OnCreate(func(string) {
		gate.Do(func() {
			deadline := time.Now().Add(5 * time.Second)
			for f.Snapshot().MailboxDepth < n-1 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
		})
	})

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.CreateChannelStrip(context.Background(), fmt.Sprintf("s-%d", i), topology.KindBasic)
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	owner := map[string]uint32{}
	for _, strip := range b.Registry.Strips() {
		for _, plugin := range strip.Plugins.Chain() {
			owner[plugin.Name] = strip.ID
		}
	}

	// 4 plugins, 3 links, 1 registration per basic strip.
	const perStrip = 8
	calls := b.Trace.Calls()
	if len(calls) != n*perStrip {
		t.Fatalf("expected %d backend calls, got %d", n*perStrip, len(calls))
	}
	finished := map[uint32]bool{}
	for i, call := range calls {
		if len(call.Nodes) == 0 {
			t.Fatalf("call %d has no nodes: %v", i, call)
		}
		id, ok := owner[call.Nodes[0]]
		if !ok {
			t.Fatalf("call %v touches an unregistered plugin", call)
		}
		for _, node := range call.Nodes[1:] {
			if owner[node] != id {
				t.Fatalf("call %v spans strips %d and %d", call, id, owner[node])
			}
		}
		if finished[id] {
			t.Fatalf("strip %d resumed after another assembly ran: %v", id, b.Trace.Ops(""))
		}
		if i%perStrip == perStrip-1 {
			if call.Service != "registry" {
				t.Fatalf("assembly %d did not end with its registration: %v", i/perStrip, call)
			}
			finished[id] = true
			continue
		}
		if next := calls[i+1]; owner[next.Nodes[0]] != id {
			t.Fatalf("assembly of strip %d interleaved with %v", id, next)
		}
	}
}

func TestBasicStripHasNoCrossFader(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	strip, err := f.CreateChannelStrip(context.Background(), "Bass", topology.KindBasic)
	if err != nil {
		t.Fatalf("CreateChannelStrip: %v", err)
	}
	if strip.Plugins.CrossFader != nil || strip.CrossFaderID() != nil {
		t.Fatalf("basic strip carries a cross-fader: %+v", strip.Plugins.CrossFader)
	}
	registered := b.Registry.Strips()
	if len(registered) != 1 || registered[0].CrossFaderID() != nil {
		t.Fatalf("unexpected registry contents: %+v", registered)
	}
	if len(b.Linker.Links()) != 6 {
		t.Fatalf("expected 3 stereo hops (6 links), got %d", len(b.Linker.Links()))
	}
}

func TestCrossFadedStripWiredInChainOrder(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	strip, err := f.CreateChannelStrip(context.Background(), "Vocals", topology.KindCrossFaded)
	if err != nil {
		t.Fatalf("CreateChannelStrip: %v", err)
	}
	if strip.Kind != topology.KindCrossFaded || strip.Plugins.CrossFader == nil {
		t.Fatalf("expected a cross-faded strip, got %+v", strip)
	}

	chain := strip.Plugins.Chain()
	var want []string
	for i := 0; i+1 < len(chain); i++ {
		for port := uint32(0); port < 2; port++ {
			want = append(want, testsupport.FormatLink(pipewire.LinkRequest{
				OutputNodeName: chain[i].Name, OutputPortID: port,
				InputNodeName: chain[i+1].Name, InputPortID: port,
			}))
		}
	}
	var got []string
	for _, link := range b.Linker.Links() {
		got = append(got, testsupport.FormatLink(link))
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected link order\n got: %v\nwant: %v", got, want)
	}

	// Every link precedes the registry write.
	registration := b.Trace.Index("registry.strip(0:Vocals)")
	if registration < 0 {
		t.Fatal("strip was not registered")
	}
	for i, call := range b.Trace.Calls() {
		if call.Service == "pipewire" && i > registration {
			t.Fatalf("link %s issued after registration", call)
		}
	}
}

func TestInstantiationFailureLeavesRegistryUntouched(t *testing.T) {
	b := testsupport.NewBackends()
	f, cfg := newFactory(t, b, nil)
	start(t, f)

	cause := services.Wrap(services.ErrUnavailable, "modhost", "create plugin instance", "", errors.New("connection refused"))
	b.Host.FailURI(cfg.Plugins.EqualizerURI, cause)

	_, err := f.CreateChannelStrip(context.Background(), "Drums", topology.KindCrossFaded)
	var asmErr *factory.AssemblyError
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected AssemblyError, got %T %v", err, err)
	}
	if asmErr.Step != channelstrip.StepInstantiation || asmErr.Role != topology.RoleEqualizer {
		t.Fatalf("unexpected step/role: %s/%s", asmErr.Step, asmErr.Role)
	}
	if !strings.Contains(err.Error(), "equalizer instantiation failed") {
		t.Fatalf("error should name role and step: %v", err)
	}
	if asmErr.ErrorKind() != "unavailable" || !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable classification, got %q", asmErr.ErrorKind())
	}
	if len(b.Trace.Ops("registry")) != 0 || len(b.Linker.Links()) != 0 {
		t.Fatalf("no links or registry writes expected, got %v", b.Trace.Ops(""))
	}

	// The actor keeps serving and the failed attempt consumed no id.
	b.Host.FailURI(cfg.Plugins.EqualizerURI, nil)
	strip, err := f.CreateChannelStrip(context.Background(), "Drums", topology.KindCrossFaded)
	if err != nil {
		t.Fatalf("follow-up request failed: %v", err)
	}
	if strip.ID != 0 {
		t.Fatalf("expected id 0 after failed instantiation, got %d", strip.ID)
	}
}

func TestWiringFailureReportsDownstreamRole(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	b.Linker.FailWhen = func(link pipewire.LinkRequest) error {
		if strings.HasPrefix(link.InputNodeName, "Compressor_") {
			return errors.New("port busy")
		}
		return nil
	}
	_, err := f.CreateChannelStrip(context.Background(), "Keys", topology.KindBasic)
	var asmErr *factory.AssemblyError
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected AssemblyError, got %v", err)
	}
	if asmErr.Step != channelstrip.StepWiring || asmErr.Role != topology.RoleCompressor {
		t.Fatalf("unexpected step/role: %s/%s", asmErr.Step, asmErr.Role)
	}
	if len(b.Trace.Ops("registry")) != 0 {
		t.Fatal("registry must not be written after a wiring failure")
	}
}

func TestRegistrationFailureConsumesID(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	b.Registry.FailStrips(errors.New("registry down"))
	_, err := f.CreateChannelStrip(context.Background(), "Lost", topology.KindBasic)
	var asmErr *factory.AssemblyError
	if !errors.As(err, &asmErr) || asmErr.Step != channelstrip.StepRegistration {
		t.Fatalf("expected registration failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "registration failed") {
		t.Fatalf("unexpected message: %v", err)
	}

	b.Registry.FailStrips(nil)
	strip, err := f.CreateChannelStrip(context.Background(), "Found", topology.KindBasic)
	if err != nil {
		t.Fatalf("CreateChannelStrip: %v", err)
	}
	if strip.ID != 1 {
		t.Fatalf("expected id 1 after a failed registration, got %d", strip.ID)
	}
}

func TestOutputStageWiresBothLegsBeforeRegistration(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	stage, err := f.CreateOutputStage(context.Background(), "Main Out")
	if err != nil {
		t.Fatalf("CreateOutputStage: %v", err)
	}
	if stage.ID != 100 || stage.Name != "Main Out" {
		t.Fatalf("unexpected stage: %+v", stage)
	}
	if stage.LeftChannelStripID != 0 || stage.RightChannelStripID != 1 {
		t.Fatalf("expected legs 0 and 1, got %d and %d", stage.LeftChannelStripID, stage.RightChannelStripID)
	}

	strips := b.Registry.Strips()
	if len(strips) != 2 {
		t.Fatalf("expected two registered legs, got %d", len(strips))
	}
	left, right := strips[0], strips[1]
	if left.Name != topology.LeftStageName || right.Name != topology.RightStageName {
		t.Fatalf("unexpected leg names %q, %q", left.Name, right.Name)
	}
	if left.Kind != topology.KindBasic || right.Kind != topology.KindBasic {
		t.Fatal("legs must be basic strips")
	}

	var faderName string
	for _, call := range b.Trace.Calls() {
		if call.Service == "modhost" && strings.HasSuffix(call.Detail, "xfade") {
			faderName = fmt.Sprintf("xfade_%d", stage.CrossFaderPluginID)
		}
	}
	if faderName == "" {
		t.Fatal("cross-fader was not instantiated")
	}
	wantLinks := []string{
		testsupport.FormatLink(pipewire.LinkRequest{OutputNodeName: left.Plugins.Gain.Name, OutputPortID: 0, InputNodeName: faderName, InputPortID: 0}),
		testsupport.FormatLink(pipewire.LinkRequest{OutputNodeName: left.Plugins.Gain.Name, OutputPortID: 1, InputNodeName: faderName, InputPortID: 1}),
		testsupport.FormatLink(pipewire.LinkRequest{OutputNodeName: right.Plugins.Gain.Name, OutputPortID: 0, InputNodeName: faderName, InputPortID: 2}),
		testsupport.FormatLink(pipewire.LinkRequest{OutputNodeName: right.Plugins.Gain.Name, OutputPortID: 1, InputNodeName: faderName, InputPortID: 3}),
	}
	stageCall := b.Trace.Index(fmt.Sprintf("registry.stage(Main Out:0,1,%d)", stage.CrossFaderPluginID))
	if stageCall < 0 {
		t.Fatalf("stage registration missing: %v", b.Trace.Ops("registry"))
	}
	prev := -1
	for _, link := range wantLinks {
		idx := b.Trace.Index(link)
		if idx < 0 {
			t.Fatalf("missing link %s in %v", link, b.Trace.Ops("pipewire"))
		}
		if idx < prev || idx > stageCall {
			t.Fatalf("link %s out of order (index %d, stage at %d)", link, idx, stageCall)
		}
		prev = idx
	}
	if b.Trace.Index("registry.strip(1:Right Stage)") > stageCall {
		t.Fatal("right leg registered after the stage")
	}
}

func TestOutputStageLegFailureNamesLeg(t *testing.T) {
	b := testsupport.NewBackends()
	f, cfg := newFactory(t, b, nil)
	start(t, f)

	b.Host.FailURI(cfg.Plugins.SaturatorURI, errors.New("no such plugin"))
	_, err := f.CreateOutputStage(context.Background(), "Main")
	var asmErr *factory.AssemblyError
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected AssemblyError, got %v", err)
	}
	if asmErr.Kind != journal.KindOutputStage || asmErr.Leg != topology.LeftStageName || asmErr.Role != topology.RoleSaturator {
		t.Fatalf("unexpected error fields: %+v", asmErr)
	}
	if !strings.Contains(err.Error(), "Left Stage: saturator instantiation failed") {
		t.Fatalf("unexpected message: %v", err)
	}
	if len(b.Registry.Stages()) != 0 {
		t.Fatal("stage must not be registered")
	}
}

func TestOutputStageCrossFaderWiringFailure(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	b.Linker.FailWhen = func(link pipewire.LinkRequest) error {
		if link.InputPortID == 2 {
			return errors.New("secondary input missing")
		}
		return nil
	}
	_, err := f.CreateOutputStage(context.Background(), "Main")
	var asmErr *factory.AssemblyError
	if !errors.As(err, &asmErr) {
		t.Fatalf("expected AssemblyError, got %v", err)
	}
	if asmErr.Step != channelstrip.StepWiring || asmErr.Role != topology.RoleCrossFader || asmErr.Leg != "" {
		t.Fatalf("unexpected error fields: %+v", asmErr)
	}
	if len(b.Trace.Ops("registry")) != 2 {
		t.Fatalf("expected only the two leg registrations, got %v", b.Trace.Ops("registry"))
	}
}

func TestRequestAbandonedBeforeDequeue(t *testing.T) {
	b := testsupport.NewBackends()
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	f, _ := newFactory(t, b, store)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := f.CreateChannelStrip(ctx, "Ghost", topology.KindBasic)
		result <- err
	}()
	waitFor(t, "request queued", func() bool { return f.Snapshot().MailboxDepth == 1 })
	cancel()
	if err := <-result; !errors.Is(err, factory.ErrCallerGone) {
		t.Fatalf("expected ErrCallerGone, got %v", err)
	}

	start(t, f)
	waitFor(t, "request processed", func() bool { return f.Snapshot().Processed == 1 })

	if calls := b.Trace.Calls(); len(calls) != 0 {
		t.Fatalf("abandoned request reached the backends: %v", calls)
	}
	entries, err := store.ListAssemblies(context.Background(), journal.StatusAbandoned)
	if err != nil {
		t.Fatalf("ListAssemblies: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Ghost" {
		t.Fatalf("expected one abandoned entry, got %+v", entries)
	}
	if got := f.Snapshot().NextChannelStripID; got != 0 {
		t.Fatalf("abandoned request consumed an id: next=%d", got)
	}
}

func TestRequestOrphanedAfterStart(t *testing.T) {
	b := testsupport.NewBackends()
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	f, _ := newFactory(t, b, store)
	start(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	b.Host.OnCreate(func(string) { once.Do(cancel) })

	_, err := f.CreateChannelStrip(ctx, "Orphan", topology.KindBasic)
	if !errors.Is(err, factory.ErrCallerGone) {
		t.Fatalf("expected ErrCallerGone, got %v", err)
	}

	waitFor(t, "orphaned journal record", func() bool {
		entries, err := store.ListAssemblies(context.Background(), journal.StatusOrphaned)
		return err == nil && len(entries) == 1
	})
	if len(b.Registry.Strips()) != 1 {
		t.Fatal("started assembly must run to completion and register")
	}
	entries, _ := store.ListAssemblies(context.Background(), journal.StatusOrphaned)
	if entries[0].ResultID == nil || *entries[0].ResultID != 0 {
		t.Fatalf("orphaned record should carry the strip id, got %+v", entries[0])
	}
}

func TestJournalRecordsOutcomes(t *testing.T) {
	b := testsupport.NewBackends()
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	f, cfg := newFactory(t, b, store)
	start(t, f)

	ctx := context.Background()
	if _, err := f.CreateChannelStrip(ctx, "Good", topology.KindCrossFaded); err != nil {
		t.Fatalf("CreateChannelStrip: %v", err)
	}
	b.Host.FailURI(cfg.Plugins.GainURI, errors.New("boom"))
	if _, err := f.CreateChannelStrip(ctx, "Bad", topology.KindBasic); err == nil {
		t.Fatal("expected failure")
	}

	entries, err := store.ListAssemblies(ctx)
	if err != nil {
		t.Fatalf("ListAssemblies: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	bad, good := entries[0], entries[1]
	if good.Status != journal.StatusCompleted || good.ResultID == nil || *good.ResultID != 0 || good.RequestID == "" {
		t.Fatalf("unexpected completed entry: %+v", good)
	}
	if bad.Status != journal.StatusFailed || bad.FailedStep != "instantiation" || bad.FailedRole != "gain" {
		t.Fatalf("unexpected failed entry: %+v", bad)
	}

	strips, err := store.ListChannelStrips(ctx)
	if err != nil {
		t.Fatalf("ListChannelStrips: %v", err)
	}
	if len(strips) != 1 || strips[0].Name != "Good" || strips[0].Plugins.CrossFader == nil {
		t.Fatalf("unexpected mirrored strips: %+v", strips)
	}
	next, err := store.NextChannelStripID(ctx)
	if err != nil || next != 1 {
		t.Fatalf("expected persisted next id 1, got %d (%v)", next, err)
	}
}

func TestCounterResumesFromJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	if err := store.SaveNextChannelStripID(context.Background(), 7); err != nil {
		t.Fatalf("SaveNextChannelStripID: %v", err)
	}

	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, store)
	start(t, f)

	strip, err := f.CreateChannelStrip(context.Background(), "Resumed", topology.KindBasic)
	if err != nil {
		t.Fatalf("CreateChannelStrip: %v", err)
	}
	if strip.ID != 7 {
		t.Fatalf("expected id 7, got %d", strip.ID)
	}
}

func TestStoppedActorRejectsRequests(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	stop := start(t, f)
	stop()

	if _, err := f.CreateChannelStrip(context.Background(), "Late", topology.KindBasic); !errors.Is(err, factory.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if f.Snapshot().Running {
		t.Fatal("snapshot should report the actor stopped")
	}
}

func TestRunTwiceFails(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)
	waitFor(t, "actor running", func() bool { return f.Snapshot().Running })

	if err := f.Run(context.Background()); err == nil {
		t.Fatal("expected second Run to fail")
	}
}

func TestCancelledContextNeverQueues(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.CreateOutputStage(ctx, "Nope"); !errors.Is(err, factory.ErrCallerGone) {
		t.Fatalf("expected ErrCallerGone, got %v", err)
	}
	if f.Snapshot().MailboxDepth != 0 {
		t.Fatal("cancelled request should not be queued")
	}
}

func TestCounterRefusesToWrapPastLastID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()
	if err := store.SaveNextChannelStripID(ctx, math.MaxUint32); err != nil {
		t.Fatalf("SaveNextChannelStripID: %v", err)
	}

	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, store)
	start(t, f)

	last, err := f.CreateChannelStrip(ctx, "Last", topology.KindBasic)
	if err != nil {
		t.Fatalf("CreateChannelStrip: %v", err)
	}
	if last.ID != math.MaxUint32 {
		t.Fatalf("expected id %d, got %d", uint32(math.MaxUint32), last.ID)
	}
	calls := len(b.Trace.Calls())

	_, err = f.CreateChannelStrip(ctx, "Wrapped", topology.KindBasic)
	if !errors.Is(err, factory.ErrIDSpaceExhausted) {
		t.Fatalf("expected ErrIDSpaceExhausted, got %v", err)
	}
	var asmErr *factory.AssemblyError
	if !errors.As(err, &asmErr) || asmErr.Step != channelstrip.StepRegistration {
		t.Fatalf("expected registration step error, got %#v", err)
	}
	if _, err := f.CreateOutputStage(ctx, "Bus"); !errors.Is(err, factory.ErrIDSpaceExhausted) {
		t.Fatalf("expected output stage to be refused, got %v", err)
	}
	if got := len(b.Trace.Calls()); got != calls {
		t.Fatalf("refused requests reached the backends: %v", b.Trace.Ops("")[calls:])
	}
	if got := len(b.Registry.Strips()); got != 1 {
		t.Fatalf("expected one registered strip, got %d", got)
	}

	next, err := store.NextChannelStripID(ctx)
	if err != nil {
		t.Fatalf("NextChannelStripID: %v", err)
	}
	if next != journal.MaxStripIDs {
		t.Fatalf("restart would resume at %d, want %d", next, journal.MaxStripIDs)
	}
}

func TestOutputStageNeedsTwoFreeIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	if err := store.SaveNextChannelStripID(context.Background(), math.MaxUint32); err != nil {
		t.Fatalf("SaveNextChannelStripID: %v", err)
	}
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, store)
	start(t, f)

	if _, err := f.CreateOutputStage(context.Background(), "Bus"); !errors.Is(err, factory.ErrIDSpaceExhausted) {
		t.Fatalf("expected ErrIDSpaceExhausted, got %v", err)
	}
	if calls := b.Trace.Calls(); len(calls) != 0 {
		t.Fatalf("no backend calls expected, got %v", calls)
	}
}

func TestCreateChannelStripRejectsUnknownKind(t *testing.T) {
	b := testsupport.NewBackends()
	f, _ := newFactory(t, b, nil)
	start(t, f)

	_, err := f.CreateChannelStrip(context.Background(), "Odd", topology.ChannelStripKind("bogus"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if calls := b.Trace.Calls(); len(calls) != 0 {
		t.Fatalf("no backend calls expected, got %v", calls)
	}
	if got := f.Snapshot().Processed; got != 0 {
		t.Fatalf("invalid request should not be enqueued, processed=%d", got)
	}
}
