package wiring_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"pmxfactory/internal/config"
	"pmxfactory/internal/services/pipewire"
	"pmxfactory/internal/testsupport"
	"pmxfactory/internal/topology"
	"pmxfactory/internal/wiring"
)

var (
	gain  = topology.PluginInstance{ID: 4, Name: "gain_4"}
	eq    = topology.PluginInstance{ID: 3, Name: "eq_3"}
	fader = topology.PluginInstance{ID: 9, Name: "xfade_9"}
)

func linksOf(t *testing.T, linker *testsupport.Linker) []string {
	t.Helper()
	var out []string
	for _, link := range linker.Links() {
		out = append(out, testsupport.FormatLink(link))
	}
	return out
}

func TestConnectDefaultPorts(t *testing.T) {
	linker := &testsupport.Linker{}
	proto := wiring.New(linker, wiring.DefaultLayout())

	if err := proto.Connect(context.Background(), eq, gain); err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	want := []string{"eq_3:0->gain_4:0", "eq_3:1->gain_4:1"}
	if got := linksOf(t, linker); !reflect.DeepEqual(got, want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
}

func TestConnectCrossFaderLegs(t *testing.T) {
	linker := &testsupport.Linker{}
	proto := wiring.New(linker, wiring.DefaultLayout())
	ctx := context.Background()

	if err := proto.ConnectCrossFaderLeft(ctx, gain, fader); err != nil {
		t.Fatalf("ConnectCrossFaderLeft returned error: %v", err)
	}
	if err := proto.ConnectCrossFaderRight(ctx, gain, fader); err != nil {
		t.Fatalf("ConnectCrossFaderRight returned error: %v", err)
	}
	want := []string{
		"gain_4:0->xfade_9:0", "gain_4:1->xfade_9:1",
		"gain_4:0->xfade_9:2", "gain_4:1->xfade_9:3",
	}
	if got := linksOf(t, linker); !reflect.DeepEqual(got, want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
}

func TestConnectStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("graph down")
	trace := &testsupport.Trace{}
	linker := &testsupport.Linker{Trace: trace, FailWhen: func(link pipewire.LinkRequest) error {
		if link.OutputPortID == 0 {
			return boom
		}
		return nil
	}}
	proto := wiring.New(linker, wiring.DefaultLayout())

	err := proto.Connect(context.Background(), eq, gain)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
	var linkErr *wiring.LinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("expected *LinkError, got %T", err)
	}
	if linkErr.Link.OutputNodeName != "eq_3" || linkErr.Link.InputNodeName != "gain_4" {
		t.Fatalf("unexpected failed link %+v", linkErr.Link)
	}
	if calls := trace.Ops("pipewire"); len(calls) != 1 {
		t.Fatalf("expected exactly one link attempt, got %v", calls)
	}
}

func TestLayoutFromConfig(t *testing.T) {
	cfg := config.Default().Wiring
	cfg.CrossFaderSecondaryInputs = []uint32{4, 5}
	cfg.InputPorts = []uint32{7}

	layout := wiring.LayoutFromConfig(cfg)
	if layout.CrossFaderSecondary != (wiring.StereoPorts{4, 5}) {
		t.Fatalf("unexpected secondary ports %v", layout.CrossFaderSecondary)
	}
	if layout.Input != (wiring.StereoPorts{0, 1}) {
		t.Fatalf("expected malformed pair to keep default, got %v", layout.Input)
	}

	linker := &testsupport.Linker{}
	if err := wiring.New(linker, layout).ConnectCrossFaderRight(context.Background(), gain, fader); err != nil {
		t.Fatalf("ConnectCrossFaderRight returned error: %v", err)
	}
	want := []string{"gain_4:0->xfade_9:4", "gain_4:1->xfade_9:5"}
	if got := linksOf(t, linker); !reflect.DeepEqual(got, want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
}
