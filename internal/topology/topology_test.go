package topology_test

import (
	"encoding/json"
	"strings"
	"testing"

	"pmxfactory/internal/topology"
)

func TestParseChannelStripKind(t *testing.T) {
	tests := []struct {
		in      string
		want    topology.ChannelStripKind
		wantErr bool
	}{
		{"basic", topology.KindBasic, false},
		{" Basic ", topology.KindBasic, false},
		{"cross_faded", topology.KindCrossFaded, false},
		{"cross-faded", topology.KindCrossFaded, false},
		{"", topology.KindCrossFaded, false},
		{"stereo", "", true},
	}
	for _, tt := range tests {
		got, err := topology.ParseChannelStripKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseChannelStripKind(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseChannelStripKind(%q) returned error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseChannelStripKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChainOrder(t *testing.T) {
	fader := topology.PluginInstance{ID: 1, Name: "xfade"}
	plugins := topology.ChannelStripPlugins{
		CrossFader: &fader,
		Saturator:  topology.PluginInstance{ID: 2, Name: "sat"},
		Compressor: topology.PluginInstance{ID: 3, Name: "comp"},
		Equalizer:  topology.PluginInstance{ID: 4, Name: "eq"},
		Gain:       topology.PluginInstance{ID: 5, Name: "gain"},
	}
	var names []string
	for _, p := range plugins.Chain() {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "xfade,sat,comp,eq,gain" {
		t.Fatalf("unexpected chain %q", got)
	}
	plugins.CrossFader = nil
	if len(plugins.Chain()) != 4 {
		t.Fatalf("expected 4 plugins without fader")
	}
}

func TestNoFaderDistinctFromFaderZero(t *testing.T) {
	basic := topology.ChannelStrip{ID: 0, Kind: topology.KindBasic}
	if basic.CrossFaderID() != nil {
		t.Fatal("basic strip must report no fader")
	}
	data, err := json.Marshal(basic)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "cross_fader") {
		t.Fatalf("expected cross_fader omitted, got %s", data)
	}

	zero := topology.PluginInstance{ID: 0, Name: "xfade"}
	faded := topology.ChannelStrip{Kind: topology.KindCrossFaded, Plugins: topology.ChannelStripPlugins{CrossFader: &zero}}
	id := faded.CrossFaderID()
	if id == nil || *id != 0 {
		t.Fatalf("expected fader id 0, got %v", id)
	}
	data, err = json.Marshal(faded)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"cross_fader":{"id":0`) {
		t.Fatalf("expected fader id 0 encoded, got %s", data)
	}
}

func TestRoleLabel(t *testing.T) {
	if got := topology.RoleCrossFader.Label(); got != "cross fader" {
		t.Fatalf("unexpected label %q", got)
	}
}
