// Package topology holds the value types produced by channel strip and output
// stage assembly. Values are created by the assembly actor and never mutated
// after they are returned.
package topology

import (
	"fmt"
	"strings"
)

// PluginInstance is a running effect unit owned by the plugin host. Name is
// the key the graph backend uses to address its ports.
type PluginInstance struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// ChannelStripKind selects the plugin layout of a channel strip.
type ChannelStripKind string

const (
	// KindBasic is saturator, compressor, equalizer, gain.
	KindBasic ChannelStripKind = "basic"
	// KindCrossFaded prepends a cross-fader feeding the saturator.
	KindCrossFaded ChannelStripKind = "cross_faded"
)

// ParseChannelStripKind accepts the canonical values plus a few spellings
// users type on the command line.
func ParseChannelStripKind(value string) (ChannelStripKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "basic":
		return KindBasic, nil
	case "cross_faded", "crossfaded", "cross-faded", "":
		return KindCrossFaded, nil
	default:
		return "", fmt.Errorf("unknown channel strip kind %q (expected basic or cross_faded)", value)
	}
}

// HasCrossFader reports whether strips of this kind carry a cross-fader.
func (k ChannelStripKind) HasCrossFader() bool {
	return k == KindCrossFaded
}

// Valid reports whether k is one of the known strip kinds.
func (k ChannelStripKind) Valid() bool {
	return k == KindBasic || k == KindCrossFaded
}

func (k ChannelStripKind) String() string { return string(k) }

// Role names a position in the channel strip chain.
type Role string

const (
	RoleCrossFader Role = "cross_fader"
	RoleSaturator  Role = "saturator"
	RoleCompressor Role = "compressor"
	RoleEqualizer  Role = "equalizer"
	RoleGain       Role = "gain"
)

// Label renders the role for human-facing messages ("cross fader").
func (r Role) Label() string {
	return strings.ReplaceAll(string(r), "_", " ")
}

// ChannelStripPlugins is the instantiated plugin set of a strip before it is
// registered. CrossFader is nil for basic strips.
type ChannelStripPlugins struct {
	CrossFader *PluginInstance `json:"cross_fader,omitempty"`
	Saturator  PluginInstance  `json:"saturator"`
	Compressor PluginInstance  `json:"compressor"`
	Equalizer  PluginInstance  `json:"equalizer"`
	Gain       PluginInstance  `json:"gain"`
}

// Chain returns the plugins in signal order, starting with the cross-fader
// when present.
func (p ChannelStripPlugins) Chain() []PluginInstance {
	chain := make([]PluginInstance, 0, 5)
	if p.CrossFader != nil {
		chain = append(chain, *p.CrossFader)
	}
	return append(chain, p.Saturator, p.Compressor, p.Equalizer, p.Gain)
}

// ChannelStrip is a registered chain of plugins.
type ChannelStrip struct {
	ID      uint32              `json:"id"`
	Name    string              `json:"name"`
	Kind    ChannelStripKind    `json:"kind"`
	Plugins ChannelStripPlugins `json:"plugins"`
}

// CrossFaderID returns the cross-fader plugin id, or nil for basic strips.
func (s ChannelStrip) CrossFaderID() *uint32 {
	if s.Plugins.CrossFader == nil {
		return nil
	}
	id := s.Plugins.CrossFader.ID
	return &id
}

// OutputStage is a stereo pair of basic strips merged by a cross-fader.
type OutputStage struct {
	ID                  uint32 `json:"id"`
	Name                string `json:"name"`
	LeftChannelStripID  uint32 `json:"left_channel_strip_id"`
	RightChannelStripID uint32 `json:"right_channel_strip_id"`
	CrossFaderPluginID  uint32 `json:"cross_fader_plugin_id"`
}

// Output stage leg names.
const (
	LeftStageName  = "Left Stage"
	RightStageName = "Right Stage"
)
