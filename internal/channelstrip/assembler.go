// Package channelstrip instantiates and wires the plugins of a single channel
// strip. It never talks to the registry; registration belongs to the caller.
package channelstrip

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pmxfactory/internal/config"
	"pmxfactory/internal/topology"
	"pmxfactory/internal/wiring"
)

// PluginHost is the plugin-hosting backend operation the assembler depends on.
type PluginHost interface {
	CreatePluginInstance(ctx context.Context, pluginType, uri string) (topology.PluginInstance, error)
}

// Step names the phase of an assembly that failed.
type Step string

const (
	StepInstantiation Step = "instantiation"
	StepWiring        Step = "wiring"
	StepRegistration  Step = "registration"
)

// StepError reports which step failed for which role.
type StepError struct {
	Step Step
	Role topology.Role
	Err  error
}

func (e *StepError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Role.Label(), e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// URIs maps each role to the plugin implementation to instantiate.
type URIs map[topology.Role]string

// URIsFromConfig reads the per-role URIs from [plugins].
func URIsFromConfig(cfg config.Plugins) URIs {
	return URIs{
		topology.RoleCrossFader: cfg.CrossFaderURI,
		topology.RoleSaturator:  cfg.SaturatorURI,
		topology.RoleCompressor: cfg.CompressorURI,
		topology.RoleEqualizer:  cfg.EqualizerURI,
		topology.RoleGain:       cfg.GainURI,
	}
}

// Assembler builds channel strips. It is stateless between builds.
type Assembler struct {
	host       PluginHost
	wiring     *wiring.Protocol
	pluginType string
	uris       URIs
}

// New returns an Assembler.
func New(host PluginHost, protocol *wiring.Protocol, pluginType string, uris URIs) *Assembler {
	return &Assembler{host: host, wiring: protocol, pluginType: pluginType, uris: uris}
}

var basicRoles = []topology.Role{
	topology.RoleSaturator,
	topology.RoleCompressor,
	topology.RoleEqualizer,
	topology.RoleGain,
}

// Instantiate creates one plugin for role.
func (a *Assembler) Instantiate(ctx context.Context, role topology.Role) (topology.PluginInstance, error) {
	uri, ok := a.uris[role]
	if !ok || uri == "" {
		return topology.PluginInstance{}, &StepError{Step: StepInstantiation, Role: role, Err: fmt.Errorf("no plugin uri configured")}
	}
	plugin, err := a.host.CreatePluginInstance(ctx, a.pluginType, uri)
	if err != nil {
		return topology.PluginInstance{}, &StepError{Step: StepInstantiation, Role: role, Err: err}
	}
	return plugin, nil
}

// Build instantiates every plugin the kind needs, then wires them in chain
// order. Instantiations run concurrently and all must succeed before any link
// is requested. When several fail, the error for the earliest role in chain
// order is returned.
func (a *Assembler) Build(ctx context.Context, kind topology.ChannelStripKind) (topology.ChannelStripPlugins, error) {
	roles := basicRoles
	if kind.HasCrossFader() {
		roles = append([]topology.Role{topology.RoleCrossFader}, basicRoles...)
	}

	plugins := make([]topology.PluginInstance, len(roles))
	errs := make([]error, len(roles))
	var g errgroup.Group
	for i, role := range roles {
		i, role := i, role
		g.Go(func() error {
			plugins[i], errs[i] = a.Instantiate(ctx, role)
			return errs[i]
		})
	}
	if err := g.Wait(); err != nil {
		for _, e := range errs {
			if e != nil {
				return topology.ChannelStripPlugins{}, e
			}
		}
		return topology.ChannelStripPlugins{}, err
	}

	byRole := make(map[topology.Role]topology.PluginInstance, len(roles))
	for i, role := range roles {
		byRole[role] = plugins[i]
	}
	set := topology.ChannelStripPlugins{
		Saturator:  byRole[topology.RoleSaturator],
		Compressor: byRole[topology.RoleCompressor],
		Equalizer:  byRole[topology.RoleEqualizer],
		Gain:       byRole[topology.RoleGain],
	}
	if fader, ok := byRole[topology.RoleCrossFader]; ok {
		set.CrossFader = &fader
	}

	if err := a.wire(ctx, set); err != nil {
		return topology.ChannelStripPlugins{}, err
	}
	return set, nil
}

func (a *Assembler) wire(ctx context.Context, set topology.ChannelStripPlugins) error {
	type hop struct {
		from, to topology.PluginInstance
		role     topology.Role
	}
	hops := make([]hop, 0, 4)
	if set.CrossFader != nil {
		hops = append(hops, hop{*set.CrossFader, set.Saturator, topology.RoleSaturator})
	}
	hops = append(hops,
		hop{set.Saturator, set.Compressor, topology.RoleCompressor},
		hop{set.Compressor, set.Equalizer, topology.RoleEqualizer},
		hop{set.Equalizer, set.Gain, topology.RoleGain},
	)
	for _, h := range hops {
		if err := a.wiring.Connect(ctx, h.from, h.to); err != nil {
			return &StepError{Step: StepWiring, Role: h.role, Err: err}
		}
	}
	return nil
}
