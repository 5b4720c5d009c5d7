// Package wiring links the stereo ports of plugin instances through the graph
// backend. Every connection is two link requests, left then right; the first
// failure aborts the connection without rollback.
package wiring

import (
	"context"
	"fmt"

	"pmxfactory/internal/config"
	"pmxfactory/internal/services/pipewire"
	"pmxfactory/internal/topology"
)

// Linker is the graph backend operation wiring depends on.
type Linker interface {
	CreateLinkByName(ctx context.Context, link pipewire.LinkRequest) error
}

// StereoPorts is a [left, right] port pair.
type StereoPorts [2]uint32

// PortLayout names the ports used for each kind of connection.
type PortLayout struct {
	Output              StereoPorts
	Input               StereoPorts
	CrossFaderPrimary   StereoPorts
	CrossFaderSecondary StereoPorts
}

// DefaultLayout matches the stock cross-fader: two stereo inputs on ports
// 0,1 and 2,3, every other plugin with stereo ports 0,1.
func DefaultLayout() PortLayout {
	return PortLayout{
		Output:              StereoPorts{0, 1},
		Input:               StereoPorts{0, 1},
		CrossFaderPrimary:   StereoPorts{0, 1},
		CrossFaderSecondary: StereoPorts{2, 3},
	}
}

// LayoutFromConfig converts validated [wiring] settings. Pairs that are not
// exactly two ports long keep the default.
func LayoutFromConfig(cfg config.Wiring) PortLayout {
	layout := DefaultLayout()
	pick := func(dst *StereoPorts, src []uint32) {
		if len(src) == 2 {
			*dst = StereoPorts{src[0], src[1]}
		}
	}
	pick(&layout.Output, cfg.OutputPorts)
	pick(&layout.Input, cfg.InputPorts)
	pick(&layout.CrossFaderPrimary, cfg.CrossFaderPrimaryInputs)
	pick(&layout.CrossFaderSecondary, cfg.CrossFaderSecondaryInputs)
	return layout
}

// LinkError identifies the link request that failed.
type LinkError struct {
	Link pipewire.LinkRequest
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s:%d -> %s:%d: %v",
		e.Link.OutputNodeName, e.Link.OutputPortID,
		e.Link.InputNodeName, e.Link.InputPortID, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// Protocol issues stereo connections. It holds no state besides its linker
// and layout and may be shared.
type Protocol struct {
	linker Linker
	layout PortLayout
}

// New returns a Protocol using layout for port numbers.
func New(linker Linker, layout PortLayout) *Protocol {
	return &Protocol{linker: linker, layout: layout}
}

// Connect links output's stereo out to input's stereo in.
func (p *Protocol) Connect(ctx context.Context, output, input topology.PluginInstance) error {
	return p.connect(ctx, output, input, p.layout.Input)
}

// ConnectCrossFaderLeft links output into the fader's primary stereo input.
func (p *Protocol) ConnectCrossFaderLeft(ctx context.Context, output, fader topology.PluginInstance) error {
	return p.connect(ctx, output, fader, p.layout.CrossFaderPrimary)
}

// ConnectCrossFaderRight links output into the fader's secondary stereo input.
func (p *Protocol) ConnectCrossFaderRight(ctx context.Context, output, fader topology.PluginInstance) error {
	return p.connect(ctx, output, fader, p.layout.CrossFaderSecondary)
}

func (p *Protocol) connect(ctx context.Context, output, input topology.PluginInstance, inputs StereoPorts) error {
	for channel := 0; channel < 2; channel++ {
		link := pipewire.LinkRequest{
			OutputNodeName: output.Name,
			OutputPortID:   p.layout.Output[channel],
			InputNodeName:  input.Name,
			InputPortID:    inputs[channel],
		}
		if err := p.linker.CreateLinkByName(ctx, link); err != nil {
			return &LinkError{Link: link, Err: err}
		}
	}
	return nil
}
