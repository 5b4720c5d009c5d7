package factory

import (
	"context"
	"time"

	"pmxfactory/internal/channelstrip"
	"pmxfactory/internal/metrics"
	"pmxfactory/internal/services/pipewire"
	"pmxfactory/internal/topology"
	"pmxfactory/internal/wiring"
)

// Registry is the topology registry the actor writes to.
type Registry interface {
	RegisterChannelStrip(ctx context.Context, strip topology.ChannelStrip) error
	RegisterOutputStage(ctx context.Context, name string, leftID, rightID, crossFaderID uint32) (uint32, error)
}

// Backends groups the three services the actor drives.
type Backends struct {
	Host     channelstrip.PluginHost
	Linker   wiring.Linker
	Registry Registry
}

// Each backend call gets its own deadline and is counted.

type timedHost struct {
	next     channelstrip.PluginHost
	timeout  time.Duration
	recorder metrics.Recorder
}

func (h timedHost) CreatePluginInstance(ctx context.Context, pluginType, uri string) (topology.PluginInstance, error) {
	ctx, cancel := withCallTimeout(ctx, h.timeout)
	defer cancel()
	plugin, err := h.next.CreatePluginInstance(ctx, pluginType, uri)
	h.recorder.ObserveBackendCall("modhost", "create_plugin_instance", err)
	return plugin, err
}

type timedLinker struct {
	next     wiring.Linker
	timeout  time.Duration
	recorder metrics.Recorder
}

func (l timedLinker) CreateLinkByName(ctx context.Context, link pipewire.LinkRequest) error {
	ctx, cancel := withCallTimeout(ctx, l.timeout)
	defer cancel()
	err := l.next.CreateLinkByName(ctx, link)
	l.recorder.ObserveBackendCall("pipewire", "create_link", err)
	return err
}

type timedRegistry struct {
	next     Registry
	timeout  time.Duration
	recorder metrics.Recorder
}

func (r timedRegistry) RegisterChannelStrip(ctx context.Context, strip topology.ChannelStrip) error {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()
	err := r.next.RegisterChannelStrip(ctx, strip)
	r.recorder.ObserveBackendCall("registry", "register_channel_strip", err)
	return err
}

func (r timedRegistry) RegisterOutputStage(ctx context.Context, name string, leftID, rightID, crossFaderID uint32) (uint32, error) {
	ctx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()
	id, err := r.next.RegisterOutputStage(ctx, name, leftID, rightID, crossFaderID)
	r.recorder.ObserveBackendCall("registry", "register_output_stage", err)
	return id, err
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAssembly(string, string, time.Duration) {}
func (nopRecorder) ObserveBackendCall(string, string, error)      {}
func (nopRecorder) SetMailboxDepth(int)                           {}
