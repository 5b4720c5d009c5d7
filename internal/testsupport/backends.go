package testsupport

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"pmxfactory/internal/services/pipewire"
	"pmxfactory/internal/topology"
)

// Call is one backend invocation observed by the fakes. Nodes lists the
// plugin instance names the call touched: the created instance, both link
// ends, or every plugin of a registered strip.
type Call struct {
	Service string
	Op      string
	Detail  string
	Nodes   []string
}

func (c Call) String() string {
	return c.Service + "." + c.Op + "(" + c.Detail + ")"
}

// Trace records calls across all fakes in the order they happened.
type Trace struct {
	mu    sync.Mutex
	calls []Call
}

func (t *Trace) add(call Call) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.calls = append(t.calls, call)
	t.mu.Unlock()
}

// Calls returns a snapshot of the recorded calls.
func (t *Trace) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.calls...)
}

// Ops returns the recorded calls filtered to service (all services when empty),
// rendered with Call.String.
func (t *Trace) Ops(service string) []string {
	var out []string
	for _, call := range t.Calls() {
		if service == "" || call.Service == service {
			out = append(out, call.String())
		}
	}
	return out
}

// Index returns the position of the first call whose rendering contains
// fragment, or -1.
func (t *Trace) Index(fragment string) int {
	for i, call := range t.Calls() {
		if strings.Contains(call.String(), fragment) {
			return i
		}
	}
	return -1
}

// PluginHost is an in-memory plugin host. Instance ids are sequential from 0
// and names are "<last uri segment>_<id>".
type PluginHost struct {
	Trace *Trace

	mu     sync.Mutex
	nextID uint32
	fail   map[string]error
	hook   func(uri string)
}

// FailURI makes every instantiation of uri return err.
func (h *PluginHost) FailURI(uri string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail == nil {
		h.fail = map[string]error{}
	}
	if err == nil {
		delete(h.fail, uri)
		return
	}
	h.fail[uri] = err
}

// OnCreate installs a hook run before each instantiation, outside the lock.
func (h *PluginHost) OnCreate(hook func(uri string)) {
	h.mu.Lock()
	h.hook = hook
	h.mu.Unlock()
}

func (h *PluginHost) CreatePluginInstance(_ context.Context, pluginType, uri string) (topology.PluginInstance, error) {
	h.mu.Lock()
	hook := h.hook
	h.mu.Unlock()
	if hook != nil {
		hook(uri)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail[uri]; err != nil {
		h.Trace.add(Call{Service: "modhost", Op: "create", Detail: uri})
		return topology.PluginInstance{}, err
	}
	id := h.nextID
	h.nextID++
	instance := topology.PluginInstance{
		ID:   id,
		Name: fmt.Sprintf("%s_%d", path.Base(uri), id),
		URI:  uri,
	}
	h.Trace.add(Call{Service: "modhost", Op: "create", Detail: uri, Nodes: []string{instance.Name}})
	return instance, nil
}

// Linker is an in-memory graph backend.
type Linker struct {
	Trace *Trace
	// FailWhen, if set, is consulted for every link; a non-nil result fails it.
	FailWhen func(pipewire.LinkRequest) error

	mu    sync.Mutex
	links []pipewire.LinkRequest
}

func (l *Linker) CreateLinkByName(_ context.Context, link pipewire.LinkRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Trace.add(Call{
		Service: "pipewire",
		Op:      "link",
		Detail:  FormatLink(link),
		Nodes:   []string{link.OutputNodeName, link.InputNodeName},
	})
	if l.FailWhen != nil {
		if err := l.FailWhen(link); err != nil {
			return err
		}
	}
	l.links = append(l.links, link)
	return nil
}

// Links returns the successful links in order.
func (l *Linker) Links() []pipewire.LinkRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]pipewire.LinkRequest(nil), l.links...)
}

// FormatLink renders a link as "out:port->in:port".
func FormatLink(link pipewire.LinkRequest) string {
	return fmt.Sprintf("%s:%d->%s:%d", link.OutputNodeName, link.OutputPortID, link.InputNodeName, link.InputPortID)
}

// Registry is an in-memory topology registry. Output stage ids start at
// StageIDBase.
type Registry struct {
	Trace       *Trace
	StageIDBase uint32

	mu             sync.Mutex
	strips         []topology.ChannelStrip
	stages         []topology.OutputStage
	stripErr       error
	stageErr       error
	nextStageIndex uint32
}

// FailStrips makes RegisterChannelStrip return err (nil restores success).
func (r *Registry) FailStrips(err error) {
	r.mu.Lock()
	r.stripErr = err
	r.mu.Unlock()
}

// FailStages makes RegisterOutputStage return err (nil restores success).
func (r *Registry) FailStages(err error) {
	r.mu.Lock()
	r.stageErr = err
	r.mu.Unlock()
}

func (r *Registry) RegisterChannelStrip(_ context.Context, strip topology.ChannelStrip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var nodes []string
	for _, plugin := range strip.Plugins.Chain() {
		nodes = append(nodes, plugin.Name)
	}
	r.Trace.add(Call{Service: "registry", Op: "strip", Detail: fmt.Sprintf("%d:%s", strip.ID, strip.Name), Nodes: nodes})
	if r.stripErr != nil {
		return r.stripErr
	}
	r.strips = append(r.strips, strip)
	return nil
}

func (r *Registry) RegisterOutputStage(_ context.Context, name string, leftID, rightID, crossFaderID uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Trace.add(Call{Service: "registry", Op: "stage", Detail: fmt.Sprintf("%s:%d,%d,%d", name, leftID, rightID, crossFaderID)})
	if r.stageErr != nil {
		return 0, r.stageErr
	}
	id := r.StageIDBase + r.nextStageIndex
	r.nextStageIndex++
	r.stages = append(r.stages, topology.OutputStage{
		ID:                  id,
		Name:                name,
		LeftChannelStripID:  leftID,
		RightChannelStripID: rightID,
		CrossFaderPluginID:  crossFaderID,
	})
	return id, nil
}

// Strips returns the registered strips in order.
func (r *Registry) Strips() []topology.ChannelStrip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]topology.ChannelStrip(nil), r.strips...)
}

// Stages returns the registered stages in order.
func (r *Registry) Stages() []topology.OutputStage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]topology.OutputStage(nil), r.stages...)
}

// Backends bundles one set of fakes sharing a trace.
type Backends struct {
	Trace    *Trace
	Host     *PluginHost
	Linker   *Linker
	Registry *Registry
}

// NewBackends returns fakes wired to a common trace.
func NewBackends() *Backends {
	trace := &Trace{}
	return &Backends{
		Trace:    trace,
		Host:     &PluginHost{Trace: trace},
		Linker:   &Linker{Trace: trace},
		Registry: &Registry{Trace: trace, StageIDBase: 100},
	}
}
