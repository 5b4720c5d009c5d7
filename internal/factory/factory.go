package factory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pmxfactory/internal/channelstrip"
	"pmxfactory/internal/config"
	"pmxfactory/internal/journal"
	"pmxfactory/internal/logging"
	"pmxfactory/internal/metrics"
	"pmxfactory/internal/services"
	"pmxfactory/internal/topology"
	"pmxfactory/internal/wiring"
)

type request struct {
	kind      journal.Kind
	name      string
	stripKind topology.ChannelStripKind
	requestID string
	entryID   int64
	caller    context.Context
	reply     chan reply
}

type reply struct {
	strip topology.ChannelStrip
	stage topology.OutputStage
	err   error
}

// Snapshot is a point-in-time view of the actor for status reporting.
type Snapshot struct {
	Running            bool   `json:"running"`
	MailboxDepth       int    `json:"mailbox_depth"`
	MailboxCapacity    int    `json:"mailbox_capacity"`
	NextChannelStripID uint64 `json:"next_channel_strip_id"`
	Processed          uint64 `json:"processed"`
}

// Factory is the assembly actor.
type Factory struct {
	mailbox   chan *request
	done      chan struct{}
	ready     chan struct{}
	stopOnce  sync.Once
	running   atomic.Bool
	started   atomic.Bool
	processed atomic.Uint64
	published atomic.Uint64

	// Owned by the actor goroutine. journal.MaxStripIDs means the
	// identifier space is used up.
	nextStripID uint64

	assembler *channelstrip.Assembler
	wiring    *wiring.Protocol
	registry  Registry
	store     *journal.Store
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// New builds an actor from configuration. store and recorder may be nil.
func New(cfg *config.Config, backends Backends, store *journal.Store, recorder metrics.Recorder, logger *slog.Logger) *Factory {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := cfg.RequestTimeout()
	protocol := wiring.New(
		timedLinker{next: backends.Linker, timeout: timeout, recorder: recorder},
		wiring.LayoutFromConfig(cfg.Wiring),
	)
	host := timedHost{next: backends.Host, timeout: timeout, recorder: recorder}

	size := cfg.Factory.MailboxSize
	if size <= 0 {
		size = 1
	}
	return &Factory{
		mailbox:   make(chan *request, size),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
		assembler: channelstrip.New(host, protocol, cfg.Plugins.Type, channelstrip.URIsFromConfig(cfg.Plugins)),
		wiring:    protocol,
		registry:  timedRegistry{next: backends.Registry, timeout: timeout, recorder: recorder},
		store:     store,
		recorder:  recorder,
		logger:    logging.NewComponentLogger(logger, "factory"),
	}
}

// Run serves the mailbox until ctx is cancelled. The identifier counter is
// restored from the journal first. Requests still queued at shutdown are
// failed with ErrStopped.
func (f *Factory) Run(ctx context.Context) error {
	if !f.started.CompareAndSwap(false, true) {
		return errors.New("assembly actor already started")
	}
	defer f.stop()

	if f.store != nil {
		next, err := f.store.NextChannelStripID(ctx)
		if err != nil {
			return fmt.Errorf("restore channel strip counter: %w", err)
		}
		f.nextStripID = next
	}
	f.published.Store(f.nextStripID)
	f.running.Store(true)
	defer f.running.Store(false)
	close(f.ready)

	f.logger.Info("assembly actor started",
		logging.Uint64("next_strip_id", f.nextStripID),
		logging.Int("mailbox_capacity", cap(f.mailbox)),
	)

	// Backend calls must not be cut short by shutdown once an assembly began.
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			f.drain(work)
			f.logger.Info("assembly actor stopped", logging.Uint64("processed", f.processed.Load()))
			return nil
		case req := <-f.mailbox:
			f.recorder.SetMailboxDepth(len(f.mailbox))
			f.handle(work, req)
			f.processed.Add(1)
		}
	}
}

// Ready is closed once Run has restored the counter and is serving the
// mailbox.
func (f *Factory) Ready() <-chan struct{} {
	return f.ready
}

func (f *Factory) stop() {
	f.stopOnce.Do(func() { close(f.done) })
}

func (f *Factory) drain(ctx context.Context) {
	for {
		select {
		case req := <-f.mailbox:
			f.journal(ctx, req, "fail", func() error {
				return f.store.Fail(ctx, req.entryID, journal.Failure{Message: journal.InterruptedReason})
			})
			req.reply <- reply{err: ErrStopped}
		default:
			f.recorder.SetMailboxDepth(0)
			return
		}
	}
}

// CreateChannelStrip assembles, wires, and registers a channel strip.
func (f *Factory) CreateChannelStrip(ctx context.Context, name string, kind topology.ChannelStripKind) (topology.ChannelStrip, error) {
	if !kind.Valid() {
		return topology.ChannelStrip{}, services.Wrap(services.ErrValidation, "factory", "create channel strip",
			fmt.Sprintf("unknown channel strip kind %q", kind), nil)
	}
	res, err := f.submit(ctx, &request{kind: journal.KindChannelStrip, name: name, stripKind: kind})
	if err != nil {
		return topology.ChannelStrip{}, err
	}
	return res.strip, res.err
}

// CreateOutputStage assembles two basic strips joined by a cross-fader and
// registers the result.
func (f *Factory) CreateOutputStage(ctx context.Context, name string) (topology.OutputStage, error) {
	res, err := f.submit(ctx, &request{kind: journal.KindOutputStage, name: name})
	if err != nil {
		return topology.OutputStage{}, err
	}
	return res.stage, res.err
}

// Snapshot reports mailbox and counter state.
func (f *Factory) Snapshot() Snapshot {
	return Snapshot{
		Running:            f.running.Load(),
		MailboxDepth:       len(f.mailbox),
		MailboxCapacity:    cap(f.mailbox),
		NextChannelStripID: f.published.Load(),
		Processed:          f.processed.Load(),
	}
}

func (f *Factory) submit(ctx context.Context, req *request) (reply, error) {
	if err := ctx.Err(); err != nil {
		return reply{}, fmt.Errorf("%w: %w", ErrCallerGone, err)
	}
	select {
	case <-f.done:
		return reply{}, ErrStopped
	default:
	}

	req.requestID, _ = services.RequestIDFromContext(ctx)
	if req.requestID == "" {
		req.requestID = uuid.NewString()
	}
	req.caller = ctx
	req.reply = make(chan reply, 1)

	if f.store != nil {
		entry, err := f.store.Begin(ctx, req.requestID, req.kind, req.name, req.stripKind)
		if err != nil {
			logging.WarnWithContext(f.logger, "journal write failed", "journal_write_failed",
				logging.String(logging.FieldCorrelationID, req.requestID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "request proceeds without a journal record"),
			)
		} else {
			req.entryID = entry.ID
		}
	}

	select {
	case f.mailbox <- req:
		f.recorder.SetMailboxDepth(len(f.mailbox))
	case <-ctx.Done():
		f.journal(context.WithoutCancel(ctx), req, "abandon", func() error {
			return f.store.Abandon(context.WithoutCancel(ctx), req.entryID)
		})
		return reply{}, fmt.Errorf("%w: %w", ErrCallerGone, ctx.Err())
	case <-f.done:
		return reply{}, ErrStopped
	}

	select {
	case res := <-req.reply:
		return res, nil
	case <-ctx.Done():
		return reply{}, fmt.Errorf("%w: %w", ErrCallerGone, ctx.Err())
	case <-f.done:
		select {
		case res := <-req.reply:
			return res, nil
		default:
			return reply{}, ErrStopped
		}
	}
}

func (f *Factory) handle(ctx context.Context, req *request) {
	ctx = services.WithRequestID(ctx, req.requestID)
	ctx = services.WithAssemblyKind(ctx, string(req.kind))
	logger := logging.WithContext(ctx, f.logger).With(logging.Args(logging.String(logging.FieldName, req.name))...)

	if req.caller.Err() != nil {
		f.journal(ctx, req, "abandon", func() error { return f.store.Abandon(ctx, req.entryID) })
		f.recorder.ObserveAssembly(string(req.kind), metrics.OutcomeAbandoned, 0)
		logger.Info("request skipped, caller gone before assembly started")
		req.reply <- reply{err: ErrCallerGone}
		return
	}

	f.journal(ctx, req, "mark_assembling", func() error { return f.store.MarkAssembling(ctx, req.entryID) })
	logger.Info("assembly started", logging.StripKind(req.stripKind))
	start := time.Now()

	var (
		res      reply
		resultID uint32
	)
	switch req.kind {
	case journal.KindChannelStrip:
		strip, err := f.assembleChannelStrip(ctx, req.entryID, req.name, req.stripKind)
		if err != nil {
			res.err = newAssemblyError(req.kind, req.name, "", err)
		}
		res.strip, resultID = strip, strip.ID
	case journal.KindOutputStage:
		stage, err := f.assembleOutputStage(ctx, req.entryID, req.name)
		if err != nil {
			res.err = err
		}
		res.stage, resultID = stage, stage.ID
	default:
		res.err = fmt.Errorf("unknown request kind %q", req.kind)
	}
	elapsed := time.Since(start)

	switch {
	case res.err != nil:
		f.journal(ctx, req, "fail", func() error { return f.store.Fail(ctx, req.entryID, failureOf(res.err)) })
		f.recorder.ObserveAssembly(string(req.kind), metrics.OutcomeFailed, elapsed)
		attrs := []logging.Attr{logging.Error(res.err), logging.Duration("elapsed", elapsed)}
		var asmErr *AssemblyError
		if errors.As(res.err, &asmErr) {
			attrs = append(attrs,
				logging.String(logging.FieldStep, string(asmErr.Step)),
				logging.Role(asmErr.Role),
				logging.String(logging.FieldErrorHint, hintFor(asmErr)),
			)
		}
		logging.ErrorWithContext(logger, "assembly failed", "assembly_failed", attrs...)
	case req.caller.Err() != nil:
		f.journal(ctx, req, "orphan", func() error { return f.store.Orphan(ctx, req.entryID, resultID) })
		f.recorder.ObserveAssembly(string(req.kind), metrics.OutcomeOrphaned, elapsed)
		logging.WarnWithContext(logger, "caller left before the assembly finished", "assembly_orphaned",
			logging.Uint32("result_id", resultID),
			logging.String(logging.FieldErrorHint, "reclaim the registered topology manually"),
			logging.String(logging.FieldImpact, "registered topology has no owner"),
		)
	default:
		f.journal(ctx, req, "complete", func() error { return f.store.Complete(ctx, req.entryID, resultID) })
		f.recorder.ObserveAssembly(string(req.kind), metrics.OutcomeCompleted, elapsed)
		logger.Info("assembly completed", logging.Uint32("result_id", resultID), logging.Duration("elapsed", elapsed))
	}
	req.reply <- res
}

// assembleChannelStrip builds, wires, and registers one strip. Failures are
// *channelstrip.StepError values. An identifier is consumed only once the
// plugins are wired, whether or not registration then succeeds.
func (f *Factory) assembleChannelStrip(ctx context.Context, entryID int64, name string, kind topology.ChannelStripKind) (topology.ChannelStrip, error) {
	if err := f.reserveStripIDs(1); err != nil {
		return topology.ChannelStrip{}, err
	}
	plugins, err := f.assembler.Build(ctx, kind)
	if err != nil {
		return topology.ChannelStrip{}, err
	}

	strip := topology.ChannelStrip{
		ID:      f.allocateStripID(ctx),
		Name:    name,
		Kind:    kind,
		Plugins: plugins,
	}
	if err := f.registry.RegisterChannelStrip(ctx, strip); err != nil {
		return topology.ChannelStrip{}, &channelstrip.StepError{Step: channelstrip.StepRegistration, Err: err}
	}
	if f.store != nil {
		if err := f.store.RecordChannelStrip(ctx, entryID, strip); err != nil {
			logging.WarnWithContext(f.logger, "journal write failed", "journal_write_failed",
				logging.StripID(strip.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "strip missing from local listings"),
			)
		}
	}
	logging.WithContext(ctx, f.logger).Info("channel strip registered",
		logging.StripID(strip.ID),
		logging.String(logging.FieldName, strip.Name),
		logging.StripKind(strip.Kind),
	)
	return strip, nil
}

// reserveStripIDs fails before any backend call when fewer than n
// identifiers remain.
func (f *Factory) reserveStripIDs(n uint64) error {
	if f.nextStripID+n > journal.MaxStripIDs {
		return &channelstrip.StepError{Step: channelstrip.StepRegistration, Err: ErrIDSpaceExhausted}
	}
	return nil
}

func (f *Factory) allocateStripID(ctx context.Context) uint32 {
	id := uint32(f.nextStripID)
	f.nextStripID++
	f.published.Store(f.nextStripID)
	if f.store != nil {
		if err := f.store.SaveNextChannelStripID(ctx, f.nextStripID); err != nil {
			logging.WarnWithContext(f.logger, "strip counter not persisted", "journal_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a restarted daemon may reuse this identifier"),
			)
		}
	}
	return id
}

// journal runs a best-effort journal write. Journal failures never change
// the reply a caller receives.
func (f *Factory) journal(ctx context.Context, req *request, op string, write func() error) {
	if f.store == nil || req.entryID == 0 {
		return
	}
	if err := write(); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, f.logger), "journal write failed", "journal_write_failed",
			logging.String("operation", op),
			logging.Int64("assembly_id", req.entryID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "journal record may show a stale status"),
		)
	}
}

func hintFor(err *AssemblyError) string {
	switch err.Step {
	case channelstrip.StepInstantiation:
		return "check the plugin host and the configured plugin uri for this role"
	case channelstrip.StepWiring:
		return "check the graph backend and the configured port layout"
	case channelstrip.StepRegistration:
		return "check the registry service"
	default:
		return "check logs for details"
	}
}
