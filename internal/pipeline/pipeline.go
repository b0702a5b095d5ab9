// Package pipeline runs the bot's event loop. One goroutine admits events in
// arrival order; accepted events move to a per-conversation lane that calls
// the model and dispatches the reply, so a slow completion only delays its
// own conversation.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/dealbot/internal/admission"
	"github.com/nextlevelbuilder/dealbot/internal/bus"
	"github.com/nextlevelbuilder/dealbot/internal/channels"
	"github.com/nextlevelbuilder/dealbot/internal/dispatch"
	"github.com/nextlevelbuilder/dealbot/internal/offers"
	"github.com/nextlevelbuilder/dealbot/internal/providers"
	"github.com/nextlevelbuilder/dealbot/internal/sessions"
)

const (
	defaultModelTimeout  = 30 * time.Second
	defaultLaneBuffer    = 32
	defaultLaneIdle      = 2 * time.Minute
	defaultPruneInterval = 5 * time.Minute
	previewWidth         = 80
)

// Options wires the pipeline's collaborators.
type Options struct {
	Controller *admission.Controller
	Sessions   *sessions.Manager
	Model      providers.Completer
	Dispatcher *dispatch.Dispatcher

	Catalog       *offers.Catalog
	EnrichReplies bool
	MinOfferScore float64

	ModelTimeout  time.Duration
	LaneBuffer    int
	LaneIdle      time.Duration
	PruneInterval time.Duration

	Tracer trace.Tracer // defaults to the global provider
}

type jobKind int

const (
	jobRespond jobKind = iota
	jobCommand
)

type job struct {
	kind  jobKind
	ev    bus.InboundEvent
	reply string // admin command answer
}

type lane struct {
	jobs chan job
}

// Pipeline owns the admission loop and the conversation lanes.
type Pipeline struct {
	opts   Options
	tracer trace.Tracer

	mu    sync.Mutex
	lanes map[string]*lane
	wg    sync.WaitGroup
}

func New(opts Options) *Pipeline {
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = defaultModelTimeout
	}
	if opts.LaneBuffer <= 0 {
		opts.LaneBuffer = defaultLaneBuffer
	}
	if opts.LaneIdle <= 0 {
		opts.LaneIdle = defaultLaneIdle
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = defaultPruneInterval
	}
	if opts.MinOfferScore <= 0 {
		opts.MinOfferScore = offers.DefaultMinScore
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/nextlevelbuilder/dealbot/internal/pipeline")
	}
	return &Pipeline{
		opts:   opts,
		tracer: tracer,
		lanes:  make(map[string]*lane),
	}
}

// Run consumes events until ctx is done or events is closed, then drains the
// lanes and returns.
func (p *Pipeline) Run(ctx context.Context, events <-chan bus.InboundEvent) error {
	prune := time.NewTicker(p.opts.PruneInterval)
	defer prune.Stop()

	defer func() {
		p.closeLanes()
		p.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.admit(ctx, ev)
		case <-prune.C:
			if n := p.opts.Sessions.Prune(); n > 0 {
				slog.Debug("pruned idle conversation contexts", "count", n)
			}
		}
	}
}

func (p *Pipeline) admit(ctx context.Context, ev bus.InboundEvent) {
	d := p.opts.Controller.Admit(ev)

	switch d.Outcome {
	case admission.OutcomeCommand:
		slog.Info("admin command", "user_id", ev.UserID, "conversation_id", ev.ConversationID, "command", channels.Truncate(ev.Content, previewWidth))
		p.enqueue(ctx, job{kind: jobCommand, ev: ev, reply: d.Reply})
	case admission.OutcomeAccepted:
		p.log("event accepted", ev,
			"first_contact", d.FirstContact, "bypass", d.Bypass,
			"preview", channels.Truncate(ev.Content, previewWidth))
		p.enqueue(ctx, job{kind: jobRespond, ev: ev})
	default:
		p.log("event rejected", ev, "reason", string(d.Reason))
	}
}

// log writes at Debug, or Info while the admin has debug mode on.
func (p *Pipeline) log(msg string, ev bus.InboundEvent, args ...any) {
	level := slog.LevelDebug
	if p.opts.Controller.Debug() {
		level = slog.LevelInfo
	}
	attrs := append([]any{
		"entity_id", ev.EntityID,
		"conversation_id", ev.ConversationID,
		"user_id", ev.UserID,
		"user", ev.DisplayName(),
	}, args...)
	slog.Log(context.Background(), level, msg, attrs...)
}

func (p *Pipeline) enqueue(ctx context.Context, j job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conv := j.ev.ConversationID
	l, ok := p.lanes[conv]
	if !ok {
		l = &lane{jobs: make(chan job, p.opts.LaneBuffer)}
		p.lanes[conv] = l
		p.wg.Add(1)
		go p.runLane(ctx, conv, l)
	}

	select {
	case l.jobs <- j:
	default:
		slog.Warn("conversation lane full, dropping event", "conversation_id", conv, "entity_id", j.ev.EntityID)
	}
}

func (p *Pipeline) runLane(ctx context.Context, conv string, l *lane) {
	defer p.wg.Done()

	idle := time.NewTimer(p.opts.LaneIdle)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-l.jobs:
			if !ok {
				return
			}
			if ctx.Err() == nil {
				p.handle(ctx, j)
			}
			idle.Reset(p.opts.LaneIdle)
		case <-idle.C:
			p.mu.Lock()
			if len(l.jobs) == 0 {
				if p.lanes[conv] == l {
					delete(p.lanes, conv)
				}
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
			idle.Reset(p.opts.LaneIdle)
		}
	}
}

func (p *Pipeline) closeLanes() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for conv, l := range p.lanes {
		close(l.jobs)
		delete(p.lanes, conv)
	}
}

func (p *Pipeline) handle(ctx context.Context, j job) {
	switch j.kind {
	case jobCommand:
		_, err := p.opts.Dispatcher.Dispatch(ctx, j.ev.ConversationID, func(context.Context) (string, error) {
			return j.reply, nil
		})
		if err != nil {
			slog.Warn("admin reply failed", "conversation_id", j.ev.ConversationID, "error", err)
		}
	default:
		p.respond(ctx, j.ev)
	}
}

// respond re-checks the responder stage, generates, sends and commits the
// reply. Cooldown and responder state change only after a confirmed send.
func (p *Pipeline) respond(ctx context.Context, ev bus.InboundEvent) {
	runID := uuid.NewString()[:8]
	ctx, span := p.tracer.Start(ctx, "pipeline.respond", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("conversation_id", ev.ConversationID),
		attribute.String("user_id", ev.UserID),
		attribute.String("entity_id", ev.EntityID),
	))
	defer span.End()

	if d := p.opts.Controller.Confirm(ev); !d.Accepted() {
		span.SetAttributes(attribute.String("rejected", string(d.Reason)))
		p.log("queued event rejected", ev, "reason", string(d.Reason), "run_id", runID)
		return
	}

	analysis := offers.Analyze(ev.Content)
	match := offers.Best(p.opts.Catalog, ev.Content, analysis, p.opts.MinOfferScore)
	if match != nil {
		span.SetAttributes(attribute.String("offer", match.Offer.Name), attribute.Float64("offer_score", match.Score))
	}

	start := time.Now()
	res, err := p.opts.Dispatcher.Dispatch(ctx, ev.ConversationID, func(ctx context.Context) (string, error) {
		return p.generate(ctx, ev, analysis, match)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, providers.ErrUpstream), errors.Is(err, dispatch.ErrNoReply):
			slog.Warn("no reply generated", "run_id", runID, "conversation_id", ev.ConversationID, "error", err)
		case errors.Is(err, channels.ErrTransport):
			slog.Warn("reply not delivered", "run_id", runID, "conversation_id", ev.ConversationID, "error", err)
		default:
			slog.Error("respond failed", "run_id", runID, "conversation_id", ev.ConversationID, "error", err)
		}
		return
	}

	p.opts.Sessions.Append(ev.ConversationID, providers.RoleAssistant, res.Text)
	p.opts.Controller.RecordReply(ev)

	slog.Info("reply sent",
		"run_id", runID,
		"conversation_id", ev.ConversationID,
		"user", ev.DisplayName(),
		"message_id", res.MessageID,
		"duration_ms", time.Since(start).Milliseconds(),
		"preview", channels.Truncate(res.Text, previewWidth),
	)
}

func (p *Pipeline) generate(ctx context.Context, ev bus.InboundEvent, analysis offers.Analysis, match *offers.Match) (string, error) {
	turns := p.opts.Sessions.Append(ev.ConversationID, providers.RoleUser, ev.Content)

	ctx, cancel := context.WithTimeout(ctx, p.opts.ModelTimeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("provider", p.opts.Model.Name()),
		attribute.Int("turns", len(turns)),
	))
	defer span.End()

	reply, err := p.opts.Model.Complete(ctx, turns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if p.opts.EnrichReplies {
		reply = offers.Enrich(reply, analysis, match)
	}
	return reply, nil
}
