package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/crossroadbot/crossroad/internal/observability"
	"github.com/crossroadbot/crossroad/pkg/cooldown"
	"github.com/crossroadbot/crossroad/pkg/prefix"
	"github.com/crossroadbot/crossroad/pkg/reply"
)

// Interaction kind labels for metrics and traces.
const (
	kindChatInput    = "chat_input"
	kindUserMenu     = "user_menu"
	kindMessageMenu  = "message_menu"
	kindPrefix       = "prefix"
	kindAutocomplete = "autocomplete"
)

// Options configures a Dispatcher.
type Options[D any] struct {
	// Data is the application data handed to every invocation.
	Data D

	// Checks run first in the admission pipeline, for every command.
	Checks []CheckFunc[D]

	// PreCommand runs after all checks pass, immediately before the
	// handler. It cannot veto the invocation.
	PreCommand func(ctx *Context[D])

	// PostCommand runs after the handler returns without error.
	PostCommand func(ctx *Context[D])

	// OnError observes every dispatch failure (rejections included) so the
	// application can render a reply. It runs after classification; the
	// error is still returned to the caller.
	OnError func(ctx *Context[D], err error)

	// Owners are the user IDs allowed to run OwnerOnly commands.
	Owners []string

	// Cooldowns tracks invocation timestamps; nil disables cooldowns.
	Cooldowns *cooldown.Tracker

	// Prefixes configure text-command parsing (prefix.DefaultPrefixes when
	// empty).
	Prefixes []string

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Metrics enables Prometheus collection when set.
	Metrics *observability.Metrics

	// Tracer enables span emission around dispatches when set.
	Tracer trace.Tracer
}

// Dispatcher routes inbound events onto the command tree and manages the
// invocation lifecycle. Dispatches for different events run concurrently;
// the cooldown tracker is the only cross-invocation shared state.
type Dispatcher[D any] struct {
	registry *Registry[D]
	opts     Options[D]
	parser   *prefix.Parser
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a dispatcher over a registry.
func New[D any](registry *Registry[D], opts Options[D]) *Dispatcher[D] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher[D]{
		registry: registry,
		opts:     opts,
		parser:   prefix.NewParser(opts.Prefixes...),
		logger:   logger.With("component", "dispatch"),
		metrics:  opts.Metrics,
	}
}

// Bind attaches the dispatcher to a discordgo session's event stream and
// returns the handler remove functions.
func (d *Dispatcher[D]) Bind(session *discordgo.Session) []func() {
	return []func(){
		session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			d.HandleInteractionCreate(context.Background(), s, i)
		}),
		session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			d.HandleMessageCreate(context.Background(), s, m)
		}),
	}
}

// Sync overwrites the application's registered slash commands with the
// current tree. guildID scopes registration to one guild; empty registers
// globally.
func (d *Dispatcher[D]) Sync(session reply.Session, appID, guildID string) error {
	commands := d.registry.ApplicationCommands()
	d.logger.Info("syncing application commands", "count", len(commands), "guild_id", guildID)
	_, err := session.ApplicationCommandBulkOverwrite(appID, guildID, commands)
	return err
}

// HandleInteractionCreate routes one inbound interaction. Unrecognized
// interaction types (future protocol kinds) log a warning and return nil so
// that protocol evolution never breaks the dispatch loop.
func (d *Dispatcher[D]) HandleInteractionCreate(ctx context.Context, session reply.Session, i *discordgo.InteractionCreate) error {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return d.dispatchCommand(ctx, session, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		return d.dispatchAutocomplete(ctx, session, i)
	default:
		d.logger.Warn("unrecognized interaction type", "type", i.Type)
		return nil
	}
}

// dispatchCommand resolves and executes an application command interaction.
func (d *Dispatcher[D]) dispatchCommand(ctx context.Context, session reply.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	kind := interactionKind(data.CommandType)

	res, ok := findCommand(data.Name, data.Options, d.registry.Commands(), nil)
	if !ok {
		err := errUnknownCommand(data.Name)
		d.logger.Warn("no command matched interaction", "name", data.Name)
		d.metrics.RecordDispatch(kind, outcomeLabel(err))
		return err
	}

	ictx := d.newInteractionContext(ctx, session, i, res)
	span := d.startSpan(ictx, kind)
	defer span.End()

	// First pipeline pass: fail fast before any acknowledgement is sent.
	// The cooldown stamp is not committed here.
	if err := d.runChecks(ictx, false); err != nil {
		return d.finish(ictx, span, kind, err)
	}

	err := d.runIsolated(ictx, func() error {
		return d.runCommand(ictx, data)
	})
	return d.finish(ictx, span, kind, err)
}

// runCommand performs the second (committing) pipeline pass, the hooks, and
// the handler selected by interaction kind. A mismatch between the declared
// action and the actual interaction kind or resolved target signals a
// registration/remote-state desynchronization and is surfaced as a structure
// mismatch, never silently dropped.
func (d *Dispatcher[D]) runCommand(ctx *Context[D], data discordgo.ApplicationCommandInteractionData) error {
	if err := d.runChecks(ctx, true); err != nil {
		return err
	}

	if d.opts.PreCommand != nil {
		d.opts.PreCommand(ctx)
	}

	name := ctx.QualifiedName()
	start := time.Now()
	var err error
	switch data.CommandType {
	case discordgo.ChatApplicationCommand, 0:
		if ctx.Command.Run == nil {
			return errStructureMismatch(name, "chat input interaction but command has no slash action")
		}
		err = ctx.Command.Run(ctx)
	case discordgo.UserApplicationCommand:
		target := resolvedUser(data)
		if ctx.Command.UserMenu == nil || target == nil {
			return errStructureMismatch(name, "user context menu interaction but command has no user action or no user was resolved")
		}
		err = ctx.Command.UserMenu(ctx, target)
	case discordgo.MessageApplicationCommand:
		target := resolvedMessage(data)
		if ctx.Command.MessageMenu == nil || target == nil {
			return errStructureMismatch(name, "message context menu interaction but command has no message action or no message was resolved")
		}
		err = ctx.Command.MessageMenu(ctx, target)
	default:
		d.logger.Warn("unrecognized application command type", "type", data.CommandType, "command", name)
		return nil
	}
	d.metrics.RecordHandlerDuration(name, time.Since(start))
	if err != nil {
		return errHandler(name, err)
	}

	if d.opts.PostCommand != nil {
		d.opts.PostCommand(ctx)
	}
	return nil
}

// HandleMessageCreate routes a text message through the prefix parser and,
// when it names a prefix-invokable command, dispatches it. Unmatched
// messages and unknown names are ignored: arbitrary chatter may start with a
// prefix character.
func (d *Dispatcher[D]) HandleMessageCreate(ctx context.Context, session reply.Session, m *discordgo.MessageCreate) error {
	if m.Author == nil || m.Author.Bot {
		return nil
	}
	inv, ok := d.parser.Parse(m.Content)
	if !ok {
		return nil
	}

	tokens := append([]string{inv.Name}, inv.Args...)
	cmd, parents, rest, found := findPrefixCommand(tokens, d.registry.Commands(), nil)
	if !found || cmd.Run == nil {
		d.logger.Debug("prefix message matched no command", "name", inv.Name)
		return nil
	}

	ictx := d.newMessageContext(ctx, session, m, cmd, parents, rest)
	span := d.startSpan(ictx, kindPrefix)
	defer span.End()

	err := d.runIsolated(ictx, func() error {
		// Single pipeline pass: the prefix path sends no acknowledgement,
		// so there is no pre-ack/pre-execution window to guard.
		if err := d.runChecks(ictx, true); err != nil {
			return err
		}
		if d.opts.PreCommand != nil {
			d.opts.PreCommand(ictx)
		}
		start := time.Now()
		runErr := cmd.Run(ictx)
		d.metrics.RecordHandlerDuration(ictx.QualifiedName(), time.Since(start))
		if runErr != nil {
			return errHandler(ictx.QualifiedName(), runErr)
		}
		if d.opts.PostCommand != nil {
			d.opts.PostCommand(ictx)
		}
		return nil
	})
	return d.finish(ictx, span, kindPrefix, err)
}

// runIsolated executes fn with panic isolation: a panicking handler is
// converted into a HANDLER_PANIC error at the dispatch boundary so it can
// never unwind past the dispatcher or poison subsequent dispatches.
func (d *Dispatcher[D]) runIsolated(ctx *Context[D], fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errPanic(ctx.QualifiedName(), p, debug.Stack())
		}
	}()
	return fn()
}

// finish classifies the outcome, records it, runs the error callback, and
// hands the error back to the caller.
func (d *Dispatcher[D]) finish(ctx *Context[D], span trace.Span, kind string, err error) error {
	d.metrics.RecordDispatch(kind, outcomeLabel(err))
	if err == nil {
		return nil
	}

	switch {
	case IsRejection(err):
		// Expected and user-facing; not an operational error.
		ctx.Logger().Debug("invocation rejected", "reason", err)
	case CodeOf(err) == CodeHandlerPanic:
		var de *Error
		if errors.As(err, &de) {
			ctx.Logger().Error("handler panicked", "panic", de.Payload, "stack", string(de.Stack))
		}
	default:
		ctx.Logger().Error("dispatch failed", "error", err)
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CodeOf(err)))
	}
	if d.opts.OnError != nil {
		d.opts.OnError(ctx, err)
	}
	return err
}

// startSpan opens a dispatch span when tracing is configured; otherwise it
// returns a no-op span. The span context replaces the invocation context so
// handlers propagate it downstream.
func (d *Dispatcher[D]) startSpan(ctx *Context[D], kind string) trace.Span {
	if d.opts.Tracer == nil {
		return trace.SpanFromContext(ctx.Context)
	}
	spanCtx, span := d.opts.Tracer.Start(ctx.Context, "dispatch "+ctx.QualifiedName(),
		trace.WithAttributes(
			attribute.String("command", ctx.QualifiedName()),
			attribute.String("kind", kind),
			attribute.String("invocation_id", ctx.ID),
		))
	ctx.Context = spanCtx
	return span
}

func (d *Dispatcher[D]) newInteractionContext(ctx context.Context, session reply.Session, i *discordgo.InteractionCreate, res *resolution[D]) *Context[D] {
	id := uuid.NewString()
	c := &Context[D]{
		Context:     ctx,
		Session:     session,
		Interaction: i,
		Command:     res.command,
		Parents:     res.parents,
		Options:     res.options,
		Data:        d.opts.Data,
		ID:          id,
		Responder:   reply.NewResponder(session, i.Interaction, &reply.Slot{}, res.command.Ephemeral),
	}
	c.logger = d.logger.With("invocation_id", id, "command", c.QualifiedName())
	return c
}

func (d *Dispatcher[D]) newMessageContext(ctx context.Context, session reply.Session, m *discordgo.MessageCreate, cmd *Command[D], parents []*Command[D], args []string) *Context[D] {
	id := uuid.NewString()
	c := &Context[D]{
		Context:        ctx,
		Session:        session,
		TriggerMessage: m.Message,
		Command:        cmd,
		Parents:        parents,
		Args:           args,
		Data:           d.opts.Data,
		ID:             id,
	}
	c.logger = d.logger.With("invocation_id", id, "command", c.QualifiedName())
	return c
}

// interactionKind maps the protocol command type to a metric label.
func interactionKind(t discordgo.ApplicationCommandType) string {
	switch t {
	case discordgo.UserApplicationCommand:
		return kindUserMenu
	case discordgo.MessageApplicationCommand:
		return kindMessageMenu
	default:
		return kindChatInput
	}
}

// outcomeLabel maps a dispatch result to a metric label.
func outcomeLabel(err error) string {
	switch CodeOf(err) {
	case "":
		if err != nil {
			return "error"
		}
		return "ok"
	case CodeUnknownCommand:
		return "unknown_command"
	case CodeStructureMismatch:
		return "structure_mismatch"
	case CodeCheckRejected:
		return "rejected"
	case CodeCooldown:
		return "cooldown"
	case CodeHandlerPanic:
		return "panic"
	default:
		return "error"
	}
}

// resolvedUser returns the context menu target user, if the interaction resolved one.
func resolvedUser(data discordgo.ApplicationCommandInteractionData) *discordgo.User {
	if data.Resolved == nil {
		return nil
	}
	return data.Resolved.Users[data.TargetID]
}

// resolvedMessage returns the context menu target message, if the interaction resolved one.
func resolvedMessage(data discordgo.ApplicationCommandInteractionData) *discordgo.Message {
	if data.Resolved == nil {
		return nil
	}
	return data.Resolved.Messages[data.TargetID]
}
