// Package assistant runs one conversational turn end to end.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/cache"
	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/handlers"
	"github.com/ent0n29/sofia/internal/intent"
	"github.com/ent0n29/sofia/internal/memory"
	"github.com/ent0n29/sofia/internal/observability"
	"github.com/ent0n29/sofia/internal/session"
)

const historySaveTimeout = 2 * time.Second

// Turn is one user message.
type Turn struct {
	UserID   string
	UserName string
	Message  string
}

// Reply is the assistant's answer to a turn. ErrorID is set when a handler
// failed and Text is the templated error message.
type Reply struct {
	Text    string
	Intent  intent.Intent
	ErrorID string
}

type Options struct {
	Bundle     *config.Bundle
	Cache      *cache.Cache
	Session    *session.Store
	Classifier *intent.Classifier
	Handlers   *handlers.Set
	History    *memory.History
	Metrics    *observability.Metrics
	Turns      *observability.TurnWindow
	Logger     *zap.Logger
	Now        func() time.Time
}

type Orchestrator struct {
	bundle     *config.Bundle
	cache      *cache.Cache
	session    *session.Store
	classifier *intent.Classifier
	dispatch   map[intent.Intent]handlers.Func
	history    *memory.History
	metrics    *observability.Metrics
	turns      *observability.TurnWindow
	logger     *zap.Logger
	now        func() time.Time

	locks userLocks
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = intent.NewClassifier(opts.Bundle)
	}
	return &Orchestrator{
		bundle:     opts.Bundle,
		cache:      opts.Cache,
		session:    opts.Session,
		classifier: classifier,
		dispatch:   opts.Handlers.ByIntent(),
		history:    opts.History,
		metrics:    opts.Metrics,
		turns:      opts.Turns,
		logger:     logger.Named("assistant"),
		now:        now,
	}
}

// Respond classifies the message, runs the matching handler and records the
// exchange in history. Turns of one user run one at a time; turns of
// different users run concurrently. Respond never returns an error: handler
// failures become a templated reply carrying an error id.
func (o *Orchestrator) Respond(ctx context.Context, turn Turn) Reply {
	unlock := o.locks.lock(turn.UserID)
	defer unlock()

	start := time.Now()
	o.cache.Cleanup()

	in := o.classifier.Classify(intent.Context{
		Message: turn.Message,
		UserID:  turn.UserID,
		State:   o.session,
	})
	if in == intent.Boards {
		o.session.SetBoardMode(turn.UserID, true)
	}

	reply := Reply{Intent: in}
	text, err := o.run(ctx, in, handlers.Request{
		UserID:   turn.UserID,
		UserName: turn.UserName,
		Message:  turn.Message,
	})
	if err != nil {
		reply.ErrorID = o.newErrorID()
		reply.Text = config.Render(o.bundle.Messages.ErrorTemplate, map[string]string{"id": reply.ErrorID})
		o.logFailure(turn, in, reply.ErrorID, err)
	} else {
		reply.Text = text
	}

	o.record(ctx, turn, reply.Text)

	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.ObserveTurn(string(in), elapsed)
		if err != nil {
			o.metrics.ObserveFailure(string(in), string(handlers.KindOf(err)))
		}
	}
	o.turns.Observe(string(in), elapsed, err != nil)
	return reply
}

// run dispatches to the handler, turning a panic into an internal failure.
func (o *Orchestrator) run(ctx context.Context, in intent.Intent, req handlers.Request) (text string, err error) {
	h, ok := o.dispatch[in]
	if !ok {
		return "", &handlers.Failure{Kind: handlers.KindInternal, Op: "dispatch", Err: fmt.Errorf("no handler for intent %q", in)}
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &handlers.Failure{Kind: handlers.KindInternal, Op: string(in), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return h(ctx, req)
}

func (o *Orchestrator) logFailure(turn Turn, in intent.Intent, errorID string, err error) {
	fields := []zap.Field{
		zap.String("error_id", errorID),
		zap.String("intent", string(in)),
		zap.String("user_id", turn.UserID),
		zap.String("user_name", turn.UserName),
		zap.String("kind", string(handlers.KindOf(err))),
		zap.Error(err),
	}
	var f *handlers.Failure
	if errors.As(err, &f) {
		fields = append(fields, zap.String("op", f.Op))
	}
	o.logger.Error("turn failed", fields...)
}

// record saves the exchange even when the handler failed. The save outlives
// a cancelled request so that history stays in submission order.
func (o *Orchestrator) record(ctx context.Context, turn Turn, reply string) {
	if o.history == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
	defer cancel()
	if err := o.history.Record(saveCtx, turn.UserID, turn.Message, reply); err != nil {
		o.logger.Warn("history record failed", zap.String("user_id", turn.UserID), zap.Error(err))
	}
}

// newErrorID returns ERR-YYYYMMDD-HHMMSS-xxxxxx. The suffix keeps ids
// unique within one second.
func (o *Orchestrator) newErrorID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("ERR-%s-%s", o.now().Format("20060102-150405"), suffix)
}

// ResetUser clears every session category for one user.
func (o *Orchestrator) ResetUser(userID string) {
	unlock := o.locks.lock(userID)
	defer unlock()
	o.session.Reset(userID)
}

// State returns a copy of one user's session state.
func (o *Orchestrator) State(userID string) session.Snapshot {
	return o.session.Snapshot(userID)
}

// ActiveFlows counts users currently in board mode and with a pending
// learning draft.
func (o *Orchestrator) ActiveFlows() (boardMode, learning int) {
	return o.session.BoardModeCount(), o.session.LearningCount()
}

// ClearCache drops every cached result.
func (o *Orchestrator) ClearCache() {
	o.cache.Clear()
}

// Explain reports how a message would be classified for a user without
// running a turn.
func (o *Orchestrator) Explain(userID, message string) intent.Decision {
	return o.classifier.Explain(intent.Context{Message: message, UserID: userID, State: o.session})
}

// userLocks hands out one mutex per user. Entries are dropped when no turn
// holds or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*userLock)
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
