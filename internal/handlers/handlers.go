// Package handlers produces the reply for each classified intent.
//
// Every handler returns (reply, error). Errors are always *Failure values;
// conditions the user can act on, such as an unknown board or a search with
// no results, are replies and not errors.
package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ent0n29/sofia/internal/boards"
	"github.com/ent0n29/sofia/internal/cache"
	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/docstore"
	"github.com/ent0n29/sofia/internal/intent"
	"github.com/ent0n29/sofia/internal/knowledge"
	"github.com/ent0n29/sofia/internal/llm"
	"github.com/ent0n29/sofia/internal/memory"
	"github.com/ent0n29/sofia/internal/session"
)

// Request is one user message routed to a handler.
type Request struct {
	UserID   string
	UserName string
	Message  string
}

// Func handles one intent.
type Func func(ctx context.Context, req Request) (string, error)

// Deps are the collaborators shared by the handlers. Bundle, Cache and
// Session are required; a nil client makes the handlers that need it fail
// with a config failure.
type Deps struct {
	Bundle    *config.Bundle
	Cache     *cache.Cache
	Session   *session.Store
	Docs      docstore.Client
	Boards    boards.Client
	LLM       llm.Client
	Knowledge knowledge.Store
	History   *memory.History
	Logger    *zap.Logger
	Now       func() time.Time
}

// Set holds the handlers and the state they share.
type Set struct {
	bundle    *config.Bundle
	cache     *cache.Cache
	session   *session.Store
	docs      docstore.Client
	boards    boards.Client
	llm       llm.Client
	knowledge knowledge.Store
	history   *memory.History
	logger    *zap.Logger
	now       func() time.Time

	datasets singleflight.Group
}

func New(d Deps) *Set {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Set{
		bundle:    d.Bundle,
		cache:     d.Cache,
		session:   d.Session,
		docs:      d.Docs,
		boards:    d.Boards,
		llm:       d.LLM,
		knowledge: d.Knowledge,
		history:   d.History,
		logger:    logger.Named("handlers"),
		now:       now,
	}
}

// ByIntent maps every intent to its handler.
func (s *Set) ByIntent() map[intent.Intent]Func {
	return map[intent.Intent]Func{
		intent.Greeting: s.Greeting,
		intent.Admin:    s.Admin,
		intent.Learning: s.Learning,
		intent.FileList: s.FileList,
		intent.File:     s.FileSearch,
		intent.Boards:   s.Boards,
		intent.General:  s.General,
	}
}

type deltaSinkKey struct{}

// WithDeltaSink returns a context asking the general handler to stream reply
// fragments to sink while the model generates them.
func WithDeltaSink(ctx context.Context, sink llm.DeltaHandler) context.Context {
	return context.WithValue(ctx, deltaSinkKey{}, sink)
}

func deltaSink(ctx context.Context) llm.DeltaHandler {
	sink, _ := ctx.Value(deltaSinkKey{}).(llm.DeltaHandler)
	return sink
}
