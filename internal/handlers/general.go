package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/docstore"
	"github.com/ent0n29/sofia/internal/knowledge"
	"github.com/ent0n29/sofia/internal/llm"
	"github.com/ent0n29/sofia/internal/session"
)

const searchCheckMaxListed = 10

func (s *Set) Greeting(_ context.Context, req Request) (string, error) {
	lower := strings.ToLower(req.Message)
	if config.ContainsAny(lower, s.bundle.Keywords.WellbeingPhrases) {
		return s.bundle.Messages.GreetingWellbeing, nil
	}
	return s.bundle.Messages.GreetingDefault, nil
}

func (s *Set) Admin(ctx context.Context, req Request) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(req.Message))
	cmds := s.bundle.Keywords.AdminCommands
	switch {
	case strings.Contains(lower, cmds[config.AdminDiagnose]):
		return s.diagnose(ctx)
	case strings.Contains(lower, cmds[config.AdminSearchTest]):
		phrase := cmds[config.AdminSearchTest]
		term := strings.TrimSpace(lower[strings.Index(lower, phrase)+len(phrase):])
		return s.searchCheck(ctx, term, phrase)
	case strings.Contains(lower, cmds[config.AdminClearCache]):
		s.cache.Clear()
		s.logger.Info("result cache cleared", zap.String("user_id", req.UserID))
		return s.bundle.Messages.CacheCleared, nil
	default:
		return s.bundle.Messages.AdminNotRecognized, nil
	}
}

func (s *Set) diagnose(ctx context.Context) (string, error) {
	if s.docs == nil {
		return "", missing("admin.diagnose", "document store")
	}
	var b strings.Builder
	b.WriteString(s.bundle.Messages.DiagnosticHeader)

	d, ok := s.docs.(docstore.Diagnoser)
	if !ok {
		b.WriteString("\n\nDiagnóstico indisponível para o cliente configurado.")
		return b.String(), nil
	}
	section := ""
	for _, c := range d.Diagnose(ctx) {
		if c.Section != section {
			section = c.Section
			fmt.Fprintf(&b, "\n\n**%s**", section)
		}
		mark := "✅"
		if !c.OK {
			mark = "❌"
		}
		fmt.Fprintf(&b, "\n%s %s", mark, c.Name)
		if c.Detail != "" {
			fmt.Fprintf(&b, ": %s", c.Detail)
		}
	}
	return b.String(), nil
}

// searchCheck runs one raw search without the cache or the fallback cascade.
func (s *Set) searchCheck(ctx context.Context, term, phrase string) (string, error) {
	if s.docs == nil {
		return "", missing("admin.search_check", "document store")
	}
	if term == "" {
		return fmt.Sprintf("Informe o termo: `%s <termo>`.", phrase), nil
	}
	files, err := s.docs.Search(ctx, term)
	if err != nil {
		return "", Fail("admin.search_check", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔎 Busca por '%s': %d resultado(s).", term, len(files))
	for i, f := range files {
		if i == searchCheckMaxListed {
			break
		}
		fmt.Fprintf(&b, "\n- %s", f.Name)
	}
	return b.String(), nil
}

func (s *Set) Learning(ctx context.Context, req Request) (string, error) {
	msgs := s.bundle.Messages
	draft, ok := s.session.LearningDraft(req.UserID)
	if !ok {
		question := stripPhrases(req.Message, s.bundle.Keywords.LearningTriggers)
		if question == "" {
			return msgs.LearningError, nil
		}
		s.session.SetLearningDraft(req.UserID, session.LearningDraft{Question: question, Step: session.StepAnswer})
		return msgs.LearningQuestionPrompt, nil
	}

	if draft.Step != session.StepAnswer {
		s.session.ClearLearning(req.UserID)
		return msgs.LearningErrorRetry, nil
	}
	answer := strings.TrimSpace(req.Message)
	if answer == "" {
		return msgs.LearningQuestionPrompt, nil
	}
	if s.knowledge == nil {
		return "", missing("learning.save", "knowledge base")
	}
	if err := s.knowledge.SaveAnswer(ctx, draft.Question, answer); err != nil {
		return "", Fail("learning.save", err)
	}
	s.session.ClearLearning(req.UserID)
	return config.Render(msgs.LearningSaved, map[string]string{
		"pergunta": draft.Question,
		"resposta": answer,
	}), nil
}

// stripPhrases removes the first case-insensitive occurrence of every
// phrase and trims leftover separators.
func stripPhrases(message string, phrases []string) string {
	out := strings.TrimSpace(message)
	for _, p := range phrases {
		out = removeFold(out, p)
	}
	return strings.Trim(strings.TrimSpace(out), ":,.- ")
}

func removeFold(s, phrase string) string {
	runes := []rune(s)
	n := len([]rune(phrase))
	for i := 0; i+n <= len(runes); i++ {
		if strings.EqualFold(string(runes[i:i+n]), phrase) {
			return string(runes[:i]) + string(runes[i+n:])
		}
	}
	return s
}

func (s *Set) General(ctx context.Context, req Request) (string, error) {
	log := s.logger.With(zap.String("user_id", req.UserID))

	if s.knowledge != nil {
		answer, ok, err := s.knowledge.LookupAnswer(ctx, req.Message)
		switch {
		case err != nil:
			log.Warn("learned answer lookup failed", zap.Error(err))
		case ok:
			return answer, nil
		}
	}

	if s.llm == nil {
		return s.bundle.Messages.LLMFallback, nil
	}

	tone, err := s.llm.ClassifyTone(ctx, req.Message)
	if err != nil {
		log.Warn("tone classification failed", zap.Error(err))
		tone = llm.ToneNeutral
	}

	var history string
	if s.history != nil {
		if history, err = s.history.FormatForPrompt(ctx, req.UserID); err != nil {
			log.Warn("history unavailable", zap.Error(err))
			history = ""
		}
	}

	var snap *knowledge.Snapshot
	if s.knowledge != nil {
		if ks, err := s.knowledge.Snapshot(ctx); err != nil {
			log.Warn("knowledge snapshot failed", zap.Error(err))
		} else {
			snap = &ks
		}
	}

	reply, err := s.llm.GenerateReply(ctx, llm.ReplyRequest{
		Message:      req.Message,
		SystemPrompt: knowledge.BuildSystemPrompt(snap, history, string(tone), s.now()),
		History:      history,
		Tone:         tone,
		OnDelta:      deltaSink(ctx),
	})
	if err != nil {
		log.Warn("reply generation failed", zap.Error(err))
		return s.bundle.Messages.LLMFallback, nil
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return s.bundle.Messages.LLMFallback, nil
	}
	return reply, nil
}
