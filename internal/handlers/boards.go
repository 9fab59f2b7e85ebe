package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/boards"
	"github.com/ent0n29/sofia/internal/cache"
	"github.com/ent0n29/sofia/internal/config"
)

const (
	boardsNamespace    = "boards"
	minNameToken       = 3
	boardsFetchTimeout = time.Minute
)

func (s *Set) Boards(ctx context.Context, req Request) (string, error) {
	kw := s.bundle.Keywords
	msgs := s.bundle.Messages
	lower := strings.ToLower(req.Message)

	if config.ContainsAny(lower, kw.ExitCommands) {
		s.session.SetBoardMode(req.UserID, false)
		return msgs.BoardsExit, nil
	}
	if config.ContainsAny(lower, kw.HelpCommands) {
		return msgs.BoardsHelp, nil
	}

	project, display := s.detectProject(lower, req.UserID)
	if project == "" {
		return msgs.BoardsSelection, nil
	}
	s.session.SetLastBoard(req.UserID, project)

	includeEpics := config.ContainsAny(lower, kw.ClientSearchKeywords)
	table, err := s.dataset(ctx, project, includeEpics)
	if err != nil {
		s.logger.Error("board dataset unavailable",
			zap.String("user_id", req.UserID),
			zap.String("project", project),
			zap.Bool("epics", includeEpics),
			zap.Error(err),
		)
	}
	if err != nil || table.Len() == 0 {
		return config.Render(msgs.BoardsUnavailable, map[string]string{"board": display}), nil
	}

	if config.ContainsAny(lower, kw.ClientKeywords) {
		return table.ClientSummary(display), nil
	}
	if name := s.detectCollaborator(lower, req.UserID, table); name != "" {
		return s.collaboratorQuery(lower, table, name), nil
	}
	return s.generalBoardQuery(lower, table, display), nil
}

// detectProject returns the project named in the message, longest keyword
// first, falling back to the user's last board.
func (s *Set) detectProject(lower, userID string) (project, display string) {
	for _, bp := range s.bundle.BoardProjects {
		if strings.Contains(lower, bp.Keyword) {
			return bp.Project, bp.DisplayName
		}
	}
	project = s.session.LastBoard(userID)
	return project, s.displayName(project)
}

func (s *Set) displayName(project string) string {
	for _, bp := range s.bundle.BoardProjects {
		if bp.Project == project {
			return bp.DisplayName
		}
	}
	return project
}

// dataset loads the processed board table through the cache. Concurrent
// misses for the same key share one fetch, which is detached from the
// caller that started it so one disconnect does not fail the others.
func (s *Set) dataset(ctx context.Context, project string, includeEpics bool) (*boards.Table, error) {
	if s.boards == nil {
		return nil, missing("boards.dataset", "board client")
	}
	parts := []string{project}
	if includeEpics {
		parts = append(parts, "epics")
	}
	key := cache.Key(boardsNamespace, parts...)
	if t, ok := cache.GetAs[*boards.Table](s.cache, key); ok {
		return t, nil
	}

	v, err, _ := s.datasets.Do(key, func() (any, error) {
		if t, ok := cache.GetAs[*boards.Table](s.cache, key); ok {
			return t, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), boardsFetchTimeout)
		defer cancel()
		items, err := s.boards.FetchWorkItems(fetchCtx, project, s.bundle.Limits.BoardsBatchSize)
		if err != nil {
			return nil, Fail("boards.fetch", err)
		}
		t := boards.ToTable(items, project, includeEpics)
		if t.Len() > 0 {
			s.cache.SetWithTTL(key, t, s.bundle.Limits.BoardsCacheTTL)
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*boards.Table), nil
}

// detectCollaborator resolves the person a question is about. Reference
// words ("dele", "suas tarefas") point at the last person discussed;
// otherwise any message token matching part of a responsible's name selects
// that person, who is remembered for follow-ups.
func (s *Set) detectCollaborator(lower, userID string, t *boards.Table) string {
	if config.ContainsAny(lower, s.bundle.Keywords.CollaboratorReferences) {
		return s.session.LastCollaborator(userID)
	}

	tokens := map[string]struct{}{}
	for _, w := range strings.Fields(lower) {
		if w = strings.Trim(w, termPunctuation); len([]rune(w)) >= minNameToken {
			tokens[w] = struct{}{}
		}
	}
	for _, name := range t.Responsibles() {
		for _, part := range strings.Fields(strings.ToLower(name)) {
			if _, ok := tokens[part]; ok {
				s.session.SetLastCollaborator(userID, name)
				return name
			}
		}
	}
	return ""
}

func (s *Set) collaboratorQuery(lower string, t *boards.Table, name string) string {
	kw := s.bundle.Keywords
	switch {
	case config.ContainsAny(lower, kw.ProgressKeywords):
		return boards.FormatTasks(t.ByResponsibleAndState(name, boards.StateInProgress), "Tarefas em andamento de "+name)
	case config.ContainsAny(lower, kw.TodoKeywords):
		return boards.FormatTasks(t.ByResponsibleAndState(name, boards.StateTodo), "Tarefas a fazer de "+name)
	default:
		return boards.FormatTasks(t.ByResponsible(name), "Todas as tarefas de "+name)
	}
}

func (s *Set) generalBoardQuery(lower string, t *boards.Table, display string) string {
	kw := s.bundle.Keywords
	for _, it := range s.bundle.ItemTypes {
		if strings.Contains(lower, "quantos "+it.Word) || strings.Contains(lower, "quantas "+it.Word) {
			return fmt.Sprintf("🔢 Existem **%d** item(ns) do tipo **%s** no board %s.", t.CountType(it.Type), boards.TitleCase(it.Type), display)
		}
	}
	if config.ContainsAny(lower, kw.ProgressKeywords) {
		return boards.FormatTasks(t.InProgress(), "Tarefas em andamento do board "+display)
	}
	if config.ContainsAny(lower, kw.TaskCountKeywords) {
		name, count, ok := t.TopResponsible()
		if !ok {
			return fmt.Sprintf("Não encontrei tarefas com responsável no board %s.", display)
		}
		return fmt.Sprintf("O colaborador com mais tarefas no total é **%s**, com **%d** tarefas.", name, count)
	}
	return t.Overview("Visão Geral do Board " + display)
}
