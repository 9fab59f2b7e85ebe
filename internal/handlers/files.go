package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/boards"
	"github.com/ent0n29/sofia/internal/cache"
	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/docstore"
)

const searchNamespace = "search"

func (s *Set) FileList(ctx context.Context, req Request) (string, error) {
	if s.docs == nil {
		return "", missing("file_list", "document store")
	}
	msgs := s.bundle.Messages
	limit := ExtractQuantity(s.bundle, req.Message)

	files, err := s.docs.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("list recent files failed", zap.String("user_id", req.UserID), zap.Int("limit", limit), zap.Error(err))
		return msgs.ErrorTechnical, nil
	}
	if len(files) == 0 {
		return msgs.NoFiles, nil
	}
	return fmt.Sprintf("📂 Aqui estão os **%d** arquivos mais recentes que encontrei:\n\n%s\n\n%s",
		len(files), formatFileLines(s.bundle, files), msgs.FileListInstructions), nil
}

func (s *Set) FileSearch(ctx context.Context, req Request) (string, error) {
	if s.docs == nil {
		return "", missing("file_search", "document store")
	}
	term := ExtractSearchTerm(s.bundle, req.Message)
	if strings.TrimSpace(term) == "" {
		return s.bundle.Messages.FileNotFound, nil
	}

	key := cache.Key(searchNamespace, strings.ReplaceAll(strings.ToLower(term), " ", "_"))
	if cached, ok := cache.GetAs[string](s.cache, key); ok {
		return cached, nil
	}

	files, err := s.searchCascade(ctx, term)
	if err != nil {
		return "", Fail("file_search", err)
	}
	reply := s.formatSearchResults(term, files)
	s.cache.SetWithTTL(key, reply, s.bundle.Limits.SearchCacheTTL)
	return reply, nil
}

// searchCascade tries the literal term, then the model's reading of it, then
// spelling variations. Individual search errors are tolerated; an error is
// returned only when no attempt reached the document store successfully.
func (s *Set) searchCascade(ctx context.Context, term string) ([]docstore.FileRef, error) {
	log := s.logger.With(zap.String("term", term))
	var (
		lastErr   error
		succeeded bool
	)
	try := func(q string) []docstore.FileRef {
		files, err := s.docs.Search(ctx, q)
		if err != nil {
			log.Warn("file search attempt failed", zap.String("query", q), zap.Error(err))
			lastErr = err
			return nil
		}
		succeeded = true
		return files
	}

	if files := try(term); len(files) > 0 {
		return files, nil
	}

	if s.llm != nil {
		interpreted, err := s.llm.InterpretSearchTerm(ctx, term)
		switch {
		case err != nil:
			log.Warn("search term interpretation failed", zap.Error(err))
		case strings.TrimSpace(interpreted) != "" && !strings.EqualFold(interpreted, term):
			if files := try(interpreted); len(files) > 0 {
				return files, nil
			}
		}
	}

	for _, v := range searchVariations(term) {
		if files := try(v); len(files) > 0 {
			return files, nil
		}
	}

	if !succeeded && lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func searchVariations(term string) []string {
	return []string{
		strings.ReplaceAll(term, " ", "_"),
		strings.ReplaceAll(term, " ", "-"),
		boards.TitleCase(term),
	}
}

func (s *Set) formatSearchResults(term string, files []docstore.FileRef) string {
	msgs := s.bundle.Messages
	if len(files) == 0 {
		return config.Render(msgs.FileSearchNoResults, map[string]string{"termo": term})
	}
	click := msgs.SingleFileClick
	if len(files) > 1 {
		click = msgs.MultipleFilesClick
	}
	return fmt.Sprintf("📂 Encontrei **%d** arquivo(s) para '**%s**':\n\n%s\n\n%s",
		len(files), term, formatFileLines(s.bundle, files), click)
}
