package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/docstore"
)

const termPunctuation = ".,?!"

// FormatDateTime renders t as "📅 dd/mm/aaaa às HH:MM". The zero time renders
// as an empty string.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return "📅 " + t.Format("02/01/2006") + " às " + t.Format("15:04")
}

// ValidURL reports whether raw is usable as a link: not one of the invalid
// markers and matching at least one validation pattern.
func ValidURL(b *config.Bundle, raw string) bool {
	u := strings.ToLower(strings.TrimSpace(raw))
	if u == "" {
		return false
	}
	for _, bad := range b.InvalidURLs {
		if u == bad {
			return false
		}
	}
	for _, re := range b.URLValidPatterns {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

// PickURL returns the first valid URL of f in URL field order, or "#".
func PickURL(b *config.Bundle, f docstore.FileRef) string {
	for _, field := range b.URLFields {
		if u, ok := f.URLs[field]; ok && ValidURL(b, u) {
			return u
		}
	}
	return "#"
}

// ExtractQuantity returns the first number captured by a quantity pattern,
// clamped to [1, MaxFileLimit], or DefaultFileLimit when none matches.
func ExtractQuantity(b *config.Bundle, message string) int {
	lower := strings.ToLower(message)
	for _, re := range b.QuantityPatterns {
		m := re.FindStringSubmatch(lower)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return min(max(n, 1), b.Limits.MaxFileLimit)
	}
	return b.Limits.DefaultFileLimit
}

// ExtractSearchTerm strips the leading action phrase and articles from
// message. A token carrying a file extension wins outright; otherwise the
// first MaxRelevantWords words longer than MinWordLength that are not file
// keywords are joined with spaces.
func ExtractSearchTerm(b *config.Bundle, message string) string {
	cleaned := b.ActionCleaning.ReplaceAllString(strings.TrimSpace(message), "")

	var words []string
	for _, w := range strings.Fields(cleaned) {
		if isArticle(b, w) {
			continue
		}
		words = append(words, w)
	}

	for _, w := range words {
		if tok := strings.Trim(w, termPunctuation); b.FileExtension.MatchString(tok) {
			return tok
		}
	}

	var relevant []string
	for _, w := range words {
		if len([]rune(w)) <= b.Limits.MinWordLength {
			continue
		}
		if isFileKeyword(b, w) {
			continue
		}
		relevant = append(relevant, w)
		if len(relevant) == b.Limits.MaxRelevantWords {
			break
		}
	}
	return strings.Join(relevant, " ")
}

func isArticle(b *config.Bundle, word string) bool {
	lower := strings.ToLower(word)
	for _, a := range b.Keywords.Articles {
		if lower == a {
			return true
		}
	}
	return false
}

func isFileKeyword(b *config.Bundle, word string) bool {
	lower := strings.ToLower(word)
	for _, k := range b.Keywords.FileKeywords {
		if lower == k {
			return true
		}
	}
	return false
}

// formatFileLines renders numbered markdown links with modification dates.
func formatFileLines(b *config.Bundle, files []docstore.FileRef) string {
	lines := make([]string, 0, len(files))
	for i, f := range files {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = "Sem nome"
		}
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("%d. **[%s](%s)** 📄 %s", i+1, name, PickURL(b, f), FormatDateTime(f.LastModified))))
	}
	return strings.Join(lines, "\n")
}
