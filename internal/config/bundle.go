package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed bundle.yaml
var defaultBundleYAML []byte

// ErrInvalidBundle marks configuration defects found while compiling a bundle.
var ErrInvalidBundle = errors.New("invalid configuration bundle")

// Positions of the admin sub-commands within admin_commands.
const (
	AdminDiagnose = iota
	AdminSearchTest
	AdminClearCache
	adminCommandCount
)

// Keywords holds the lower-cased phrase lists used by routing and handlers.
type Keywords struct {
	AdminCommands          []string `yaml:"admin_commands"`
	BoardsCommands         []string `yaml:"boards_commands"`
	LearningTriggers       []string `yaml:"learning_triggers"`
	ListPatterns           []string `yaml:"list_patterns"`
	ExitCommands           []string `yaml:"exit_commands"`
	HelpCommands           []string `yaml:"help_commands"`
	FileKeywords           []string `yaml:"file_keywords"`
	ActionKeywords         []string `yaml:"action_keywords"`
	CasualWords            []string `yaml:"casual_words"`
	WellbeingPhrases       []string `yaml:"wellbeing_phrases"`
	Articles               []string `yaml:"articles"`
	ClientKeywords         []string `yaml:"client_keywords"`
	ClientSearchKeywords   []string `yaml:"client_search_keywords"`
	CollaboratorReferences []string `yaml:"collaborator_references"`
	ProgressKeywords       []string `yaml:"progress_keywords"`
	TodoKeywords           []string `yaml:"todo_keywords"`
	TaskCountKeywords      []string `yaml:"task_count_keywords"`
}

// BoardProject maps a message keyword to a board project.
type BoardProject struct {
	Keyword     string `yaml:"keyword"`
	Project     string `yaml:"project"`
	DisplayName string `yaml:"display_name"`
}

// ItemType maps a user-facing word ("bugs") to a work item type ("bug").
type ItemType struct {
	Word string
	Type string
}

// Scoring holds the file scorer weights expressed in integer hundredths.
type Scoring struct {
	Extension     int
	Naming        int
	FileKeyword   int
	ActionKeyword int
	CasualPenalty int
	Threshold     int
}

// Limits groups the numeric thresholds of the bundle.
type Limits struct {
	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CacheSweepInterval time.Duration `yaml:"cache_sweep_interval"`
	SearchCacheTTL     time.Duration `yaml:"search_cache_ttl"`
	BoardsCacheTTL     time.Duration `yaml:"boards_cache_ttl"`
	GreetingMaxWords   int           `yaml:"greeting_max_words"`
	DefaultFileLimit   int           `yaml:"default_file_limit"`
	MaxFileLimit       int           `yaml:"max_file_limit"`
	MinWordLength      int           `yaml:"min_word_length"`
	MaxRelevantWords   int           `yaml:"max_relevant_words"`
	BoardsBatchSize    int           `yaml:"boards_batch_size"`
}

// Messages are the static user-facing texts. Placeholders use {name} syntax.
type Messages struct {
	GreetingDefault        string `yaml:"greeting_default"`
	GreetingWellbeing      string `yaml:"greeting_wellbeing"`
	LLMFallback            string `yaml:"llm_fallback"`
	BoardsSelection        string `yaml:"boards_selection"`
	BoardsHelp             string `yaml:"boards_help"`
	BoardsExit             string `yaml:"boards_exit"`
	BoardsUnavailable      string `yaml:"boards_unavailable"`
	NoFiles                string `yaml:"no_files"`
	FileNotFound           string `yaml:"file_not_found"`
	FileSearchNoResults    string `yaml:"file_search_no_results"`
	FileListInstructions   string `yaml:"file_list_instructions"`
	SingleFileClick        string `yaml:"single_file_click"`
	MultipleFilesClick     string `yaml:"multiple_files_click"`
	LearningError          string `yaml:"learning_error"`
	LearningQuestionPrompt string `yaml:"learning_question_prompt"`
	LearningErrorRetry     string `yaml:"learning_error_retry"`
	LearningSaved          string `yaml:"learning_saved"`
	AdminNotRecognized     string `yaml:"admin_not_recognized"`
	CacheCleared           string `yaml:"cache_cleared"`
	DiagnosticHeader       string `yaml:"diagnostic_header"`
	ErrorTechnical         string `yaml:"error_technical"`
	ErrorTemplate          string `yaml:"error_template"`
}

// Bundle is the compiled, read-only configuration shared by the classifier
// and the handlers. It must not be mutated after LoadBundle returns.
type Bundle struct {
	Keywords      Keywords
	BoardProjects []BoardProject
	ItemTypes     []ItemType

	URLFields        []string
	URLValidPatterns []*regexp.Regexp
	InvalidURLs      []string

	FileExtension    *regexp.Regexp
	FileNaming       *regexp.Regexp
	Greeting         *regexp.Regexp
	ActionCleaning   *regexp.Regexp
	QuantityPatterns []*regexp.Regexp

	Scoring  Scoring
	Limits   Limits
	Messages Messages
}

type rawBundle struct {
	Keywords      Keywords          `yaml:"keywords"`
	BoardProjects []BoardProject    `yaml:"board_projects"`
	ItemTypes     map[string]string `yaml:"item_types"`
	URLs          struct {
		Fields        []string `yaml:"fields"`
		ValidPatterns []string `yaml:"valid_patterns"`
		InvalidValues []string `yaml:"invalid_values"`
	} `yaml:"urls"`
	Patterns struct {
		FileExtension  string   `yaml:"file_extension"`
		FileNaming     string   `yaml:"file_naming"`
		Greeting       string   `yaml:"greeting"`
		ActionCleaning string   `yaml:"action_cleaning"`
		Quantity       []string `yaml:"quantity"`
	} `yaml:"patterns"`
	Scoring struct {
		Extension     float64 `yaml:"extension"`
		Naming        float64 `yaml:"naming"`
		FileKeyword   float64 `yaml:"file_keyword"`
		ActionKeyword float64 `yaml:"action_keyword"`
		CasualPenalty float64 `yaml:"casual_penalty"`
		Threshold     float64 `yaml:"threshold"`
	} `yaml:"scoring"`
	Limits   Limits   `yaml:"limits"`
	Messages Messages `yaml:"messages"`
}

// DefaultBundle compiles the embedded bundle.
func DefaultBundle() (*Bundle, error) {
	return LoadBundle("")
}

// LoadBundle compiles the embedded bundle, overlaid with the YAML file at
// path when path is not empty. Keys absent from the file keep their defaults.
func LoadBundle(path string) (*Bundle, error) {
	var raw rawBundle
	if err := yaml.Unmarshal(defaultBundleYAML, &raw); err != nil {
		return nil, fmt.Errorf("decode embedded bundle: %w", err)
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode bundle %s: %w", path, err)
		}
	}
	return compile(raw)
}

// ParseBundle compiles a bundle from YAML bytes overlaid on the defaults.
func ParseBundle(data []byte) (*Bundle, error) {
	var raw rawBundle
	if err := yaml.Unmarshal(defaultBundleYAML, &raw); err != nil {
		return nil, fmt.Errorf("decode embedded bundle: %w", err)
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return compile(raw)
}

func compile(raw rawBundle) (*Bundle, error) {
	b := &Bundle{
		Keywords:    normalizeKeywords(raw.Keywords),
		URLFields:   raw.URLs.Fields,
		InvalidURLs: lowerAll(raw.URLs.InvalidValues),
		Limits:      raw.Limits,
		Messages:    raw.Messages,
	}

	required := map[string][]string{
		"admin_commands":    b.Keywords.AdminCommands,
		"boards_commands":   b.Keywords.BoardsCommands,
		"learning_triggers": b.Keywords.LearningTriggers,
		"list_patterns":     b.Keywords.ListPatterns,
		"exit_commands":     b.Keywords.ExitCommands,
		"file_keywords":     b.Keywords.FileKeywords,
		"action_keywords":   b.Keywords.ActionKeywords,
	}
	for name, list := range required {
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: keyword list %s is empty", ErrInvalidBundle, name)
		}
	}
	if n := len(b.Keywords.AdminCommands); n != adminCommandCount {
		return nil, fmt.Errorf("%w: admin_commands needs %d entries (diagnose, search test, clear cache), got %d",
			ErrInvalidBundle, adminCommandCount, n)
	}

	var err error
	if b.FileExtension, err = compileRequired("file_extension", raw.Patterns.FileExtension); err != nil {
		return nil, err
	}
	if b.FileNaming, err = compileRequired("file_naming", raw.Patterns.FileNaming); err != nil {
		return nil, err
	}
	if b.Greeting, err = compileRequired("greeting", raw.Patterns.Greeting); err != nil {
		return nil, err
	}
	if b.ActionCleaning, err = compileRequired("action_cleaning", raw.Patterns.ActionCleaning); err != nil {
		return nil, err
	}
	for i, p := range raw.Patterns.Quantity {
		re, err := compileRequired(fmt.Sprintf("quantity[%d]", i), p)
		if err != nil {
			return nil, err
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%w: quantity[%d] needs a capture group", ErrInvalidBundle, i)
		}
		b.QuantityPatterns = append(b.QuantityPatterns, re)
	}
	for i, p := range raw.URLs.ValidPatterns {
		re, err := compileRequired(fmt.Sprintf("urls.valid_patterns[%d]", i), p)
		if err != nil {
			return nil, err
		}
		b.URLValidPatterns = append(b.URLValidPatterns, re)
	}

	for _, bp := range raw.BoardProjects {
		kw := strings.ToLower(strings.TrimSpace(bp.Keyword))
		if kw == "" || strings.TrimSpace(bp.Project) == "" {
			return nil, fmt.Errorf("%w: board project needs keyword and project", ErrInvalidBundle)
		}
		if strings.TrimSpace(bp.DisplayName) == "" {
			bp.DisplayName = bp.Project
		}
		bp.Keyword = kw
		b.BoardProjects = append(b.BoardProjects, bp)
	}
	// Longest keyword first so "sonar labs" is preferred over "sonar".
	sort.SliceStable(b.BoardProjects, func(i, j int) bool {
		return len(b.BoardProjects[i].Keyword) > len(b.BoardProjects[j].Keyword)
	})

	for word, typ := range raw.ItemTypes {
		b.ItemTypes = append(b.ItemTypes, ItemType{
			Word: strings.ToLower(strings.TrimSpace(word)),
			Type: strings.ToLower(strings.TrimSpace(typ)),
		})
	}
	sort.Slice(b.ItemTypes, func(i, j int) bool { return b.ItemTypes[i].Word < b.ItemTypes[j].Word })

	b.Scoring = Scoring{
		Extension:     hundredths(raw.Scoring.Extension),
		Naming:        hundredths(raw.Scoring.Naming),
		FileKeyword:   hundredths(raw.Scoring.FileKeyword),
		ActionKeyword: hundredths(raw.Scoring.ActionKeyword),
		CasualPenalty: hundredths(raw.Scoring.CasualPenalty),
		Threshold:     hundredths(raw.Scoring.Threshold),
	}
	if b.Scoring.Threshold < 0 || b.Scoring.Threshold > 100 {
		return nil, fmt.Errorf("%w: scoring.threshold must be within [0,1]", ErrInvalidBundle)
	}

	if err := validateLimits(b.Limits); err != nil {
		return nil, err
	}
	if strings.TrimSpace(b.Messages.ErrorTemplate) == "" || !strings.Contains(b.Messages.ErrorTemplate, "{id}") {
		return nil, fmt.Errorf("%w: messages.error_template must contain {id}", ErrInvalidBundle)
	}
	return b, nil
}

func validateLimits(l Limits) error {
	switch {
	case l.CacheTTL <= 0:
		return fmt.Errorf("%w: limits.cache_ttl must be positive", ErrInvalidBundle)
	case l.CacheSweepInterval <= 0:
		return fmt.Errorf("%w: limits.cache_sweep_interval must be positive", ErrInvalidBundle)
	case l.SearchCacheTTL <= 0 || l.BoardsCacheTTL <= 0:
		return fmt.Errorf("%w: search and boards cache ttl must be positive", ErrInvalidBundle)
	case l.GreetingMaxWords <= 0:
		return fmt.Errorf("%w: limits.greeting_max_words must be positive", ErrInvalidBundle)
	case l.DefaultFileLimit <= 0 || l.MaxFileLimit < l.DefaultFileLimit:
		return fmt.Errorf("%w: file limits must satisfy 0 < default <= max", ErrInvalidBundle)
	case l.MaxRelevantWords <= 0 || l.MinWordLength < 0:
		return fmt.Errorf("%w: search term limits are invalid", ErrInvalidBundle)
	case l.BoardsBatchSize <= 0:
		return fmt.Errorf("%w: limits.boards_batch_size must be positive", ErrInvalidBundle)
	}
	return nil
}

func compileRequired(name, pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: pattern %s is empty", ErrInvalidBundle, name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %s: %v", ErrInvalidBundle, name, err)
	}
	return re, nil
}

func hundredths(v float64) int {
	return int(math.Round(v * 100))
}

func normalizeKeywords(k Keywords) Keywords {
	return Keywords{
		AdminCommands:          lowerAll(k.AdminCommands),
		BoardsCommands:         lowerAll(k.BoardsCommands),
		LearningTriggers:       lowerAll(k.LearningTriggers),
		ListPatterns:           lowerAll(k.ListPatterns),
		ExitCommands:           lowerAll(k.ExitCommands),
		HelpCommands:           lowerAll(k.HelpCommands),
		FileKeywords:           lowerAll(k.FileKeywords),
		ActionKeywords:         lowerAll(k.ActionKeywords),
		CasualWords:            lowerAll(k.CasualWords),
		WellbeingPhrases:       lowerAll(k.WellbeingPhrases),
		Articles:               lowerAll(k.Articles),
		ClientKeywords:         lowerAll(k.ClientKeywords),
		ClientSearchKeywords:   lowerAll(k.ClientSearchKeywords),
		CollaboratorReferences: lowerAll(k.CollaboratorReferences),
		ProgressKeywords:       lowerAll(k.ProgressKeywords),
		TodoKeywords:           lowerAll(k.TodoKeywords),
		TaskCountKeywords:      lowerAll(k.TaskCountKeywords),
	}
}

// lowerAll lower-cases and trims every entry, dropping blanks.
func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ContainsAny reports whether text contains any of the phrases.
// Both sides are expected to be lower-cased already.
func ContainsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// CountContained returns how many phrases occur in text.
func CountContained(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

// Render replaces {key} placeholders in template in a single pass, so
// placeholder-like text inside a value is never expanded.
func Render(template string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", values[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
