// Package router classifies queries into processing modes with ordered
// deterministic pattern rules and extracts the retrieval hints the RAG path
// runs on. No model inference happens here.
package router

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/vntext"
)

// Years outside this range are treated as incidental numbers, not temporal
// cues.
const (
	yearMin = 1900
	yearMax = 2100
)

// maxEntities caps how many extracted entities ride along to narrow the
// lexical leg.
const maxEntities = 5

var (
	yearPreferredRe = regexp.MustCompile(`(?i)năm (\d{4})`)
	yearTokenRe     = regexp.MustCompile(`\b\d{4}\b`)
)

// rule pairs a pattern with its configured spelling so RouteDecision can
// report the winner verbatim.
type rule struct {
	raw string
	re  *regexp.Regexp
}

// CategoryMarkers binds one subject domain to the marker phrases that hint
// at it. Slice order is evaluation order.
type CategoryMarkers struct {
	Category domain.ChunkType `yaml:"category"`
	Markers  []string         `yaml:"markers"`
}

// Config overrides the built-in rule tables. Nil slices keep the defaults.
type Config struct {
	ReadingPatterns []string
	StemPatterns    []string
	Categories      []CategoryMarkers
}

// Router routes queries. The rule tables are compiled once here and never
// change afterwards, so Route is a pure function of its input.
type Router struct {
	reading    []rule
	stem       []rule
	categories []CategoryMarkers
}

// New compiles the rule tables. Patterns are regular expressions matched
// case-insensitively; a pattern that does not compile is a configuration
// error.
func New(cfg Config) (*Router, error) {
	readingPatterns := cfg.ReadingPatterns
	if readingPatterns == nil {
		readingPatterns = DefaultReadingPatterns()
	}
	stemPatterns := cfg.StemPatterns
	if stemPatterns == nil {
		stemPatterns = DefaultStemPatterns()
	}
	categories := cfg.Categories
	if categories == nil {
		categories = DefaultCategoryMarkers()
	}

	reading, err := compileRules(readingPatterns)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "invalid reading pattern", err)
	}
	stem, err := compileRules(stemPatterns)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "invalid stem pattern", err)
	}

	folded := make([]CategoryMarkers, 0, len(categories))
	for _, c := range categories {
		markers := make([]string, 0, len(c.Markers))
		for _, m := range c.Markers {
			if f := vntext.Fold(strings.TrimSpace(m)); f != "" {
				markers = append(markers, f)
			}
		}
		folded = append(folded, CategoryMarkers{Category: c.Category, Markers: markers})
	}

	return &Router{reading: reading, stem: stem, categories: folded}, nil
}

func compileRules(patterns []string) ([]rule, error) {
	rules := make([]rule, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule{raw: p, re: re})
	}
	return rules, nil
}

// Route classifies one query. READING wins over STEM wins over RAG; only
// the RAG decision carries year, entities and a category hint. Empty input
// routes to RAG with nothing extracted.
func (r *Router) Route(queryText string) domain.RouteDecision {
	text := strings.TrimSpace(queryText)
	if text == "" {
		return domain.RouteDecision{Mode: domain.RouteModeRAG}
	}

	if raw, ok := matchAny(r.reading, text); ok {
		return domain.RouteDecision{Mode: domain.RouteModeReading, MatchedPattern: raw}
	}
	if raw, ok := matchAny(r.stem, text); ok {
		return domain.RouteDecision{Mode: domain.RouteModeStem, MatchedPattern: raw}
	}

	return domain.RouteDecision{
		Mode:     domain.RouteModeRAG,
		Year:     extractYear(text),
		Entities: extractEntities(text),
		Category: r.matchCategory(text),
	}
}

func matchAny(rules []rule, text string) (string, bool) {
	for _, ru := range rules {
		if ru.re.MatchString(text) {
			return ru.raw, true
		}
	}
	return "", false
}

// extractYear prefers an explicit "năm 2013" cue over a bare 4-digit token
// and returns the first value inside [yearMin, yearMax], or 0.
func extractYear(text string) int {
	for _, m := range yearPreferredRe.FindAllStringSubmatch(text, -1) {
		if y := parseYear(m[1]); y != 0 {
			return y
		}
	}
	for _, m := range yearTokenRe.FindAllString(text, -1) {
		if y := parseYear(m); y != 0 {
			return y
		}
	}
	return 0
}

func parseYear(s string) int {
	y, err := strconv.Atoi(s)
	if err != nil || y < yearMin || y > yearMax {
		return 0
	}
	return y
}

func (r *Router) matchCategory(text string) domain.ChunkType {
	folded := vntext.Fold(text)
	for _, c := range r.categories {
		for _, m := range c.Markers {
			if strings.Contains(folded, m) {
				return c.Category
			}
		}
	}
	return ""
}

// entityToken is one word of the query with the context entity extraction
// cares about.
type entityToken struct {
	text          string
	capitalized   bool
	sentenceStart bool
	runsOn        bool
}

// extractEntities collects runs of consecutive capitalized words as entity
// phrases. A lone capitalized word at a sentence start is orthography, not a
// name, and is skipped unless the same word shows up capitalized again.
func extractEntities(text string) []string {
	tokens := scanTokens(text)

	seenCapitalized := make(map[string]int)
	for _, t := range tokens {
		if t.capitalized {
			seenCapitalized[t.text]++
		}
	}

	var entities []string
	picked := make(map[string]bool)
	for i := 0; i < len(tokens); i++ {
		if !tokens[i].capitalized {
			continue
		}
		start := i
		for tokens[i].runsOn && i+1 < len(tokens) && tokens[i+1].capitalized {
			i++
		}
		run := tokens[start : i+1]

		if len(run) == 1 && run[0].sentenceStart && seenCapitalized[run[0].text] < 2 {
			continue
		}

		parts := make([]string, len(run))
		for j, t := range run {
			parts[j] = t.text
		}
		entity := strings.Join(parts, " ")
		if len([]rune(entity)) < 2 || picked[entity] {
			continue
		}
		picked[entity] = true
		entities = append(entities, entity)
		if len(entities) == maxEntities {
			break
		}
	}
	return entities
}

// scanTokens splits text into letter runs. sentenceStart marks tokens after
// sentence punctuation; runsOn marks tokens separated from their successor
// by plain spacing only, which is what lets "Hồ Chí Minh" group while
// "Hà Nội, Huế" splits.
func scanTokens(text string) []entityToken {
	var tokens []entityToken
	var current []rune
	sentenceStart := true
	plainGap := true

	flush := func() {
		if len(current) == 0 {
			return
		}
		tokens = append(tokens, entityToken{
			text:          string(current),
			capitalized:   unicode.IsUpper(current[0]),
			sentenceStart: sentenceStart,
		})
		current = nil
		sentenceStart = false
		plainGap = true
	}

	for _, r := range text {
		if unicode.IsLetter(r) {
			if len(current) == 0 && len(tokens) > 0 {
				tokens[len(tokens)-1].runsOn = plainGap
			}
			current = append(current, r)
			continue
		}
		flush()
		if r != ' ' && r != '\t' {
			plainGap = false
		}
		if r == '.' || r == '?' || r == '!' || r == ':' || r == ';' || r == '\n' {
			sentenceStart = true
		}
	}
	flush()
	return tokens
}
