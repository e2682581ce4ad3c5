package vntext

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase word tokens on Unicode boundaries,
// preserving diacritics (Vietnamese is tonal; folding would merge distinct
// words). Stopwords and single-letter ASCII tokens are dropped.
func Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

var stopwords = buildStopwords()

func buildStopwords() map[string]struct{} {
	stops := []string{
		"và", "là", "của", "có", "các", "một", "những", "được", "cho",
		"trong", "với", "để", "khi", "này", "đó", "đã", "sẽ", "không",
		"về", "theo", "tại", "từ", "trên", "như", "đến", "bị", "bởi",
		"cũng", "thì", "mà", "ra", "nên", "vào", "hay", "hoặc", "nào",
		"gì", "ai", "đây", "kia", "rằng", "vì", "sau", "trước",
		"the", "a", "an", "of", "in", "on", "is", "are", "to", "and",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
