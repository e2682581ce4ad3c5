package safety

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/llm"
	"github.com/khaothi-ai/khaothi/internal/telemetry"
	"github.com/khaothi-ai/khaothi/internal/vntext"
)

// Selector picks the option to answer with once a question has been flagged
// unsafe. It prefers an option that itself reads as a refusal and only asks
// the chat model when none does.
type Selector struct {
	chat    llm.ChatClient
	phrases []string
}

// NewSelector builds a Selector. A nil phrase list falls back to
// DefaultRefusalPhrases; phrases are folded once here.
func NewSelector(chat llm.ChatClient, phrases []string) *Selector {
	if phrases == nil {
		phrases = DefaultRefusalPhrases()
	}
	folded := make([]string, 0, len(phrases))
	for _, p := range phrases {
		f := vntext.Fold(strings.TrimSpace(p))
		if f == "" {
			continue
		}
		folded = append(folded, f)
	}
	return &Selector{chat: chat, phrases: folded}
}

// SelectRefusalOption returns the option index to answer an unsafe question
// with. It cannot fail: any problem with the fallback completion resolves to
// index 0.
func (s *Selector) SelectRefusalOption(ctx context.Context, q domain.Question) int {
	if len(q.Options) == 0 {
		return 0
	}
	for i, opt := range q.Options {
		folded := vntext.Fold(opt)
		for _, phrase := range s.phrases {
			if strings.Contains(folded, phrase) {
				return i
			}
		}
	}
	return s.llmFallback(ctx, q)
}

func (s *Selector) llmFallback(ctx context.Context, q domain.Question) int {
	reply, err := s.chat.Complete(ctx, refusalPrompt(q))
	if err != nil {
		log.Printf("safety selector: fallback completion failed, answering option A: %v", err)
		telemetry.CaptureError(ctx, err)
		return 0
	}
	idx := parseOptionLetter(reply, len(q.Options))
	if idx < 0 {
		log.Printf("safety selector: no usable letter in %q, answering option A", reply)
		return 0
	}
	return idx
}

func refusalPrompt(q domain.Question) string {
	var b strings.Builder
	b.WriteString("Bạn là một trợ lý an toàn. Câu hỏi sau đây đã được xác định là nguy hiểm.\n")
	b.WriteString("Hãy chọn lựa chọn thể hiện việc từ chối trợ giúp hoặc tuân thủ pháp luật.\n\n")
	fmt.Fprintf(&b, "Câu hỏi: %s\n\nLựa chọn:\n", q.Text)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "%s) %s\n", domain.OptionLetter(i), opt)
	}
	fmt.Fprintf(&b, "\nChỉ trả lời bằng một chữ cái duy nhất từ A đến %s.", domain.OptionLetter(len(q.Options)-1))
	return b.String()
}

// parseOptionLetter finds the first standalone A..Z token in reply that maps
// to a valid option index, or -1. Replies like "B", "B." and "Đáp án: B"
// all resolve to 1.
func parseOptionLetter(reply string, optionCount int) int {
	tokens := strings.FieldsFunc(strings.ToUpper(reply), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if len(tok) != 1 {
			continue
		}
		idx := domain.LetterIndex(rune(tok[0]))
		if idx >= 0 && idx < optionCount {
			return idx
		}
	}
	return -1
}
