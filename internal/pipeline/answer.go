package pipeline

import (
	"regexp"
	"strings"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

// Labelled answer forms checked in order before any positional fallback.
// Matching runs over the uppercased reply.
var answerLabelRes = []*regexp.Regexp{
	regexp.MustCompile(`ĐÁP ÁN:\s*([A-Z])`),
	regexp.MustCompile(`ANSWER:\s*([A-Z])`),
	regexp.MustCompile(`LỰA CHỌN:\s*([A-Z])`),
}

// ExtractAnswerIndex pulls the chosen option index out of a model reply.
// Labelled forms win, then a standalone first token, then the first letter
// anywhere that maps inside the option range. The bool reports whether
// anything usable was found; callers fall back to index 0 when it is false.
func ExtractAnswerIndex(reply string, optionCount int) (int, bool) {
	if optionCount <= 0 {
		return 0, false
	}
	upper := strings.ToUpper(reply)

	for _, re := range answerLabelRes {
		for _, m := range re.FindAllStringSubmatch(upper, -1) {
			if idx := domain.LetterIndex(rune(m[1][0])); idx >= 0 && idx < optionCount {
				return idx, true
			}
		}
	}

	if fields := strings.Fields(upper); len(fields) > 0 && len(fields[0]) == 1 {
		if idx := domain.LetterIndex(rune(fields[0][0])); idx >= 0 && idx < optionCount {
			return idx, true
		}
	}

	for _, r := range upper {
		if idx := domain.LetterIndex(r); idx >= 0 && idx < optionCount {
			return idx, true
		}
	}
	return 0, false
}
