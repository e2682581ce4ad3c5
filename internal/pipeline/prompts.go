package pipeline

import (
	"fmt"
	"strings"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

// renderOptions lays the options out one per line as "A. ...".
func renderOptions(options []string) string {
	var b strings.Builder
	for i, opt := range options {
		fmt.Fprintf(&b, "%s. %s\n", domain.OptionLetter(i), opt)
	}
	return strings.TrimRight(b.String(), "\n")
}

// letterRange spells out the valid answer letters, "A, B, C hoặc D" style.
func letterRange(n int) string {
	if n <= 1 {
		return "A"
	}
	letters := make([]string, n)
	for i := range letters {
		letters[i] = domain.OptionLetter(i)
	}
	return strings.Join(letters[:n-1], ", ") + " hoặc " + letters[n-1]
}

func answerInstruction(n int) string {
	return fmt.Sprintf("Trả lời theo định dạng \"ĐÁP ÁN: X\" với X là một trong %s.", letterRange(n))
}

// readingPrompt treats the question text as the passage itself.
func readingPrompt(q domain.Question) string {
	return fmt.Sprintf(`Bạn là một chuyên gia phân tích văn bản. Hãy đọc kỹ đề bài và trả lời dựa hoàn toàn trên thông tin trong đoạn văn, không sử dụng kiến thức bên ngoài.

ĐỀ BÀI:
%s

CÁC LỰA CHỌN:
%s

Chọn đáp án chính xác nhất. %s`, q.Text, renderOptions(q.Options), answerInstruction(len(q.Options)))
}

// stemPrompt asks for step-by-step working before the final letter.
func stemPrompt(q domain.Question) string {
	return fmt.Sprintf(`Bạn là một chuyên gia toán học và khoa học. Hãy giải bài sau bằng cách suy nghĩ từng bước.

Câu hỏi: %s

Các lựa chọn:
%s

Suy nghĩ từng bước, kiểm tra lại kết quả, rồi chốt đáp án. %s`, q.Text, renderOptions(q.Options), answerInstruction(len(q.Options)))
}

// ragPrompt grounds the answer in the retrieved chunks and forbids outside
// knowledge.
func ragPrompt(q domain.Question, chunks []domain.ScoredChunk) string {
	var ctx strings.Builder
	for i, sc := range chunks {
		if i > 0 {
			ctx.WriteString("\n\n")
		}
		fmt.Fprintf(&ctx, "[%s] %s", sc.Chunk.ID, sc.Chunk.Text)
	}

	return fmt.Sprintf(`Bạn là một trợ lý trả lời câu hỏi trắc nghiệm dựa trên ngữ cảnh được cung cấp.

LƯU Ý:
- Chỉ sử dụng thông tin trong ngữ cảnh dưới đây.
- Nếu ngữ cảnh không đủ thông tin, hãy chọn phương án hợp lý nhất và nêu rõ điều đó.

NGỮ CẢNH:
%s

CÂU HỎI: %s

CÁC LỰA CHỌN:
%s

%s`, ctx.String(), q.Text, renderOptions(q.Options), answerInstruction(len(q.Options)))
}

// directPrompt is the no-context fallback when retrieval came back empty.
func directPrompt(q domain.Question) string {
	return fmt.Sprintf(`Câu hỏi: %s

Các lựa chọn:
%s

Chọn đáp án đúng nhất. %s`, q.Text, renderOptions(q.Options), answerInstruction(len(q.Options)))
}
