package domain

// Question is one multiple-choice question. Options is typically four
// entries but any arity is supported; answer letters follow option order
// (A for index 0, B for index 1, ...).
type Question struct {
	ID      string   `json:"qid"`
	Text    string   `json:"question"`
	Options []string `json:"choices"`
	// Answer carries the gold label in evaluation input files. Empty
	// during inference.
	Answer string `json:"answer,omitempty"`
}

const optionLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// OptionLetter returns the answer letter for an option index, or "A" when
// the index is out of the supported range. Callers always need a letter.
func OptionLetter(index int) string {
	if index < 0 || index >= len(optionLetters) {
		return "A"
	}
	return string(optionLetters[index])
}

// LetterIndex returns the option index for an answer letter rune, or -1 if
// the rune is not an uppercase Latin letter.
func LetterIndex(r rune) int {
	if r < 'A' || r > 'Z' {
		return -1
	}
	return int(r - 'A')
}
