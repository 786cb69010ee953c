package textnorm

import (
	"regexp"
	"strings"
)

// substitution is one literal rewrite rule. Order matters: compound tokens
// ("ponto e vírgula", "dois pontos") must be replaced before the shorter
// tokens they contain.
type substitution struct {
	from string
	to   string
}

var substitutions = []substitution{
	{"ponto e vírgula", ";"},
	{"ponto e virgula", ";"},
	{"dois pontos", ":"},
	{".parágrafo", ".\n\n"},
	{". parágrafo", ".\n\n"},
	{"parágrafo", "\n\n"},
	{"paragrafo", "\n\n"},
	{"vírgula", ", "},
	{"ponto", ". "},
	{"abre parênteses", "("},
	{"abre parenteses", "("},
	{"fecha parênteses", ")"},
	{"fecha parenteses", ")"},
}

// sentenceSpacing inserts a space after sentence punctuation that is glued
// to the next character. Newlines count as whitespace, so paragraph breaks
// produced above are left alone.
var sentenceSpacing = regexp.MustCompile(`([.?!])([^\s])`)

// newlineTidy removes stray spaces hugging a newline so paragraph breaks
// come out as a bare "\n\n".
var newlineTidy = regexp.MustCompile(`[ \t]*\n[ \t]*`)

// Rewrite applies the punctuation-token substitutions and whitespace
// normalization without trimming the edges of the input. Callers that splice
// fragments into a larger document use this form to keep boundary spaces.
//
// The token matching is deliberately word-boundary-unaware: "ponto" inside a
// longer word is still replaced. That mirrors the dictation conventions this
// rewrite was built for, where those tokens only occur as spoken punctuation.
func Rewrite(text string) string {
	if text == "" {
		return ""
	}

	for _, s := range substitutions {
		text = strings.ReplaceAll(text, s.from, s.to)
	}

	// Cleanup passes, repeated until stable. Overlapping dictation
	// produces doubled punctuation (", ," when the speaker said "vírgula"
	// over a literal comma); those collapse first, before space stripping
	// glues the symbols into ",," which the overlap rules cannot see.
	// Dictated tokens arrive surrounded by spaces ("a vírgula b"), which
	// leaves a space stranded before the symbol. Runs like ", , ," need
	// more than one pass to collapse.
	for {
		cleaned := text
		cleaned = strings.ReplaceAll(cleaned, ", ,", ", ")
		cleaned = strings.ReplaceAll(cleaned, ", .", ".")
		for _, sym := range []string{",", ".", ";", ":", ")"} {
			cleaned = strings.ReplaceAll(cleaned, " "+sym, sym)
		}
		cleaned = strings.ReplaceAll(cleaned, "( ", "(")
		cleaned = strings.ReplaceAll(cleaned, ",,", ",")
		cleaned = strings.ReplaceAll(cleaned, ",.", ".")
		if cleaned == text {
			break
		}
		text = cleaned
	}

	text = sentenceSpacing.ReplaceAllString(text, "$1 $2")

	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}

	text = newlineTidy.ReplaceAllString(text, "\n")

	return text
}

// Normalize applies Rewrite and trims leading/trailing whitespace. It is
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	return strings.TrimSpace(Rewrite(text))
}
