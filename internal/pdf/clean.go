package pdf

import (
	"regexp"
	"strings"
)

type mojibakePair struct {
	from string
	to   string
}

// mojibakeFixups repairs UTF-8 Spanish text that was re-decoded as Latin-1
// somewhere in a PDF producer's pipeline. Each "from" is the raw byte
// sequence U+00C3 (or U+00C2) followed by the Latin-1 byte of the intended
// accented character, written as explicit byte escapes so the mapping does
// not depend on how this source file's own encoding is handled.
// Capitalized accented letters are left unhandled: their mangled byte
// sequences are non-printable and collide across letters, so substituting
// them risks picking the wrong glyph.
var mojibakeFixups = []mojibakePair{
	{from: "\xc3\x83\xa1", to: "á"}, // á
	{from: "\xc3\x83\xa9", to: "é"}, // é
	{from: "\xc3\x83\xad", to: "í"}, // í
	{from: "\xc3\x83\xb3", to: "ó"}, // ó
	{from: "\xc3\x83\xba", to: "ú"}, // ú
	{from: "\xc3\x83\xb1", to: "ñ"}, // ñ
	{from: "\xc3\x82\xbf", to: "¿"}, // ¿
	{from: "\xc3\x82\xa1", to: "¡"}, // ¡
}

// ligaturePattern matches the OCR artifact where "ti" between lowercase
// letters is rendered as a lone colon (na:onal -> national), while avoiding
// false positives on time expressions like "14:30" since \x{...} classes
// below only admit letters, never digits.
var ligaturePattern = regexp.MustCompile(`([a-z\x{e1}\x{e9}\x{ed}\x{f3}\x{fa}\x{f1}\x{fc}]):([a-z\x{e1}\x{e9}\x{ed}\x{f3}\x{fa}\x{f1}\x{fc}])`)

var multiNewline = regexp.MustCompile(`\n{3,}`)

func fixEncoding(s string) string {
	for _, f := range mojibakeFixups {
		s = strings.ReplaceAll(s, f.from, f.to)
	}
	s = ligaturePattern.ReplaceAllString(s, "${1}ti${2}")
	return s
}

// collapseWhitespace collapses runs of horizontal whitespace to a single
// space and runs of 3+ newlines to a paragraph break, per the cleaning
// rules C6 is specified to apply. U+FFFD (the replacement character) is
// left in place as a flag, not stripped.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}
	joined := strings.Join(lines, "\n")
	joined = multiNewline.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}

func collapseSpaces(line string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range line {
		isSpace := r == ' ' || r == '\t'
		if isSpace {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}
