package exam

import (
	"math"
	"strconv"
	"strings"
)

// TokenKind is what a typed or pasted value asks for.
type TokenKind int

const (
	TokenSkip   TokenKind = iota // unparsable; leave the cell alone
	TokenMark                    // set the mark
	TokenAbsent                  // mark the student absent (TH)
	TokenClear                   // clear the cell
)

// CellToken is a parsed cell value.
type CellToken struct {
	Kind TokenKind
	Mark float64
}

// ParseMark parses a finite mark in [0, 100]. A decimal comma is accepted.
func ParseMark(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &ParseError{Input: raw, Reason: "empty"}
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, &ParseError{Input: raw, Reason: "not a number"}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ParseError{Input: raw, Reason: "not a finite number"}
	}
	if f < minMark || f > maxMark {
		return 0, &ParseError{Input: raw, Reason: "out of range"}
	}
	return f, nil
}

// ParseCellToken interprets one value: "TH"/"absent" (any case) mean absent, "-" clears the cell,
// and anything else must be a mark. Unusable values yield a TokenSkip along with a *ParseError.
func ParseCellToken(raw string) (CellToken, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "th", "absent":
		return CellToken{Kind: TokenAbsent}, nil
	case "-":
		return CellToken{Kind: TokenClear}, nil
	}
	mark, err := ParseMark(s)
	if err != nil {
		return CellToken{Kind: TokenSkip}, err
	}
	return CellToken{Kind: TokenMark, Mark: mark}, nil
}

// ParseColumn splits newline-delimited text (as copied from a spreadsheet column) into one token per line.
// The trailing line break a spreadsheet appends does not produce a token.
func ParseColumn(raw string) []CellToken {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.TrimSuffix(raw, "\n")
	if raw == "" {
		return nil
	}
	lines := strings.Split(raw, "\n")
	tokens := make([]CellToken, 0, len(lines))
	for _, line := range lines {
		// a tab separated row pastes its first column only
		if i := strings.IndexByte(line, '\t'); i >= 0 {
			line = line[:i]
		}
		tok, _ := ParseCellToken(line) // ParseError: the line keeps its slot but is skipped
		tokens = append(tokens, tok)
	}
	return tokens
}
