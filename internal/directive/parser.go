package directive

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const (
	openTag  = "<action>"
	closeTag = "</action>"
)

// Parser splits a model reply into display text and directives.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger.With("component", "parser")}
}

// Parse extracts directives from raw model output. The first
// well-delimited action block is decoded; a decode failure drops the
// block (logged) and yields an empty map, never a partial one. The
// display text is raw with every action block removed and surrounding
// whitespace trimmed, so tags never leak to the user.
func (p *Parser) Parse(raw string) (string, map[string]Directive) {
	directives := map[string]Directive{}

	if body, ok := firstBlock(raw); ok {
		if err := json.Unmarshal([]byte(body), &directives); err != nil {
			p.logger.Warn("malformed action block dropped", "err", err, "body", body)
			directives = map[string]Directive{}
		}
	}

	return strings.TrimSpace(stripBlocks(raw)), directives
}

// firstBlock returns the trimmed body of the first complete action
// block, if any.
func firstBlock(s string) (string, bool) {
	start := strings.Index(s, openTag)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(openTag):]
	end := strings.Index(rest, closeTag)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// stripBlocks removes every complete action block. When a block sits
// between two whitespace runs, one run is absorbed so "a <action/> b"
// reads "a b", not "a  b". An unterminated trailing block is left in
// place rather than eating the rest of the reply.
func stripBlocks(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, openTag)
		if start < 0 {
			break
		}
		end := strings.Index(s[start+len(openTag):], closeTag)
		if end < 0 {
			break
		}
		prefix := s[:start]
		s = s[start+len(openTag)+end+len(closeTag):]
		if endsWithSpace(prefix) && startsWithSpace(s) {
			prefix = strings.TrimRight(prefix, " \t\r\n")
		}
		b.WriteString(prefix)
	}
	b.WriteString(s)
	return b.String()
}

func endsWithSpace(s string) bool {
	return s != "" && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t' || s[len(s)-1] == '\n' || s[len(s)-1] == '\r')
}

func startsWithSpace(s string) bool {
	return s != "" && (s[0] == ' ' || s[0] == '\t' || s[0] == '\n' || s[0] == '\r')
}
