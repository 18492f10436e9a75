package rendering

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

// segment is either literal text or a compiled expression block
type segment struct {
	text       string
	source     string
	expression *govaluate.EvaluableExpression
}

// parse splits a template into literal text and ${ expression } blocks; \$ is a literal dollar sign
func parse(template string) (segments []segment, err error) {

	segments = []segment{}
	var text strings.Builder

	flushText := func() {
		if text.Len() > 0 {
			segments = append(segments, segment{text: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(template); i++ {
		c := template[i]

		if c == '\\' && i+1 < len(template) && template[i+1] == '$' {
			text.WriteByte('$')
			i++
			continue
		}

		if c == '$' && i+1 < len(template) && template[i+1] == '{' {
			end, err := findExpressionEnd(template, i+2)
			if err != nil {
				return nil, err
			}

			source := strings.TrimSpace(template[i+2 : end])
			if source == "" {
				return nil, fmt.Errorf("Empty expression at offset %v", i)
			}

			expression, err := govaluate.NewEvaluableExpressionWithFunctions(rewriteAccessors(source), preludeFunctions)
			if err != nil {
				return nil, fmt.Errorf("Failed parsing expression '%v': %w", source, err)
			}

			flushText()
			segments = append(segments, segment{source: source, expression: expression})
			i = end
			continue
		}

		text.WriteByte(c)
	}

	flushText()

	return segments, nil
}

// findExpressionEnd returns the offset of the } closing the expression that starts at offset start
func findExpressionEnd(template string, start int) (int, error) {

	depth := 0
	var quote byte

	for i := start; i < len(template); i++ {
		c := template[i]

		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}

	return 0, fmt.Errorf("Unterminated expression starting at offset %v", start-2)
}

// rewriteAccessors turns dotted paths like build.result into bracketed variables [build.result],
// so they are looked up as a whole instead of through reflection
func rewriteAccessors(expression string) string {

	var b strings.Builder
	var quote byte

	for i := 0; i < len(expression); i++ {
		c := expression[i]

		if quote != 0 {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(expression) {
					i++
					b.WriteByte(expression[i])
				}
			case quote:
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)

		case c == '[':
			end := strings.IndexByte(expression[i:], ']')
			if end < 0 {
				b.WriteString(expression[i:])
				return b.String()
			}
			b.WriteString(expression[i : i+end+1])
			i += end

		case isDigit(c):
			j := i
			for j < len(expression) && (isDigit(expression[j]) || expression[j] == '.') {
				j++
			}
			b.WriteString(expression[i:j])
			i = j - 1

		case isIdentifierStart(c):
			j := i
			for j < len(expression) && (isIdentifierPart(expression[j]) || expression[j] == '.') {
				j++
			}
			identifier := expression[i:j]
			if strings.Contains(identifier, ".") {
				b.WriteString("[" + identifier + "]")
			} else {
				b.WriteString(identifier)
			}
			i = j - 1

		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentifierStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentifierPart(c byte) bool {
	return isIdentifierStart(c) || isDigit(c)
}
