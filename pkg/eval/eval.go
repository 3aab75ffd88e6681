// Package eval provides a safe arithmetic expression evaluator for
// workflow formulas. Expressions are parsed with a hand-written
// recursive-descent grammar; the string is never handed to a
// general-purpose code interpreter.
package eval

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCharacter is returned when the expression contains a
	// character outside the allowed arithmetic charset.
	ErrInvalidCharacter = errors.New("expression contains invalid characters")

	// ErrUndefinedVariable is returned when an identifier survives
	// variable substitution.
	ErrUndefinedVariable = errors.New("expression references undefined variable")

	// ErrUnexpectedToken is returned on malformed expressions.
	ErrUnexpectedToken = errors.New("unexpected token in expression")
)

// allowedChars matches the full expression: digits, arithmetic
// operators, parentheses, dot, whitespace and identifier characters.
var allowedChars = regexp.MustCompile(`^[0-9+\-*/().\s^%_a-zA-Z]*$`)

// Evaluate parses and evaluates an arithmetic expression. Both `^` and
// `**` are accepted as power operators. Division (and modulo) by zero
// yields 0 rather than an error or NaN.
func Evaluate(expression string) (float64, error) {
	if !allowedChars.MatchString(expression) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCharacter, expression)
	}

	// Normalize the JavaScript-style power operator.
	normalized := strings.ReplaceAll(expression, "**", "^")

	p := &parser{input: []rune(normalized)}

	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}

	p.skipSpaces()

	if p.pos < len(p.input) {
		return 0, fmt.Errorf("%w: trailing input at position %d", ErrUnexpectedToken, p.pos)
	}

	return value, nil
}

// EvaluateWith substitutes the bound variables into the formula and
// evaluates the result.
func EvaluateWith(formula string, vars map[string]any) (float64, error) {
	return Evaluate(Substitute(formula, vars))
}

// Substitute replaces bound variable names in the formula with their
// numeric values. Replacement is whole-word only, so a variable named
// "num" never matches inside "num2".
func Substitute(formula string, vars map[string]any) string {
	result := formula

	for name, value := range vars {
		num, ok := toFloat(value)
		if !ok {
			continue
		}

		pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		result = pattern.ReplaceAllString(result, strconv.FormatFloat(num, 'f', -1, 64))
	}

	return result
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return num, true
	default:
		return 0, false
	}
}

// parser implements the grammar:
//
//	expr   := term (('+'|'-') term)*
//	term   := power (('*'|'/'|'%') power)*
//	power  := factor ('^' factor)*
//	factor := number | '(' expr ')' | ('+'|'-') factor
type parser struct {
	input []rune
	pos   int
}

func (p *parser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()

		switch p.peek() {
		case '+':
			p.pos++

			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}

			value += right
		case '-':
			p.pos++

			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}

			value -= right
		default:
			return value, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	value, err := p.parsePower()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()

		switch p.peek() {
		case '*':
			p.pos++

			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}

			value *= right
		case '/':
			p.pos++

			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}

			if right == 0 {
				value = 0
			} else {
				value /= right
			}
		case '%':
			p.pos++

			right, err := p.parsePower()
			if err != nil {
				return 0, err
			}

			if right == 0 {
				value = 0
			} else {
				value = modulo(value, right)
			}
		default:
			return value, nil
		}
	}
}

func (p *parser) parsePower() (float64, error) {
	value, err := p.parseFactor()
	if err != nil {
		return 0, err
	}

	for {
		p.skipSpaces()

		if p.peek() != '^' {
			return value, nil
		}

		p.pos++

		exponent, err := p.parseFactor()
		if err != nil {
			return 0, err
		}

		value = pow(value, exponent)
	}
}

func (p *parser) parseFactor() (float64, error) {
	p.skipSpaces()

	switch {
	case p.peek() == '(':
		p.pos++

		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}

		p.skipSpaces()

		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrUnexpectedToken)
		}

		p.pos++

		return value, nil
	case p.peek() == '+':
		p.pos++

		return p.parseFactor()
	case p.peek() == '-':
		p.pos++

		value, err := p.parseFactor()

		return -value, err
	case isDigit(p.peek()) || p.peek() == '.':
		return p.parseNumber()
	case isIdentChar(p.peek()):
		name := p.parseIdentifier()

		return 0, fmt.Errorf("%w: %q", ErrUndefinedVariable, name)
	default:
		return 0, fmt.Errorf("%w: position %d", ErrUnexpectedToken, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}

	text := string(p.input[start:p.pos])

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid number %q", ErrUnexpectedToken, text)
	}

	return value, nil
}

func (p *parser) parseIdentifier() string {
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}

	return string(p.input[start:p.pos])
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n' || p.input[p.pos] == '\r') {
		p.pos++
	}
}

func (p *parser) peek() rune {
	if p.pos >= len(p.input) {
		return 0
	}

	return p.input[p.pos]
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || isDigit(r)
}

func pow(base, exponent float64) float64 {
	return math.Pow(base, exponent)
}

func modulo(a, b float64) float64 {
	return math.Mod(a, b)
}
