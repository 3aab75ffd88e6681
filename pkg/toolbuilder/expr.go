package toolbuilder

import (
	"fmt"
	"strings"
	"unicode"
)

// exprToJS compiles an arithmetic formula into a JavaScript expression.
// The grammar mirrors the live evaluator so both back-ends agree:
// division and modulo go through the __div/__mod helpers (so dividing
// by zero yields 0, as in the interpreter) and power uses Math.pow.
// Identifiers are mapped through resolve, which turns input names into
// context accesses and step references into local variables.
func exprToJS(formula string, resolve func(name string) string) (string, error) {
	normalized := strings.ReplaceAll(formula, "**", "^")

	c := &exprCompiler{input: []rune(normalized), resolve: resolve}

	compiled, err := c.compileExpr()
	if err != nil {
		return "", err
	}

	c.skipSpaces()

	if c.pos < len(c.input) {
		return "", fmt.Errorf("unexpected token at position %d in %q", c.pos, formula)
	}

	return compiled, nil
}

type exprCompiler struct {
	input   []rune
	pos     int
	resolve func(name string) string
}

func (c *exprCompiler) compileExpr() (string, error) {
	left, err := c.compileTerm()
	if err != nil {
		return "", err
	}

	for {
		c.skipSpaces()

		op := c.peek()
		if op != '+' && op != '-' {
			return left, nil
		}

		c.pos++

		right, err := c.compileTerm()
		if err != nil {
			return "", err
		}

		left = fmt.Sprintf("(%s %c %s)", left, op, right)
	}
}

func (c *exprCompiler) compileTerm() (string, error) {
	left, err := c.compilePower()
	if err != nil {
		return "", err
	}

	for {
		c.skipSpaces()

		op := c.peek()

		switch op {
		case '*':
			c.pos++

			right, err := c.compilePower()
			if err != nil {
				return "", err
			}

			left = fmt.Sprintf("(%s * %s)", left, right)
		case '/':
			c.pos++

			right, err := c.compilePower()
			if err != nil {
				return "", err
			}

			left = fmt.Sprintf("__div(%s, %s)", left, right)
		case '%':
			c.pos++

			right, err := c.compilePower()
			if err != nil {
				return "", err
			}

			left = fmt.Sprintf("__mod(%s, %s)", left, right)
		default:
			return left, nil
		}
	}
}

func (c *exprCompiler) compilePower() (string, error) {
	value, err := c.compileFactor()
	if err != nil {
		return "", err
	}

	for {
		c.skipSpaces()

		if c.peek() != '^' {
			return value, nil
		}

		c.pos++

		// Folds left, so 2^3^2 is 64.
		exponent, err := c.compileFactor()
		if err != nil {
			return "", err
		}

		value = fmt.Sprintf("Math.pow(%s, %s)", value, exponent)
	}
}

func (c *exprCompiler) compileFactor() (string, error) {
	c.skipSpaces()

	switch r := c.peek(); {
	case r == '(':
		c.pos++

		inner, err := c.compileExpr()
		if err != nil {
			return "", err
		}

		c.skipSpaces()

		if c.peek() != ')' {
			return "", fmt.Errorf("missing closing parenthesis at position %d", c.pos)
		}

		c.pos++

		return inner, nil

	case r == '+' || r == '-':
		c.pos++

		inner, err := c.compileFactor()
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("(%c%s)", r, inner), nil

	case unicode.IsDigit(r) || r == '.':
		return c.compileNumber(), nil

	case unicode.IsLetter(r) || r == '_':
		return c.resolve(c.readIdentifier()), nil

	default:
		return "", fmt.Errorf("unexpected character %q at position %d", r, c.pos)
	}
}

func (c *exprCompiler) compileNumber() string {
	start := c.pos

	for c.pos < len(c.input) && (unicode.IsDigit(c.input[c.pos]) || c.input[c.pos] == '.') {
		c.pos++
	}

	return string(c.input[start:c.pos])
}

func (c *exprCompiler) readIdentifier() string {
	start := c.pos

	for c.pos < len(c.input) {
		r := c.input[c.pos]
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}

		c.pos++
	}

	return string(c.input[start:c.pos])
}

func (c *exprCompiler) skipSpaces() {
	for c.pos < len(c.input) && unicode.IsSpace(c.input[c.pos]) {
		c.pos++
	}
}

func (c *exprCompiler) peek() rune {
	if c.pos >= len(c.input) {
		return 0
	}

	return c.input[c.pos]
}
