package builtin

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	toolcore "github.com/nate11235813/SonifiedLLMKit/internal/tool"
)

const maxExpressionLen = 512

func init() {
	toolcore.RegisterBuiltin("calc", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &CalcTool{}, nil
	})
}

// CalcTool evaluates a bounded arithmetic expression: operators + - * / ^,
// parentheses, standard precedence, right-associative ^.
type CalcTool struct{}

func (t *CalcTool) Name() string {
	return "calc"
}

func (t *CalcTool) Description() string {
	return "Evaluate an arithmetic expression (+ - * / ^ and parentheses)."
}

func (t *CalcTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"expression": map[string]interface{}{
				"type":        "string",
				"description": "Expression to evaluate, e.g. (2 + 3) * 4.5 - 1",
			},
		},
		"required":             []string{"expression"},
		"additionalProperties": false,
	}
}

func (t *CalcTool) Invoke(args map[string]interface{}) (*toolcore.Result, error) {
	expr, _ := args["expression"].(string)
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if len(expr) > maxExpressionLen {
		return nil, fmt.Errorf("expression exceeds %d characters", maxExpressionLen)
	}

	value, err := evalExpression(expr)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("expression result is not finite")
	}

	return toolcore.NewResult(t.Name(), strconv.FormatFloat(value, 'f', -1, 64), map[string]interface{}{
		"value": value,
	}), nil
}

// Recursive-descent parser over the expression grammar:
//
//	expr   = term (('+'|'-') term)*
//	term   = unary (('*'|'/') unary)*
//	unary  = '-' unary | power
//	power  = primary ('^' unary)?      right-associative
//	primary = number | '(' expr ')'
//
// Unary minus binds looser than '^', so -2^2 is -(2^2).
type exprParser struct {
	input string
	pos   int
}

func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

func (p *exprParser) parseExpr() (float64, error) {
	value, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('+'):
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			value += rhs
		case p.accept('-'):
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			value -= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	value, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.accept('*'):
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			value *= rhs
		case p.accept('/'):
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			value /= rhs
		default:
			return value, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpaces()
	if p.accept('-') {
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.accept('^') {
		// The exponent may itself be signed: 2^-3.
		exponent, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exponent), nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpaces()
	if p.accept('(') {
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if !p.accept(')') {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		return value, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		if p.pos >= len(p.input) {
			return 0, fmt.Errorf("unexpected end of expression")
		}
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}

func (p *exprParser) accept(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}
