package expr

import (
	"strconv"
	"strings"

	"github.com/bscript/container/core/value"
)

// Parse compiles formula source into an Expression tree. known, if
// non-empty, is the set of registered function names: a parenthesised
// `name(...)` call to a name not in it is rejected with an
// unknown-function error carrying a "did you mean" suggestion. The
// `ident:path` shorthand is not checked against known. With an empty
// known, no call is rejected here; registry lookup then happens at
// compile time (runtime/vm).
func Parse(src string, known []string) (Expression, error) {
	p := &parser{lex: newLexer(src), known: known}
	if err := p.advance(); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, &ParseError{Pos: p.tok.pos, Msg: "unexpected trailing input"}
	}
	return expr, nil
}

type parser struct {
	lex   *lexer
	tok   token
	known []string
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

// parseExpr parses a single top-level expression: a constant, a `name(...)`
// application, or the `ident:path` shorthand (e.g. load:/x, expanding to
// load(/x)), matching the formulas in end-to-end scenarios.
func (p *parser) parseExpr() (Expression, error) {
	switch p.tok.kind {
	case tokNumber:
		v := parseNumber(p.tok.text)
		id := NewConstant(v)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return id, nil
	case tokString:
		v := value.String(p.tok.text)
		c := NewConstant(v)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return c, nil
	case tokPath:
		v := value.String(p.tok.text)
		c := NewConstant(v)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return c, nil
	case tokIdent:
		return p.parseIdentExpr()
	default:
		return nil, &ParseError{Pos: p.tok.pos, Msg: "expected " + joinExpected("constant", "identifier")}
	}
}

func (p *parser) parseIdentExpr() (Expression, error) {
	name := p.tok.text
	pos := p.tok.pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch name {
	case "true":
		return NewConstant(value.Bool(true)), nil
	case "false":
		return NewConstant(value.Bool(false)), nil
	case "null":
		return NewConstant(value.Null()), nil
	}
	switch p.tok.kind {
	case tokColon:
		// ident:path shorthand sugar -> Apply{Function: ident, Args: [Constant(path)]}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokPath {
			return nil, &ParseError{Pos: p.tok.pos, Msg: "expected path after ':'"}
		}
		pathConst := NewConstant(value.String(p.tok.text))
		if err := p.advance(); err != nil {
			return nil, err
		}
		return NewApply(name, pathConst), nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		if len(p.known) > 0 && !contains(p.known, name) {
			return nil, unknownFunctionError(pos, name, p.known)
		}
		return NewApply(name, args...), nil
	default:
		// A bare identifier with no call syntax is treated as a zero-arg call,
		// e.g. `clear` with no parens.
		return NewApply(name), nil
	}
}

func (p *parser) parseArgs() ([]Expression, error) {
	var args []Expression
	if p.tok.kind == tokRParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch p.tok.kind {
		case tokComma:
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		case tokRParen:
			if err := p.advance(); err != nil {
				return nil, err
			}
			return args, nil
		default:
			return nil, &ParseError{Pos: p.tok.pos, Msg: "expected " + joinExpected("','", "')'")}
		}
	}
}

// parseNumber decides int vs float by the presence of a decimal point,
// matching "Constant": bare integers default to I64, anything
// with a '.' is F64.
func parseNumber(text string) value.Value {
	if strings.Contains(text, ".") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return value.Errf("parse: invalid number %q", text)
		}
		return value.F64(f)
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return value.Errf("parse: invalid number %q", text)
	}
	return value.I64(i)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
