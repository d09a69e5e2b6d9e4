package outmatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/morel-lang/hybrid/internal/core"
)

type parser struct {
	toks []token
	pos  int
}

func (p *parser) atEnd() bool { return p.pos == len(p.toks) }

func (p *parser) peek() (token, bool) {
	if p.atEnd() {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) peekKind(k tokenKind) bool {
	t, ok := p.peek()
	return ok && t.kind == k
}

func (p *parser) next() (token, error) {
	t, ok := p.peek()
	if !ok {
		return token{}, fmt.Errorf("outmatch: unexpected end of input")
	}
	p.pos++
	return t, nil
}

func (p *parser) expect(k tokenKind) error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t.kind != k {
		return fmt.Errorf("outmatch: unexpected token")
	}
	return nil
}

// parseValue parses one value of static type typ (spec.md §4.7 step
// 3). A parenthesised value of any non-tuple type is accepted
// transparently: the parens are stripped and the inner value parsed
// against the same type, recursively, so arbitrarily nested
// "((v))" wrapping is tolerated.
func (p *parser) parseValue(typ core.Type) (any, error) {
	if _, isTuple := typ.(core.TupleType); !isTuple && p.peekKind(tLParen) {
		if _, err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseValue(typ)
		if err != nil {
			return nil, err
		}
		if err := p.expect(tRParen); err != nil {
			return nil, err
		}
		return v, nil
	}

	switch t := typ.(type) {
	case core.PrimitiveType:
		return p.parsePrimitive(t)
	case core.TupleType:
		return p.parseTuple(t)
	case core.RecordType:
		return p.parseRecord(t)
	case core.ListType:
		return p.parseSeq(t.Elem, false)
	case core.BagType:
		return p.parseSeq(t.Elem, true)
	case core.DatatypeType:
		return p.parseDatatype(t)
	default:
		return nil, fmt.Errorf("outmatch: unsupported type %T", typ)
	}
}

func (p *parser) parsePrimitive(t core.PrimitiveType) (any, error) {
	switch t.Name {
	case core.Unit:
		if err := p.expect(tLParen); err != nil {
			return nil, err
		}
		if err := p.expect(tRParen); err != nil {
			return nil, err
		}
		return Unit{}, nil
	case core.Bool:
		w, err := p.next()
		if err != nil || w.kind != tWord || (w.text != "true" && w.text != "false") {
			return nil, fmt.Errorf("outmatch: expected bool")
		}
		return w.text == "true", nil
	case core.Int:
		n, err := p.next()
		if err != nil || n.kind != tNumber {
			return nil, fmt.Errorf("outmatch: expected int")
		}
		v, err := strconv.ParseInt(smlToGoNumber(n.text), 10, 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case core.Real:
		n, err := p.next()
		if err != nil || n.kind != tNumber {
			return nil, fmt.Errorf("outmatch: expected real")
		}
		v, err := strconv.ParseFloat(smlToGoNumber(n.text), 64)
		if err != nil {
			return nil, err
		}
		return v, nil
	case core.Char:
		// translateLiteral (internal/relbuild) encodes a char as a
		// singleton string; the printed form follows the same
		// convention rather than SML's #"c" syntax.
		s, err := p.next()
		if err != nil || s.kind != tString || len([]rune(s.text)) != 1 {
			return nil, fmt.Errorf("outmatch: expected char")
		}
		return s.text, nil
	case core.String:
		s, err := p.next()
		if err != nil || s.kind != tString {
			return nil, fmt.Errorf("outmatch: expected string")
		}
		return s.text, nil
	default:
		return nil, fmt.Errorf("outmatch: unsupported primitive %v", t.Name)
	}
}

// smlToGoNumber rewrites SML/Morel's unary-minus tilde to the '-'
// strconv expects, in both the mantissa and any exponent.
func smlToGoNumber(s string) string {
	return strings.ReplaceAll(s, "~", "-")
}

func (p *parser) parseTuple(t core.TupleType) (any, error) {
	if err := p.expect(tLParen); err != nil {
		return nil, err
	}
	out := make(Tuple, len(t.Args))
	for i, arg := range t.Args {
		if i > 0 {
			if err := p.expect(tComma); err != nil {
				return nil, err
			}
		}
		v, err := p.parseValue(arg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	if err := p.expect(tRParen); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parseRecord(t core.RecordType) (any, error) {
	if err := p.expect(tLBrace); err != nil {
		return nil, err
	}
	byName := make(map[string]any, len(t.Fields))
	for !p.peekKind(tRBrace) {
		if len(byName) > 0 {
			if err := p.expect(tComma); err != nil {
				return nil, err
			}
		}
		nameTok, err := p.next()
		if err != nil || nameTok.kind != tWord {
			return nil, fmt.Errorf("outmatch: expected field name")
		}
		idx := t.FieldIndex(nameTok.text)
		if idx < 0 {
			return nil, fmt.Errorf("outmatch: unknown field %q", nameTok.text)
		}
		if err := p.expect(tEquals); err != nil {
			return nil, err
		}
		v, err := p.parseValue(t.Fields[idx].Type)
		if err != nil {
			return nil, err
		}
		byName[nameTok.text] = v
	}
	if err := p.expect(tRBrace); err != nil {
		return nil, err
	}
	if len(byName) != len(t.Fields) {
		return nil, fmt.Errorf("outmatch: record missing fields")
	}
	// Reorder into the type's canonical field order (spec.md §4.7 step
	// 3), regardless of the order fields appeared in the source text.
	out := make(Record, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = byName[f.Name]
	}
	return out, nil
}

func (p *parser) parseSeq(elem core.Type, bag bool) (any, error) {
	if err := p.expect(tLBrack); err != nil {
		return nil, err
	}
	var vals []any
	for !p.peekKind(tRBrack) {
		if len(vals) > 0 {
			if err := p.expect(tComma); err != nil {
				return nil, err
			}
		}
		v, err := p.parseValue(elem)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if err := p.expect(tRBrack); err != nil {
		return nil, err
	}
	if bag {
		return Bag(vals), nil
	}
	return List(vals), nil
}

func (p *parser) parseDatatype(t core.DatatypeType) (any, error) {
	nameTok, err := p.next()
	if err != nil || nameTok.kind != tWord {
		return nil, fmt.Errorf("outmatch: expected constructor")
	}
	var ctor *core.Constructor
	for i := range t.Constructors {
		if t.Constructors[i].Name == nameTok.text {
			ctor = &t.Constructors[i]
			break
		}
	}
	if ctor == nil {
		return nil, fmt.Errorf("outmatch: unknown constructor %q", nameTok.text)
	}
	if ctor.Arg == nil {
		return Ctor{Name: ctor.Name}, nil
	}
	arg, err := p.parseValue(ctor.Arg)
	if err != nil {
		return nil, err
	}
	return Ctor{Name: ctor.Name, Arg: arg}, nil
}
