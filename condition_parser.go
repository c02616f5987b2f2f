package authz

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseCondition parses the condition strings used in rule configuration
// files into the native Condition AST. The grammar is intentionally tiny and
// deterministic: the six fact names, "and", "or", "not" and parentheses.
//
//	isOwner or (isFamilyMember and isFamilyAdmin)
//
// Keywords are case-insensitive; fact names are matched exactly.
func ParseCondition(s string) (Condition, error) {
	p := &conditionParser{tokens: tokenizeCondition(s)}
	if len(p.tokens) == 0 {
		return nil, fmt.Errorf("empty condition")
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q in condition %q", p.tokens[p.pos], s)
	}
	return expr, nil
}

type conditionParser struct {
	tokens []string
	pos    int
}

func (p *conditionParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *conditionParser) next() string {
	t := p.peek()
	if t != "" {
		p.pos++
	}
	return t
}

func (p *conditionParser) parseOr() (Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	conds := []Condition{left}
	for strings.EqualFold(p.peek(), "or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		conds = append(conds, right)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return &OrExpr{Conds: conds}, nil
}

func (p *conditionParser) parseAnd() (Condition, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	conds := []Condition{left}
	for strings.EqualFold(p.peek(), "and") {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		conds = append(conds, right)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return &AndExpr{Conds: conds}, nil
}

func (p *conditionParser) parseUnary() (Condition, error) {
	switch tok := p.peek(); {
	case strings.EqualFold(tok, "not"):
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Cond: inner}, nil
	case tok == "(":
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	case tok == "":
		return nil, fmt.Errorf("unexpected end of condition")
	default:
		p.next()
		f := Fact(tok)
		if !knownFacts[f] {
			return nil, fmt.Errorf("unknown condition fact %q", tok)
		}
		return &FactExpr{Fact: f}, nil
	}
}

func tokenizeCondition(s string) []string {
	tokens := make([]string, 0, 8)
	i := 0
	for i < len(s) {
		switch c := s[i]; {
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case unicode.IsSpace(rune(c)):
			i++
		default:
			j := i
			for j < len(s) && s[j] != '(' && s[j] != ')' && !unicode.IsSpace(rune(s[j])) {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		}
	}
	return tokens
}
