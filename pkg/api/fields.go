package api

import "fmt"

// FieldConfig is one entry of a parsed fields parameter. Sub holds the
// parenthesised sub-fields of a relation, Negated marks a leading '-'.
type FieldConfig struct {
	Name    string
	Negated bool
	Sub     []FieldConfig
}

// ParseFieldsParameter parses the fields query parameter grammar:
//
//	fields=title,-slug,carousel_items(image,caption)
//
// A leading '*' selects all fields, a leading '_' deselects the defaults;
// either is only valid in the first position. Errors carry the offending
// position within the parameter value.
func ParseFieldsParameter(value string) ([]FieldConfig, error) {
	p := &fieldsParser{input: value}
	fields, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.input) {
		return nil, p.errUnexpected()
	}
	return fields, nil
}

type fieldsParser struct {
	input string
	pos   int
}

func (p *fieldsParser) parseList() ([]FieldConfig, error) {
	var fields []FieldConfig
	first := true
	for {
		field, err := p.parseField(first)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
		first = false

		if p.pos >= len(p.input) || p.input[p.pos] != ',' {
			return fields, nil
		}
		p.pos++
	}
}

func (p *fieldsParser) parseField(first bool) (FieldConfig, error) {
	if p.pos >= len(p.input) {
		return FieldConfig{}, fmt.Errorf("unexpected end of input (missing field name)")
	}

	if leader := p.input[p.pos]; leader == '*' || leader == '_' && !followedByIdent(p.input, p.pos) {
		if !first {
			return FieldConfig{}, fmt.Errorf("'%c' must be in the first position", leader)
		}
		p.pos++
		return FieldConfig{Name: string(leader)}, nil
	}

	negated := false
	if p.input[p.pos] == '-' {
		negated = true
		p.pos++
	}

	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return FieldConfig{}, p.errUnexpected()
	}
	field := FieldConfig{Name: p.input[start:p.pos], Negated: negated}

	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		if negated {
			return FieldConfig{}, fmt.Errorf("negated fields with sub-fields are not supported")
		}
		p.pos++
		sub, err := p.parseList()
		if err != nil {
			return FieldConfig{}, err
		}
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return FieldConfig{}, fmt.Errorf("unexpected end of input (did you miss out a close bracket?)")
		}
		p.pos++
		field.Sub = sub
	}

	return field, nil
}

func (p *fieldsParser) errUnexpected() error {
	if p.pos >= len(p.input) {
		return fmt.Errorf("unexpected end of input")
	}
	return fmt.Errorf("unexpected char '%c' at position %d", p.input[p.pos], p.pos)
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// followedByIdent distinguishes the lone '_' leader from a field name that
// happens to start with an underscore.
func followedByIdent(s string, pos int) bool {
	return pos+1 < len(s) && isIdentChar(s[pos+1])
}
