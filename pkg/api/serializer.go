package api

import (
	"sort"
	"strings"
	"time"

	"github.com/torchbox-forks/wagtail-transfer/pkg/model"
)

// Mode selects the default field set used when the request names none.
type Mode int

const (
	ModeListing Mode = iota
	ModeDetail
	ModeNested
)

// Serializer renders instances of one endpoint's model with a fixed,
// ordered field selection. Child serializers render relation fields.
type Serializer struct {
	endpoint *Endpoint
	fields   []string
	children map[string]*Serializer
}

// newSerializer resolves a fields configuration against the endpoint's
// field lists, mirroring the recursive construction the fields grammar
// implies: mode defaults, '*'/'_' leaders, negation, nested sub-fields.
func (e *Endpoint) newSerializer(fieldsConfig []FieldConfig, mode Mode) (*Serializer, error) {
	all := e.allFields()
	if mode != ModeDetail {
		all = remove(all, e.DetailOnlyFields)
	}

	selected := make(map[string]bool)
	switch mode {
	case ModeDetail:
		for _, name := range all {
			selected[name] = true
		}
	case ModeNested:
		for _, name := range e.NestedDefaultFields {
			selected[name] = true
		}
	default:
		for _, name := range e.ListingDefaultFields {
			selected[name] = true
		}
	}

	if len(fieldsConfig) > 0 {
		switch fieldsConfig[0].Name {
		case "*":
			selected = make(map[string]bool)
			for _, name := range all {
				selected[name] = true
			}
			fieldsConfig = fieldsConfig[1:]
		case "_":
			selected = make(map[string]bool)
			fieldsConfig = fieldsConfig[1:]
		}
	}

	allSet := make(map[string]bool, len(all))
	for _, name := range all {
		allSet[name] = true
	}

	var unknown []string
	subFields := make(map[string][]FieldConfig)
	for _, fc := range fieldsConfig {
		if !allSet[fc.Name] {
			unknown = append(unknown, fc.Name)
			continue
		}
		if fc.Negated {
			delete(selected, fc.Name)
			continue
		}
		selected[fc.Name] = true
		if len(fc.Sub) > 0 {
			subFields[fc.Name] = fc.Sub
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, badRequestf("unknown fields: %s", strings.Join(unknown, ", "))
	}

	s := &Serializer{endpoint: e, children: make(map[string]*Serializer)}

	for name := range selected {
		field := e.Model.Field(name)
		if field == nil || field.Relation == nil {
			if _, hasSub := subFields[name]; hasSub {
				return nil, badRequestf("'%s' does not support nested fields", name)
			}
			continue
		}

		sub := subFields[name]
		// Inline child models display all their fields by default.
		if field.Relation.Child {
			if len(sub) == 0 || (sub[0].Name != "*" && sub[0].Name != "_") {
				sub = append([]FieldConfig{{Name: "*"}}, sub...)
			}
		}

		childEndpoint := e
		if e.router != nil {
			if ce := e.router.EndpointForModel(field.Relation.Model); ce != nil {
				childEndpoint = ce
			}
		}
		child, err := childEndpoint.newSerializer(sub, ModeNested)
		if err != nil {
			return nil, err
		}
		s.children[name] = child
	}

	// Output follows the declared all-fields order.
	for _, name := range all {
		if selected[name] {
			s.fields = append(s.fields, name)
		}
	}
	return s, nil
}

// Serialize renders one instance: id first, then the meta fields grouped
// under a "meta" key, then the remaining body fields, each group in
// declared field order.
func (s *Serializer) Serialize(rctx *RequestContext, in model.Instance) (*Document, error) {
	rctx.SeeType(s.endpoint.instanceLabel(in))

	doc := NewDocument()
	for _, name := range s.fields {
		if name == "id" {
			value, err := s.fieldValue(rctx, in, name)
			if err != nil {
				return nil, err
			}
			doc.Set("id", value)
			break
		}
	}

	meta := NewDocument()
	for _, name := range s.fields {
		if !s.endpoint.isMetaField(name) {
			continue
		}
		value, err := s.fieldValue(rctx, in, name)
		if err != nil {
			return nil, err
		}
		meta.Set(name, value)
	}
	if meta.Len() > 0 {
		doc.Set("meta", meta)
	}

	for _, name := range s.fields {
		if name == "id" || s.endpoint.isMetaField(name) {
			continue
		}
		value, err := s.fieldValue(rctx, in, name)
		if err != nil {
			return nil, err
		}
		doc.Set(name, value)
	}
	return doc, nil
}

func (s *Serializer) fieldValue(rctx *RequestContext, in model.Instance, name string) (any, error) {
	if fs, ok := s.endpoint.FieldSerializers[name]; ok {
		return fs(rctx, in, s.children[name])
	}
	field := s.endpoint.Model.Field(name)
	if field == nil || field.Column == "" {
		return nil, nil
	}
	return jsonValue(in[field.Column], field.Kind), nil
}

// jsonValue converts a database value to its JSON representation.
func jsonValue(v any, kind string) any {
	if v == nil {
		return nil
	}
	if kind == model.KindTime {
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(time.RFC3339)
		case *time.Time:
			if t == nil {
				return nil
			}
			return t.UTC().Format(time.RFC3339)
		}
	}
	return v
}

func remove(fields []string, drop []string) []string {
	dropSet := make(map[string]bool, len(drop))
	for _, name := range drop {
		dropSet[name] = true
	}
	var out []string
	for _, name := range fields {
		if !dropSet[name] {
			out = append(out, name)
		}
	}
	return out
}
