// Package workflow declares issue templates: the states an issue type can
// occupy, the transitions between them, and the field schema validated on
// every mutation. Templates are loaded once at store initialization and are
// read-only afterwards, so the state machine they encode is immutable for
// the life of the process.
package workflow

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/skeinhq/skein/internal/types"
)

// Enforcement is the strictness applied when validating a transition.
type Enforcement string

// Enforcement levels
const (
	// EnforcementStrict rejects any transition without a declared from->to
	// entry, and rejects declared transitions with missing required fields.
	EnforcementStrict Enforcement = "strict"
	// EnforcementSoft allows undeclared transitions and missing required
	// fields, but flags them so the mutation is audited as non-standard.
	EnforcementSoft Enforcement = "soft"
	// EnforcementNone performs no table lookup; any declared state is
	// reachable from any state.
	EnforcementNone Enforcement = "none"
)

// IsValid checks if the enforcement value is valid
func (e Enforcement) IsValid() bool {
	switch e {
	case EnforcementStrict, EnforcementSoft, EnforcementNone, "":
		return true
	}
	return false
}

// State is one status an issue of this type may hold.
type State struct {
	Name     string         `yaml:"name"`
	Category types.Category `yaml:"category"`
}

// Transition declares one allowed from->to edge.
type Transition struct {
	From           string      `yaml:"from"`
	To             string      `yaml:"to"`
	Enforcement    Enforcement `yaml:"enforcement,omitempty"` // empty = template default
	RequiredFields []string    `yaml:"required_fields,omitempty"`
}

// FieldType is the declared type of a template field.
type FieldType string

// Field type constants
const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
	FieldDate   FieldType = "date"
	FieldList   FieldType = "list"
)

// IsValid checks if the field type value is valid
func (t FieldType) IsValid() bool {
	switch t {
	case FieldString, FieldInt, FieldFloat, FieldBool, FieldDate, FieldList:
		return true
	}
	return false
}

// FieldSpec declares one entry of a template's field schema.
type FieldSpec struct {
	Name    string    `yaml:"name"`
	Type    FieldType `yaml:"type"`
	Default any       `yaml:"default,omitempty"`
	Options []string  `yaml:"options,omitempty"`
	Pattern string    `yaml:"pattern,omitempty"`
	Unique  bool      `yaml:"unique,omitempty"`

	pattern *regexp.Regexp // compiled at load
}

// Template declares the full workflow for one issue type.
type Template struct {
	Name        string       `yaml:"name"`
	Enforcement Enforcement  `yaml:"enforcement,omitempty"` // default for undeclared transitions
	Initial     string       `yaml:"initial"`
	States      []State      `yaml:"states"`
	Transitions []Transition `yaml:"transitions"`
	Fields      []FieldSpec  `yaml:"fields,omitempty"`

	states map[string]types.Category
	fields map[string]*FieldSpec
}

// compile validates the declaration and builds lookup tables. Called once
// at registry load; a template that fails to compile aborts initialization.
func (t *Template) compile() error {
	if t.Name == "" {
		return fmt.Errorf("template has no name")
	}
	if t.Enforcement == "" {
		t.Enforcement = EnforcementStrict
	}
	if !t.Enforcement.IsValid() {
		return fmt.Errorf("template %s: invalid enforcement %q", t.Name, t.Enforcement)
	}
	if len(t.States) == 0 {
		return fmt.Errorf("template %s: no states declared", t.Name)
	}
	t.states = make(map[string]types.Category, len(t.States))
	for _, s := range t.States {
		if s.Name == "" {
			return fmt.Errorf("template %s: state with empty name", t.Name)
		}
		if !s.Category.IsValid() {
			return fmt.Errorf("template %s: state %s has invalid category %q", t.Name, s.Name, s.Category)
		}
		if _, dup := t.states[s.Name]; dup {
			return fmt.Errorf("template %s: duplicate state %s", t.Name, s.Name)
		}
		t.states[s.Name] = s.Category
	}
	initialCat, ok := t.states[t.Initial]
	if !ok {
		return fmt.Errorf("template %s: initial state %q is not declared", t.Name, t.Initial)
	}
	if initialCat != types.CategoryOpen {
		return fmt.Errorf("template %s: initial state %q must have category open", t.Name, t.Initial)
	}
	for i := range t.Transitions {
		tr := &t.Transitions[i]
		if _, ok := t.states[tr.From]; !ok {
			return fmt.Errorf("template %s: transition from undeclared state %q", t.Name, tr.From)
		}
		if _, ok := t.states[tr.To]; !ok {
			return fmt.Errorf("template %s: transition to undeclared state %q", t.Name, tr.To)
		}
		if !tr.Enforcement.IsValid() {
			return fmt.Errorf("template %s: transition %s->%s has invalid enforcement %q", t.Name, tr.From, tr.To, tr.Enforcement)
		}
	}
	t.fields = make(map[string]*FieldSpec, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("template %s: field with empty name", t.Name)
		}
		if !f.Type.IsValid() {
			return fmt.Errorf("template %s: field %s has invalid type %q", t.Name, f.Name, f.Type)
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Errorf("template %s: field %s pattern: %w", t.Name, f.Name, err)
			}
			f.pattern = re
		}
		if _, dup := t.fields[f.Name]; dup {
			return fmt.Errorf("template %s: duplicate field %s", t.Name, f.Name)
		}
		t.fields[f.Name] = f
	}
	return nil
}

// ValidateStatus reports whether status is a state declared by this
// template.
func (t *Template) ValidateStatus(status string) error {
	if _, ok := t.states[status]; !ok {
		return types.Validationf("invalid state %q for type %s", status, t.Name)
	}
	return nil
}

// CategoryOf returns the declared category of a status.
func (t *Template) CategoryOf(status string) (types.Category, error) {
	cat, ok := t.states[status]
	if !ok {
		return "", types.Validationf("invalid state %q for type %s", status, t.Name)
	}
	return cat, nil
}

// Field returns the schema entry for a field name.
func (t *Template) Field(name string) (*FieldSpec, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// DoneState returns the first declared done-category state, used as the
// default target when closing an issue.
func (t *Template) DoneState() (string, bool) {
	for _, s := range t.States {
		if s.Category == types.CategoryDone {
			return s.Name, true
		}
	}
	return "", false
}

// findTransition locates the declared from->to entry, if any.
func (t *Template) findTransition(from, to string) *Transition {
	for i := range t.Transitions {
		tr := &t.Transitions[i]
		if tr.From == from && tr.To == to {
			return tr
		}
	}
	return nil
}

// effectiveEnforcement resolves the level governing one attempted
// transition: the declared entry's own level when present, otherwise the
// template default.
func (t *Template) effectiveEnforcement(tr *Transition) Enforcement {
	if tr != nil && tr.Enforcement != "" {
		return tr.Enforcement
	}
	return t.Enforcement
}

// CheckTransition evaluates the enforcement decision table for a status
// change from -> to. has reports whether a named field is populated and
// non-null on the issue at the time of the attempt. The returned
// nonStandard flag is true when a soft-enforced transition was allowed
// despite not matching the declared table (or missing required fields);
// callers audit such transitions.
func (t *Template) CheckTransition(issueID, from, to string, has func(string) bool) (nonStandard bool, err error) {
	if err := t.ValidateStatus(to); err != nil {
		return false, err
	}
	if from == to {
		return false, nil
	}
	if t.Enforcement == EnforcementNone {
		return false, nil
	}

	tr := t.findTransition(from, to)
	if tr == nil {
		switch t.Enforcement {
		case EnforcementSoft:
			return true, nil
		default: // strict
			return false, &types.InvalidTransitionError{
				IssueID: issueID,
				From:    from,
				To:      to,
				Valid:   t.ValidTransitions(from, has),
			}
		}
	}

	if missing := missingFields(tr.RequiredFields, has); len(missing) > 0 {
		switch t.effectiveEnforcement(tr) {
		case EnforcementStrict:
			return false, &types.InvalidTransitionError{
				IssueID: issueID,
				From:    from,
				To:      to,
				Valid:   t.ValidTransitions(from, has),
			}
		case EnforcementSoft:
			return true, nil
		}
	}
	return false, nil
}

// ValidTransitions lists the transitions currently available from a state.
// Ready reflects whether all required fields for that transition are
// populated. Under EnforcementNone every other declared state is listed.
func (t *Template) ValidTransitions(from string, has func(string) bool) []types.TransitionHint {
	var hints []types.TransitionHint
	if t.Enforcement == EnforcementNone {
		for _, s := range t.States {
			if s.Name == from {
				continue
			}
			hints = append(hints, types.TransitionHint{To: s.Name, Category: s.Category, Ready: true})
		}
		return hints
	}
	for i := range t.Transitions {
		tr := &t.Transitions[i]
		if tr.From != from {
			continue
		}
		hints = append(hints, types.TransitionHint{
			To:       tr.To,
			Category: t.states[tr.To],
			Ready:    len(missingFields(tr.RequiredFields, has)) == 0,
		})
	}
	sort.Slice(hints, func(i, j int) bool { return hints[i].To < hints[j].To })
	return hints
}

func missingFields(required []string, has func(string) bool) []string {
	var missing []string
	for _, f := range required {
		if has == nil || !has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// ValidateFieldValue checks a value against one field's schema: type
// match, options membership, pattern match. Uniqueness is enforced by the
// store, which can see other issues.
func (f *FieldSpec) ValidateFieldValue(value any) error {
	if value == nil {
		return nil
	}
	switch f.Type {
	case FieldString, FieldDate:
		s, ok := value.(string)
		if !ok {
			return types.Validationf("field %s must be a %s (got %T)", f.Name, f.Type, value)
		}
		if f.Type == FieldDate {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				if _, err := time.Parse("2006-01-02", s); err != nil {
					return types.Validationf("field %s must be an RFC 3339 date (got %q)", f.Name, s)
				}
			}
		}
		if len(f.Options) > 0 && !contains(f.Options, s) {
			return types.Validationf("field %s must be one of %v (got %q)", f.Name, f.Options, s)
		}
		if f.pattern != nil && !f.pattern.MatchString(s) {
			return types.Validationf("field %s must match pattern %q (got %q)", f.Name, f.Pattern, s)
		}
	case FieldInt:
		switch v := value.(type) {
		case bool:
			return types.Validationf("field %s must be an integer, not a boolean", f.Name)
		case int, int64:
			// ok
		case float64:
			if v != float64(int64(v)) {
				return types.Validationf("field %s must be an integer (got %v)", f.Name, v)
			}
		default:
			return types.Validationf("field %s must be an integer (got %T)", f.Name, value)
		}
	case FieldFloat:
		switch value.(type) {
		case bool:
			return types.Validationf("field %s must be a number, not a boolean", f.Name)
		case int, int64, float64:
			// ok
		default:
			return types.Validationf("field %s must be a number (got %T)", f.Name, value)
		}
	case FieldBool:
		if _, ok := value.(bool); !ok {
			return types.Validationf("field %s must be a boolean (got %T)", f.Name, value)
		}
	case FieldList:
		switch value.(type) {
		case []any, []string:
			// ok
		default:
			return types.Validationf("field %s must be a list (got %T)", f.Name, value)
		}
	}
	return nil
}

// ValidateFields checks a full field map against the schema, rejecting
// undeclared keys.
func (t *Template) ValidateFields(fields map[string]any) error {
	for name, value := range fields {
		spec, ok := t.fields[name]
		if !ok {
			return types.Validationf("field %s is not declared by template %s", name, t.Name)
		}
		if err := spec.ValidateFieldValue(value); err != nil {
			return err
		}
	}
	return nil
}

// ApplyDefaults fills declared defaults into a field map, returning the
// map (allocating one if nil). Explicitly set values win.
func (t *Template) ApplyDefaults(fields map[string]any) map[string]any {
	if fields == nil {
		fields = make(map[string]any)
	}
	for _, f := range t.Fields {
		if f.Default == nil {
			continue
		}
		if _, ok := fields[f.Name]; !ok {
			fields[f.Name] = f.Default
		}
	}
	return fields
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
