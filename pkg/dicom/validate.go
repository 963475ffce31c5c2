package dicom

import "fmt"

// Severity classifies a validation Issue.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	default:
		return "Error"
	}
}

// Behavior selects what a Profile does when a Rule produces an Issue for a given tag.
type Behavior int

const (
	// Skip means the rule is not evaluated for this tag.
	Skip Behavior = iota
	// Validate means an Issue at or above the Profile's Threshold aborts the parse with
	// ValidationFailedError.
	Validate
	// Record means the Issue is collected into the Result but parsing continues.
	Record
)

// Issue is one rule finding, pure data with no behavior of its own.
type Issue struct {
	Tag      Tag
	Severity Severity
	Message  string
	RuleName string
}

// ElementContext is the read-only view a Rule inspects. Rules must be pure functions of this
// context: no I/O, no mutation of Dataset or Element.
type ElementContext struct {
	Dataset *Dataset
	Element *Element
}

// Rule is an external collaborator: a named, pure predicate over an ElementContext.
type Rule interface {
	Name() string
	Validate(ctx ElementContext) *Issue
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc struct {
	RuleName string
	Fn       func(ElementContext) *Issue
}

func (r RuleFunc) Name() string                       { return r.RuleName }
func (r RuleFunc) Validate(ctx ElementContext) *Issue { return r.Fn(ctx) }

// MultiVrResolvedWithoutContext is the built-in issue the reader records when it must resolve a
// multi-VR tag (PixelData ahead of BitsAllocated) without having seen the deciding context yet.
const MultiVrResolvedWithoutContext = "MultiVrResolvedWithoutContext"

// Profile bundles a default Behavior, per-tag overrides, a set of Rules to run, and the Severity
// threshold at which a Validate-behavior Issue aborts parsing.
type Profile struct {
	DefaultBehavior Behavior
	PerTag          map[Tag]Behavior
	Threshold       Severity
	Rules           []Rule
}

// BehaviorFor returns the configured Behavior for t: a per-tag override if present, else the
// profile default.
func (p *Profile) BehaviorFor(t Tag) Behavior {
	if p == nil {
		return Skip
	}
	if b, ok := p.PerTag[t]; ok {
		return b
	}
	return p.DefaultBehavior
}

// Result accumulates Issues recorded during a parse or explicit validation pass.
type Result struct {
	Issues []*Issue
}

// Record appends issue to the result.
func (r *Result) Record(issue *Issue) { r.Issues = append(r.Issues, issue) }

// HasErrors reports whether any recorded Issue is Error severity.
func (r *Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any recorded Issue is Warning severity or above.
func (r *Result) HasWarnings() bool {
	for _, i := range r.Issues {
		if i.Severity >= SeverityWarning {
			return true
		}
	}
	return false
}

// Summary returns a short human-readable count of issues by severity.
func (r *Result) Summary() string {
	var info, warn, errs int
	for _, i := range r.Issues {
		switch i.Severity {
		case SeverityInfo:
			info++
		case SeverityWarning:
			warn++
		default:
			errs++
		}
	}
	return fmt.Sprintf("%d error(s), %d warning(s), %d info", errs, warn, info)
}

// ValidateDataset runs profile's rules over every element of ds (recursing into sequence
// items), honoring each rule's configured Behavior per tag. It returns as soon as a Validate-
// behavior Issue meets or exceeds profile.Threshold.
func ValidateDataset(ds *Dataset, profile *Profile) (*Result, error) {
	result := &Result{}
	if profile == nil {
		return result, nil
	}
	if err := validateDatasetInto(ds, profile, result); err != nil {
		return result, err
	}
	return result, nil
}

func validateDatasetInto(ds *Dataset, profile *Profile, result *Result) error {
	for _, e := range ds.Iter() {
		behavior := profile.BehaviorFor(e.Tag)
		if behavior != Skip {
			for _, rule := range profile.Rules {
				issue := rule.Validate(ElementContext{Dataset: ds, Element: e})
				if issue == nil {
					continue
				}
				issue.RuleName = rule.Name()
				result.Record(issue)
				if behavior == Validate && issue.Severity >= profile.Threshold {
					return &ValidationFailedError{Issue: issue}
				}
			}
		}
		if e.Kind == KindSequence {
			for _, item := range e.Items {
				if err := validateDatasetInto(item, profile, result); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
