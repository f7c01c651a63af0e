package core

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Capability is a named, executable customer-success action the assistant
// can perform (e.g. "generate a QBR", "draft a risk assessment").
// Capabilities are authored out-of-band by administrators and are strictly
// read-only from the matching engine's perspective. Identity is stable
// across edits.
type Capability struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`

	// TriggerPatterns are template strings with {placeholder} spans,
	// e.g. "draft a save play for {customer}". Order is significant:
	// the pattern matcher scans them in sequence and keeps the first win.
	TriggerPatterns []string `json:"trigger_patterns" yaml:"trigger_patterns"`

	// Keywords are matched case-insensitively against query tokens.
	Keywords []string `json:"keywords" yaml:"keywords"`

	ExamplePrompts []string `json:"example_prompts,omitempty" yaml:"example_prompts,omitempty"`
	RequiredInputs []string `json:"required_inputs,omitempty" yaml:"required_inputs,omitempty"`
	Outputs        []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	Execution ExecutionBinding `json:"execution" yaml:"execution"`

	RelatedCapabilities []string `json:"related_capabilities,omitempty" yaml:"related_capabilities,omitempty"`
	Prerequisites       []string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`

	// Enabled gates the capability out of matching entirely. A disabled
	// capability must never be returned as a match.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// ExecutionBinding tells the downstream artifact-generation layer how to
// execute a matched capability. The engine never invokes it.
type ExecutionBinding struct {
	ServiceName       string        `json:"service_name" yaml:"service_name"`
	MethodName        string        `json:"method_name" yaml:"method_name"`
	RequiresApproval  bool          `json:"requires_approval" yaml:"requires_approval"`
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty" yaml:"estimated_duration,omitempty"`
}

// UnmarshalYAML parses the binding from catalog files, accepting duration
// strings like "45m" for estimated_duration.
func (b *ExecutionBinding) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ServiceName       string `yaml:"service_name"`
		MethodName        string `yaml:"method_name"`
		RequiresApproval  bool   `yaml:"requires_approval"`
		EstimatedDuration string `yaml:"estimated_duration"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	b.ServiceName = raw.ServiceName
	b.MethodName = raw.MethodName
	b.RequiresApproval = raw.RequiresApproval
	if raw.EstimatedDuration != "" {
		d, err := time.ParseDuration(raw.EstimatedDuration)
		if err != nil {
			return fmt.Errorf("invalid estimated_duration %q: %w", raw.EstimatedDuration, err)
		}
		b.EstimatedDuration = d
	}
	return nil
}

// Methodology is the structured procedure associated with executing a
// capability well. One methodology may serve multiple capabilities
// (ApplicableTo), but resolution returns at most one per capability.
type Methodology struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Category     string            `json:"category" yaml:"category"`
	ApplicableTo []string          `json:"applicable_to" yaml:"applicable_to"`
	Steps        []MethodologyStep `json:"steps" yaml:"steps"`

	QualityCriteria []string          `json:"quality_criteria,omitempty" yaml:"quality_criteria,omitempty"`
	CommonMistakes  []string          `json:"common_mistakes,omitempty" yaml:"common_mistakes,omitempty"`
	Templates       map[string]string `json:"templates,omitempty" yaml:"templates,omitempty"`
	Examples        []string          `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// MethodologyStep is a single ordered step within a methodology.
type MethodologyStep struct {
	Number      int    `json:"number" yaml:"number"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Guidance    string `json:"guidance,omitempty" yaml:"guidance,omitempty"`
}

// PlaybookMatch is a knowledge snippet judged relevant to the matched
// capability and query. Ephemeral: recomputed per query, never persisted.
type PlaybookMatch struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
	Category       string  `json:"category"`
}

// MatchResult is the engine's only output type.
//
// Invariants: Methodology and RelevantKnowledge are populated only when
// Capability is non-nil; a Confidence of 0 implies Capability is nil.
type MatchResult struct {
	Capability        *Capability     `json:"capability"`
	Confidence        float64         `json:"confidence"`
	Methodology       *Methodology    `json:"methodology"`
	RelevantKnowledge []PlaybookMatch `json:"relevant_knowledge"`
}

// Matched reports whether the result carries a usable capability. Callers
// seeing false should treat the query as unrecognized (e.g. ask a
// clarifying question) rather than as an error.
func (r *MatchResult) Matched() bool {
	return r != nil && r.Capability != nil
}
