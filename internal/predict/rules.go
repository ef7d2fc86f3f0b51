package predict

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/campusguard/argus/internal/domain"
)

// Facts are the derived attributes inference rules are evaluated against.
type Facts struct {
	Email      string
	Department string

	ActivityCount int
	LabBookings   int

	// PeakHours holds up to three busiest hours, busiest first.
	PeakHours []int

	// PrimaryLocations holds up to two most visited locations.
	PrimaryLocations []domain.CountedLabel
}

func (f *Facts) activation() map[string]any {
	return map[string]any{
		"email":          strings.ToLower(f.Email),
		"department":     f.Department,
		"activity_count": int64(f.ActivityCount),
		"lab_bookings":   int64(f.LabBookings),
		"peak_hours":     int64(len(f.PeakHours)),
		"location_count": int64(len(f.PrimaryLocations)),
	}
}

// InferenceRule suggests one attribute when its CEL gate holds.
type InferenceRule struct {
	ID         string
	Field      string
	Expression string
	Confidence float64
	Method     string
	Value      func(f *Facts) any
	Evidence   func(f *Facts) string
}

// BuiltinRules returns the default inference rules.
func BuiltinRules() []*InferenceRule {
	return []*InferenceRule{
		{
			ID:         "department-eng",
			Field:      "department",
			Expression: `department == "" && email.contains("eng")`,
			Confidence: 0.7,
			Method:     "email_pattern_matching",
			Value:      func(*Facts) any { return "Engineering" },
			Evidence:   func(f *Facts) string { return "Email domain contains 'eng': " + f.Email },
		},
		{
			ID:         "department-sci",
			Field:      "department",
			Expression: `department == "" && !email.contains("eng") && email.contains("sci")`,
			Confidence: 0.7,
			Method:     "email_pattern_matching",
			Value:      func(*Facts) any { return "Science" },
			Evidence:   func(f *Facts) string { return "Email domain contains 'sci': " + f.Email },
		},
		{
			ID:         "typical-active-hours",
			Field:      "typical_active_hours",
			Expression: `activity_count > 0 && peak_hours > 0`,
			Confidence: 0.85,
			Method:     "activity_pattern_analysis",
			Value: func(f *Facts) any {
				out := make([]string, 0, len(f.PeakHours))
				for _, h := range f.PeakHours {
					out = append(out, fmt.Sprintf("%02d:00-%02d:00", h, (h+1)%24))
				}
				return out
			},
			Evidence: func(f *Facts) string {
				return fmt.Sprintf("Peak activity hours based on %d data points", f.ActivityCount)
			},
		},
		{
			ID:         "primary-locations",
			Field:      "primary_locations",
			Expression: `location_count > 0`,
			Confidence: 0.9,
			Method:     "location_frequency_analysis",
			Value: func(f *Facts) any {
				out := make([]string, 0, len(f.PrimaryLocations))
				for _, l := range f.PrimaryLocations {
					out = append(out, l.Label)
				}
				return out
			},
			Evidence: func(f *Facts) string {
				visits := 0
				for _, l := range f.PrimaryLocations {
					visits += l.Count
				}
				return fmt.Sprintf("Based on %d visits", visits)
			},
		},
		{
			ID:         "lab-heavy-role",
			Field:      "likely_role_activity",
			Expression: `activity_count > 0 && double(lab_bookings) > double(activity_count) * 0.3`,
			Confidence: 0.75,
			Method:     "activity_type_analysis",
			Value:      func(*Facts) any { return "Research/Lab-based" },
			Evidence: func(f *Facts) string {
				return fmt.Sprintf("%d lab bookings out of %d activities", f.LabBookings, f.ActivityCount)
			},
		},
	}
}

type compiledRule struct {
	rule    *InferenceRule
	program cel.Program
}

// RuleEngine evaluates CEL-gated inference rules in load order.
type RuleEngine struct {
	env   *cel.Env
	rules []compiledRule
}

// NewRuleEngine compiles the given rules.
func NewRuleEngine(rules []*InferenceRule) (*RuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("email", cel.StringType),
		cel.Variable("department", cel.StringType),
		cel.Variable("activity_count", cel.IntType),
		cel.Variable("lab_bookings", cel.IntType),
		cel.Variable("peak_hours", cel.IntType),
		cel.Variable("location_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &RuleEngine{env: env}
	for _, r := range rules {
		if err := e.load(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *RuleEngine) load(r *InferenceRule) error {
	if r.Value == nil || r.Evidence == nil {
		return fmt.Errorf("rule %s: value and evidence are required", r.ID)
	}

	ast, issues := e.env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("failed to compile rule %s: %w", r.ID, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("rule %s: expression must return bool, got %s", r.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("failed to create program for rule %s: %w", r.ID, err)
	}

	e.rules = append(e.rules, compiledRule{rule: r, program: program})
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *RuleEngine) RulesCount() int {
	return len(e.rules)
}

// Evaluate returns an inference for every rule whose gate holds.
// At most one inference is produced per field; earlier rules win.
func (e *RuleEngine) Evaluate(f *Facts) ([]domain.Inference, error) {
	activation := f.activation()
	inferred := make(map[string]bool)
	out := []domain.Inference{}

	for _, c := range e.rules {
		if inferred[c.rule.Field] {
			continue
		}
		val, _, err := c.program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("rule %s: evaluation error: %w", c.rule.ID, err)
		}
		if b, ok := val.(types.Bool); !ok || !bool(b) {
			continue
		}
		inferred[c.rule.Field] = true
		out = append(out, domain.Inference{
			Field:      c.rule.Field,
			Value:      c.rule.Value(f),
			Confidence: c.rule.Confidence,
			Method:     c.rule.Method,
			Evidence:   c.rule.Evidence(f),
		})
	}
	return out, nil
}
