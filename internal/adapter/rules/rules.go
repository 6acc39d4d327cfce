package rules

import (
	"fmt"
	"strings"

	"github.com/guillermoBallester/colscope/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Rules holds operator-controlled analysis policy loaded from a YAML file:
// the table set, per-table domain priorities, keyword lists, and thresholds.
// Unset keys keep the built-in defaults.
type Rules struct {
	Tables     []string                `yaml:"tables"`
	Priorities map[string]PriorityList `yaml:"priorities"`

	ConfigurationKeywords []string `yaml:"configuration_keywords"`
	RedundancyKeywords    []string `yaml:"redundancy_keywords"`
	IdentifierKeywords    []string `yaml:"identifier_keywords"`
	ExplorePatterns       []string `yaml:"explore_patterns"`

	SemanticThreshold  *float64 `yaml:"semantic_threshold"`
	NearEmptyThreshold *float64 `yaml:"near_empty_threshold"`
	MinOccurrence      *int     `yaml:"min_occurrence"`
}

// PriorityList is a table's ordered priority substrings.
type PriorityList []string

// UnmarshalYAML supports both a sequence and a comma-separated scalar.
//
//	priorities:
//	  aws-ec2-proc: [instance_type, price]   # sequence
//	  aws-s3-proc: "storage_class, price"     # scalar
func (p *PriorityList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var out []string
		for _, s := range strings.Split(value.Value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*p = out
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return fmt.Errorf("decoding priority list: %w", err)
	}
	*p = list
	return nil
}

// Apply overlays the rules onto s. Lists and thresholds present in the rules
// replace the corresponding settings; absent ones are left alone.
func (r *Rules) Apply(s *domain.Settings) {
	if r == nil {
		return
	}
	if len(r.Priorities) > 0 {
		s.Priorities = make(map[string][]string, len(r.Priorities))
		for table, list := range r.Priorities {
			s.Priorities[table] = append([]string(nil), list...)
		}
	}
	if r.ConfigurationKeywords != nil {
		s.ConfigurationKeywords = append([]string(nil), r.ConfigurationKeywords...)
	}
	if r.RedundancyKeywords != nil {
		s.RedundancyKeywords = append([]string(nil), r.RedundancyKeywords...)
	}
	if r.IdentifierKeywords != nil {
		s.IdentifierKeywords = append([]string(nil), r.IdentifierKeywords...)
	}
	if r.ExplorePatterns != nil {
		s.ExplorePatterns = append([]string(nil), r.ExplorePatterns...)
	}
	if r.SemanticThreshold != nil {
		s.SemanticThreshold = *r.SemanticThreshold
	}
	if r.NearEmptyThreshold != nil {
		s.NearEmptyThreshold = *r.NearEmptyThreshold
	}
	if r.MinOccurrence != nil {
		s.MinOccurrence = *r.MinOccurrence
	}
}
