package domain

// ImportanceResult classifies a table's columns by domain relevance. It is a
// membership list, not a ranked score.
type ImportanceResult struct {
	MostCritical          []string `json:"most_critical"`
	ConfigurationSpecific []string `json:"configuration_specific"`
}

// ScoreImportance places every column whose lower-cased name contains one of
// the table's priority substrings into MostCritical (walking priorities in
// order), then places every remaining column containing a configuration
// keyword into ConfigurationSpecific. Names keep their original casing and
// appear at most once per list.
func ScoreImportance(columns []string, priorities, configKeywords []string) ImportanceResult {
	result := ImportanceResult{MostCritical: []string{}, ConfigurationSpecific: []string{}}
	critical := make(map[string]bool)

	for _, p := range lowerAll(priorities) {
		if p == "" {
			continue
		}
		for _, col := range columns {
			if critical[col] {
				continue
			}
			if containsAny(canonicalName(col), []string{p}) {
				critical[col] = true
				result.MostCritical = append(result.MostCritical, col)
			}
		}
	}

	keywords := lowerAll(configKeywords)
	seen := make(map[string]bool)
	for _, col := range columns {
		if critical[col] || seen[col] {
			continue
		}
		if containsAny(canonicalName(col), keywords) {
			seen[col] = true
			result.ConfigurationSpecific = append(result.ConfigurationSpecific, col)
		}
	}

	return result
}
