package matching

import "regexp"

// KeywordCategory is a vocabulary group recognised in session names.
type KeywordCategory string

const (
	KeywordRace     KeywordCategory = "race"
	KeywordInterval KeywordCategory = "interval"
	KeywordTempo    KeywordCategory = "tempo"
	KeywordLongRun  KeywordCategory = "long_run"
	KeywordEasy     KeywordCategory = "easy"
)

type keywordRule struct {
	category KeywordCategory
	pattern  *regexp.Regexp
	bonus    float64
}

// keywordRules is ordered by priority; the first hit wins both the type
// decision and the confidence bonus. English and German vocabulary.
var keywordRules = []keywordRule{
	{KeywordRace, regexp.MustCompile(`(?i)\b(race|racing|wettkampf|rennen|competition|parkrun|(halb)?marathon|half[- ]?marathon|volkslauf|stadtlauf)\b`), 0.20},
	{KeywordInterval, regexp.MustCompile(`(?i)\b(intervals?|intervall(e|training)?|repeats?|reps|fartlek|track|bahn(training)?|pyramid[e]?|\d+\s*[x×]\s*\d+\s*(m|km|s|min)?)\b`), 0.20},
	{KeywordTempo, regexp.MustCompile(`(?i)\b(tempo(lauf|dauerlauf)?|threshold|schwelle(nlauf)?|lactate|laktat|cruise|progression|steigerungslauf)\b`), 0.20},
	{KeywordLongRun, regexp.MustCompile(`(?i)\b(long\s*run|longrun|long|lsd|lange[rs]?(\s+lauf)?|langer\s+dauerlauf|ausdauerlauf)\b`), 0.15},
	{KeywordEasy, regexp.MustCompile(`(?i)\b(easy|recovery|recover|jog(ging)?|shakeout|regeneration|regenerativ|regenerationslauf|locker(er)?|lockere[rs]?|dauerlauf|ruhig)\b`), 0.10},
}

// matchKeywords returns every category found in name, in priority order.
func matchKeywords(name string) []KeywordCategory {
	if name == "" {
		return nil
	}
	var out []KeywordCategory
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(name) {
			out = append(out, rule.category)
		}
	}
	return out
}

func keywordBonus(category KeywordCategory) float64 {
	for _, rule := range keywordRules {
		if rule.category == category {
			return rule.bonus
		}
	}
	return 0
}
