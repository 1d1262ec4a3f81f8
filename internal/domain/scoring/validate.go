package scoring

import (
	"fmt"

	"staffappraisal/internal/domain/apperr"
)

func validScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// ValidateCategories checks competency input before it is persisted. A category
// with no items is fine (its average is 0); one with items but no weight is not.
func ValidateCategories(field string, categories []CompetencyCategory, issues *apperr.Collector) {
	for i, category := range categories {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		var weights float64
		for j, item := range category.Items {
			itemField := fmt.Sprintf("%s.items[%d]", prefix, j)
			if !validScore(item.Score) {
				issues.Addf(itemField+".score", "must be between %d and %d", MinScore, MaxScore)
			}
			if item.Weight < 0 || item.Weight > 1 {
				issues.Add(itemField+".weight", "must be between 0 and 1")
			}
			weights += item.Weight
		}
		if len(category.Items) > 0 && weights == 0 {
			issues.Add(prefix+".items", "category weights must not sum to zero")
		}
	}
}

func ValidateTargets(field string, targets []Target, issues *apperr.Collector) {
	var weights float64
	for i, target := range targets {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if target.WeightOfTarget < 0 {
			issues.Add(prefix+".weightOfTarget", "must not be negative")
		}
		if !validScore(target.Score) {
			issues.Addf(prefix+".score", "must be between %d and %d", MinScore, MaxScore)
		}
		weights += target.WeightOfTarget
	}
	if len(targets) > 0 && weights == 0 {
		issues.Add(field, "target weights must not sum to zero")
	}
}
