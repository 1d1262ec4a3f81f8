package scoring

import "github.com/shopspring/decimal"

// ScoreCategory fills the derived fields of a category. Values stay at full
// precision; call Rounded before persisting.
func ScoreCategory(category CompetencyCategory) CompetencyCategory {
	out := category
	out.Items = make([]CompetencyItem, len(category.Items))
	var total, weights float64
	for i, item := range category.Items {
		item.WeightedScore = float64(item.Score) * item.Weight
		total += item.WeightedScore
		weights += item.Weight
		out.Items[i] = item
	}
	out.Total = total
	out.Average = 0
	if weights != 0 {
		out.Average = total / weights
	}
	out.Rating = Classify(out.Average)
	return out
}

func ScoreCategories(categories []CompetencyCategory) []CompetencyCategory {
	out := make([]CompetencyCategory, len(categories))
	for i, category := range categories {
		out[i] = ScoreCategory(category)
	}
	return out
}

// GroupAverage is the unweighted mean of the category averages; categories are
// already weighted internally.
func GroupAverage(categories []CompetencyCategory) float64 {
	if len(categories) == 0 {
		return 0
	}
	var sum float64
	for _, category := range categories {
		sum += ScoreCategory(category).Average
	}
	return sum / float64(len(categories))
}

func ScoreTargets(targets []Target) TargetSummary {
	var summary TargetSummary
	for _, target := range targets {
		summary.TotalWeight += target.WeightOfTarget
		summary.TotalScore += float64(target.Score) * target.WeightOfTarget
	}
	if summary.TotalWeight != 0 {
		summary.Average = summary.TotalScore / summary.TotalWeight
	}
	summary.FinalScore = summary.Average * PerformanceAssessmentFactor
	summary.Rating = Classify(summary.Average)
	return summary
}

// Overall combines M, N and O. The percentage is not clamped: each input is
// bounded by 5 but the sum is divided by a fixed 5, so it can pass 100. The
// rating is taken on the 5-point equivalent of the total.
func Overall(m, n, o float64) AppraisalScore {
	total := m + n + o
	return AppraisalScore{
		PerformanceAssessment:  m,
		CoreAverage:            n,
		NonCoreAverage:         o,
		OverallTotal:           total,
		OverallScorePercentage: total / OverallScale * 100,
		Rating:                 overallRating(total),
	}
}

// ScoreAppraisal runs the whole annual computation. m must come from the most
// recently persisted End-Year Review.
func ScoreAppraisal(m float64, core, nonCore []CompetencyCategory) AppraisalResult {
	scoredCore := ScoreCategories(core)
	scoredNonCore := ScoreCategories(nonCore)
	return AppraisalResult{
		Core:    scoredCore,
		NonCore: scoredNonCore,
		Score:   Overall(m, GroupAverage(core), GroupAverage(nonCore)),
	}
}

func overallRating(total float64) Rating {
	return Classify(total / OverallMaximum * MaxScore)
}

func Round2(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

func (c CompetencyCategory) Rounded() CompetencyCategory {
	out := c
	out.Items = make([]CompetencyItem, len(c.Items))
	for i, item := range c.Items {
		item.WeightedScore = Round2(item.WeightedScore)
		out.Items[i] = item
	}
	out.Total = Round2(c.Total)
	out.Average = Round2(c.Average)
	out.Rating = Classify(c.Average)
	return out
}

func (s TargetSummary) Rounded() TargetSummary {
	return TargetSummary{
		TotalWeight: Round2(s.TotalWeight),
		TotalScore:  Round2(s.TotalScore),
		Average:     Round2(s.Average),
		FinalScore:  Round2(s.FinalScore),
		Rating:      Classify(s.Average),
	}
}

func (s AppraisalScore) Rounded() AppraisalScore {
	return AppraisalScore{
		PerformanceAssessment:  Round2(s.PerformanceAssessment),
		CoreAverage:            Round2(s.CoreAverage),
		NonCoreAverage:         Round2(s.NonCoreAverage),
		OverallTotal:           Round2(s.OverallTotal),
		OverallScorePercentage: Round2(s.OverallScorePercentage),
		Rating:                 overallRating(s.OverallTotal),
	}
}

func (r AppraisalResult) Rounded() AppraisalResult {
	out := AppraisalResult{
		Core:    make([]CompetencyCategory, len(r.Core)),
		NonCore: make([]CompetencyCategory, len(r.NonCore)),
		Score:   r.Score.Rounded(),
	}
	for i, category := range r.Core {
		out.Core[i] = category.Rounded()
	}
	for i, category := range r.NonCore {
		out.NonCore[i] = category.Rounded()
	}
	return out
}
