package scoring

type Rating string

const (
	RatingExceptional  Rating = "Exceptional"
	RatingExceeded     Rating = "Exceeded Expectations"
	RatingMet          Rating = "Met all Expectations"
	RatingBelow        Rating = "Below Expectation"
	RatingUnacceptable Rating = "Unacceptable"
)

const (
	MaxScore = 5
	MinScore = 0

	// PerformanceAssessmentFactor scales the End-Year target average into M.
	PerformanceAssessmentFactor = 0.6
	// OverallScale is the divisor that turns M+N+O into a percentage.
	OverallScale = 5
	// OverallMaximum is the highest attainable M+N+O; the overall rating is
	// taken on the total's share of it, scaled to 5 points.
	OverallMaximum = PerformanceAssessmentFactor*MaxScore + 2*MaxScore
)

// CompetencyItem is one scored behaviour. Score 0 means "not rated" and is
// indistinguishable from a rated zero.
type CompetencyItem struct {
	ID            string  `json:"id" yaml:"id"`
	Description   string  `json:"description" yaml:"description"`
	Weight        float64 `json:"weight" yaml:"weight"`
	Score         int     `json:"score" yaml:"-"`
	WeightedScore float64 `json:"weightedScore" yaml:"-"`
	Comments      string  `json:"comments,omitempty" yaml:"-"`
}

type CompetencyCategory struct {
	ID      string           `json:"id" yaml:"id"`
	Name    string           `json:"name" yaml:"name"`
	Items   []CompetencyItem `json:"items" yaml:"items"`
	Total   float64          `json:"total" yaml:"-"`
	Average float64          `json:"average" yaml:"-"`
	Rating  Rating           `json:"rating,omitempty" yaml:"-"`
}

// Target is one End-Year Review row.
type Target struct {
	Target                string  `json:"target"`
	PerformanceAssessment string  `json:"performanceAssessment"`
	WeightOfTarget        float64 `json:"weightOfTarget"`
	Score                 int     `json:"score"`
	Comments              string  `json:"comments,omitempty"`
}

type TargetSummary struct {
	TotalWeight float64 `json:"totalWeight"`
	TotalScore  float64 `json:"totalScore"`
	Average     float64 `json:"average"`
	FinalScore  float64 `json:"finalScore"`
	Rating      Rating  `json:"rating,omitempty"`
}

// AppraisalScore carries M, N, O and their sum T.
type AppraisalScore struct {
	PerformanceAssessment  float64 `json:"performanceAssessment"`
	CoreAverage            float64 `json:"coreAverage"`
	NonCoreAverage         float64 `json:"nonCoreAverage"`
	OverallTotal           float64 `json:"overallTotal"`
	OverallScorePercentage float64 `json:"overallScorePercentage"`
	Rating                 Rating  `json:"rating,omitempty"`
}

type AppraisalResult struct {
	Core    []CompetencyCategory `json:"core"`
	NonCore []CompetencyCategory `json:"nonCore"`
	Score   AppraisalScore       `json:"score"`
}
