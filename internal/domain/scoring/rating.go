package scoring

type band struct {
	min    float64
	rating Rating
}

// Lower bounds are inclusive, so a value sitting exactly on a boundary gets the
// higher band.
var bands = []band{
	{min: 4.5, rating: RatingExceptional},
	{min: 3.5, rating: RatingExceeded},
	{min: 2.5, rating: RatingMet},
	{min: 1.5, rating: RatingBelow},
}

// Classify maps a 5-point score to its narrative rating. The score is compared
// after 2-decimal rounding so float noise such as 3.4999999 lands in the band
// that is displayed.
func Classify(score float64) Rating {
	rounded := Round2(score)
	for _, b := range bands {
		if rounded >= b.min {
			return b.rating
		}
	}
	return RatingUnacceptable
}
