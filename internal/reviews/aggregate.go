package reviews

import "github.com/shopspring/decimal"

const ratingScale = 4

// Aggregate returns the arithmetic mean of ratings rounded to four places and the rating count.
// An empty set averages to zero.
func Aggregate(ratings []int) (float64, int) {
	if len(ratings) == 0 {
		return 0, 0
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r)))
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(ratings)))).Round(ratingScale)
	value, _ := mean.Float64()
	return value, len(ratings)
}
