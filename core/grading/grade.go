package grading

import (
	"math"
	"strconv"
)

// ComputeGrade returns the grade of a student who has the appliedIDs snippets applied.
// Ids missing from catalog deduct nothing. The grade never goes below 0,
// and is empty when nothing has been applied yet ("not graded" is not "full marks").
func ComputeGrade(maxPoints float64, appliedIDs []int, catalog map[int]FeedbackItem) string {
	if len(appliedIDs) == 0 {
		return ""
	}
	var deduction float64
	for _, id := range appliedIDs {
		if item, ok := catalog[id]; ok {
			deduction += item.Grade
		}
	}
	return FormatPoints(math.Max(0, maxPoints-deduction))
}

// FormatPoints formats points with at most 2 decimals and no trailing zeros.
func FormatPoints(points float64) string {
	rounded := math.Round(points*100) / 100
	if rounded == 0 {
		rounded = 0 // no "-0"
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
