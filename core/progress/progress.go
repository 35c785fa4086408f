// Package progress derives completion percentages from the current collections.
// Only SUBMITTED records count; results are recomputed on every call.
package progress

import (
	"math"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
)

// Percentage returns round(100*done/total), 0 when total is 0.
func Percentage(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

// submittedPairs indexes the SUBMITTED records by assignment then student.
func submittedPairs(subs []submission.Submission) map[string]map[string]bool {
	idx := make(map[string]map[string]bool)
	for _, s := range subs {
		if !s.IsSubmitted() {
			continue
		}
		if idx[s.AssignmentID] == nil {
			idx[s.AssignmentID] = make(map[string]bool)
		}
		idx[s.AssignmentID][s.StudentID] = true
	}
	return idx
}

// Summary is "Submitted of Total assignments completed".
type Summary struct {
	Submitted  int `json:"submitted"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// SummarizeStudent counts the assignments assigned to the student and the ones it submitted.
func SummarizeStudent(studentID string, assignments []assignment.Assignment, subs []submission.Submission) Summary {
	idx := submittedPairs(subs)
	var sum Summary
	for _, a := range assignments {
		if !a.IsAssignedTo(studentID) {
			continue
		}
		sum.Total++
		if idx[a.ID][studentID] {
			sum.Submitted++
		}
	}
	sum.Percentage = Percentage(sum.Submitted, sum.Total)
	return sum
}

func ForStudent(studentID string, assignments []assignment.Assignment, subs []submission.Submission) int {
	return SummarizeStudent(studentID, assignments, subs).Percentage
}

// ForAssignment is the share of the assignment's roster that submitted it.
func ForAssignment(a assignment.Assignment, subs []submission.Submission) int {
	done := submittedPairs(subs)[a.ID]
	var count int
	for _, studentID := range a.AssignedTo {
		if done[studentID] {
			count++
		}
	}
	return Percentage(count, len(a.AssignedTo))
}
