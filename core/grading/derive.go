package grading

import (
	"math"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
)

// mean2 returns the mean of values rounded to 2 decimals, or 0 when empty.
func mean2(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return math.Round(sum/float64(len(values))*100) / 100
}

// Grade converts an assigned grade to a 0-100 percentage.
// It is null unless the grade is present and the assignment has positive max points.
// Extra credit and negative grades are clamped into range.
func Grade(assignment classroom.Assignment, sub classroom.Submission) null.Int {
	if !sub.AssignedGrade.Valid || !assignment.Gradable() {
		return null.Int{}
	}
	v := sub.AssignedGrade.Float64 / assignment.MaxPoints.Float64 * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Int{}
	}
	g := core.Round(v)
	if g < minGrade {
		g = minGrade
	}
	if g > maxGrade {
		g = maxGrade
	}
	return null.IntFrom(g)
}

// PickSubmission chooses one submission among duplicates for the same student:
// the latest UpdateTime wins, a timestamped submission beats one without,
// and ties go to the later element.
func PickSubmission(subs []classroom.Submission) (classroom.Submission, bool) {
	if len(subs) == 0 {
		return classroom.Submission{}, false
	}
	best := subs[0]
	for _, s := range subs[1:] {
		switch {
		case !s.UpdateTime.Valid && best.UpdateTime.Valid:
			continue
		case s.UpdateTime.Valid && best.UpdateTime.Valid && s.UpdateTime.Time.Before(best.UpdateTime.Time):
			continue
		}
		best = s
	}
	return best, true
}

// DeriveStudents returns one StudentView per roster student, in roster order,
// whether or not the student has a submission.
func DeriveStudents(assignment classroom.Assignment, subs []classroom.Submission, roster []classroom.Student) []StudentView {
	byStudent := make(map[string][]classroom.Submission, len(subs))
	for _, s := range subs {
		byStudent[s.UserID] = append(byStudent[s.UserID], s)
	}

	views := make([]StudentView, 0, len(roster))
	for _, st := range roster {
		view := StudentView{
			ID:       st.ID,
			Name:     st.Name,
			Email:    st.Email,
			PhotoURL: st.PhotoURL,
		}
		if sub, ok := PickSubmission(byStudent[st.ID]); ok {
			view.Submitted = sub.State.Submitted()
			view.Grade = Grade(assignment, sub)
			view.SubmittedAt = sub.UpdateTime
		}
		views = append(views, view)
	}
	return views
}

// Classify places a view in exactly one bucket.
func Classify(v StudentView) Bucket {
	switch {
	case v.Submitted && v.Grade.Valid:
		return BucketGraded
	case v.Submitted:
		return BucketSubmitted
	case !v.Grade.Valid:
		return BucketNotSubmitted
	default:
		return BucketAnomalous
	}
}
