//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "math"

// OverviewStats are the admin dashboard headline numbers.
type OverviewStats struct {
	TotalStudents  int     `json:"total_students"`
	TotalFeedbacks int     `json:"total_feedbacks"`
	TotalCourses   int     `json:"total_courses"`
	AverageRating  float64 `json:"average_rating"` // rounded to one decimal
}

// CourseRatingBucket is one bar of the per-course ratings chart.
type CourseRatingBucket struct {
	CourseCode    string  `json:"course_code"    db:"course_code"`
	CourseName    string  `json:"course_name"    db:"course_name"`
	AverageRating float64 `json:"average_rating" db:"average_rating"` // rounded to one decimal
	FeedbackCount int     `json:"feedback_count" db:"feedback_count"`
}

// StudentDetail augments a profile with that student's feedback summary.
type StudentDetail struct {
	Profile
	FeedbackCount   int                  `json:"feedback_count"`
	AverageRating   float64              `json:"average_rating"` // rounded to one decimal
	RecentFeedbacks []FeedbackWithCourse `json:"recent_feedbacks"`
}

// RoundRating rounds a raw average to one decimal, matching the dashboard's
// display precision.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// AverageOf returns the one-decimal average rating of the given feedback,
// or 0 when the slice is empty.
func AverageOf(feedbacks []Feedback) float64 {
	if len(feedbacks) == 0 {
		return 0
	}
	sum := 0
	for _, f := range feedbacks {
		sum += f.Rating
	}
	return RoundRating(float64(sum) / float64(len(feedbacks)))
}
