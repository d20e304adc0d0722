// Package mocks provides generated mocks for testing CourseLens services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the repository ports. Hand-written doubles for the auth ports live in the
// auth subpackage.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mocks for the repository ports consumed by the course, feedback,
// and analytics services.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_repo_mock.go github.com/courselens/courselens-api/internal/ports CourseRepository,FeedbackRepository,StatsRepository
