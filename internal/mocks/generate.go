// Package mocks provides mock implementations for testing the dispatch system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the port interfaces. The mocks are generated using go:generate directives.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	directory := mocks.NewMockTranslatorDirectory(ctrl)
//	directory.EXPECT().CandidatesForJob(gomock.Any(), gomock.Any()).Return(ids, nil)
package mocks

// Generate mock for TranslatorDirectory interface from internal/core package.
// This creates MockTranslatorDirectory with CandidatesForJob.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=translator_directory_mock.go github.com/tolkdirekt/dispatchd/internal/core TranslatorDirectory
