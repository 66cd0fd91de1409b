package mocks

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"github.com/Harvey-AU/llmoptimizer/internal/crawler"
	"github.com/Harvey-AU/llmoptimizer/internal/techdetect"
)

// MockFetcher is a mock implementation of crawler.Fetcher
type MockFetcher struct {
	mock.Mock
}

// Fetch mocks the Fetch method
func (m *MockFetcher) Fetch(ctx context.Context, url string) (*crawler.Response, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crawler.Response), args.Error(1)
}

// HTML builds a 200 text/html response for use with Return.
func HTML(url, body string) *crawler.Response {
	return &crawler.Response{
		URL:         url,
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
		Header:      http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:        []byte(body),
	}
}

// Status builds a body-less response with the given status code.
func Status(url string, code int) *crawler.Response {
	return &crawler.Response{URL: url, StatusCode: code, Header: http.Header{}}
}

// MockDetector is a mock technology detector
type MockDetector struct {
	mock.Mock
}

// Detect mocks the Detect method
func (m *MockDetector) Detect(headers http.Header, body []byte) *techdetect.Result {
	args := m.Called(headers, body)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*techdetect.Result)
}
