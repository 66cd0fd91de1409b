package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Harvey-AU/llmoptimizer/internal/db"
	"github.com/Harvey-AU/llmoptimizer/internal/extractor"
)

// MockPageStore is a mock implementation of the generation run store
type MockPageStore struct {
	mock.Mock
}

// SaveRun mocks the SaveRun method
func (m *MockPageStore) SaveRun(ctx context.Context, run db.Run, pages []extractor.PageExtract) error {
	args := m.Called(ctx, run, pages)
	return args.Error(0)
}
