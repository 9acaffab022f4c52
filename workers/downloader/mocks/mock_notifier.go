package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mangadownloader/workers/downloader/internal/domain"
)

// MockNotifier is a mock implementation of domain.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, payload domain.NotificationPayload) (int, error) {
	args := m.Called(ctx, payload)
	return args.Int(0), args.Error(1)
}
