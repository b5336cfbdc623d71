package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/debabrata-png/aipaathsala1-sub000/internal/directory"
	"github.com/debabrata-png/aipaathsala1-sub000/pkg/models"
)

// MockClient satisfies directory.Client for testing.
type MockClient struct {
	GetClassFunc func(ctx context.Context, classID string) (*models.Class, error)
}

func (m *MockClient) GetClass(ctx context.Context, classID string) (*models.Class, error) {
	if m.GetClassFunc != nil {
		return m.GetClassFunc(ctx, classID)
	}
	return nil, directory.ErrClassNotFound
}

// NewMockClient returns a MockClient that answers every lookup with a class in
// the given tenant.
func NewMockClient(tenantID uuid.UUID) *MockClient {
	return &MockClient{
		GetClassFunc: func(_ context.Context, classID string) (*models.Class, error) {
			return &models.Class{
				ID:         classID,
				TenantID:   tenantID,
				CourseCode: "CS101",
				Topic:      "Introduction to Operating Systems",
			}, nil
		},
	}
}

// Compile-time check that MockClient implements Client.
var _ directory.Client = (*MockClient)(nil)
