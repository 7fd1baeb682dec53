package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard-api/internal/model"
	"github.com/BuzzLyutic/taskboard-api/internal/repo"
)

// MockTaskStore - мок хранилища задач для материализатора
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) Create(ctx context.Context, t model.Task) (model.Task, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskStore) Get(ctx context.Context, id int64) (model.Task, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskStore) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	args := m.Called(ctx, filter, limit)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskStore) Claim(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error) {
	args := m.Called(ctx, id, expectedVersion, claimant)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskStore) Release(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error) {
	args := m.Called(ctx, id, expectedVersion, claimant)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskStore) Complete(ctx context.Context, id int64, expectedVersion int, claimant int64) (model.Task, error) {
	args := m.Called(ctx, id, expectedVersion, claimant)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskStore) UpdateClaimed(ctx context.Context, id int64, expectedVersion int, claimant int64, patch model.TaskPatch) (model.Task, error) {
	args := m.Called(ctx, id, expectedVersion, claimant, patch)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskStore) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	args := m.Called(ctx, key, resourceID)
	return args.Error(0)
}

func (m *MockTaskStore) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTaskStore) GetStats(ctx context.Context) (repo.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(repo.Stats), args.Error(1)
}

func TestMaterializer_OrderedCreation(t *testing.T) {
	store := new(MockTaskStore)
	catalog := new(MockCatalog)
	mat := NewMaterializer(store, catalog, zap.NewNop())

	cardID := int64(77)
	rule := model.Rule{ID: 5, ProjectID: 1}
	trigger := model.Task{ID: 10, OrgID: 2, ProjectID: 1, CardID: &cardID, Status: model.StatusCompleted}

	catalog.On("TemplatesForRule", mock.Anything, int64(5)).Return([]model.RuleTemplate{
		{RuleID: 5, TemplateID: 1, ExecutionOrder: 1, Title: "A", Priority: 3},
		{RuleID: 5, TemplateID: 2, ExecutionOrder: 2, Title: "B", Priority: 4},
		{RuleID: 5, TemplateID: 3, ExecutionOrder: 3, Title: "C", Priority: 5},
	}, nil)

	var createdTitles []string
	store.On("Create", mock.Anything, mock.MatchedBy(func(nt model.Task) bool {
		return nt.CreatedFromRuleID != nil && *nt.CreatedFromRuleID == 5 &&
			nt.OrgID == 2 && nt.ProjectID == 1 &&
			nt.CardID != nil && *nt.CardID == 77
	})).Run(func(args mock.Arguments) {
		createdTitles = append(createdTitles, args.Get(1).(model.Task).Title)
	}).Return(model.Task{ID: 100, Status: model.StatusAvailable}, nil)

	result, err := mat.Materialize(context.Background(), rule, trigger)

	require.NoError(t, err)
	assert.Len(t, result.CreatedIDs, 3)
	assert.Empty(t, result.FailedTemplateIDs)
	// Порядок создания строго по execution_order
	assert.Equal(t, []string{"A", "B", "C"}, createdTitles)
}

func TestMaterializer_PartialFailureKeepsEarlierTasks(t *testing.T) {
	store := new(MockTaskStore)
	catalog := new(MockCatalog)
	mat := NewMaterializer(store, catalog, zap.NewNop())

	rule := model.Rule{ID: 5, ProjectID: 1}
	trigger := model.Task{ID: 10, ProjectID: 1, Status: model.StatusCompleted}

	catalog.On("TemplatesForRule", mock.Anything, int64(5)).Return([]model.RuleTemplate{
		{RuleID: 5, TemplateID: 1, ExecutionOrder: 1, Title: "ok-1", Priority: 5},
		{RuleID: 5, TemplateID: 2, ExecutionOrder: 2, Title: "broken", Priority: 5},
		{RuleID: 5, TemplateID: 3, ExecutionOrder: 3, Title: "ok-2", Priority: 5},
	}, nil)

	store.On("Create", mock.Anything, mock.MatchedBy(func(nt model.Task) bool { return nt.Title == "ok-1" })).
		Return(model.Task{ID: 101}, nil)
	store.On("Create", mock.Anything, mock.MatchedBy(func(nt model.Task) bool { return nt.Title == "broken" })).
		Return(model.Task{}, errors.New("insert failed"))
	store.On("Create", mock.Anything, mock.MatchedBy(func(nt model.Task) bool { return nt.Title == "ok-2" })).
		Return(model.Task{ID: 103}, nil)

	result, err := mat.Materialize(context.Background(), rule, trigger)

	require.NoError(t, err)
	assert.Equal(t, []int64{101, 103}, result.CreatedIDs)
	assert.Equal(t, []int64{2}, result.FailedTemplateIDs)
}

func TestMaterializer_TemplateLookupFailure(t *testing.T) {
	store := new(MockTaskStore)
	catalog := new(MockCatalog)
	mat := NewMaterializer(store, catalog, zap.NewNop())

	catalog.On("TemplatesForRule", mock.Anything, int64(5)).
		Return([]model.RuleTemplate{}, errors.New("db down"))

	_, err := mat.Materialize(context.Background(), model.Rule{ID: 5}, model.Task{ID: 10})

	assert.Error(t, err)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestMaterializer_NoTemplates(t *testing.T) {
	store := new(MockTaskStore)
	catalog := new(MockCatalog)
	mat := NewMaterializer(store, catalog, zap.NewNop())

	catalog.On("TemplatesForRule", mock.Anything, int64(5)).Return([]model.RuleTemplate{}, nil)

	result, err := mat.Materialize(context.Background(), model.Rule{ID: 5}, model.Task{ID: 10})

	require.NoError(t, err)
	assert.Empty(t, result.CreatedIDs)
	assert.Empty(t, result.FailedTemplateIDs)
}
