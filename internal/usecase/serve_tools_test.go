package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/silbaram/elasticsearch-mcp-server/internal/domain"
	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

// MockToolRegistry is a mock implementation of the ToolRegistry interface.
type MockToolRegistry struct {
	mock.Mock
}

func (m *MockToolRegistry) Register(ctx context.Context, tools []domain.ToolDescriptor) error {
	args := m.Called(ctx, tools)
	return args.Error(0)
}

func (m *MockToolRegistry) List(ctx context.Context) ([]domain.ToolDescriptor, error) {
	args := m.Called(ctx)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.([]domain.ToolDescriptor), args.Error(1)
}

func (m *MockToolRegistry) FindToolByName(ctx context.Context, name string) (*domain.ToolDescriptor, error) {
	args := m.Called(ctx, name)
	result := args.Get(0)
	if result == nil {
		return nil, args.Error(1)
	}
	return result.(*domain.ToolDescriptor), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestServeToolsUseCase_Execute(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	logger := testLogger()

	expectedTools := []domain.ToolDescriptor{
		{Name: "tool-a", Description: "Tool A", Operation: domain.OpSearch},
		{Name: "tool-b", Description: "Tool B", Operation: domain.OpClusterHealth},
	}
	repoError := errors.New("registry error")

	tests := []struct {
		name          string
		mockSetup     func(*MockToolRegistry)
		wantErr       bool
		wantTools     []domain.ToolDescriptor
		expectErrText string
	}{
		{
			name: "Success - tools found",
			mockSetup: func(repo *MockToolRegistry) {
				repo.On("List", ctx).Return(expectedTools, nil).Once()
			},
			wantTools: expectedTools,
		},
		{
			name: "Success - no tools found",
			mockSetup: func(repo *MockToolRegistry) {
				repo.On("List", ctx).Return([]domain.ToolDescriptor{}, nil).Once()
			},
			wantTools: []domain.ToolDescriptor{},
		},
		{
			name: "Failure - registry error",
			mockSetup: func(repo *MockToolRegistry) {
				repo.On("List", ctx).Return(nil, repoError).Once()
			},
			wantErr:       true,
			expectErrText: "failed to list tools from registry: registry error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockToolRegistry)
			tt.mockSetup(mockRepo)

			uc := usecase.NewServeToolsUseCase(mockRepo, logger)
			actualTools, err := uc.Execute(ctx)

			if tt.wantErr {
				assert.Error(err)
				if tt.expectErrText != "" {
					assert.EqualError(err, tt.expectErrText)
				}
				assert.Nil(actualTools)
			} else {
				assert.NoError(err)
				assert.Equal(tt.wantTools, actualTools)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestRegisterToolsUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	catalog := usecase.Catalog()
	dup := append(append([]domain.ToolDescriptor{}, catalog...), catalog[0])
	noSchema := []domain.ToolDescriptor{{Name: "x", Operation: domain.OpSearch}}

	tests := []struct {
		name         string
		tools        []domain.ToolDescriptor
		mockSetup    func(*MockToolRegistry)
		wantErrIs    error
		wantErrText  string
		wantRegister bool
	}{
		{
			name:  "Success - catalog registered",
			tools: catalog,
			mockSetup: func(repo *MockToolRegistry) {
				repo.On("Register", ctx, catalog).Return(nil).Once()
			},
			wantRegister: true,
		},
		{
			name:      "Failure - duplicate name",
			tools:     dup,
			mockSetup: func(*MockToolRegistry) {},
			wantErrIs: usecase.ErrDuplicateTool,
		},
		{
			name:        "Failure - missing schema",
			tools:       noSchema,
			mockSetup:   func(*MockToolRegistry) {},
			wantErrText: "tool x has no input schema",
		},
		{
			name:  "Failure - registry frozen",
			tools: catalog,
			mockSetup: func(repo *MockToolRegistry) {
				repo.On("Register", ctx, catalog).Return(usecase.ErrRegistryFrozen).Once()
			},
			wantErrIs:    usecase.ErrRegistryFrozen,
			wantRegister: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			repo := new(MockToolRegistry)
			tt.mockSetup(repo)

			err := usecase.NewRegisterToolsUseCase(repo, logger).Execute(ctx, tt.tools)
			switch {
			case tt.wantErrIs != nil:
				assert.ErrorIs(err, tt.wantErrIs)
			case tt.wantErrText != "":
				assert.EqualError(err, tt.wantErrText)
			default:
				assert.NoError(err)
			}
			if !tt.wantRegister {
				repo.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
			}
			repo.AssertExpectations(t)
		})
	}
}
