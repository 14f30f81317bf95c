package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
)

func TestNewService_DefaultTaskQueue(t *testing.T) {
	service := NewService(mocks.NewClient(t), "")
	require.Equal(t, DefaultTaskQueue, service.taskQueue)
}

func TestStartResearch_Success(t *testing.T) {
	mockClient := mocks.NewClient(t)
	workflowRun := mocks.NewWorkflowRun(t)
	runID := "run-123"
	taskQueue := "keyword-research-test"
	cfg := testConfig()

	mockClient.On(
		"ExecuteWorkflow",
		mock.Anything,
		mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
			return opts.ID == "research:run-123" && opts.TaskQueue == taskQueue
		}),
		mock.Anything,
		ResearchInput{RunID: runID, Config: cfg},
	).Return(workflowRun, nil)

	service := NewService(mockClient, taskQueue)
	require.NoError(t, service.StartResearch(context.Background(), runID, cfg))
}

func TestStartResearch_Error(t *testing.T) {
	mockClient := mocks.NewClient(t)
	runID := "run-err"
	expectedErr := errors.New("start failed")

	mockClient.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return((*mocks.WorkflowRun)(nil), expectedErr)

	service := NewService(mockClient, "keyword-research-test")
	err := service.StartResearch(context.Background(), runID, testConfig())
	require.ErrorIs(t, err, expectedErr)
}

func TestCancelResearch(t *testing.T) {
	mockClient := mocks.NewClient(t)
	expectedErr := errors.New("not found")

	mockClient.On("CancelWorkflow", mock.Anything, workflowID("run-2"), "").Return(nil)
	mockClient.On("CancelWorkflow", mock.Anything, workflowID("missing"), "").Return(expectedErr)

	service := NewService(mockClient, "")
	require.NoError(t, service.CancelResearch(context.Background(), "run-2"))
	require.ErrorIs(t, service.CancelResearch(context.Background(), "missing"), expectedErr)
}
