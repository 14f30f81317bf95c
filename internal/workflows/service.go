package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
)

const DefaultTaskQueue = "keyword-research"

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Service{client: client, taskQueue: taskQueue}
}

func (s *Service) StartResearch(ctx context.Context, runID string, cfg research.PipelineConfig) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(runID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, ResearchWorkflow, ResearchInput{RunID: runID, Config: cfg})
	return err
}

func (s *Service) CancelResearch(ctx context.Context, runID string) error {
	return s.client.CancelWorkflow(ctx, workflowID(runID), "")
}

func workflowID(runID string) string {
	return fmt.Sprintf("research:%s", runID)
}
