package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/agent"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/api"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/config"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/events"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/llm"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store/memory"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store/postgres"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newStore = func(cfg config.Config) (store.Store, error) {
		if cfg.StoreDriver == config.StorePostgres {
			return postgres.New(cfg.PostgresURL)
		}
		return memory.New(), nil
	}
	newProvider        = llm.NewProvider
	dialTemporal       = client.Dial
	newWorkflowService = func(c client.Client, taskQueue string) api.WorkflowService {
		return workflows.NewService(c, taskQueue)
	}
	newServer = func(st store.Store, broker api.Broker, workflows api.WorkflowService, pipelines api.PipelineFactory, cfg config.Config, logger *slog.Logger) server {
		return api.NewServer(st, broker, workflows, pipelines, cfg, api.WithLogger(logger))
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	if closer, ok := st.(io.Closer); ok {
		defer closer.Close()
	}

	provider, err := newProvider(cfg.LLM())
	if err != nil {
		return err
	}
	runner := agent.NewLLMRunner(provider, logger)
	pipelines := func(reporter research.Reporter) api.Researcher {
		return research.NewPipeline(runner,
			research.WithLogger(logger),
			research.WithClientOptions(cfg.ToolOptions()),
			research.WithReporter(reporter),
		)
	}

	var workflowService api.WorkflowService
	if cfg.TemporalEnabled {
		workflowClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			return err
		}
		if workflowClient != nil {
			defer workflowClient.Close()
		}
		workflowService = newWorkflowService(workflowClient, cfg.TemporalTaskQueue)
	} else {
		logger.Info("temporal disabled, runs execute in-process")
	}

	srv := newServer(st, events.NewBroker(), workflowService, pipelines, cfg, logger)

	addr := fmt.Sprintf(":%s", cfg.ControlPlanePort)
	logger.Info("keyword research control plane listening", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.Start(ctx, addr); err != nil {
		return err
	}

	return nil
}
