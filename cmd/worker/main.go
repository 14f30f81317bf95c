package main

import (
	"io"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/agent"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/config"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/llm"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store/postgres"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	dialTemporal = client.Dial
	// newStore opens the shared Postgres store used when the control plane
	// cannot be reached. The memory driver has no shared state, so the
	// worker runs without a fallback store.
	newStore = func(cfg config.Config) (store.Store, error) {
		if cfg.StoreDriver != config.StorePostgres {
			return nil, nil
		}
		return postgres.New(cfg.PostgresURL)
	}
	newProvider   = llm.NewProvider
	newActivities = func(st store.Store, pipeline *research.Pipeline, controlPlaneURL string, opts ...workflows.ResearchActivitiesOption) *workflows.ResearchActivities {
		return workflows.NewResearchActivities(st, pipeline, controlPlaneURL, opts...)
	}
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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

	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	st, err := newStore(cfg)
	if err != nil {
		return err
	}
	if closer, ok := st.(io.Closer); ok {
		defer closer.Close()
	}

	provider, err := newProvider(cfg.LLM())
	if err != nil {
		return err
	}
	pipeline := research.NewPipeline(agent.NewLLMRunner(provider, logger),
		research.WithLogger(logger),
		research.WithClientOptions(cfg.ToolOptions()),
	)
	activities := newActivities(st, pipeline, cfg.ControlPlaneURL,
		workflows.WithActivityLogger(logger),
		workflows.WithRequestTimeout(cfg.ControlPlaneTimeout),
	)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ResearchWorkflow)
	w.RegisterActivity(activities)

	logger.Info("keyword research worker started", "task_queue", cfg.TemporalTaskQueue)
	if err := w.Run(workerInterrupt()); err != nil {
		return err
	}

	return nil
}
