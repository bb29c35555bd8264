package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource/mssql"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/retry"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/schema"
	"github.com/ekaya-inc/ekaya-sqlchat/pkg/services"
)

// openBusinessStore connects to the configured SQL Server database through
// the adapter registry. The first connection is retried while the server is
// unreachable.
func openBusinessStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datasource.BusinessStore, error) {
	factory := datasource.NewStoreFactory(logger)
	adapterConfig := cfg.Datasource.AdapterConfig()

	store, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (datasource.BusinessStore, error) {
		return factory.Open(ctx, mssql.Type, adapterConfig)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQL Server: %w", err)
	}
	return store, nil
}

// answerStack is the question-answering core shared by serve and ask.
type answerStack struct {
	projector *schema.Projector
	registry  *llm.Registry
	scope     services.TableScope
	pipeline  *services.Pipeline
}

func newAnswerStack(cfg *config.Config, store datasource.BusinessStore, logger *zap.Logger) (*answerStack, error) {
	registry, err := llm.NewRegistry(cfg.LLM.RegistryConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model registry: %w", err)
	}

	projector := schema.NewProjector(store, logger)
	synthesizer := services.NewSynthesizer(services.SynthesizerConfig{
		SchemaFormat:      cfg.Query.Format(),
		LocalSchemaBudget: cfg.Query.LocalSchemaBudget,
		RequestTimeout:    cfg.LLM.RequestTimeout,
	}, logger)
	analysis := services.NewAnalysisService(cfg.LLM.AnalysisTimeout, logger)
	scope := services.NewTableScope()

	pipeline := services.NewPipeline(
		projector,
		store,
		registry,
		synthesizer,
		analysis,
		scope,
		services.PipelineConfig{DefaultRowLimit: cfg.Query.DefaultRowLimit},
		logger,
	)

	return &answerStack{
		projector: projector,
		registry:  registry,
		scope:     scope,
		pipeline:  pipeline,
	}, nil
}
