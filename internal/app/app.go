package app

import (
	"context"
	"fmt"
	"time"

	oai "github.com/sashabaranov/go-openai"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/secondbreakfast/conductor/internal/catalog"
	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/db"
	"github.com/secondbreakfast/conductor/internal/db/drivers"
	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/filestorage"
	"github.com/secondbreakfast/conductor/internal/media"
	"github.com/secondbreakfast/conductor/internal/mq"
	"github.com/secondbreakfast/conductor/internal/providers"
	"github.com/secondbreakfast/conductor/internal/providers/bfl"
	"github.com/secondbreakfast/conductor/internal/providers/googleai"
	"github.com/secondbreakfast/conductor/internal/providers/luma"
	openaiprovider "github.com/secondbreakfast/conductor/internal/providers/openai"
	"github.com/secondbreakfast/conductor/internal/providers/replicate"
	"github.com/secondbreakfast/conductor/internal/providers/runway"
	"github.com/secondbreakfast/conductor/internal/runner"
	"github.com/secondbreakfast/conductor/internal/safety"
	"github.com/secondbreakfast/conductor/internal/types"
	"github.com/secondbreakfast/conductor/internal/webhook"
	"github.com/secondbreakfast/conductor/pkg/logger"
)

type App struct {
	mq         mq.MQ
	db         *bun.DB
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc
	uploader   *media.Uploader

	Logger *zap.Logger

	APIKeyRepository     repository.IAPIKeyRepository
	FlowRepository       repository.IFlowRepository
	PromptRepository     repository.IPromptRepository
	RunRepository        repository.IRunRepository
	PromptRunRepository  repository.IPromptRunRepository
	MediaRepository      repository.IMediaRepository
	RunWebhookRepository repository.IRunWebhookRepository

	Registry  *providers.Registry
	Runner    *runner.Runner
	Processor *runner.Processor
	Notifier  *webhook.Notifier
	Catalog   *catalog.Catalog
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithDB(driver drivers.Driver) OptionFunc {
	return func(app *App) error {
		app.db = driver.GetDB()
		app.initRepositories()
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

func WithMQ() OptionFunc {
	return func(app *App) error {
		mq, err := mq.NewMQ(app.config)
		if err != nil {
			return err
		}
		app.mq = mq
		return nil
	}
}

func WithDBInitialization() OptionFunc {
	return func(app *App) error {
		dbConn, err := db.NewConnection(app.ctx, app.config)
		if err != nil {
			return err
		}
		app.db = dbConn.GetDB()

		// Ensure tables exist
		err = app.db.RunInTx(app.ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			tables := []interface{}{
				(*models.Flow)(nil),
				(*models.Prompt)(nil),
				(*models.Run)(nil),
				(*models.PromptRun)(nil),
				(*models.Media)(nil),
				(*models.RunWebhook)(nil),
				(*models.APIKey)(nil),
			}

			for _, table := range tables {
				if _, err := tx.NewCreateTable().
					Model(table).
					IfNotExists().
					Exec(ctx); err != nil {
					return fmt.Errorf("failed to create table: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		app.initRepositories()
		return nil
	}
}

func (app *App) initRepositories() {
	app.APIKeyRepository = repository.NewAPIKeyRepository(app.db)
	app.FlowRepository = repository.NewFlowRepository(app.db)
	app.PromptRepository = repository.NewPromptRepository(app.db)
	app.RunRepository = repository.NewRunRepository(app.db)
	app.PromptRunRepository = repository.NewPromptRunRepository(app.db)
	app.MediaRepository = repository.NewMediaRepository(app.db)
	app.RunWebhookRepository = repository.NewRunWebhookRepository(app.db)
}

func WithMediaUploader() OptionFunc {
	return func(app *App) error {
		if app.MediaRepository == nil {
			return fmt.Errorf("database must be initialized before the media uploader")
		}

		storage, err := filestorage.NewFileStorage(app.config)
		if err != nil {
			return err
		}
		app.uploader = media.NewUploader(storage, app.MediaRepository)
		return nil
	}
}

// WithProviders builds the adapter registry from the configured
// credentials. A provider with no key is simply absent; resolving it
// later fails the step with an unsupported-combination error.
func WithProviders() OptionFunc {
	return func(app *App) error {
		registry := providers.NewRegistry()
		app.Registry = registry

		p := app.config.Providers
		if p == nil {
			app.Logger.Warn("No providers configured; every run step will fail to resolve")
			return nil
		}

		poll := providers.DefaultPollConfig()
		if r := app.config.Runner; r != nil {
			if r.PollIntervalSec > 0 {
				poll.Interval = time.Duration(r.PollIntervalSec) * time.Second
			}
			if r.PollMaxAttempts > 0 {
				poll.MaxAttempts = r.PollMaxAttempts
			}
		}

		if p.OpenAI != nil && p.OpenAI.APIKey != "" {
			registry.Register(types.EndpointChat, types.ProviderOpenAI, openaiprovider.NewChatAdapter(p.OpenAI.APIKey))
			registry.Register(types.EndpointAudioToText, types.ProviderOpenAI, openaiprovider.NewTranscriptionAdapter(p.OpenAI.APIKey))
			registry.Register(types.EndpointTextToAudio, types.ProviderOpenAI, openaiprovider.NewSpeechAdapter(p.OpenAI.APIKey))
		}
		if p.BFL != nil && p.BFL.APIKey != "" {
			registry.Register(types.EndpointImageToImage, types.ProviderBFL, bfl.NewAdapter(p.BFL.APIKey).WithPollConfig(poll))
		}
		if p.Replicate != nil && p.Replicate.APIKey != "" {
			registry.Register(types.EndpointImageToImage, types.ProviderReplicate, replicate.NewAdapter(p.Replicate.APIKey).WithPollConfig(poll))
		}
		if p.Luma != nil && p.Luma.APIKey != "" {
			registry.Register(types.EndpointImageToVideo, types.ProviderLuma, luma.NewVideoAdapter(p.Luma.APIKey).WithPollConfig(poll))
			registry.Register(types.EndpointImagesToVideos, types.ProviderLuma, luma.NewBatchAdapter(p.Luma.APIKey).WithPollConfig(poll))
		}
		if p.Runway != nil && p.Runway.APIKey != "" {
			registry.Register(types.EndpointImageToVideo, types.ProviderRunway, runway.NewVideoAdapter(p.Runway.APIKey).WithPollConfig(poll))
			registry.Register(types.EndpointVideoToVideo, types.ProviderRunway, runway.NewRestyleAdapter(p.Runway.APIKey).WithPollConfig(poll))
		}
		if p.Google != nil && p.Google.ProjectID != "" {
			veo, err := googleai.NewVeoAdapter(p.Google.ProjectID, p.Google.Location, p.Google.CredentialsFile)
			if err != nil {
				app.Logger.Warn("Google provider disabled", zap.Error(err))
			} else {
				registry.Register(types.EndpointImageToVideo, types.ProviderGoogle, veo.WithPollConfig(poll))
			}
		}

		return nil
	}
}

func WithCatalog() OptionFunc {
	return func(app *App) error {
		var client *oai.Client
		if p := app.config.Providers; p != nil && p.OpenAI != nil && p.OpenAI.APIKey != "" {
			client = oai.NewClient(p.OpenAI.APIKey)
		}
		app.Catalog = catalog.New(client, 0)
		return nil
	}
}

// WithRunner wires the execution path: step executor, orchestrator,
// webhook notifier and the queue processor. Providers and the database
// must already be configured.
func WithRunner() OptionFunc {
	return func(app *App) error {
		if app.Registry == nil {
			return fmt.Errorf("providers must be configured before the runner")
		}
		if app.RunRepository == nil {
			return fmt.Errorf("database must be initialized before the runner")
		}

		var checker runner.SafetyChecker
		if app.config.EnableSafety {
			p := app.config.Providers
			if p == nil || p.OpenAI == nil || p.OpenAI.APIKey == "" {
				return fmt.Errorf("openAI API-key is not set. Cannot enable safety filter")
			}

			filter, err := safety.NewFilter(p.OpenAI.APIKey)
			if err != nil {
				return err
			}
			checker = filter
		}

		executor := runner.NewStepExecutor(app.PromptRunRepository, app.Registry, app.uploader, checker)
		app.Notifier = webhook.NewNotifier(app.RunWebhookRepository, app.config.PublicURL)
		app.Runner = runner.NewRunner(app.RunRepository, executor, app.Notifier)
		app.Processor = runner.NewProcessor(app.mq, app.Runner, app.RunRepository, app.config.Runner)
		return nil
	}
}

func NewApp(config *config.Config, options ...OptionFunc) (*App, error) {
	logger, err := logger.InitLogger(config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     config,
		Logger:     logger,
		cancelFunc: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			cancel()
			return nil, err
		}
	}

	return app, nil
}

func (app *App) Close() {
	app.cancelFunc()

	if app.Processor != nil {
		app.Processor.Stop()
	}
	if app.mq != nil {
		app.mq.Close()
	}
	if app.db != nil {
		app.db.Close()
	}
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) MQ() mq.MQ {
	return app.mq
}

func (app *App) DB() *bun.DB {
	return app.db
}

func (app *App) Uploader() *media.Uploader {
	return app.uploader
}
