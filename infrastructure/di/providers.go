package di

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"valuetree/application/commands/bus"
	commandhandlers "valuetree/application/commands/handlers"
	"valuetree/application/ports"
	querybus "valuetree/application/queries/bus"
	queryhandlers "valuetree/application/queries/handlers"
	"valuetree/application/services"
	domainconfig "valuetree/domain/config"
	"valuetree/domain/core/valueobjects"
	"valuetree/domain/decomposition"
	domainservices "valuetree/domain/services"
	"valuetree/infrastructure/config"
	"valuetree/infrastructure/messaging/eventbridge"
	"valuetree/infrastructure/persistence/dynamodb"
	"valuetree/infrastructure/persistence/memory"
	"valuetree/interfaces/http/rest"
	"valuetree/interfaces/http/rest/middleware"
	"valuetree/pkg/auth"
	pkgerrors "valuetree/pkg/errors"
	"valuetree/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/google/wire"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
	Trees          *services.TreeService
	Decompositions *services.DecompositionService
	Handler        http.Handler
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideTreeRepository,
	ProvideWorkflowRepository,
	ProvideEventPublisher,
	ProvideInMemoryCache,
	wire.Bind(new(ports.Cache), new(*InMemoryCache)),
	ProvideMetrics,
	ProvideTracer,
	ProvideTreeMutator,
	ProvideInterviewer,
	services.NewTreeService,
	ProvideDecompositionService,
	commandhandlers.NewTreeCommandHandlers,
	commandhandlers.NewDecompositionCommandHandlers,
	queryhandlers.NewTreeQueryHandlers,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideErrorHandler,
	ProvideRouterOptions,
	rest.NewRouter,
	ProvideHTTPHandler,
	wire.Struct(new(Container), "*"),
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideDomainConfig returns the business limits
func ProvideDomainConfig() (*domainconfig.DomainConfig, error) {
	cfg := domainconfig.DefaultDomainConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProvideAWSConfig loads AWS configuration when a component needs it.
// Without AWS components only the region is set and no credentials are read.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if !cfg.NeedsAWS() {
		return aws.Config{Region: cfg.AWSRegion}, nil
	}
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at
// DYNAMODB_ENDPOINT when one is configured
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideTreeRepository selects the tree store for STORAGE_BACKEND
func ProvideTreeRepository(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.TreeRepository {
	if cfg.StorageBackend == config.StorageDynamoDB {
		return dynamodb.NewTreeRepository(client, cfg.DynamoDBTable, logger)
	}
	return memory.NewTreeRepository()
}

// ProvideWorkflowRepository selects the session store for STORAGE_BACKEND.
// The in-memory store sweeps expired sessions until ctx is done.
func ProvideWorkflowRepository(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.WorkflowRepository {
	if cfg.StorageBackend == config.StorageDynamoDB {
		return dynamodb.NewWorkflowRepository(client, cfg.SessionsTable, logger)
	}
	repo := memory.NewWorkflowRepository()
	repo.StartCleanup(ctx, time.Minute)
	return repo
}

// ProvideEventPublisher sends events to EventBridge, or only logs them when
// ENABLE_EVENTS is off
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return eventbridge.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
}

// ProvideInMemoryCache creates the query cache
func ProvideInMemoryCache(ctx context.Context) *InMemoryCache {
	return NewInMemoryCache(ctx)
}

// ProvideMetrics creates the CloudWatch metrics sink. It is a no-op when
// ENABLE_METRICS is off.
func ProvideMetrics(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) *observability.Metrics {
	var client observability.CloudWatchAPI
	if cfg.EnableMetrics {
		client = awscloudwatch.NewFromConfig(awsCfg)
	}
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("valuetree", cfg.EnableTracing)
}

// ProvideTreeMutator creates the structural edit service
func ProvideTreeMutator(cfg *domainconfig.DomainConfig) *domainservices.TreeMutator {
	return domainservices.NewTreeMutator(cfg)
}

// ProvideInterviewer creates the decomposition state machine
func ProvideInterviewer(cfg *domainconfig.DomainConfig) *decomposition.Interviewer {
	return decomposition.NewInterviewer(cfg)
}

// ProvideDecompositionService creates the decomposition service
func ProvideDecompositionService(
	trees *services.TreeService,
	workflows ports.WorkflowRepository,
	interviewer *decomposition.Interviewer,
	publisher ports.EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *services.DecompositionService {
	return services.NewDecompositionService(trees, workflows, interviewer, publisher, cfg.SessionTTL, logger)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	treeHandlers *commandhandlers.TreeCommandHandlers,
	decompositionHandlers *commandhandlers.DecompositionCommandHandlers,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.MetricsMiddleware(metrics),
	)

	if err := treeHandlers.Register(commandBus); err != nil {
		return nil, err
	}
	if err := decompositionHandlers.Register(commandBus); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers. Results
// are cached for QUERY_CACHE_TTL seconds; 0 disables caching.
func ProvideQueryBus(
	queryHandlers *queryhandlers.TreeQueryHandlers,
	cache ports.Cache,
	metrics *observability.Metrics,
	cfg *config.Config,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(
		querybus.NewMetricsMiddleware(metrics),
		querybus.NewCachingMiddleware(cache, cfg.QueryCacheTTL),
	)

	if err := queryHandlers.Register(queryBus); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideErrorHandler creates the HTTP error renderer. Stack traces are
// included outside production.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouterOptions builds the router's optional middleware from config
func ProvideRouterOptions(ctx context.Context, cfg *config.Config, repo ports.TreeRepository) (rest.RouterOptions, error) {
	readinessID, err := valueobjects.NewProjectID(readinessProject)
	if err != nil {
		return rest.RouterOptions{}, err
	}

	opts := rest.RouterOptions{
		EnableCORS: cfg.EnableCORS,
		Readiness: func(ctx context.Context) error {
			_, err := repo.Exists(ctx, readinessID)
			return err
		},
	}

	if cfg.EnableAuth {
		validator, err := auth.NewJWTValidator(auth.JWTConfig{
			SigningMethod: "HS256",
			SecretKey:     cfg.JWTSecret,
			Issuer:        cfg.JWTIssuer,
		})
		if err != nil {
			return rest.RouterOptions{}, fmt.Errorf("failed to create JWT validator: %w", err)
		}
		opts.WriteRoles = cfg.WriteRoles
		opts.Auth = &middleware.AuthOptions{
			Validator:    validator,
			TrustGateway: os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "",
			IPLimiter:    auth.NewIPRateLimiter(300).StartCleanup(ctx, time.Minute),
			UserLimiter:  auth.NewUserRateLimiter(600).StartCleanup(ctx, time.Minute),
		}
	}
	return opts, nil
}

// readinessProject is looked up by /ready; it never needs to exist
const readinessProject = "readiness-check"

// ProvideHTTPHandler builds the routed handler
func ProvideHTTPHandler(router *rest.Router) http.Handler {
	return router.Setup()
}
