package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tolkdirekt/dispatchd/config"
	"github.com/tolkdirekt/dispatchd/internal/adapters/matcher"
	"github.com/tolkdirekt/dispatchd/internal/adapters/poller"
	"github.com/tolkdirekt/dispatchd/internal/data"
	"github.com/tolkdirekt/dispatchd/internal/notify"
	"github.com/tolkdirekt/dispatchd/internal/notify/push"
	"github.com/tolkdirekt/dispatchd/internal/notify/sms"
	"github.com/tolkdirekt/dispatchd/internal/service"
)

// Services bundles the constructed application services.
type Services struct {
	Jobs   *service.JobService
	Engine *service.Engine
	Poller *poller.Poller
}

// BuildServicesParams groups inputs for BuildServices.
type BuildServicesParams struct {
	Config config.AppConfig
	DB     *sql.DB
	Redis  redis.UniversalClient
	Logger *slog.Logger
}

// BuildServices constructs the repositories, gateways, and services from the
// loaded configuration and open connections.
func BuildServices(p BuildServicesParams) (*Services, error) {
	repoCfg := data.RepoConfig{
		Logger:       p.Logger,
		TimeProvider: &data.RealTimeProvider{},
	}
	jobRepo := data.NewJobRepo(p.DB, repoCfg)
	distanceRepo := data.NewDistanceRepo(p.DB, repoCfg)
	offerRepo := data.NewRedisOfferRepo(p.Redis)

	pushGateway, smsGateway, err := buildGateways(p.Config)
	if err != nil {
		return nil, err
	}

	dispatcher, err := service.NewDispatcher(service.DispatcherOptions{
		Push: pushGateway,
		SMS:  smsGateway,
		Config: service.DispatcherConfig{
			Concurrency:    p.Config.Dispatch.Concurrency,
			PerSendTimeout: p.Config.Dispatch.PerSendTimeout,
		},
		Logger: p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	directory, err := matcher.NewClient(matcher.Config{
		BaseURL:        p.Config.Matcher.BaseURL,
		APIKey:         p.Config.Matcher.APIKey,
		FilterExpr:     p.Config.Matcher.FilterExpr,
		CandidateLimit: p.Config.Matcher.CandidateLimit,
		Timeout:        p.Config.Matcher.Timeout,
		Logger:         p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create matcher client: %w", err)
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:      jobRepo,
		Offers:    offerRepo,
		Distances: distanceRepo,
		Notifier:  pushGateway,
		Logger:    p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create job service: %w", err)
	}

	engine, err := service.NewEngine(service.EngineOptions{
		Repo:       jobRepo,
		Offers:     offerRepo,
		Directory:  directory,
		Dispatcher: dispatcher,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create dispatch engine: %w", err)
	}

	dispatchPoller, err := poller.New(poller.Options{
		Repo:      jobRepo,
		Engine:    engine,
		Interval:  p.Config.Dispatch.PollInterval,
		BatchSize: p.Config.Dispatch.PollBatchSize,
		Logger:    p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create dispatch poller: %w", err)
	}

	return &Services{Jobs: jobs, Engine: engine, Poller: dispatchPoller}, nil
}

// buildGateways constructs the configured notification gateways. Both may be
// nil-valued interfaces when disabled; the dispatcher constructor rejects the
// all-disabled case.
func buildGateways(cfg config.AppConfig) (notify.Gateway, notify.Gateway, error) {
	var pushGateway notify.Gateway
	if cfg.Push.Enabled() {
		client, err := push.NewClient(push.Config{
			GatewayURL: cfg.Push.GatewayURL,
			AppID:      cfg.Push.AppID,
			APIKey:     cfg.Push.APIKey,
			Timeout:    cfg.Push.Timeout,
			RetryLimit: cfg.Push.RetryLimit,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create push gateway: %w", err)
		}
		pushGateway = client
	}

	var smsGateway notify.Gateway
	if cfg.SMS.Enabled() {
		client, err := sms.NewClient(sms.Config{
			GatewayURL: cfg.SMS.GatewayURL,
			Sender:     cfg.SMS.Sender,
			AuthToken:  cfg.SMS.AuthToken,
			Timeout:    cfg.SMS.Timeout,
			RetryLimit: cfg.SMS.RetryLimit,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create sms gateway: %w", err)
		}
		smsGateway = client
	}

	return pushGateway, smsGateway, nil
}
