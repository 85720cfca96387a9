package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/abtest"
	"github.com/sells-group/outreach-cli/internal/campaign"
	"github.com/sells-group/outreach-cli/internal/compliance"
	"github.com/sells-group/outreach-cli/internal/docstore"
	"github.com/sells-group/outreach-cli/internal/enrich"
	"github.com/sells-group/outreach-cli/internal/htmlkit"
	"github.com/sells-group/outreach-cli/internal/llm"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/notify"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/quota"
	"github.com/sells-group/outreach-cli/internal/ratelimit"
	"github.com/sells-group/outreach-cli/internal/reply"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scoring"
	"github.com/sells-group/outreach-cli/internal/sendtime"
	"github.com/sells-group/outreach-cli/internal/sequence"
	anthropicpkg "github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/google"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
	registrypkg "github.com/sells-group/outreach-cli/pkg/registry"
)

// appEnv holds the store and every component built on it.
type appEnv struct {
	Store        docstore.Store
	Gate         *compliance.Gate
	Campaigns    *campaign.Store
	Tests        *abtest.Controller
	Orchestrator *pipeline.Orchestrator
	Notifier     notify.Notifier
	redis        *redis.Client
}

// Close releases the store and the Redis connection.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens and migrates the store and
// builds the orchestrator. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{Store: st, Notifier: initNotifier()}

	var tracker quota.Tracker
	if cfg.Redis.URL != "" {
		rdb, err := quota.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.redis = rdb
		tracker = quota.NewRedisTracker(rdb, cfg.Quota, quota.WithLocation(loc))
	} else {
		zap.L().Debug("OUTREACH_REDIS_URL not set, send quota disabled")
	}

	limits := initThrottles()
	sequencer, err := initSequencer(limits)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Gate = compliance.New(st, cfg.Compliance)
	env.Campaigns = campaign.New(st)
	env.Tests = abtest.New(st, cfg.ABTest, abtest.WithNotifier(env.Notifier))
	env.Orchestrator = pipeline.New(pipeline.Deps{
		Store:      st,
		Gate:       env.Gate,
		Quota:      tracker,
		Enricher:   initWaterfall(limits),
		Scorer:     scoring.New(scoring.DefaultConfig()),
		Sequencer:  sequencer,
		Tests:      env.Tests,
		Campaigns:  env.Campaigns,
		Classifier: initClassifier(limits, loc),
		Notifier:   env.Notifier,
	}, pipelineConfig())

	return env, nil
}

func initStore(ctx context.Context) (docstore.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return docstore.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		var pool *docstore.PoolConfig
		if cfg.Store.MaxConns > 0 || cfg.Store.MinConns > 0 {
			pool = &docstore.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns}
		}
		return docstore.NewPostgres(ctx, cfg.Store.DatabaseURL, pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Concurrency: cfg.Pipeline.Concurrency,
		MaxRetries:  cfg.Pipeline.MaxRetries,
		SweepLimit:  cfg.Pipeline.SweepLimit,
		Retry: resilience.RetryConfig{
			InitialBackoff: cfg.Pipeline.RetryInitial,
			MaxBackoff:     cfg.Pipeline.RetryMax,
			Multiplier:     4,
		},
	}
}

func initNotifier() notify.Notifier {
	multi := notify.Multi{notify.NewLogNotifier()}
	if cfg.Notify.WebhookURL != "" {
		multi = append(multi, notify.NewWebhookNotifier(cfg.Notify.WebhookURL,
			&http.Client{Timeout: 10 * time.Second}, resilience.DefaultRetryConfig()))
	}
	return multi
}

func initThrottles() *ratelimit.Registry {
	return ratelimit.NewRegistry(map[string]time.Duration{
		"enrich": cfg.Enrich.CallInterval,
		"llm":    cfg.Sequence.LLMInterval,
	})
}

func breakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		FailureThreshold: cfg.Enrich.BreakerThreshold,
		ResetTimeout:     cfg.Enrich.BreakerReset,
		ShouldTrip:       resilience.IsTransient,
	}
}

// initCompleter returns nil without an Anthropic key so callers fall back to
// templates and keyword rules.
func initCompleter(purpose, system string) llm.Completer {
	if cfg.Anthropic.Key == "" {
		zap.L().Debug("OUTREACH_ANTHROPIC_KEY not set, LLM tier disabled", zap.String("purpose", purpose))
		return nil
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return llm.NewAnthropicCompleter(client, llm.Config{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
		System:      system,
		Purpose:     purpose,
	}, resilience.NewBreaker("anthropic:"+purpose, breakerConfig()))
}

func initSequencer(limits *ratelimit.Registry) (*sequence.Generator, error) {
	var table *sendtime.Table
	if cfg.SendTime.TablePath != "" {
		t, err := sendtime.LoadTable(cfg.SendTime.TablePath)
		if err != nil {
			return nil, err
		}
		table = t
	}
	opt, err := sendtime.New(table)
	if err != nil {
		return nil, err
	}
	return sequence.New(
		initCompleter("sequence", "You write short, personal B2B prospecting messages in French."),
		opt,
		sequence.WithThrottle(limits.For("llm")),
		sequence.WithMessagingChannel(model.Channel(cfg.Sequence.MessagingChannel)),
	), nil
}

func initClassifier(limits *ratelimit.Registry, loc *time.Location) *reply.Classifier {
	return reply.NewClassifier(
		initCompleter("reply", "You classify replies to B2B prospecting messages."),
		reply.WithThrottle(limits.For("llm")),
		reply.WithLocation(loc),
	)
}

// initWaterfall builds the sources listed in enrich.sources. A source
// needing a key that is not configured is left out.
func initWaterfall(limits *ratelimit.Registry) *enrich.Waterfall {
	var sources []enrich.Source
	for _, name := range cfg.Enrich.Sources {
		switch model.SourceName(name) {
		case model.SourceWebsite:
			f := htmlkit.NewHTTPFetcher(htmlkit.WithUserAgent(cfg.Scrape.UserAgent))
			sources = append(sources, enrich.NewWebsiteSource(f, time.Duration(cfg.Scrape.TimeoutSecs)*time.Second))
		case model.SourceMaps:
			if cfg.Google.Key == "" {
				zap.L().Debug("OUTREACH_GOOGLE_KEY not set, maps source disabled")
				continue
			}
			opts := []google.Option{google.WithLanguage(cfg.Google.Language, cfg.Google.Region)}
			if cfg.Google.BaseURL != "" {
				opts = append(opts, google.WithBaseURL(cfg.Google.BaseURL))
			}
			sources = append(sources, enrich.NewMapsSource(google.NewClient(cfg.Google.Key, opts...)))
		case model.SourceRegistry:
			sources = append(sources, enrich.NewRegistrySource(registrypkg.NewClient(registrypkg.WithBaseURL(cfg.Registry.BaseURL))))
		case model.SourceNetwork:
			if cfg.Perplexity.Key == "" {
				zap.L().Debug("OUTREACH_PERPLEXITY_KEY not set, network source disabled")
				continue
			}
			sources = append(sources, enrich.NewNetworkSource(perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model),
			)))
		default:
			zap.L().Warn("unknown enrichment source", zap.String("source", name))
		}
	}
	return enrich.New(sources,
		enrich.WithThrottle(limits.For("enrich")),
		enrich.WithBatchThrottle(ratelimit.Every(cfg.Enrich.BatchInterval)),
		enrich.WithBreakers(resilience.NewBreakers(breakerConfig())),
	)
}

// loadICP reads an ideal customer profile from YAML.
func loadICP(path string) (model.ICP, error) {
	var icp model.ICP
	data, err := os.ReadFile(path)
	if err != nil {
		return icp, eris.Wrap(err, "read icp")
	}
	if err := yaml.Unmarshal(data, &icp); err != nil {
		return icp, eris.Wrap(err, "parse icp")
	}
	return icp, icp.Validate()
}
