package main

import (
	"context"
	"flag"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/postmux/postmux/activity"
	"github.com/postmux/postmux/agent"
	"github.com/postmux/postmux/app_config"
	"github.com/postmux/postmux/decision"
	"github.com/postmux/postmux/dedup"
	"github.com/postmux/postmux/enrich"
	"github.com/postmux/postmux/generator"
	"github.com/postmux/postmux/history"
	"github.com/postmux/postmux/ingest"
	"github.com/postmux/postmux/server"
	"github.com/postmux/postmux/utils"
	"github.com/postmux/postmux/utils/dotenv"
	Flag "github.com/postmux/postmux/utils/flag"
	Logger "github.com/postmux/postmux/utils/log"
)

var (
	AppConfigPath *string
	// Configuration to customize binary startup.
	AppConfig app_config.AgentAppConfig
)

// init() will always be called on before the execution of main function.
func init() {
	AppConfigPath = flag.String("app_config_path", "cmd/agent/config.yaml", "path to agent app config")
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
}

func cleanup() {
	utils.CloseProfiler()
	utils.CloseTracer()
	Logger.Log.Info("agent shutdown")
}

func NewDogStatsdClient() *statsd.Client {
	client, err := statsd.New("127.0.0.1:8125")
	if err != nil {
		panic(err)
	}
	return client
}

func NewAdmissionTable() dedup.AdmissionTable {
	if !AppConfig.USE_REDIS_ADMISSION {
		return dedup.NewInMemoryAdmissionTable()
	}
	table, err := dedup.GetRedisAdmissionTable()
	if err != nil {
		panic(err)
	}
	return table
}

func NewHistoryStore() history.Store {
	if !AppConfig.USE_POSTGRES_STORAGE {
		return history.NewInMemoryStore()
	}
	store, err := history.GetGormStore()
	if err != nil {
		panic(err)
	}
	return store
}

func NewPostSinks() []generator.PostSink {
	sinks := []generator.PostSink{generator.NewStdErrSink()}
	if AppConfig.USE_POSTGRES_STORAGE {
		sink, err := generator.GetGormSink()
		if err != nil {
			panic(err)
		}
		sinks = append(sinks, sink)
	}
	if AppConfig.PUSH_TO_SNS {
		sink, err := generator.NewSnsSink()
		if err != nil {
			panic(err)
		}
		sinks = append(sinks, sink)
	}
	return sinks
}

func NewDecisionEngine() *decision.Engine {
	tools := []enrich.Tool{
		enrich.NewContentFetchTool(),
		enrich.NewWebSearchTool(),
	}
	policies := decision.DefaultPolicies()
	similarity, err := enrich.GetSimilarityLookupTool()
	if err != nil {
		// The similarity lookup needs redis. Without it the escalation table
		// tops out at the web-search tier.
		Logger.Log.Warnf("similarity lookup unavailable, novelty tier disabled: %v", err)
		policies = policies[:3]
	} else {
		tools = append(tools, similarity)
	}

	registry, err := enrich.NewRegistry(
		time.Duration(AppConfig.TOOL_BUDGET_SECOND)*time.Second, tools...)
	if err != nil {
		panic(err)
	}
	engine, err := decision.NewEngine(registry, policies)
	if err != nil {
		panic(err)
	}
	return engine
}

func main() {
	defer cleanup()
	flag.Parse()
	AppConfig = app_config.ParseAgentAppConfig(*AppConfigPath)

	eventbus := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
	ctx, cancel := context.WithCancel(context.Background())

	activityLog := activity.NewLog()
	historyStore := NewHistoryStore()

	orchestrator := agent.NewOrchestrator(
		agent.OrchestratorConfig{Name: "orchestrator"},
		NewDecisionEngine(),
		generator.NewPostGenerator(),
		NewPostSinks(),
		activityLog,
		historyStore,
		eventbus,
	)

	table := NewAdmissionTable()
	dispatcher := agent.NewDispatcher(
		agent.DispatcherConfig{Name: "dispatcher", NewestFirst: AppConfig.NEWEST_FIRST},
		ingest.NewRssSource(
			AppConfig.RSS_FEED_URLS,
			time.Duration(AppConfig.RSS_MAX_AGE_HOUR)*time.Hour),
		table,
		orchestrator,
		eventbus,
	)

	timer, err := agent.NewAutoRunTimer(
		agent.TimerConfig{Name: "auto_run_timer"},
		AppConfig.AUTO_RUN_INTERVAL_SECOND,
		AppConfig.AUTO_RUN_ENABLED,
		agent.NewRealClock(),
		orchestrator,
		&agent.EventBusTriggerDoer{EventBus: eventbus},
	)
	if err != nil {
		panic(err)
	}

	// Initialize all engine modules here.
	modules := []agent.Module{
		// Dispatcher consumes run triggers, fetches and dedups candidate
		// articles and starts runs on the orchestrator.
		dispatcher,
		// Timer counts down towards the next automatic run and publishes
		// triggers onto the EventBus.
		timer,
		// Reporter reports the run metrics to datadog for monitoring purpose.
		agent.NewReporter(agent.ReporterConfig{Name: "reporter"}, NewDogStatsdClient(), eventbus),
	}
	engine := agent.NewEngine(modules, ctx, cancel, eventbus)

	// Control surface runs beside the engine modules.
	router := server.NewRouter(*Flag.ServiceName, &server.ApiHandler{
		Dispatcher:   dispatcher,
		Orchestrator: orchestrator,
		Timer:        timer,
		ActivityLog:  activityLog,
		History:      historyStore,
		Table:        table,
	})
	go func() {
		if err := router.Run(AppConfig.SERVER_ADDRESS); err != nil {
			Logger.Log.Fatalf("control surface stopped: %v", err)
		}
	}()

	Logger.Log.Info("agent starts up")
	// blocking call.
	engine.Run()

	Logger.Log.Info("engine stopped execution.")
}
