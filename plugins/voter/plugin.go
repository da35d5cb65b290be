// Package voter wires a *fpc.Voter into a hive.go node as a long-running
// plugin: config loading, a round ticker, HTTP/websocket surfaces and
// metrics. None of this lives in packages/vote or packages/vote/fpc — the
// core voting kernel has no CLI or daemon surface of its own.
package voter

import (
	"context"
	"sync"
	"time"

	"github.com/iotaledger/hive.go/daemon"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/node"
	"github.com/labstack/echo"
	"github.com/spf13/viper"
	"go.uber.org/dig"

	"github.com/iotaledger/fpc/packages/audit/mongosink"
	"github.com/iotaledger/fpc/packages/opinion"
	"github.com/iotaledger/fpc/packages/rng"
	"github.com/iotaledger/fpc/packages/vote"
	"github.com/iotaledger/fpc/packages/vote/fpc"
)

// PluginName is the name this plugin registers under with hive.go/node.
const PluginName = "Voter"

// shutdownPriority is a mid-range daemon shutdown priority: this plugin
// stops after transport but before storage.
const shutdownPriority = 50

var (
	plugin *node.Plugin
	once   sync.Once
	log    *logger.Logger
	deps   = new(dependencies)

	instance *fpc.Voter
	sink     *vote.ChannelEventSink
	hub      *websocketHub
	audit    *mongosink.Sink
	source   rng.Source

	opinionGiverFunc opinion.OpinionGiverFunc
	opinionGiverMu   sync.RWMutex
)

type dependencies struct {
	dig.In

	Server *echo.Echo
}

// SetOpinionGiverFunc installs the factory the voter uses to obtain its
// candidate peer pool each round. It must be called before the plugin's
// run stage (i.e. before node.Run), since transport wiring is an external
// collaborator this module never constructs itself.
func SetOpinionGiverFunc(f opinion.OpinionGiverFunc) {
	opinionGiverMu.Lock()
	defer opinionGiverMu.Unlock()
	opinionGiverFunc = f
}

// SetRandomnessSource overrides the default source (a math/rand source
// seeded from the local clock at configure time), primarily for tests and
// simulations that need reproducible rounds.
func SetRandomnessSource(s rng.Source) {
	source = s
}

func currentOpinionGiverFunc() (opinion.OpinionGiverFunc, error) {
	opinionGiverMu.RLock()
	defer opinionGiverMu.RUnlock()
	if opinionGiverFunc == nil {
		return nil, errNoOpinionGiverFuncConfigured
	}
	return opinionGiverFunc, nil
}

var errNoOpinionGiverFuncConfigured = errOpinionGiverFuncNotConfigured("voter: SetOpinionGiverFunc was never called")

type errOpinionGiverFuncNotConfigured string

func (e errOpinionGiverFuncNotConfigured) Error() string { return string(e) }

// Plugin returns the singleton plugin instance.
func Plugin() *node.Plugin {
	once.Do(func() {
		plugin = node.NewPlugin(PluginName, deps, node.Enabled, configure, run)
	})
	return plugin
}

// Voter returns the running Voter instance, or nil before configure runs.
func Voter() *fpc.Voter {
	return instance
}

func configure(*node.Plugin) {
	log = logger.NewLogger(PluginName)

	sink = vote.NewChannelEventSink(make(chan vote.Event, 4096))
	hub = newWebsocketHub()

	if uri := mongoURI(); uri != "" {
		coll, err := dialMongo(uri, mongoDatabase())
		if err != nil {
			log.Errorf("voter: failed to connect audit sink, continuing without it: %s", err)
		} else {
			audit = mongosink.NewSink(coll, mongosink.WithLogger(log))
		}
	}

	giverFunc := func() ([]opinion.OpinionGiver, error) {
		f, err := currentOpinionGiverFunc()
		if err != nil {
			return nil, err
		}
		return f()
	}

	v, err := fpc.New(
		vote.WithOpinionGiverFunc(giverFunc),
		vote.WithEventSink(sink),
		vote.WithQuerySampleSize(viper.GetInt(CfgQuerySampleSize)),
		vote.WithFinalizationThreshold(uint32(viper.GetInt(CfgFinalizationThreshold))),
		vote.WithCoolingOffPeriod(uint32(viper.GetInt(CfgCoolingOffPeriod))),
		vote.WithMaxRoundsPerVote(uint32(viper.GetInt(CfgMaxRoundsPerVote))),
		vote.WithQueryTimeout(viper.GetDuration(CfgQueryTimeout)),
		vote.WithMaxQueryAttempts(viper.GetInt(CfgMaxQueryAttempts)),
		vote.WithPeerPoolSize(viper.GetInt(CfgPeerPoolSize)),
	)
	if err != nil {
		log.Panicf("voter: failed to construct voter: %s", err)
	}
	instance = v

	if source == nil {
		source = rng.NewMockSource(time.Now().UnixNano())
	}

	registerMetrics()
	registerStatusRoutes(deps.Server, instance)
	registerDashboardRoute(deps.Server)
}

func run(*node.Plugin) {
	if err := daemon.BackgroundWorker(PluginName, func(ctx context.Context) {
		eventPump(ctx)
	}, shutdownPriority); err != nil {
		log.Panicf("voter: failed to start event pump: %s", err)
	}

	if err := daemon.BackgroundWorker(PluginName+"Rounds", func(ctx context.Context) {
		roundLoop(ctx)
	}, shutdownPriority); err != nil {
		log.Panicf("voter: failed to start round loop: %s", err)
	}

	if err := daemon.BackgroundWorker(PluginName+"Admin", func(ctx context.Context) {
		runAdminServer(ctx, instance)
	}, shutdownPriority); err != nil {
		log.Panicf("voter: failed to start admin API: %s", err)
	}

	if err := daemon.BackgroundWorker(PluginName+"WebSocket", func(ctx context.Context) {
		hub.run(ctx)
	}, shutdownPriority); err != nil {
		log.Panicf("voter: failed to start websocket feed: %s", err)
	}
}

// roundLoop drives DoRound on a fixed interval until ctx is cancelled. A
// round that errors (e.g. no opinion givers available yet) is logged and
// skipped rather than treated as fatal — the candidate pool may simply be
// empty during startup.
func roundLoop(ctx context.Context) {
	ticker := time.NewTicker(roundInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			instance.Close()
			return
		case <-ticker.C:
			if err := instance.DoRound(source); err != nil {
				log.Debugf("voter: round skipped: %s", err)
			}
		}
	}
}

// eventPump drains the voter's channel sink and fans each event out to the
// websocket hub, the audit sink and the prometheus counters, until ctx is
// cancelled.
func eventPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if audit != nil {
				audit.Close()
			}
			return
		case ev := <-sink.Channel():
			observeMetrics(ev)
			hub.broadcast(ev)
			if audit != nil {
				audit.Send(ev)
			}
		}
	}
}

