package voter

import (
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// CfgRoundInterval is the fixed wall-clock spacing between DoRound
	// invocations.
	CfgRoundInterval = "voter.roundInterval"
	// CfgQuerySampleSize is the number of peers sampled with replacement
	// each round.
	CfgQuerySampleSize = "voter.querySampleSize"
	// CfgFinalizationThreshold is the number of consecutive equal-opinion
	// rounds required to finalize.
	CfgFinalizationThreshold = "voter.finalizationThreshold"
	// CfgCoolingOffPeriod is the number of additional rounds held past
	// threshold before finalization fires.
	CfgCoolingOffPeriod = "voter.coolingOffPeriod"
	// CfgMaxRoundsPerVote bounds how long an unfinalized context may run
	// before it is emitted as Failed. 0 disables the bound.
	CfgMaxRoundsPerVote = "voter.maxRoundsPerVote"
	// CfgQueryTimeout bounds a single opinion-giver query attempt.
	CfgQueryTimeout = "voter.queryTimeout"
	// CfgMaxQueryAttempts is the per-peer retry budget within a round.
	CfgMaxQueryAttempts = "voter.maxQueryAttempts"
	// CfgPeerPoolSize bounds the goroutine pool used to fan out queries.
	CfgPeerPoolSize = "voter.peerPoolSize"

	// CfgAdminBindAddress is the gin admin API's bind address.
	CfgAdminBindAddress = "voter.adminBindAddress"
	// CfgWebSocketBindAddress is the gorilla/websocket live feed's bind
	// address.
	CfgWebSocketBindAddress = "voter.websocketBindAddress"

	// CfgMongoURI is the connection string for the audit sink. Empty
	// disables mongosink entirely.
	CfgMongoURI = "voter.mongoURI"
	// CfgMongoDatabase names the database mongosink writes to.
	CfgMongoDatabase = "voter.mongoDatabase"
)

func init() {
	flag.Duration(CfgRoundInterval, time.Second, "wall-clock spacing between FPC rounds")
	flag.Int(CfgQuerySampleSize, 21, "number of peers sampled with replacement per round")
	flag.Uint32(CfgFinalizationThreshold, 10, "consecutive equal-opinion rounds required to finalize")
	flag.Uint32(CfgCoolingOffPeriod, 0, "additional rounds held past threshold before finalizing")
	flag.Uint32(CfgMaxRoundsPerVote, 0, "round bound after which an unfinalized context fails (0 disables)")
	flag.Duration(CfgQueryTimeout, 6500*time.Millisecond, "per-attempt upper bound on a single peer query")
	flag.Int(CfgMaxQueryAttempts, 3, "per-peer retry budget within a round")
	flag.Int(CfgPeerPoolSize, 64, "goroutine pool size for fanning out peer queries")

	flag.String(CfgAdminBindAddress, ":8888", "bind address for the admin API")
	flag.String(CfgWebSocketBindAddress, ":8889", "bind address for the live event feed")

	flag.String(CfgMongoURI, "", "MongoDB connection string for the audit sink (empty disables it)")
	flag.String(CfgMongoDatabase, "fpc", "MongoDB database name for the audit sink")
}

// roundInterval returns the configured spacing between rounds.
func roundInterval() time.Duration {
	return viper.GetDuration(CfgRoundInterval)
}

// adminBindAddress returns the admin API's configured bind address.
func adminBindAddress() string {
	return viper.GetString(CfgAdminBindAddress)
}

// websocketBindAddress returns the live feed's configured bind address.
func websocketBindAddress() string {
	return viper.GetString(CfgWebSocketBindAddress)
}

// mongoURI returns the configured audit sink connection string, or "" if
// the sink is disabled.
func mongoURI() string {
	return viper.GetString(CfgMongoURI)
}

// mongoDatabase returns the configured audit sink database name.
func mongoDatabase() string {
	return viper.GetString(CfgMongoDatabase)
}
