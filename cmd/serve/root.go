package serve

import (
	"fmt"
	"strconv"
	"strings"

	cmdUtil "github.com/ValentinKolb/mappy/cmd/util"
	"github.com/ValentinKolb/mappy/rpc/common"
	"github.com/ValentinKolb/mappy/rpc/serializer"
	"github.com/ValentinKolb/mappy/rpc/server"
	"github.com/ValentinKolb/mappy/rpc/transport"
	"github.com/ValentinKolb/mappy/rpc/transport/http"
	"github.com/ValentinKolb/mappy/rpc/transport/tcp"
	"github.com/ValentinKolb/mappy/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the mappy server",
		Long:    `Start the mappy server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is MAPPY_<flag> (e.g. MAPPY_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitClientConfig)

	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "100=mem", cmdUtil.WrapString("Comma-separated list of shards to serve. Format: ID=TYPE where TYPE is one of: mem, aof, ttl(mem), ttl(aof)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/mappy.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Request timeout in seconds"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	// engine flags
	key = "capacity"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("Initial engine capacity in slots, rounded up to a power of two (0 = engine default)"))

	key = "false-positive-rate"
	ServeCmd.PersistentFlags().Float64(key, 0, cmdUtil.WrapString("Target false positive rate ε in (0,1); determines the stored remainder width (0 = engine default)"))

	key = "max-load-factor"
	ServeCmd.PersistentFlags().Float64(key, 0, cmdUtil.WrapString("Load factor at which the engine resizes (0 = engine default)"))

	key = "auto-resize"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Grow the engine automatically when the load bound is hit"))

	key = "enable-deletion"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Maintain the multiset counter needed for deletes (disable to save memory)"))

	key = "enable-merging"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Merge values on duplicate-slot inserts (disable to reject duplicates)"))

	key = "hasher"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Fingerprint hash family: xxhash, fnv or sha256 (empty = engine default)"))

	key = "hasher-seed"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("Seed for the fingerprint hasher. Persistent shards need a fixed seed to replay their logs (0 = random)"))

	// persistence flags
	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory used for append-only logs and snapshots of persistent shards"))

	key = "aof-sync"
	ServeCmd.PersistentFlags().Int64(key, 1000, cmdUtil.WrapString("Milliseconds between AOF flushes for persistent shards"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse shards
	shardsConfig := viper.GetString("shards")
	serveCmdConfig.Shards = []common.ServerShard{}
	for _, shardConfig := range strings.Split(shardsConfig, ",") {
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}

		// Parse shard type
		shardType := strings.TrimSpace(parts[1])
		var serverShardType common.ServerShardType

		switch shardType {
		case "mem":
			serverShardType = common.ShardTypeMemory
		case "aof":
			serverShardType = common.ShardTypePersistent
		case "ttl(mem)":
			serverShardType = common.ShardTypeTTLMemory
		case "ttl(aof)":
			serverShardType = common.ShardTypeTTLPersistent
		default:
			return fmt.Errorf("invalid shard type: %s (expected one of: mem, aof, ttl(mem), ttl(aof))", shardType)
		}

		serveCmdConfig.Shards = append(serveCmdConfig.Shards, common.ServerShard{
			ShardID: shardID,
			Type:    serverShardType,
		})
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.AOFSyncMillis = viper.GetInt64("aof-sync")

	serveCmdConfig.Engine = common.EngineConfig{
		Capacity:          viper.GetUint64("capacity"),
		FalsePositiveRate: viper.GetFloat64("false-positive-rate"),
		MaxLoadFactor:     viper.GetFloat64("max-load-factor"),
		AutoResize:        viper.GetBool("auto-resize"),
		EnableDeletion:    viper.GetBool("enable-deletion"),
		EnableMerging:     viper.GetBool("enable-merging"),
		HasherFamily:      viper.GetString("hasher"),
		HasherSeed:        viper.GetUint64("hasher-seed"),
	}

	// persistent shards replay their logs by fingerprint; without a fixed
	// seed the replayed fingerprints would not match future lookups
	if serveCmdConfig.HasPersistentShard() && serveCmdConfig.Engine.HasherSeed == 0 {
		return fmt.Errorf("persistent shards require an explicit --hasher-seed")
	}

	return nil
}

// run starts the mappy server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	var s serializer.IRPCSerializer
	switch viper.GetString("serializer") {
	case "json":
		s = serializer.NewJSONSerializer()
	case "gob":
		s = serializer.NewGOBSerializer()
	case "binary":
		s = serializer.NewBinarySerializer()
	default:
		return fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}

	// parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport()
	case "unix":
		t = unix.NewUnixDefaultServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	// create and start the server
	srv := server.NewRPCServer(*serveCmdConfig, t, s)
	return srv.Serve()
}
