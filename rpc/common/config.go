package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ValentinKolb/mappy/lib/maplet"
)

// --------------------------------------------------------------------------
// Engine configuration
// --------------------------------------------------------------------------

// EngineConfig carries the maplet engine parameters through the flag and
// environment surface. See maplet.Config for the semantics.
type EngineConfig struct {
	Capacity          uint64
	FalsePositiveRate float64
	MaxLoadFactor     float64
	AutoResize        bool
	EnableDeletion    bool
	EnableMerging     bool
	HasherFamily      string
	HasherSeed        uint64
}

// ToMapletConfig converts the flag-level engine settings into an engine
// configuration. Zero numeric values and an empty hasher family fall back
// to the engine defaults, the three feature flags are copied as given, and
// a zero seed is replaced by a random one (pass an explicit seed for reproducible
// fingerprints across restarts, which AOF persistence requires).
func (c *EngineConfig) ToMapletConfig() *maplet.Config {
	cfg := maplet.DefaultConfig()
	if c.Capacity > 0 {
		cfg.Capacity = c.Capacity
	}
	if c.FalsePositiveRate > 0 {
		cfg.FalsePositiveRate = c.FalsePositiveRate
	}
	if c.MaxLoadFactor > 0 {
		cfg.MaxLoadFactor = c.MaxLoadFactor
	}
	cfg.AutoResize = c.AutoResize
	cfg.EnableDeletion = c.EnableDeletion
	cfg.EnableMerging = c.EnableMerging
	if c.HasherFamily != "" {
		cfg.HasherFamily = maplet.HasherFamily(c.HasherFamily)
	}
	if c.HasherSeed != 0 {
		cfg.HasherSeed = c.HasherSeed
	}
	return cfg
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerShardType selects the store implementation backing a shard.
type ServerShardType string

const (
	ShardTypeMemory        ServerShardType = "memory store"
	ShardTypePersistent    ServerShardType = "persistent store"
	ShardTypeTTLMemory     ServerShardType = "ttl memory store"
	ShardTypeTTLPersistent ServerShardType = "ttl persistent store"
)

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type selects the store backing the shard
	Type ServerShardType
}

// ServerConfig holds all configuration parameters for the RPC server.
type ServerConfig struct {
	// Shards served by this process; each gets its own engine and store
	Shards []ServerShard

	// Engine parameters shared by all shards
	Engine EngineConfig

	// Persistence parameters (persistent shards only)
	DataDir       string
	AOFSyncMillis int64

	// Request handling
	TimeoutSecond int64

	// The address the server listens on
	Endpoint string

	// Logging configuration
	LogLevel string
}

// HasPersistentShard checks if the configuration contains any shard that
// needs the data directory
func (c *ServerConfig) HasPersistentShard() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypePersistent || shard.Type == ShardTypeTTLPersistent {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Engine parameters
	addSection("Engine")
	addField("Capacity", strconv.FormatUint(c.Engine.Capacity, 10))
	addField("False Positive Rate", fmt.Sprintf("%g", c.Engine.FalsePositiveRate))
	addField("Max Load Factor", fmt.Sprintf("%g", c.Engine.MaxLoadFactor))
	addField("Auto Resize", fmt.Sprintf("%t", c.Engine.AutoResize))
	addField("Deletion", fmt.Sprintf("%t", c.Engine.EnableDeletion))
	addField("Merging", fmt.Sprintf("%t", c.Engine.EnableMerging))
	addField("Hasher", c.Engine.HasherFamily)

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if c.HasPersistentShard() {
		// Storage
		addSection("Storage")
		addField("Data Directory", c.DataDir)
		addField("AOF Sync Interval", fmt.Sprintf("%d ms", c.AOFSyncMillis))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// SocketConf holds socket buffer tuning shared by the stream transports.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP-specific tuning.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ClientTransportConfig holds the transport-level client settings.
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

// ClientConfig holds all configuration parameters for RPC clients.
type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
