package server

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/lib/store/lstore"
	"github.com/ValentinKolb/mappy/lib/store/pstore"
	"github.com/ValentinKolb/mappy/lib/store/tstore"
	"github.com/ValentinKolb/mappy/rpc/common"
	"github.com/ValentinKolb/mappy/rpc/serializer"
	"github.com/ValentinKolb/mappy/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server.
// It contains the store it encapsulates and the adapter that handles
// requests for the store.
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create shards map
	shardMap := xsync.NewMapOf[uint64, serverShard]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     shardMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		start := time.Now()

		// Get appropriate shard
		shard, ok := s.shards.Load(shardId)

		// Case shard does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     "shard not found",
			}
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Let the adapter handle the request
				respMsg = *shard.Adapter.Handle(&msg, shard.Store)
			}
		}

		// Track per-shard, per-operation request counts and latency
		metrics.GetOrCreateCounter(fmt.Sprintf(
			`mappy_rpc_requests_total{shard="%d",op=%q}`, shardId, msg.MsgType.String())).Inc()
		if respMsg.Err != "" {
			metrics.GetOrCreateCounter(fmt.Sprintf(
				`mappy_rpc_errors_total{shard="%d",op=%q}`, shardId, msg.MsgType.String())).Inc()
		}
		metrics.GetOrCreateSummary(fmt.Sprintf(
			`mappy_rpc_request_duration_seconds{shard="%d",op=%q}`, shardId, msg.MsgType.String())).
			UpdateDuration(start)

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     fmt.Sprintf("failed to serialize response: %s", err),
			}
			val, _ = s.serializer.Serialize(respMsg)
		}
		return val
	})
}

// newShardStore builds the store for a shard based on its configured type
func (s *rpcServer) newShardStore(shardConfig common.ServerShard) (store.IStore, error) {
	engineCfg := s.config.Engine.ToMapletConfig()

	// memory-backed store
	newMemStore := func() (store.IStore, error) {
		return lstore.NewLocalStore(lstore.DefaultEngineFactory(engineCfg))
	}

	// persistent store: each shard gets its own sub-directory
	newPersistentStore := func() (store.IStore, error) {
		return pstore.NewPersistentStore(pstore.Options{
			Dir:          filepath.Join(s.config.DataDir, fmt.Sprintf("shard-%d", shardConfig.ShardID)),
			SyncInterval: time.Duration(s.config.AOFSyncMillis) * time.Millisecond,
			Engine:       engineCfg,
		})
	}

	switch shardConfig.Type {
	case common.ShardTypeMemory:
		return newMemStore()
	case common.ShardTypePersistent:
		return newPersistentStore()
	case common.ShardTypeTTLMemory:
		inner, err := newMemStore()
		if err != nil {
			return nil, err
		}
		return tstore.NewTTLStore(inner, nil), nil
	case common.ShardTypeTTLPersistent:
		inner, err := newPersistentStore()
		if err != nil {
			return nil, err
		}
		return tstore.NewTTLStore(inner, nil), nil
	default:
		return nil, fmt.Errorf("invalid shard type: %s", shardConfig.Type)
	}
}

func (s *rpcServer) init() error {

	// Init logger
	common.InitLoggers(s.config)

	// CREATE SHARDS

	/*
		Note: A single RPC Server can have any number of shards. Each shard
		is an independent maplet store (memory, persistent, with or without
		TTL). The following loop creates all the shards and stores them for
		the RPC server.
	*/

	for _, shardConfig := range s.config.Shards {
		st, err := s.newShardStore(shardConfig)
		if err != nil {
			return fmt.Errorf("failed to create shard %d: %w", shardConfig.ShardID, err)
		}

		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   st,
			Adapter: NewStoreServerAdapter(),
		})
		Logger.Infof("created %s for shard %d", shardConfig.Type, shardConfig.ShardID)
	}

	Logger.Infof("mappy setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}
