package kv

import (
	"github.com/ValentinKolb/mappy/cmd/util"
	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/rpc/client"
	"github.com/spf13/cobra"
)

var (
	// rpcStore is the shared store connection for all kv subcommands
	rpcStore store.IStore

	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Interact with a running mappy server",
		Long:  `Client commands for a running mappy server: insert, query, contains, delete and stats against a configured shard.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}

			// build the store from the configured transport and serializer
			t, err := util.GetTransport()
			if err != nil {
				return err
			}
			s, err := util.GetSerializer()
			if err != nil {
				return err
			}

			rpcStore, err = client.NewRPCStore(util.GetShardID(), *util.GetClientConfig(), t, s)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rpcStore != nil {
				return rpcStore.Close()
			}
			return nil
		},
	}
)

func init() {
	// initialize viper and env handling
	cobra.OnInitialize(util.InitClientConfig)

	// connection flags shared by all kv subcommands
	util.SetupRPCClientFlags(KeyValueCommands)

	// add subcommands
	KeyValueCommands.AddCommand(insertCmd)
	KeyValueCommands.AddCommand(insertECmd)
	KeyValueCommands.AddCommand(queryCmd)
	KeyValueCommands.AddCommand(containsCmd)
	KeyValueCommands.AddCommand(deleteCmd)
	KeyValueCommands.AddCommand(statsCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}
