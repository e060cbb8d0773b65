package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/mappy/cmd/kv"
	"github.com/ValentinKolb/mappy/cmd/serve"
	"github.com/ValentinKolb/mappy/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "mappy",
		Short: "space-efficient approximate key-value store",
		Long: fmt.Sprintf(`mappy (v%s)

A space-efficient approximate key-value store built on quotient-filter
maplets: queries return the stored value possibly merged with a small
number of fingerprint collisions, never missing the stored contribution.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mappy",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mappy v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
