package kv

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [key] [value]",
		Short: "Inserts a value for a key (merged on collision)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if err := rpcStore.Insert(key, []byte(value)); err != nil {
				return err
			}
			fmt.Println("inserted successfully")
			return nil
		},
	}
	insertECmd = &cobra.Command{
		Use:   "insertE [key] [value] [expireIn]",
		Short: "Inserts a value for a key that expires after expireIn seconds",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			expireIn, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("expireIn must be a number: %w", err)
			}
			if err := rpcStore.InsertE(key, []byte(value), expireIn); err != nil {
				return err
			}
			fmt.Println("inserted successfully")
			return nil
		},
	}
	queryCmd = &cobra.Command{
		Use:   "query [key]",
		Short: "Queries the (possibly merged) value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := rpcStore.Query(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(not found)")
				return nil
			}
			fmt.Println(string(value))
			return nil
		},
	}
	containsCmd = &cobra.Command{
		Use:   "contains [key]",
		Short: "Checks whether a key is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := rpcStore.Contains(args[0])
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [key] [value]",
		Short: "Deletes one occurrence of a key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			var value []byte
			if len(args) == 2 {
				value = []byte(args[1])
			}
			last, err := rpcStore.Delete(key, value)
			if err != nil {
				return err
			}
			if last {
				fmt.Println("deleted (last occurrence)")
			} else {
				fmt.Println("deleted")
			}
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints store and engine statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetInfo()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)
