// Command kvs is the command-line client for a running kvs-server.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/iamNilotpal/kvs/internal/client"
	"github.com/spf13/cobra"
)

func main() {
	var addr string

	root := &cobra.Command{
		Use:   "kvs",
		Short: "kvs key-value store client",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:4000", "server IP address and port")

	root.AddCommand(
		setCmd(&addr),
		getCmd(&addr),
		rmCmd(&addr),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set the value of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(*addr)
			if err != nil {
				return err
			}
			if err := c.Set(args[0], []byte(args[1])); err != nil {
				return err
			}
			return nil
		},
	}
}

func getCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Get the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(*addr)
			if err != nil {
				return err
			}

			value, ok, err := c.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Key not found")
				return nil
			}

			fmt.Println(string(value))
			return nil
		},
	}
}

func rmCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm KEY",
		Short: "Remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Dial(*addr)
			if err != nil {
				return err
			}

			if err := c.Remove(args[0]); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "key not found") {
					fmt.Println("Key not found")
					os.Exit(1)
				}
				return err
			}

			return nil
		},
	}
}
