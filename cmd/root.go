package cmd

import (
	"fmt"
	"os"

	"github.com/gonefs/gonefs/cmd/call"
	"github.com/gonefs/gonefs/cmd/serve"
	"github.com/gonefs/gonefs/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "gonefs",
		Short: "ONC RPC engine",
		Long: fmt.Sprintf(`gonefs (v%s)

An ONC RPC (Sun RPC) engine written in Go: record-marking framing over
stream transports, transaction-id correlated clients, and procedure
dispatch servers. Ships with a small demo program for trying it out.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of gonefs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gonefs v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(call.CallCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
