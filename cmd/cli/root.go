// Command gkctl is the operator CLI for a running gatekeeper process: push
// policy commands at its HTTP ingestion endpoint and inspect shard/cache
// statistics. Its command structure follows the teacher's cmd/cli package
// (a package-level singleton client built once via PersistentPreRunE,
// shared by every subcommand).
package main

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

var (
	client     *http.Client
	clientOnce sync.Once
	apiAddr    string
)

func clientInit(cmd *cobra.Command, _ []string) error {
	clientOnce.Do(func() {
		client = &http.Client{Timeout: 5 * time.Second}
	})
	return nil
}

var rootCmd = &cobra.Command{
	Use:               "gkctl",
	Short:             "Operator CLI for the gatekeeper dataplane",
	PersistentPreRunE: clientInit,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "http://127.0.0.1:8080", "gatekeeper policy API address")
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
