// Package main implements the axonctl CLI, an operator-facing client for
// the orchestrator's admin HTTP surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "axonctl",
		Short:   "AxonFlow orchestrator CLI",
		Long: `axonctl is a command-line client for the AxonFlow orchestrator's admin
HTTP surface: instance registry, router health/budget, and session
introspection and migration.

Configure with:
  AXONCTL_ADDR  - orchestrator base URL (default http://localhost:8081)
  AXONCTL_TOKEN - bearer token for the admin API (required)`,
		Version: version,
	}

	rootCmd.AddCommand(instancesCmd())
	rootCmd.AddCommand(routerCmd())
	rootCmd.AddCommand(sessionsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
