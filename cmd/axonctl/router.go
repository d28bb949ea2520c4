package main

import "github.com/spf13/cobra"

func routerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "router",
		Short: "Inspect router health and budget state",
	}

	cmd.AddCommand(routerStatusCmd())
	cmd.AddCommand(routerBudgetCmd())

	return cmd
}

func routerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-provider health and circuit-breaker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}
			var status interface{}
			if err := client.do("GET", "/v1/router/status", nil, &status); err != nil {
				return err
			}
			printJSON(status)
			return nil
		},
	}
}

func routerBudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show current budget consumption and cost summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}
			var budget interface{}
			if err := client.do("GET", "/v1/router/budget", nil, &budget); err != nil {
				return err
			}
			printJSON(budget)
			return nil
		},
	}
}
