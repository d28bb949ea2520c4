package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage agent sessions",
	}

	cmd.AddCommand(sessionsGetCmd())
	cmd.AddCommand(sessionsMigrateCmd())
	cmd.AddCommand(sessionsAuditCmd())

	return cmd
}

func sessionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session's state and tree summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}
			var result interface{}
			if err := client.do("GET", "/v1/sessions/"+args[0], nil, &result); err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}
}

func sessionsMigrateCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "migrate <session-id>",
		Short: "Migrate a session to a different instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				return fmt.Errorf("--target is required")
			}
			client, err := newAdminClient()
			if err != nil {
				return err
			}
			body := map[string]string{"targetInstanceId": target}
			var result interface{}
			if err := client.do("POST", "/v1/sessions/"+args[0]+"/migrate", body, &result); err != nil {
				return err
			}
			printJSON(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target instance id (required)")
	return cmd
}

func sessionsAuditCmd() *cobra.Command {
	var tool string

	cmd := &cobra.Command{
		Use:   "audit <session-id>",
		Short: "Query a session's tool-call audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}
			path := "/v1/sessions/" + args[0] + "/audit"
			if tool != "" {
				path += "?tool=" + tool
			}
			var events interface{}
			if err := client.do("GET", path, nil, &events); err != nil {
				return err
			}
			printJSON(events)
			return nil
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Filter by tool name")
	return cmd
}
