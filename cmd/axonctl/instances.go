package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func instancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Inspect and manage registered worker instances",
	}

	cmd.AddCommand(instancesListCmd())
	cmd.AddCommand(instancesGetCmd())
	cmd.AddCommand(instancesDrainCmd())
	cmd.AddCommand(capacityCmd())

	return cmd
}

func instancesListCmd() *cobra.Command {
	var healthyOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}

			path := "/v1/instances"
			if healthyOnly {
				path += "?healthy=true"
			}

			var instances []interface{}
			if err := client.do("GET", path, nil, &instances); err != nil {
				return err
			}
			printJSON(instances)
			return nil
		},
	}

	cmd.Flags().BoolVar(&healthyOnly, "healthy", false, "Only show healthy or degraded instances")
	return cmd
}

func instancesGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <instance-id>",
		Short: "Show a single instance's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}

			var inst interface{}
			if err := client.do("GET", "/v1/instances/"+args[0], nil, &inst); err != nil {
				return err
			}
			printJSON(inst)
			return nil
		},
	}
	return cmd
}

func instancesDrainCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "drain <instance-id>",
		Short: "Unregister an instance with a reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}

			body := map[string]string{"reason": reason}
			var result interface{}
			if err := client.do("POST", "/v1/instances/"+args[0]+"/drain", body, &result); err != nil {
				return err
			}
			fmt.Printf("instance %s draining\n", args[0])
			printJSON(result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "operator_requested", "Reason recorded for the drain")
	return cmd
}

func capacityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Show aggregate available capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAdminClient()
			if err != nil {
				return err
			}

			var report interface{}
			if err := client.do("GET", "/v1/capacity", nil, &report); err != nil {
				return err
			}
			printJSON(report)
			return nil
		},
	}
	return cmd
}
