package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/phux/apiunit/apis"

	"github.com/spf13/cobra"
)

func newOperationsCmd() *cobra.Command {
	manifest := ""

	cmd := &cobra.Command{
		Use:   "operations [service]",
		Short: "list known services, or the operations of one service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := apis.Default
			if manifest != "" {
				m, err := apis.LoadManifest(manifest)
				if err != nil {
					return err
				}
				registry = apis.NewRegistry(m)
			}

			service := ""
			if len(args) == 1 {
				service = args[0]
			}

			return listOperations(cmd.Context(), registry, service, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&manifest, "manifest", "", "[optional] YAML file mapping service names to OpenAPI files (default: built-in names under ./apis)")

	return cmd
}

func listOperations(ctx context.Context, registry *apis.Registry, service string, out io.Writer) error {
	if service == "" {
		for _, name := range registry.Names() {
			fmt.Fprintln(out, name)
		}

		return nil
	}

	api, err := registry.Add(ctx, service)
	if err != nil {
		return err
	}

	for _, id := range api.Operations() {
		method, path, err := api.Endpoint(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-7s %-40s %s\n", method, path, id)
	}

	return nil
}
