package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/dataset"
)

func newFetchCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "fetch-data",
		Short: "Download the GeoNames cities and country files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				dir = a.cfg.Data.Dir
			}
			paths, err := dataset.NewFetcher(nil, a.logger).Fetch(cmd.Context(), dir, dataset.GeoNames)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to write the files to (default: data.dir)")
	return cmd
}
