package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oudompheng/gitodb/repo"
)

func newOpenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Verify that a path opens as a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			fmt.Printf("ok: %s\n", r.Path)
			return nil
		},
	}
	return cmd
}
