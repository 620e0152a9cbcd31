package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oudompheng/gitodb/repo"
)

func newHeadCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "head",
		Short: "Resolve HEAD to an object id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(path)
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.Refs.Head()
			if err != nil {
				return err
			}
			branch, err := r.Refs.HeadRef()
			if err != nil {
				return err
			}
			if branch != "" {
				fmt.Printf("%s (%s)\n", id, branch)
			} else {
				fmt.Println(id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "repo", ".", "repository path")
	return cmd
}
