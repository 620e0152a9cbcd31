package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/oudompheng/gitodb/repo"
)

func newRefsCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "refs",
		Short: "List branches, tags and remote-tracking refs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(path)
			if err != nil {
				return err
			}
			defer r.Close()

			var all []string
			for _, ns := range []string{"refs/heads", "refs/tags", "refs/remotes"} {
				names, err := r.Refs.ReferenceNames(ns)
				if err != nil {
					return err
				}
				all = append(all, names...)
			}
			sort.Strings(all)

			for _, name := range all {
				id, err := r.Refs.Reference(name)
				if err != nil {
					fmt.Printf("%s\t<unresolved: %s>\n", name, err)
					continue
				}
				fmt.Printf("%s\t%s\n", id, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "repo", ".", "repository path")
	return cmd
}
