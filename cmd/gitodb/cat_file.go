package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/oudompheng/gitodb/objects"
	"github.com/oudompheng/gitodb/repo"
)

func newCatFileCommand() *cobra.Command {
	var (
		path      string
		showType  bool
		showSize  bool
		pretty    bool
		humanSize bool
	)

	cmd := &cobra.Command{
		Use:   "cat-file <object>",
		Short: "Show the type, size, or content of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(path)
			if err != nil {
				return err
			}
			defer r.Close()

			short, err := objects.ShortIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid object id %q: %w", args[0], err)
			}

			kind, body, id, err := r.Objects.ReadObjectShort(short)
			if err != nil {
				return err
			}

			switch {
			case showType:
				fmt.Println(kind)
			case showSize:
				if humanSize {
					fmt.Println(humanize.Bytes(uint64(len(body))))
				} else {
					fmt.Println(len(body))
				}
			case pretty:
				return printPretty(id, kind, body)
			default:
				os.Stdout.Write(body)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "repo", ".", "repository path")
	cmd.Flags().BoolVarP(&showType, "type", "t", false, "show the object's type")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "show the object's size")
	cmd.Flags().BoolVarP(&pretty, "pretty-print", "p", false, "pretty-print the object's content")
	cmd.Flags().BoolVar(&humanSize, "human-readable", false, "show size with humanize.Bytes instead of raw bytes")
	return cmd
}

func printPretty(id objects.ID, kind objects.Kind, body []byte) error {
	switch kind {
	case objects.KindBlob:
		_, err := os.Stdout.Write(body)
		return err
	case objects.KindTree:
		return printTree(body)
	case objects.KindCommit:
		_, err := os.Stdout.Write(body)
		return err
	case objects.KindTag:
		_, err := os.Stdout.Write(body)
		return err
	default:
		return fmt.Errorf("%s: unsupported object kind %s", id, kind)
	}
}

func printTree(body []byte) error {
	tree, err := objects.ParseTreeBody(body)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries() {
		fmt.Printf("%06o %s\t%s\n", e.Mode(), e.ID(), e.Filename())
	}
	return nil
}
