package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carlo-colombo/cashsplitter/internal/codec"
	"github.com/carlo-colombo/cashsplitter/internal/merge"
	"github.com/carlo-colombo/cashsplitter/internal/models"
	"github.com/carlo-colombo/cashsplitter/internal/storage"
)

func (a *app) exportCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "export <group>",
		Short: "Print a group as a share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.loadGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if raw {
				b, err := codec.EncodeBytes(g)
				if err != nil {
					return err
				}
				_, err = a.out.Write(b)
				return err
			}
			link, err := codec.EncodeLink(g)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, link)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "write the bencoded group instead of a link")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <link|->",
		Short: "Import a shared group, merging it into the local copy",
		Long: `Import a shared group, merging it into the local copy.

The argument is a share link, or "-" to read a link or a raw bencoded
group from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			incoming, err := a.readGroup(args[0])
			if err != nil {
				return err
			}
			g, outcome, err := a.mergeLocal(cmd.Context(), incoming)
			if err != nil {
				return a.reportConflicts(err)
			}
			fmt.Fprintf(a.out, "%s %q at revision %d\n", styles.Success.Render(outcome), g.Description, g.Revision)
			fmt.Fprintf(a.out, "Key: %s\n", storage.Key(g.Identity()))
			return nil
		},
	}
}

func (a *app) mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <link> <link>",
		Short: "Merge two shared copies of a group and print the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := a.readGroup(args[0])
			if err != nil {
				return err
			}
			right, err := a.readGroup(args[1])
			if err != nil {
				return err
			}
			merged, err := merge.Merge(left, right)
			if err != nil {
				return a.reportConflicts(err)
			}
			link, err := codec.EncodeLink(merged)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, link)
			return nil
		},
	}
}

// readGroup decodes a share link, or standard input when arg is "-".
func (a *app) readGroup(arg string) (models.Group, error) {
	if arg != "-" {
		return codec.DecodeLink(strings.TrimSpace(arg))
	}
	b, err := io.ReadAll(a.in)
	if err != nil {
		return models.Group{}, err
	}
	if g, err := codec.DecodeLink(strings.TrimSpace(string(b))); err == nil {
		return g, nil
	}
	return codec.DecodeBytes(b)
}

// mergeLocal merges incoming into the stored copy of the same group, or
// stores it when there is none. It returns the stored result and what
// happened to it.
func (a *app) mergeLocal(ctx context.Context, incoming models.Group) (models.Group, string, error) {
	store, err := a.open()
	if err != nil {
		return models.Group{}, "", err
	}
	local, err := store.Get(ctx, incoming.Identity())
	if errors.Is(err, storage.ErrNotFound) {
		if err := a.save(ctx, incoming); err != nil {
			return models.Group{}, "", err
		}
		return incoming, "Imported", nil
	}
	if err != nil {
		return models.Group{}, "", err
	}

	localFP, err := codec.Fingerprint(local)
	if err != nil {
		return models.Group{}, "", err
	}
	incomingFP, err := codec.Fingerprint(incoming)
	if err != nil {
		return models.Group{}, "", err
	}
	if localFP == incomingFP {
		return local, "Unchanged", nil
	}

	merged, err := merge.Merge(local, incoming)
	if err != nil {
		return models.Group{}, "", err
	}
	if err := a.save(ctx, merged); err != nil {
		return models.Group{}, "", err
	}
	return merged, "Merged", nil
}
