package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clipvault/internal/search"
	"clipvault/internal/service"
	"clipvault/pkg/types"
)

func newListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List clipboard history, newest first",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			setupLogging(v)

			store, _, err := openStores(v)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.GetAll(v.GetInt("limit"))
			if err != nil {
				return err
			}
			printItems(items)
			return nil
		},
	}

	addCommonFlags(cmd)
	cmd.Flags().Int("limit", 20, "maximum items to show")
	return cmd
}

func newSearchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   "Search clipboard history",
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			setupLogging(v)

			store, _, err := openStores(v)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.Search(args[0], v.GetInt("limit"))
			if err != nil {
				return err
			}

			engine := search.NewEngine()
			for _, item := range items {
				preview := engine.Highlight(item.Preview, args[0], "\x1b[1;33m", "\x1b[0m")
				fmt.Printf("%6d  %-5s  %s\n", item.ID, item.ContentType, oneLine(preview))
			}
			if len(items) == 0 {
				fmt.Println("no matches")
			}
			return nil
		},
	}

	addCommonFlags(cmd)
	cmd.Flags().Int("limit", 20, "maximum items to show")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Short:   "Delete one item (and its image file, if any)",
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			setupLogging(v)

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			svc, closeFn, err := openService(v)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.DeleteItem(id); err != nil {
				return err
			}
			fmt.Printf("deleted item %d\n", id)
			return nil
		},
	}

	addCommonFlags(cmd)
	return cmd
}

func newClearCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "clear",
		Short:   "Delete the entire history, including image files",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			setupLogging(v)

			svc, closeFn, err := openService(v)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.ClearAll(); err != nil {
				return err
			}
			fmt.Println("history cleared")
			return nil
		},
	}

	addCommonFlags(cmd)
	return cmd
}

func newCleanupCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "cleanup",
		Short:   "Remove image files no longer referenced by any item",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			setupLogging(v)

			svc, closeFn, err := openService(v)
			if err != nil {
				return err
			}
			defer closeFn()

			deleted, err := svc.CleanupOrphans()
			if err != nil {
				return err
			}
			fmt.Printf("removed %d orphaned image(s)\n", deleted)
			return nil
		},
	}

	addCommonFlags(cmd)
	return cmd
}

// openService builds a query-only service (no monitor, no clipboard access)
// over the data directory, for maintenance subcommands.
func openService(v *viper.Viper) (*service.ClipboardService, func(), error) {
	store, images, err := openStores(v)
	if err != nil {
		return nil, nil, err
	}

	svc := service.New(nil, nil, store, images, service.Options{
		MaxItems: service.MaxItems, CaptureText: true, CaptureImages: true, CaptureLinks: true,
	})
	return svc, func() { store.Close() }, nil
}

func printItems(items []*types.Item) {
	if len(items) == 0 {
		fmt.Println("history is empty")
		return
	}
	for _, item := range items {
		fmt.Printf("%6d  %-5s  %s  %s\n",
			item.ID,
			item.ContentType,
			item.Timestamp.Format("2006-01-02 15:04:05"),
			oneLine(item.Preview),
		)
	}
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", "")
}
