package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"travelbook/db/mem"
	"travelbook/order"
	"travelbook/store"
)

func ordersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "list, inspect and edit orders",
		Long: `Orders are read from the configured backend on every invocation.
Drafts for create, update and preview are JSON objects read from --file or stdin.`,
	}
	cmd.AddCommand(
		ordersListCommand(),
		ordersGetCommand(),
		ordersSearchCommand(),
		ordersSummaryCommand(),
		ordersCreateCommand(),
		ordersUpdateCommand(),
		ordersDeleteCommand(),
		ordersPreviewCommand(),
	)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readDraft decodes a draft from the --file flag, or stdin when it is empty or "-".
func readDraft(cmd *cobra.Command) (order.Draft, error) {
	var d order.Draft
	path, _ := cmd.Flags().GetString("file")

	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return d, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return d, fmt.Errorf("failed to parse draft: %w", err)
	}
	return d, nil
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", arg)
	}
	return id, nil
}

func ordersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "print every order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(cmd.Context(), cmd, false, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, a.store.Orders())
		},
	}
}

func ordersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "print one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openStore(cmd.Context(), cmd, false, true)
			if err != nil {
				return err
			}
			defer a.Close()
			o, err := a.store.Get(id)
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
}

func ordersSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "search <term>",
		Short:   "find orders by customer, phone, notes, line or partner",
		Example: `travelbook orders search 桂林`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(cmd.Context(), cmd, false, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, a.store.Search(args[0]))
		},
	}
}

func ordersSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "print count, revenue, received, cost, profit and collection totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openStore(cmd.Context(), cmd, false, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd, a.store.Summary())
		},
	}
}

func ordersCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "create an order from a JSON draft",
		Example: `travelbook orders create --file draft.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDraft(cmd)
			if err != nil {
				return err
			}
			// a failed load must not let a write replace the stored table
			a, err := openStore(cmd.Context(), cmd, false, true)
			if err != nil {
				return err
			}
			defer a.Close()
			o, err := a.store.Create(cmd.Context(), d)
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
	cmd.Flags().StringP("file", "f", "", "draft JSON file, stdin when empty")
	return cmd
}

func ordersUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "replace the inputs of an order from a JSON draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			d, err := readDraft(cmd)
			if err != nil {
				return err
			}
			a, err := openStore(cmd.Context(), cmd, false, true)
			if err != nil {
				return err
			}
			defer a.Close()
			o, err := a.store.Update(cmd.Context(), id, d)
			if err != nil {
				return err
			}
			return printJSON(cmd, o)
		},
	}
	cmd.Flags().StringP("file", "f", "", "draft JSON file, stdin when empty")
	return cmd
}

func ordersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "delete an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openStore(cmd.Context(), cmd, false, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted order %d\n", id)
			return err
		},
	}
}

func ordersPreviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "print the computed fields of a draft without saving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDraft(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// previews never touch the configured backend
			s := store.New(mem.NewInMemoryTableWrapper(), store.WithAmountPolicy(cfg.Policy()))
			return printJSON(cmd, s.ComputePreview(d))
		},
	}
	cmd.Flags().StringP("file", "f", "", "draft JSON file, stdin when empty")
	return cmd
}
