// Command cfkv is a small terminal front end for the Workers KV driver.
// Credentials come from CF_* environment variables or a YAML profile file;
// every executed operation is reported through the driver's event bus.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/events"
	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/kv"
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleUnknown = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleErr.Render("error:"), err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
		client     *kv.Client
	)

	root := &cobra.Command{
		Use:           "cfkv",
		Short:         "Manage Cloudflare Workers KV namespaces and keys",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildClient(configPath)
			if err != nil {
				return err
			}
			if verbose {
				subscribeReporter(c, cmd)
			}
			client = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML profile (defaults to CF_* environment variables)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "report every operation event")

	ns := &cobra.Command{Use: "ns", Short: "Namespace operations"}
	ns.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List namespaces",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				namespaces, _, err := client.ListNamespaces(cmd.Context(), nil)
				if err != nil {
					return err
				}
				for _, n := range namespaces {
					cmd.Printf("%s  %s\n", n.ID, n.Title)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <title>",
			Short: "Create a namespace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := client.CreateNamespace(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				cmd.Printf("%s  %s\n", n.ID, n.Title)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rename <namespace-id> <title>",
			Short: "Rename a namespace",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return client.RenameNamespace(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "delete <namespace-id>",
			Short: "Delete a namespace and all of its keys",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return client.DeleteNamespace(cmd.Context(), args[0])
			},
		},
	)
	root.AddCommand(ns)

	keys := &cobra.Command{
		Use:   "keys <namespace-id>",
		Short: "List keys in a namespace",
		Args:  cobra.ExactArgs(1),
	}
	prefix := keys.Flags().String("prefix", "", "only keys with this prefix")
	limit := keys.Flags().Int("limit", 0, "page size")
	keys.RunE = func(cmd *cobra.Command, args []string) error {
		cursor := ""
		for {
			page, err := client.ListKeys(cmd.Context(), args[0], &kv.ListKeysOptions{
				Prefix: *prefix,
				Limit:  *limit,
				Cursor: cursor,
			})
			if err != nil {
				return err
			}
			for _, k := range page.Keys {
				line := k.Name
				if k.Expiration > 0 {
					line += styleDim.Render(fmt.Sprintf("  (expires %d)", k.Expiration))
				}
				cmd.Println(line)
			}
			if page.Cursor == "" {
				return nil
			}
			cursor = page.Cursor
		}
	}
	root.AddCommand(keys)

	get := &cobra.Command{
		Use:   "get <namespace-id> <key>",
		Short: "Read the value stored for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := client.ReadValue(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			cmd.Println(value)
			return nil
		},
	}
	root.AddCommand(get)

	put := &cobra.Command{
		Use:   "put <namespace-id> <key> <value>",
		Short: "Store a value under a key",
		Args:  cobra.ExactArgs(3),
	}
	ttl := put.Flags().Int64("ttl", 0, "expiration_ttl in seconds")
	expiration := put.Flags().Int64("expiration", 0, "absolute unix expiration timestamp")
	metadata := put.Flags().String("metadata", "", "JSON metadata stored alongside the value")
	put.RunE = func(cmd *cobra.Command, args []string) error {
		opts := &kv.WriteOptions{ExpirationTTL: *ttl, Expiration: *expiration}
		if *metadata != "" {
			var parsed any
			if err := json.Unmarshal([]byte(*metadata), &parsed); err != nil {
				return fmt.Errorf("invalid --metadata: %w", err)
			}
			opts.Metadata = parsed
		}
		return client.WriteValue(cmd.Context(), args[0], args[1], args[2], opts)
	}
	root.AddCommand(put)

	del := &cobra.Command{
		Use:   "del <namespace-id> <key>...",
		Short: "Delete one or more keys",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nsID, keyArgs := args[0], args[1:]
			if len(keyArgs) == 1 {
				return client.DeleteValue(cmd.Context(), nsID, keyArgs[0])
			}
			return client.DeleteMultiple(cmd.Context(), nsID, keyArgs)
		},
	}
	root.AddCommand(del)

	return root
}

func subscribeReporter(c *kv.Client, cmd *cobra.Command) {
	c.Subscribe(events.KindSuccess, func(ev events.Event) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", styleOK.Render("ok"), ev.Command.Name)
	})
	c.Subscribe(events.KindErr, func(ev events.Event) {
		detail := ""
		if ev.Result != nil && len(ev.Result.ServiceErrors) > 0 {
			msgs := make([]string, 0, len(ev.Result.ServiceErrors))
			for _, se := range ev.Result.ServiceErrors {
				msgs = append(msgs, se.String())
			}
			detail = " " + styleDim.Render(strings.Join(msgs, "; "))
		} else if ev.ErrDetail != nil {
			detail = " " + styleDim.Render(ev.ErrDetail.Message)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s%s\n", styleErr.Render("err"), ev.Command.Name, detail)
	})
	c.Subscribe(events.KindUnknown, func(ev events.Event) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", styleUnknown.Render("unknown"), ev.Command.Name)
	})
}
