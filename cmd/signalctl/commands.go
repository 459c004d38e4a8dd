// Signalcart - Storefront Interaction Signals and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/signalcart

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags.
type globalOptions struct {
	server  string
	user    string
	role    string
	token   string
	timeout time.Duration
}

func (o *globalOptions) client() *client {
	c := newClient(o.server, o.timeout)
	c.user, c.role, c.token = o.user, o.role, o.token
	return c
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "signalctl",
		Short:         "Signalcart command line client",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", envOr("SIGNALCART_SERVER", "http://localhost:8080"), "Server base URL")
	pf.StringVar(&opts.user, "user", os.Getenv("SIGNALCART_USER"), "User ID sent in the X-User-ID header")
	pf.StringVar(&opts.role, "role", os.Getenv("SIGNALCART_ROLE"), "Role sent in the X-User-Role header")
	pf.StringVar(&opts.token, "token", os.Getenv("SIGNALCART_TOKEN"), "Bearer token for jwt mode")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")

	root.AddCommand(
		newRecordCmd(opts),
		newExportCmd(opts),
		newTrainCmd(opts),
		newStatusCmd(opts),
		newCancelCmd(opts),
		newModelsCmd(opts),
		newRecommendCmd(opts),
	)
	return root
}

func printData(cmd *cobra.Command, data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(buf))
	return err
}

func newRecordCmd(opts *globalOptions) *cobra.Command {
	var (
		userID    int64
		productID int64
		kind      string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one interaction",
		Long: `Record a CLICK, ADD_TO_CART or PURCHASE.

Storefront callers are identified by --user; service roles may name the
shopper with --user-id instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]any{"productId": productID, "interactionType": strings.ToUpper(kind)}
			if userID > 0 {
				body["userId"] = userID
			}
			data, err := opts.client().call(cmd.Context(), http.MethodPost, "/api/v1/interactions", nil, body)
			if err != nil {
				return err
			}
			return printData(cmd, data)
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Shopper ID for service callers")
	cmd.Flags().Int64Var(&productID, "product", 0, "Product ID")
	cmd.Flags().StringVar(&kind, "type", "CLICK", "Interaction type (CLICK, ADD_TO_CART, PURCHASE)")
	_ = cmd.MarkFlagRequired("product") //nolint:errcheck // flag is defined above
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		cursor uint64
		limit  int
		ndjson bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export training records after a cursor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{"cursor": {strconv.FormatUint(cursor, 10)}}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			c := opts.client()
			if ndjson {
				q.Set("format", "ndjson")
				return c.stream(cmd.Context(), "/api/v1/interactions/export", q, cmd.OutOrStdout())
			}
			data, err := c.call(cmd.Context(), http.MethodGet, "/api/v1/interactions/export", q, nil)
			if err != nil {
				return err
			}
			return printData(cmd, data)
		},
	}
	cmd.Flags().Uint64Var(&cursor, "cursor", 0, "Export records after this cursor")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum records; zero uses the server default, or everything with --ndjson")
	cmd.Flags().BoolVar(&ndjson, "ndjson", false, "Stream newline-delimited JSON")
	return cmd
}

func newTrainCmd(opts *globalOptions) *cobra.Command {
	var (
		force bool
		tag   string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Start a training run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]any{"force_retrain_all": force}
			if tag != "" {
				body["model_version_tag"] = tag
			}
			data, err := opts.client().call(cmd.Context(), http.MethodPost, "/api/v1/training", nil, body)
			if err != nil {
				return err
			}
			return printData(cmd, data)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Retrain from the start of the log")
	cmd.Flags().StringVar(&tag, "tag", "", "Version tag for the new model")
	return cmd
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show training status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().call(cmd.Context(), http.MethodGet, "/api/v1/training/status", nil, nil)
			if err != nil {
				return err
			}
			return printData(cmd, data)
		},
	}
}

func newCancelCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running training run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.client().call(cmd.Context(), http.MethodPost, "/api/v1/training/cancel", nil, nil)
			if err != nil {
				return err
			}
			return printData(cmd, data)
		},
	}
}

func newModelsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and activate model versions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored model versions",
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := opts.client().call(cmd.Context(), http.MethodGet, "/api/v1/models", nil, nil)
				if err != nil {
					return err
				}
				return printData(cmd, data)
			},
		},
		&cobra.Command{
			Use:   "active",
			Short: "Show the serving model",
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := opts.client().call(cmd.Context(), http.MethodGet, "/api/v1/models/active", nil, nil)
				if err != nil {
					return err
				}
				return printData(cmd, data)
			},
		},
		&cobra.Command{
			Use:   "activate <tag>",
			Short: "Serve a stored model version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "/api/v1/models/" + url.PathEscape(args[0]) + "/activate"
				data, err := opts.client().call(cmd.Context(), http.MethodPost, path, nil, nil)
				if err != nil {
					return err
				}
				return printData(cmd, data)
			},
		},
	)
	return cmd
}

func newRecommendCmd(opts *globalOptions) *cobra.Command {
	var (
		count   int
		exclude []int64
	)
	query := func() url.Values {
		q := url.Values{}
		if count > 0 {
			q.Set("count", strconv.Itoa(count))
		}
		if len(exclude) > 0 {
			ids := make([]string, len(exclude))
			for i, id := range exclude {
				ids[i] = strconv.FormatInt(id, 10)
			}
			q.Set("exclude", strings.Join(ids, ","))
		}
		return q
	}

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Fetch recommendations",
	}
	cmd.PersistentFlags().IntVar(&count, "count", 0, "Number of products; zero uses the server default")
	cmd.PersistentFlags().Int64SliceVar(&exclude, "exclude", nil, "Product IDs to leave out")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "homepage",
			Short: "Homepage recommendations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := opts.client().call(cmd.Context(), http.MethodGet, "/api/v1/recommendations/homepage", query(), nil)
				if err != nil {
					return err
				}
				return printData(cmd, data)
			},
		},
		&cobra.Command{
			Use:   "similar <product-id>",
			Short: "Products similar to a seed product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
					return fmt.Errorf("product id %q is not an integer", args[0])
				}
				data, err := opts.client().call(cmd.Context(), http.MethodGet, "/api/v1/recommendations/similar/"+args[0], query(), nil)
				if err != nil {
					return err
				}
				return printData(cmd, data)
			},
		},
	)
	return cmd
}
