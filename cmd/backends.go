package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdgould/shiny-sub001/internal/backend"
)

var backendsJSON bool

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Inspect configured backends",
}

var backendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured backends and their cache state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp("")
		if err != nil {
			return err
		}
		defer app.Close()

		type row struct {
			*backend.Config
			Cached bool `json:"cached"`
			Fresh  bool `json:"fresh"`
		}
		var rows []row
		for _, cfg := range app.Registry.Backends() {
			v, err := app.Gateway.ValidateCacheFreshness(withContext(cmd), cfg.ID)
			if err != nil {
				return err
			}
			rows = append(rows, row{Config: cfg, Cached: v.Exists, Fresh: v.Valid})
		}

		if backendsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(rows) == 0 {
			fmt.Printf("No backends configured in %s\n", app.Registry.Path)
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tAUTH\tCACHE\tENDPOINT")
		for _, r := range rows {
			state := "-"
			switch {
			case r.Fresh:
				state = "fresh"
			case r.Cached:
				state = "stale"
			}
			auth := string(r.AuthType)
			if auth == "" {
				auth = string(backend.AuthNone)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Kind, auth, state, TruncateMiddle(r.Endpoint, 60))
		}
		return tw.Flush()
	},
}

var backendsValidateCmd = &cobra.Command{
	Use:   "validate [backend-id...]",
	Short: "Check connectivity and credentials",
	Long:  "Runs a cheap ASK query against each backend (all when none are named).",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		app, err := OpenApp(target)
		if err != nil {
			return err
		}
		defer app.Close()

		ids := args
		if len(ids) == 0 {
			ids = app.Registry.IDs()
		}

		failed := 0
		for _, id := range ids {
			res := app.Gateway.ValidateBackend(withContext(cmd), id)
			if res.Valid {
				fmt.Printf("[ok]   %s\n", id)
				continue
			}
			failed++
			fmt.Printf("[fail] %s: %s\n", id, res.Error)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d backend(s) failed validation", failed, len(ids))
		}
		return nil
	},
}

var backendsForgetCmd = &cobra.Command{
	Use:   "forget <backend-id>",
	Short: "Drop the cache and cached sessions of a backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp(args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Gateway.ForgetBackend(withContext(cmd), args[0]); err != nil {
			return err
		}
		fmt.Printf("Forgot %s\n", args[0])
		return nil
	},
}

func init() {
	backendsListCmd.Flags().BoolVar(&backendsJSON, "json", false, "JSON output")
	backendsCmd.AddCommand(backendsListCmd, backendsValidateCmd, backendsForgetCmd)
	rootCmd.AddCommand(backendsCmd)
}
