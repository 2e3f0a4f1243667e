package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bdgould/shiny-sub001/internal/db"
	"github.com/bdgould/shiny-sub001/internal/ontology"
)

var (
	cacheJSON           bool
	cacheQuiet          bool
	cacheFormat         string
	cacheClearAll       bool
	cacheTestPhase      string
	cacheTestFile       string
	searchTypes         []string
	searchLimit         int
	searchCaseSensitive bool
	searchPrefixOnly    bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Build, inspect and search ontology caches",
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh <backend-id>",
	Short: "Rebuild a backend's ontology cache from the network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp(args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		start := time.Now()
		cache, err := app.Gateway.FetchOntologyCache(withContext(cmd), args[0], progressPrinter(os.Stderr))
		if err != nil {
			return fmt.Errorf("cache refresh failed: %w", err)
		}
		printSummary(os.Stdout, cache)
		if !cacheQuiet {
			fmt.Fprintf(os.Stderr, "[cache] built in %s\n", FormatDurationShort(time.Since(start)))
		}
		return nil
	},
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <backend-id>",
	Short: "Return the cache, building it when missing and refreshing it when stale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp(args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := withContext(cmd)
		v, err := app.Gateway.ValidateCacheFreshness(ctx, args[0])
		if err != nil {
			return err
		}
		cache, err := app.Gateway.GetCache(ctx, args[0], progressPrinter(os.Stderr))
		if err != nil {
			return err
		}
		if v.Stale && !cacheQuiet {
			fmt.Fprintf(os.Stderr, "[cache] %s is stale (age %s), refreshing in background\n",
				args[0], FormatDurationShort(v.Age))
		}
		printSummary(os.Stdout, cache)
		return nil
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status [backend-id...]",
	Short: "Show cache freshness",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp("")
		if err != nil {
			return err
		}
		defer app.Close()

		ids := args
		if len(ids) == 0 {
			ids = app.Registry.IDs()
		}
		var out []*db.CacheValidation
		for _, id := range ids {
			v, err := app.Gateway.ValidateCacheFreshness(withContext(cmd), id)
			if err != nil {
				return err
			}
			out = append(out, v)
		}

		if cacheJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printStatus(os.Stdout, out)
		return nil
	},
}

var cacheSearchCmd = &cobra.Command{
	Use:   "search <backend-id> <query>",
	Short: "Search cached classes, properties and individuals",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := db.SearchOptions{
			Query:         args[1],
			Limit:         searchLimit,
			CaseSensitive: searchCaseSensitive,
			PrefixOnly:    searchPrefixOnly,
		}
		for _, s := range searchTypes {
			for _, part := range strings.Split(s, ",") {
				typ, err := ontology.ParseElementType(strings.TrimSpace(part))
				if err != nil {
					return err
				}
				opts.Types = append(opts.Types, typ)
			}
		}

		app, err := OpenApp(args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		hits, err := app.Gateway.SearchCachedElements(withContext(cmd), args[0], opts)
		if err != nil {
			return err
		}
		if cacheJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(hits)
		}

		namespaces, err := app.Store.GetNamespaces(withContext(cmd), args[0])
		if err != nil {
			return err
		}
		printHits(os.Stdout, args[1], hits, namespaces)
		return nil
	},
}

var cacheLookupCmd = &cobra.Command{
	Use:   "lookup <backend-id> <iri|prefix:name|text>",
	Short: "Show one cached element",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp(args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := withContext(cmd)
		e, err := app.Gateway.LookupElement(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if cacheJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Type    ontology.ElementType `json:"type"`
				Element ontology.Element     `json:"element"`
			}{e.Type(), e})
		}
		namespaces, err := app.Store.GetNamespaces(ctx, args[0])
		if err != nil {
			return err
		}
		printElement(os.Stdout, e, namespaces)
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <backend-id>",
	Short: "Print the stored cache without touching the network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp(args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		cache, err := app.Gateway.ReadCache(withContext(cmd), args[0])
		if err != nil {
			return err
		}
		if cache == nil {
			return fmt.Errorf("no cache stored for %s (run: sparqlgw cache refresh %s)", args[0], args[0])
		}
		return writeCache(os.Stdout, cache, cacheFormat)
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backends with a stored cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp("")
		if err != nil {
			return err
		}
		defer app.Close()

		ids, err := app.Gateway.ListCachedBackends(withContext(cmd))
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [backend-id]",
	Short: "Delete a stored cache (or all with --all)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cacheClearAll == (len(args) == 1) {
			return fmt.Errorf("give exactly one of <backend-id> or --all")
		}
		app, err := OpenApp("")
		if err != nil {
			return err
		}
		defer app.Close()

		if cacheClearAll {
			if err := app.Store.ClearAllCaches(withContext(cmd)); err != nil {
				return err
			}
			fmt.Println("Cleared all caches")
			return nil
		}
		if err := app.Gateway.InvalidateCache(withContext(cmd), args[0]); err != nil {
			return err
		}
		fmt.Printf("Cleared cache for %s\n", args[0])
		return nil
	},
}

var cacheTestCmd = &cobra.Command{
	Use:   "test <backend-id> [query|-]",
	Short: "Run a discovery query without storing anything",
	Long:  "Runs the given query, or with --phase the configured discovery query for that phase, and reports whether it succeeded.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := OpenApp(args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		var query string
		if cacheTestPhase != "" {
			query = app.Registry.CachePolicy(args[0]).Queries.For(ontology.Phase(cacheTestPhase))
			if query == "" {
				return fmt.Errorf("unknown phase %q (want classes, properties or individuals)", cacheTestPhase)
			}
		} else if query, err = readQuery(args[1:], cacheTestFile); err != nil {
			return err
		}

		res := app.Gateway.TestCacheQuery(withContext(cmd), args[0], query)
		if cacheJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		if !res.Valid {
			return fmt.Errorf("query failed: %s", res.Error)
		}
		if res.ResultCount != nil {
			fmt.Printf("ok: %d result(s)\n", *res.ResultCount)
		} else {
			fmt.Println("ok")
		}
		return nil
	},
}

func init() {
	cacheCmd.PersistentFlags().BoolVar(&cacheJSON, "json", false, "JSON output")
	cacheRefreshCmd.Flags().BoolVarP(&cacheQuiet, "quiet", "q", false, "Suppress progress output")
	cacheGetCmd.Flags().BoolVarP(&cacheQuiet, "quiet", "q", false, "Suppress progress output")
	cacheShowCmd.Flags().StringVar(&cacheFormat, "format", "yaml", "Output format (yaml, json)")
	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "Clear every stored cache")
	cacheTestCmd.Flags().StringVar(&cacheTestPhase, "phase", "", "Test the configured query for a phase")
	cacheTestCmd.Flags().StringVarP(&cacheTestFile, "file", "f", "", "Read the query from a file")
	cacheSearchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "Element types to search (class, property, individual)")
	cacheSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", db.DefaultSearchLimit, "Maximum results")
	cacheSearchCmd.Flags().BoolVar(&searchCaseSensitive, "case-sensitive", false, "Match case exactly")
	cacheSearchCmd.Flags().BoolVar(&searchPrefixOnly, "prefix", false, "Only match prefixes")

	cacheCmd.AddCommand(cacheRefreshCmd, cacheGetCmd, cacheStatusCmd, cacheSearchCmd,
		cacheLookupCmd, cacheShowCmd, cacheListCmd, cacheClearCmd, cacheTestCmd)
	rootCmd.AddCommand(cacheCmd)
}

// progressPrinter reports build phases on w unless --quiet is set.
func progressPrinter(w io.Writer) ontology.ProgressFunc {
	return func(p ontology.Progress) {
		if cacheQuiet && p.Phase != ontology.PhaseError {
			return
		}
		fmt.Fprintf(w, "[%s] %s (%d elements)\n", p.Phase, p.Message, p.Count)
	}
}

func printSummary(w io.Writer, c *ontology.Cache) {
	m := c.Metadata
	fmt.Fprintf(w, "Cache for %s  updated %s  ttl %s\n",
		m.BackendID, m.LastUpdated.Local().Format(time.DateTime), FormatDurationShort(m.TTL))
	fmt.Fprintf(w, "  %d classes, %d properties, %d individuals, %d namespaces\n",
		m.Stats.ClassCount, m.Stats.PropertyCount, m.Stats.IndividualCount, m.Stats.NamespaceCount)
	for _, p := range ontology.SortedPrefixes(c.Namespaces) {
		fmt.Fprintf(w, "  %-8s %s\n", p+":", c.Namespaces[p])
	}
}

func printStatus(w io.Writer, vs []*db.CacheValidation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BACKEND\tSTATE\tAGE\tTTL\tEXPIRES")
	for _, v := range vs {
		if !v.Exists {
			fmt.Fprintf(tw, "%s\tmissing\t-\t-\t-\n", v.BackendID)
			continue
		}
		state := "fresh"
		if v.Stale {
			state = "stale"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.BackendID, state,
			FormatDurationShort(v.Age), FormatDurationShort(v.TTL), v.ExpiresAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}

func printHits(w io.Writer, query string, hits []db.ScoredElement, namespaces map[string]string) {
	if len(hits) == 0 {
		fmt.Fprintf(w, "No elements match: %s\n", query)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, h := range hits {
		r := h.Element.Base()
		fmt.Fprintf(tw, "%.1f\t%s\t%s\t%s\n", h.Score, h.Type,
			TruncateMiddle(ontology.Compact(namespaces, r.IRI), 60), r.Label)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d match(es)\n", len(hits))
}

func printElement(w io.Writer, e ontology.Element, namespaces map[string]string) {
	r := e.Base()
	compact := func(iris []string) string {
		out := make([]string, len(iris))
		for i, iri := range iris {
			out[i] = ontology.Compact(namespaces, iri)
		}
		return strings.Join(out, ", ")
	}

	fmt.Fprintf(w, "%s %s\n", e.Type(), r.IRI)
	if short := ontology.Compact(namespaces, r.IRI); short != r.IRI {
		fmt.Fprintf(w, "  name:        %s\n", short)
	}
	if r.Label != "" {
		fmt.Fprintf(w, "  label:       %s\n", r.Label)
	}
	if r.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", r.Description)
	}
	switch v := e.(type) {
	case *ontology.Property:
		fmt.Fprintf(w, "  kind:        %s\n", v.PropertyType)
		if len(v.Domain) > 0 {
			fmt.Fprintf(w, "  domain:      %s\n", compact(v.Domain))
		}
		if len(v.Range) > 0 {
			fmt.Fprintf(w, "  range:       %s\n", compact(v.Range))
		}
	case *ontology.Individual:
		if len(v.Classes) > 0 {
			fmt.Fprintf(w, "  types:       %s\n", compact(v.Classes))
		}
	}
}

func writeCache(w io.Writer, c *ontology.Cache, format string) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}
