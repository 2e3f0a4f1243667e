package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdgould/shiny-sub001/internal/backend"
	"github.com/bdgould/shiny-sub001/internal/sparql"
)

var (
	queryFile string
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query <backend-id> [query|-]",
	Short: "Execute a SPARQL query against a backend",
	Long:  "Sends the query verbatim to the backend. The query is read from the argument, --file, or stdin when omitted or \"-\".",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := readQuery(args[1:], queryFile)
		if err != nil {
			return err
		}

		app, err := OpenApp(args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Gateway.ExecuteQuery(withContext(cmd), query, args[0])
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		return printQueryResult(os.Stdout, res, queryJSON)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [query|-]",
	Short: "Print the operation kind of a SPARQL query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := readQuery(args, queryFile)
		if err != nil {
			return err
		}
		qt, err := sparql.Parse(query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[classify] %v, treating as %s\n", err, sparql.Select)
			qt = sparql.Select
		}
		fmt.Println(qt)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the raw SPARQL JSON results")
	classifyCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file")
	rootCmd.AddCommand(queryCmd, classifyCmd)
}

// printQueryResult writes graph results as returned, ASK results as
// true/false and SELECT results as a table.
func printQueryResult(w io.Writer, res *backend.QueryResult, asJSON bool) error {
	if sparql.IsGraphResult(res.QueryType) {
		_, err := io.WriteString(w, res.Text)
		if err == nil && !strings.HasSuffix(res.Text, "\n") {
			_, err = io.WriteString(w, "\n")
		}
		return err
	}

	if asJSON {
		var buf bytes.Buffer
		if err := json.Indent(&buf, res.Data, "", "  "); err != nil {
			return fmt.Errorf("formatting results: %w", err)
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	}

	results, err := res.Results()
	if err != nil {
		return err
	}
	if results.Boolean != nil {
		_, err := fmt.Fprintln(w, *results.Boolean)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(results.Head.Vars, "\t"))
	for _, row := range results.Bindings() {
		cells := make([]string, len(results.Head.Vars))
		for i, v := range results.Head.Vars {
			if t, ok := row[v]; ok {
				cells[i] = formatTerm(t)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\n%d result(s)\n", results.Len())
	return err
}

func formatTerm(t sparql.Term) string {
	switch {
	case t.IsIRI():
		return "<" + t.Value + ">"
	case t.Type == "bnode":
		return "_:" + t.Value
	case t.Lang != "":
		return fmt.Sprintf("%q@%s", t.Value, t.Lang)
	default:
		return fmt.Sprintf("%q", t.Value)
	}
}

// withContext is the context commands run their gateway calls under.
func withContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
