// Package main provides the RAG Lab command line client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/raglab/raglab/internal/client"
	"github.com/raglab/raglab/internal/recorder"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "raglab",
		Short: "RAG Lab - compare retrieval techniques side by side",
		Long: `RAG Lab runs retrieval-augmented generation techniques against the
same document corpus and records every execution for comparison.

Run 'raglab upload' to index documents, 'raglab query' to run a
technique, and 'raglab compare' to see how the techniques stack up.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("server", "s", "http://localhost:8080", "server URL")
	rootCmd.PersistentFlags().Bool("json", false, "print raw JSON responses")

	rootCmd.AddCommand(
		queryCmd(),
		techniquesCmd(),
		executionsCmd(),
		purgeCmd(),
		compareCmd(),
		analyzeCmd(),
		uploadCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiClient(cmd *cobra.Command) *client.Client {
	serverURL, _ := cmd.Flags().GetString("server")
	cfg := client.DefaultConfig()
	cfg.BaseURL = serverURL
	return client.New(cfg)
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Run one technique over a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tech, _ := cmd.Flags().GetString("technique")
			topK, _ := cmd.Flags().GetInt("top-k")
			noEval, _ := cmd.Flags().GetBool("no-eval")

			req := client.QueryRequest{
				Technique: tech,
				Query:     args[0],
				TopK:      topK,
			}
			if noEval {
				evaluate := false
				req.Evaluate = &evaluate
			}

			result, err := apiClient(cmd).Query(context.Background(), req)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(result)
			}

			fmt.Printf("%s\n\n", result.Answer)
			fmt.Printf("technique: %s  execution: %s\n", result.Technique, result.ID)
			printMetrics(result.Metrics)
			if len(result.Sources) > 0 {
				fmt.Println("\nsources:")
				for i, src := range result.Sources {
					fmt.Printf("  %d. %s#%d (score %.4f)\n", i+1, src.Document, src.ChunkIndex, src.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringP("technique", "t", "baseline", "technique to run")
	cmd.Flags().IntP("top-k", "k", 0, "number of chunks to retrieve (0 = server default)")
	cmd.Flags().Bool("no-eval", false, "skip quality evaluation")
	return cmd
}

func printMetrics(m recorder.Metrics) {
	var parts []string
	if m.LatencyMs != nil {
		parts = append(parts, fmt.Sprintf("latency %.0fms", *m.LatencyMs))
	}
	if m.TotalTokens != nil {
		parts = append(parts, fmt.Sprintf("tokens %d", *m.TotalTokens))
	}
	if m.CostUSD != nil {
		parts = append(parts, fmt.Sprintf("cost $%.6f", *m.CostUSD))
	}
	if m.Faithfulness != nil {
		parts = append(parts, fmt.Sprintf("faithfulness %.3f", *m.Faithfulness))
	}
	if m.AnswerRelevancy != nil {
		parts = append(parts, fmt.Sprintf("relevancy %.3f", *m.AnswerRelevancy))
	}
	if len(parts) > 0 {
		fmt.Println(strings.Join(parts, "  "))
	}
}

func techniquesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "techniques",
		Short: "List available techniques",
		RunE: func(cmd *cobra.Command, args []string) error {
			techniques, err := apiClient(cmd).Techniques(context.Background())
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(techniques)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, t := range techniques {
				fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
			}
			return w.Flush()
		},
	}
}

// filterFlags attaches the shared execution filter flags to a command.
func filterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("technique", "t", nil, "filter by technique (repeatable)")
	cmd.Flags().String("from", "", "start date (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date (RFC 3339 or YYYY-MM-DD)")
}

// parseFilter builds a filter from the shared flags.
func parseFilter(cmd *cobra.Command) (recorder.Filter, error) {
	var f recorder.Filter
	f.Techniques, _ = cmd.Flags().GetStringSlice("technique")

	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		ts, err := parseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid --from date %q", raw)
		}
		f.From = &ts
	}
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		ts, err := parseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid --to date %q", raw)
		}
		f.To = &ts
	}
	return f, nil
}

func parseDate(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}

func executionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions [id]",
		Short: "List recorded executions, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := apiClient(cmd)

			if len(args) == 1 {
				execution, err := api.GetExecution(context.Background(), args[0])
				if err != nil {
					return err
				}
				return printJSON(execution)
			}

			f, err := parseFilter(cmd)
			if err != nil {
				return err
			}
			f.Limit, _ = cmd.Flags().GetInt("limit")
			f.Offset, _ = cmd.Flags().GetInt("offset")

			executions, err := api.ListExecutions(context.Background(), f)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(executions)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTECHNIQUE\tCREATED\tQUERY")
			for _, e := range executions {
				query := e.Query
				if len(query) > 60 {
					query = query[:57] + "..."
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Technique, e.CreatedAt.Format(time.RFC3339), query)
			}
			return w.Flush()
		},
	}

	filterFlags(cmd)
	cmd.Flags().Int("limit", 50, "maximum executions to list")
	cmd.Flags().Int("offset", 0, "executions to skip")
	return cmd
}

func purgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete recorded executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(cmd)
			if err != nil {
				return err
			}

			confirmed, _ := cmd.Flags().GetBool("yes")
			if !confirmed {
				return fmt.Errorf("purge is permanent; re-run with --yes to confirm")
			}

			purged, err := apiClient(cmd).PurgeExecutions(context.Background(), f)
			if err != nil {
				return err
			}
			fmt.Printf("purged %d executions\n", purged)
			return nil
		},
	}

	filterFlags(cmd)
	cmd.Flags().BoolP("yes", "y", false, "confirm deletion")
	return cmd
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Show the per-technique comparison",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(cmd)
			if err != nil {
				return err
			}

			result, err := apiClient(cmd).Comparison(context.Background(), f)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(result)
			}

			if result.NoData {
				fmt.Println("no executions recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TECHNIQUE\tRUNS\tLATENCY\tCOST\tFAITHFUL\tRELEVANT\tPRECISION\tRECALL\tTOP3")
			for _, row := range result.Rows {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					row.Technique,
					row.ExecutionCount,
					fmtAvg(row.AvgLatencyMs, "%.0fms"),
					fmtAvg(row.AvgCostUSD, "$%.6f"),
					fmtAvg(row.AvgFaithfulness, "%.3f"),
					fmtAvg(row.AvgAnswerRelevancy, "%.3f"),
					fmtAvg(row.AvgContextPrecision, "%.3f"),
					fmtAvg(row.AvgContextRecall, "%.3f"),
					fmtAvg(row.AvgTop3Mean, "%.3f"),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(result.Rankings) > 0 {
				fmt.Println("\nrankings:")
				for category, ranked := range result.Rankings {
					fmt.Printf("  %s: %s\n", category, strings.Join(ranked, " > "))
				}
			}
			return nil
		},
	}

	filterFlags(cmd)
	return cmd
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [question]",
		Short: "Ask the LLM to analyze the comparison data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var question string
			if len(args) == 1 {
				question = args[0]
			}

			analysis, err := apiClient(cmd).Analyze(context.Background(), question)
			if err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(analysis)
			}

			fmt.Printf("%s\n\n", analysis.Response)
			fmt.Printf("analysis: %s  (%.0fms)\n", analysis.ID, analysis.DurationMs)
			return nil
		},
	}
}

func fmtAvg(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents for indexing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name applies to a single file")
			}

			api := apiClient(cmd)
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				document := name
				if document == "" {
					document = filepath.Base(path)
				}

				result, err := api.UploadDocument(context.Background(), document, string(data))
				if err != nil {
					return fmt.Errorf("uploading %s: %w", path, err)
				}
				fmt.Printf("%s: %d chunks in %dms\n", result.Document, result.Chunks, result.DurationMs)
			}
			return nil
		},
	}

	cmd.Flags().String("name", "", "document name (defaults to the file name)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("raglab %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
