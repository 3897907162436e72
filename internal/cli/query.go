package cli

import (
	"encoding/json"
	"fmt"

	ragpkg "ragservice/internal/rag"

	"github.com/spf13/cobra"
)

var (
	queryIndex  string
	searchLimit int
	searchJSON  bool
	askShowHits bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadServices()
		if err != nil {
			return err
		}
		answer, err := s.Query.Answer(cmd.Context(), ragpkg.AnswerRequest{IndexName: queryIndex, Question: args[0]})
		if err != nil {
			return err
		}
		cmd.Println(answer.Text)
		if askShowHits {
			cmd.Println()
			printHits(cmd, answer.Sources)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Show the chunks most similar to a question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadServices()
		if err != nil {
			return err
		}
		hits, err := s.Query.Search(cmd.Context(), queryIndex, args[0], searchLimit)
		if err != nil {
			return err
		}
		if searchJSON {
			data, err := json.MarshalIndent(hits, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal results: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}
		printHits(cmd, hits)
		return nil
	},
}

func printHits(cmd *cobra.Command, hits []ragpkg.SearchHit) {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return
	}
	for i, h := range hits {
		cmd.Printf("  [%d] (%.3f) %s\n", i+1, h.Score, h.Text)
	}
}

func init() {
	for _, c := range []*cobra.Command{askCmd, searchCmd} {
		c.Flags().StringVarP(&queryIndex, "index", "i", "", "index to query (required)")
		_ = c.MarkFlagRequired("index")
	}
	askCmd.Flags().BoolVar(&askShowHits, "sources", false, "also print the retrieved chunks")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 uses rag.retrieval.num_results)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")

	rootCmd.AddCommand(askCmd, searchCmd)
}
