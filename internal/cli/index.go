package cli

import (
	"encoding/json"
	"fmt"

	ragpkg "ragservice/internal/rag"

	"github.com/spf13/cobra"
)

var (
	indexDims int
	indexJSON bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create, delete and list vector indexes",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an index for vectors of the given dimension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadServices()
		if err != nil {
			return err
		}
		name := args[0]
		if err := s.Indexes.CreateIndex(cmd.Context(), ragpkg.IndexDescriptor{Name: name, Dimensions: indexDims, Metric: ragpkg.MetricCosine}); err != nil {
			return err
		}
		cmd.Printf("Index '%s' with %d dimensions created successfully\n", name, indexDims)
		return nil
	},
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete an index and every document in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadServices()
		if err != nil {
			return err
		}
		if err := s.Indexes.DeleteIndex(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Printf("Index '%s' deleted successfully\n", args[0])
		return nil
	},
}

var indexListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := loadServices()
		if err != nil {
			return err
		}
		names, err := s.Indexes.ListIndexes(cmd.Context())
		if err != nil {
			return err
		}

		if indexJSON {
			descs := make([]ragpkg.IndexDescriptor, 0, len(names))
			for _, name := range names {
				desc, err := s.Indexes.DescribeIndex(cmd.Context(), name)
				if err != nil {
					return err
				}
				descs = append(descs, *desc)
			}
			data, err := json.MarshalIndent(descs, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal indexes: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}

		if len(names) == 0 {
			cmd.Println("No indexes.")
			return nil
		}
		for _, name := range names {
			cmd.Println(name)
		}
		return nil
	},
}

func init() {
	indexCreateCmd.Flags().IntVar(&indexDims, "dims", 768, "embedding dimension")
	indexListCmd.Flags().BoolVar(&indexJSON, "json", false, "print index descriptors as JSON")

	indexCmd.AddCommand(indexCreateCmd, indexDeleteCmd, indexListCmd)
	rootCmd.AddCommand(indexCmd)
}
