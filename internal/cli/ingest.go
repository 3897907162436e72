package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	ragpkg "ragservice/internal/rag"

	"github.com/spf13/cobra"
)

var (
	ingestIndex       string
	ingestForce       bool
	ingestContentType string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|-]",
	Short: "Index a document file, or plain text from stdin",
	Long: `Extracts text from a PDF, DOCX, DOC or plain text file and indexes it.
The content type is detected from the file unless --content-type is given.
Use "-" to read plain text from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestIndex, "index", "i", "", "target index (required)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "rewrite chunks that are already indexed")
	ingestCmd.Flags().StringVar(&ingestContentType, "content-type", "", "override the detected content type")
	_ = ingestCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	s, err := loadServices()
	if err != nil {
		return err
	}

	var report *ragpkg.IndexReport
	if args[0] == "-" {
		text, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("读取标准输入失败: %w", err)
		}
		report, err = s.Indexer.IndexDocument(cmd.Context(), ragpkg.IndexRequest{IndexName: ingestIndex, Text: string(text), Force: ingestForce})
		if err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取文件失败: %w", err)
		}
		report, err = s.Indexer.IndexFile(cmd.Context(), ragpkg.FileRequest{
			IndexName:   ingestIndex,
			FileName:    filepath.Base(args[0]),
			ContentType: ingestContentType,
			Data:        data,
			Force:       ingestForce,
		})
		if err != nil {
			return err
		}
	}

	cmd.Printf("chunks: %d  written: %d  skipped: %d  failed: %d\n", report.Total, report.Written, report.Skipped, report.Failed)
	for _, f := range report.Failures {
		cmd.Printf("  chunk %d [%s] %s\n", f.Position, f.Code, f.Message)
	}
	if report.AllFailed() {
		return errors.New("all chunks failed to index")
	}
	return nil
}
