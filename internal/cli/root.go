// Package cli 实现 ragctl 命令行，直接在进程内调用索引与检索流水线。
package cli

import (
	"context"
	"fmt"
	"os"

	"ragservice/internal/app"
	"ragservice/internal/config"
	"ragservice/internal/logger"
	ragpkg "ragservice/internal/rag"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version 构建时通过 -ldflags 注入
var version = "dev"

// IndexManager 索引管理
type IndexManager interface {
	CreateIndex(ctx context.Context, desc ragpkg.IndexDescriptor) error
	DeleteIndex(ctx context.Context, name string) error
	ListIndexes(ctx context.Context) ([]string, error)
	DescribeIndex(ctx context.Context, name string) (*ragpkg.IndexDescriptor, error)
}

// DocumentIndexer 文档索引
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, req ragpkg.IndexRequest) (*ragpkg.IndexReport, error)
	IndexFile(ctx context.Context, req ragpkg.FileRequest) (*ragpkg.IndexReport, error)
}

// QueryService 检索与问答
type QueryService interface {
	Answer(ctx context.Context, req ragpkg.AnswerRequest) (*ragpkg.Answer, error)
	Search(ctx context.Context, index, question string, topK int) ([]ragpkg.SearchHit, error)
}

// Services 命令依赖
type Services struct {
	Indexes IndexManager
	Indexer DocumentIndexer
	Query   QueryService
}

var (
	services      *Services
	closeServices func() error

	envName    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Manage vector indexes and query them from the command line",
	Long: `ragctl runs the same indexing and retrieval pipeline as the HTTP service,
in process, against the configured vector store and model providers.`,
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if closeServices == nil {
			return nil
		}
		err := closeServices()
		closeServices = nil
		services = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", envOrDefault("APP_ENV", "dev"), "configuration environment (config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "explicit configuration file")
}

// Execute 运行根命令
func Execute() error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}

// SetServices 注入命令依赖，替代按配置组装
func SetServices(s *Services) {
	services = s
	closeServices = nil
}

// loadServices 首次使用时按配置组装依赖
func loadServices() (*Services, error) {
	if services != nil {
		return services, nil
	}

	// 与服务端一致，允许通过当前目录的 .env 提供 APP_* 变量
	_ = godotenv.Load()

	cfg, err := config.Load(envName, configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	// 标准输出留给命令结果
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, "stderr"); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	container, err := app.New(cfg, logger.Get(), app.WithoutQueue())
	if err != nil {
		return nil, err
	}

	services = &Services{
		Indexes: container.Gateway,
		Indexer: container.Indexer,
		Query:   container.Retriever,
	}
	closeServices = func() error {
		// stderr 不支持 fsync，忽略 Sync 的错误
		_ = logger.Sync()
		return container.Close()
	}
	return services, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
