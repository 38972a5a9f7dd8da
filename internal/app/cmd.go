package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// NewRootCmd はtodolistのコマンドツリーを構築する。
// サブコマンドを省略した場合はserveとして起動する。
// ログはwに出力する。
func NewRootCmd(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "todolist",
		Short:         "共有to-doリストAPIサーバー",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(w, CommandServe, runServe)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   string(CommandServe),
			Short: "APIサーバーを起動する",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandServe, runServe)
			},
		},
		newWorkerCmd(w),
		&cobra.Command{
			Use:   string(CommandMigrate),
			Short: "未適用のデータベースマイグレーションを適用する",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithConfig(w, CommandMigrate, runMigrate)
			},
		},
		newHealthcheckCmd(),
	)

	return root
}

func newWorkerCmd(w io.Writer) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   string(CommandWorker),
		Short: "期限切れセッションのクリーンアップジョブを起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(w, CommandWorker, func(c *runContext) error {
				return runWorker(c, metricsAddr)
			})
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "/metricsを公開するアドレス（例: :9090）。空の場合は公開しない")
	return cmd
}

// newHealthcheckCmd はフル初期化をスキップする軽量サブコマンドを返す。
func newHealthcheckCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   string(CommandHealthcheck),
		Short: "ローカルのAPIサーバーの/healthを確認する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = os.Getenv("SERVER_PORT")
			}
			if port == "" {
				port = "8080"
			}
			return runHealthcheck(port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "確認するポート（既定: SERVER_PORT または 8080）")
	return cmd
}
