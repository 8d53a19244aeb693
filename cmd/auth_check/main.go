package main

import (
	"context"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"youtracktogitlab/api"
	"youtracktogitlab/config"
	"youtracktogitlab/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	cmd := &cobra.Command{
		Use:   "auth_check",
		Short: "GitLab認証確認ツール",
		Long: `GitLab認証確認ツール

GitLab APIのトークンが正しく設定されているかを確認します。
移行ではSudoを使うため、管理者のトークンである必要があります。

環境変数:
  GITLAB_URL          GitLab URL (必須)
  GITLAB_TOKEN        管理者のPersonal Access Token (必須)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateAuth(); err != nil {
				return err
			}

			client := api.NewGitLabClient(cfg.GitLabURL, &http.Client{Timeout: cfg.HTTPTimeout})

			utils.LogInfo("GitLab APIの認証を確認しています...")
			user, err := client.CheckAuth(cmd.Context(), cfg.GitLabToken)
			if err != nil {
				utils.LogError("認証情報を確認してください。")
				return err
			}

			utils.DefaultStatusPrinter().Pass("GitLab認証成功！ 接続先: %s, ユーザー: %s (ID: %d)", cfg.GitLabURL, user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.GitLabURL, "host", cfg.GitLabURL, "GitLabのURL")
	cmd.Flags().StringVar(&cfg.GitLabToken, "token", cfg.GitLabToken, "管理者のPersonal Access Token")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		utils.LogError("GitLab認証エラー: %v", err)
		os.Exit(1)
	}
}
