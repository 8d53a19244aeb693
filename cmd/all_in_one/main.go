package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"youtracktogitlab/api"
	"youtracktogitlab/config"
	"youtracktogitlab/services"
	"youtracktogitlab/utils"
)

func main() {
	// 設定の読み込み (.env と環境変数)
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	cmd := &cobra.Command{
		Use:   "all_in_one",
		Short: "YouTrack → GitLab イシュー移行ツール",
		Long: `YouTrack → GitLab イシュー移行ツール

YouTrackからエクスポートしたCSV/XLSXを作成日時順に読み込み、
GitLabプロジェクトにイシューとして1件ずつ登録します。

  1. 移行先プロジェクトとGitLabユーザー一覧を取得
  2. ユーザーマッピングを読み込み、GitLabユーザーIDを解決
  3. 全行の担当者・報告者が解決できることを確認 (できなければ中止)
  4. 報告者になりすまして (Sudo) イシューを作成し、
     完了系ステータスの行は担当者のトークンでクローズ

環境変数:
  GITLAB_URL, GITLAB_TOKEN, GITLAB_PROJECT, SOURCE_DATA, USER_MAPPING,
  REPORT_CSV, PLAN_CSV, REQUEST_DELAY, HTTP_TIMEOUT, LOG_LEVEL, DRY_RUN
フラグを指定した場合は環境変数より優先されます。`,
		Example: `  all_in_one --input issues.csv --mapping users.json \
    --host https://gitlab.example.com --project group/project --token $TOKEN`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		utils.LogError("移行処理に失敗しました: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	utils.SetLogLevel(cfg.LogLevel)

	startTime := time.Now()
	utils.LogInfo("YouTrack → GitLab 移行ツール")
	utils.LogInfo("設定読み込み完了 (GitLab: %s, プロジェクト: %s, 待機時間: %s)", cfg.GitLabURL, cfg.ProjectPath, cfg.RequestDelay)

	// 必要なサービスの初期化
	client := api.NewGitLabClient(cfg.GitLabURL, &http.Client{Timeout: cfg.HTTPTimeout})
	csvProc := services.NewCSVProcessor(cfg)
	migrationService := services.NewMigrationService(cfg, client, csvProc,
		services.NewIntervalThrottle(cfg.RequestDelay), utils.DefaultStatusPrinter())

	// 移行の実行
	if _, err := migrationService.RunMigration(ctx); err != nil {
		return err
	}

	utils.LogInfo("移行処理が完了しました。合計実行時間: %s", time.Since(startTime))
	return nil
}
