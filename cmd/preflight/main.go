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
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "移行前チェックツール",
		Long: `移行前チェックツール

GitLabを変更せずに、ユーザーマッピングと入力データを検証し、
作成予定のイシュー (ラベル・担当者・報告者・クローズ有無) を
CSVに出力します。出力されたCSVは作成日時順です。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			utils.SetLogLevel(cfg.LogLevel)
			startTime := time.Now()

			client := api.NewGitLabClient(cfg.GitLabURL, &http.Client{Timeout: cfg.HTTPTimeout})
			csvProc := services.NewCSVProcessor(cfg)
			status := utils.DefaultStatusPrinter()
			migrationService := services.NewMigrationService(cfg, client, csvProc, services.NewIntervalThrottle(0), status)

			prep, err := migrationService.Prepare(cmd.Context())
			if err != nil {
				return err
			}

			plans := services.BuildPlans(prep.Issues, prep.Directory)
			if err := csvProc.WritePlan(plans); err != nil {
				return err
			}

			status.Pass("全 %d 件の担当者・報告者を解決できました", len(plans))
			utils.LogInfo("移行前チェックが完了しました。処理時間: %s", time.Since(startTime))
			return nil
		},
	}
	cfg.RegisterFlags(cmd.Flags())

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		utils.LogError("移行前チェックに失敗しました: %v", err)
		os.Exit(1)
	}
}
