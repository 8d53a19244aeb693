package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// GitLab API設定
	GitLabURL   string `env:"GITLAB_URL"`
	GitLabToken string `env:"GITLAB_TOKEN"`
	ProjectPath string `env:"GITLAB_PROJECT"`

	// ファイルパス
	SourceData  string `env:"SOURCE_DATA"`
	UserMapping string `env:"USER_MAPPING"`
	ReportCSV   string `env:"REPORT_CSV" envDefault:"migration_report.csv"`
	PlanCSV     string `env:"PLAN_CSV" envDefault:"gitlab_import_plan.csv"`

	// リクエスト間隔 (GitLabのレート制限対策)
	RequestDelay time.Duration `env:"REQUEST_DELAY" envDefault:"1s"`
	// 0 の場合はタイムアウトなし
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DryRun   bool   `env:"DRY_RUN" envDefault:"false"`
}

// UnassignedUsername はYouTrackが担当者なしの行に出力する値です
const UnassignedUsername = "Unassigned"

// 既定値のラベルは付与しません
const (
	DefaultType      = "Task"
	DefaultPriority  = "Normal"
	DefaultSubsystem = "No subsystem"
)

// ClosedStates はGitLab上でクローズすべきYouTrackのステータスです
var ClosedStates = map[string]bool{
	"Can't Reproduce": true,
	"Duplicate":       true,
	"Fixed":           true,
	"Won't fix":       true,
	"Incomplete":      true,
	"Obsolete":        true,
	"Verified":        true,
	"Rejected":        true,
}

// IsClosedState はステータスがクローズ対象かどうかを返します
func IsClosedState(state string) bool {
	return ClosedStates[strings.TrimSpace(state)]
}

// LoadConfig は .env と環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	if err := loadEnvFiles(".env.local", ".env"); err != nil {
		return nil, errors.Wrap(err, ".envファイル読み込みエラー")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "環境変数の解析エラー")
	}
	cfg.GitLabURL = strings.TrimRight(cfg.GitLabURL, "/")

	return cfg, nil
}

// 存在する.envファイルのみを読み込む。
// 既に設定済みの値は上書きしないため、先に指定したファイルが優先されます
func loadEnvFiles(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// RegisterFlags はコマンドラインフラグを登録します。既定値は環境変数の値です
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.SourceData, "input", c.SourceData, "YouTrackからエクスポートしたCSV/XLSXファイルのパス")
	fs.StringVar(&c.UserMapping, "mapping", c.UserMapping, "ユーザーマッピングファイル (JSON/YAML) のパス")
	fs.StringVar(&c.GitLabURL, "host", c.GitLabURL, "GitLabのURL (例: https://gitlab.example.com)")
	fs.StringVar(&c.ProjectPath, "project", c.ProjectPath, "移行先プロジェクト (group/project)")
	fs.StringVar(&c.GitLabToken, "token", c.GitLabToken, "管理者のPersonal Access Token")
	fs.StringVar(&c.ReportCSV, "report", c.ReportCSV, "移行結果レポートCSVの出力先")
	fs.StringVar(&c.PlanCSV, "plan", c.PlanCSV, "ドライラン時の作成予定CSVの出力先")
	fs.DurationVar(&c.RequestDelay, "delay", c.RequestDelay, "イシュー作成ごとの待機時間")
	fs.DurationVar(&c.HTTPTimeout, "timeout", c.HTTPTimeout, "HTTPリクエストのタイムアウト (0はなし)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "ログレベル (debug, info, warn, error)")
	fs.BoolVar(&c.DryRun, "dry-run", c.DryRun, "GitLabを変更せずに検証と作成予定の出力のみ行う")
}

// Validate は必須パラメータがすべて指定されているかを確認します
func (c *Config) Validate() error {
	c.GitLabURL = strings.TrimRight(c.GitLabURL, "/")

	var missing []string
	if c.SourceData == "" {
		missing = append(missing, "--input (SOURCE_DATA)")
	}
	if c.UserMapping == "" {
		missing = append(missing, "--mapping (USER_MAPPING)")
	}
	if c.GitLabURL == "" {
		missing = append(missing, "--host (GITLAB_URL)")
	}
	if c.ProjectPath == "" {
		missing = append(missing, "--project (GITLAB_PROJECT)")
	}
	if c.GitLabToken == "" {
		missing = append(missing, "--token (GITLAB_TOKEN)")
	}
	if len(missing) > 0 {
		return errors.Errorf("必須パラメータが指定されていません: %s", strings.Join(missing, ", "))
	}

	if c.RequestDelay < 0 {
		return errors.Errorf("待機時間は0以上である必要があります: %s", c.RequestDelay)
	}
	return nil
}

// ValidateAuth は認証確認に必要な値だけを確認します
func (c *Config) ValidateAuth() error {
	c.GitLabURL = strings.TrimRight(c.GitLabURL, "/")
	if c.GitLabURL == "" || c.GitLabToken == "" {
		return errors.New("--host (GITLAB_URL) と --token (GITLAB_TOKEN) は必須です")
	}
	return nil
}
