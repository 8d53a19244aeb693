package models

import "time"

// UserMapping はYouTrackユーザーとGitLabユーザーの対応を表します
type UserMapping struct {
	SourceUsername    string `json:"source_username" yaml:"source_username"`
	SourceDisplayName string `json:"source_displayname" yaml:"source_displayname"`
	TargetUsername    string `json:"target_username" yaml:"target_username"`
	// TargetToken は担当者としてクローズするための個人トークン (任意)
	TargetToken string `json:"target_token,omitempty" yaml:"target_token,omitempty"`

	// TargetID はGitLabユーザー一覧との照合後にのみ設定されます
	TargetID int `json:"-" yaml:"-"`
}

// Resolved はGitLabユーザーIDが解決済みかどうかを返します
func (m UserMapping) Resolved() bool {
	return m.TargetID != 0
}

// SourceIssue はYouTrackエクスポートの1行を表します
type SourceIssue struct {
	ID                  string
	Title               string
	Description         string
	AssigneeUsername    string
	ReporterDisplayName string
	Tags                []string
	Type                string
	Priority            string
	Subsystem           string
	State               string
	CreatedAt           time.Time
}

// TargetIssue はGitLab上に作成されたイシューを表します
type TargetIssue struct {
	ID        int    `json:"id"`
	IID       int    `json:"iid"` // プロジェクト内の連番
	ProjectID int    `json:"project_id"`
	Title     string `json:"title"`
	State     string `json:"state"` // "opened", "closed"
	WebURL    string `json:"web_url"`
}

// TargetProject はGitLabプロジェクトを表します
type TargetProject struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
}

// TargetUser はGitLabユーザーを表します
type TargetUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	State    string `json:"state,omitempty"`
}

// CSVRecord はCSVの1行を表します (ヘッダー名→値のマップ)
type CSVRecord map[string]string

// Outcome は1行分の移行結果です
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeInserted
	OutcomeInsertedAndClosed
	OutcomeCloseFailed
	OutcomeInsertFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeInserted:
		return "inserted"
	case OutcomeInsertedAndClosed:
		return "inserted_and_closed"
	case OutcomeCloseFailed:
		return "close_failed"
	case OutcomeInsertFailed:
		return "insert_failed"
	default:
		return "unknown"
	}
}

// MigrationResult は1行の処理結果です
type MigrationResult struct {
	Issue   SourceIssue
	Target  *TargetIssue // 作成に失敗した場合は nil
	Outcome Outcome
	Err     error
}

// MigrationSummary は移行全体の集計です
type MigrationSummary struct {
	RunID   string
	Results []MigrationResult
	Counts  map[Outcome]int
}

// IssuePlan はドライラン時に作成予定のイシューを表します
type IssuePlan struct {
	SourceID    string
	Title       string
	Description string
	Labels      string
	AssigneeID  int
	AuthorID    int
	Close       bool
}
