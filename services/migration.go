package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"youtracktogitlab/api"
	"youtracktogitlab/config"
	"youtracktogitlab/models"
	"youtracktogitlab/utils"
)

// ErrUnresolvedIdentities はマッピングで解決できないユーザーがいる場合のエラーです
var ErrUnresolvedIdentities = errors.New("マッピングで解決できないユーザーがいます")

// IssueTracker は移行先のイシュー管理サービスです
type IssueTracker interface {
	FindProject(ctx context.Context, path, token string) (*models.TargetProject, error)
	ListUsers(ctx context.Context, token string) ([]models.TargetUser, error)
	CreateIssue(ctx context.Context, projectID int, r api.CreateIssueRequest, token string) (*models.TargetIssue, error)
	CloseIssue(ctx context.Context, issue *models.TargetIssue, token string) error
}

// Preparation は移行前の準備 (プロジェクト・ユーザー・検証済みの行) です
type Preparation struct {
	Project   *models.TargetProject
	Directory *UserDirectory
	Issues    []models.SourceIssue // 作成日時の昇順
}

// MigrationService はYouTrackからGitLabへのイシュー移行を処理します
type MigrationService struct {
	config   *config.Config
	tracker  IssueTracker
	csvProc  *CSVProcessor
	throttle Throttle
	status   *utils.StatusPrinter
}

// NewMigrationService は新しい移行サービスを作成します
func NewMigrationService(cfg *config.Config, tracker IssueTracker, csvProc *CSVProcessor, throttle Throttle, status *utils.StatusPrinter) *MigrationService {
	return &MigrationService{
		config:   cfg,
		tracker:  tracker,
		csvProc:  csvProc,
		throttle: throttle,
		status:   status,
	}
}

// Prepare はプロジェクトとユーザーを取得し、マッピングと入力データを検証します。
// GitLabへの変更は一切行いません
func (m *MigrationService) Prepare(ctx context.Context) (*Preparation, error) {
	project, err := m.tracker.FindProject(ctx, m.config.ProjectPath, m.config.GitLabToken)
	if err != nil {
		return nil, errors.Wrap(err, "プロジェクト取得エラー")
	}
	utils.LogInfo("移行先プロジェクト: %s (ID: %d)", project.PathWithNamespace, project.ID)

	users, err := m.tracker.ListUsers(ctx, m.config.GitLabToken)
	if err != nil {
		return nil, errors.Wrap(err, "GitLabユーザー一覧取得エラー")
	}
	utils.LogInfo("GitLabユーザーを取得しました: %d 人", len(users))

	mappings, err := LoadMappings(m.config.UserMapping)
	if err != nil {
		return nil, err
	}
	dir := NewUserDirectory(ResolveMappings(mappings, users))

	issues, err := m.csvProc.ReadIssues()
	if err != nil {
		return nil, errors.Wrap(err, "YouTrackエクスポート読み込みエラー")
	}

	report := Validate(issues, dir)
	if !report.OK() {
		for _, name := range report.MissingAssignees {
			m.status.Fail("担当者のマッピングがありません: %q", name)
		}
		for _, name := range report.MissingReporters {
			m.status.Fail("報告者のマッピングがありません: %q", name)
		}
		return nil, errors.Wrapf(ErrUnresolvedIdentities, "担当者 %d 人, 報告者 %d 人",
			len(report.MissingAssignees), len(report.MissingReporters))
	}

	return &Preparation{
		Project:   project,
		Directory: dir,
		Issues:    SortIssues(issues),
	}, nil
}

// RunMigration は移行処理全体を実行します
func (m *MigrationService) RunMigration(ctx context.Context) (*models.MigrationSummary, error) {
	startTime := time.Now()
	defer utils.TrackTime(startTime, "移行処理全体")

	prep, err := m.Prepare(ctx)
	if err != nil {
		return nil, err
	}

	if m.config.DryRun {
		plans := BuildPlans(prep.Issues, prep.Directory)
		if err := m.csvProc.WritePlan(plans); err != nil {
			return nil, errors.Wrap(err, "作成予定CSV書き込みエラー")
		}
		utils.LogInfo("ドライランのためGitLabへの書き込みは行いません: %d 件", len(plans))
		return &models.MigrationSummary{RunID: uuid.NewString(), Counts: map[models.Outcome]int{}}, nil
	}

	summary, migrateErr := m.Migrate(ctx, prep.Project, prep.Directory, prep.Issues)

	// 中断された場合も未処理の行を含めてレポートを残す
	if err := m.csvProc.WriteReport(summary); err != nil {
		utils.LogError("移行結果レポート書き込みエラー: %v", err)
	}
	return summary, migrateErr
}

// Migrate は各行を作成日時順に1件ずつGitLabへ登録します。
// 1行の失敗で処理を中断することはありません。
// 待機中にコンテキストが終了した場合は残りの行をスキップとして記録し、エラーを返します
func (m *MigrationService) Migrate(ctx context.Context, project *models.TargetProject, dir *UserDirectory, issues []models.SourceIssue) (*models.MigrationSummary, error) {
	summary := &models.MigrationSummary{
		RunID:   uuid.NewString(),
		Results: make([]models.MigrationResult, 0, len(issues)),
		Counts:  make(map[models.Outcome]int),
	}
	utils.LogInfo("イシューの移行を開始します: %d 件 (run: %s)", len(issues), summary.RunID)

	var interrupted error
	sorted := SortIssues(issues)
	for i, issue := range sorted {
		log := utils.WithFields(logrus.Fields{"run_id": summary.RunID, "issue": issue.ID, "row": i + 1})

		result, attempted := m.migrateIssue(ctx, project, dir, issue)
		summary.Results = append(summary.Results, result)
		summary.Counts[result.Outcome]++
		m.reportResult(log, result)

		if !attempted {
			continue
		}
		if err := m.throttle.Wait(ctx); err != nil {
			rest := sorted[i+1:]
			log.Errorf("待機中に中断されました: %v (未処理 %d 件)", err, len(rest))
			interrupted = errors.Wrapf(err, "移行処理が中断されました (未処理 %d 件)", len(rest))
			for _, r := range rest {
				summary.Results = append(summary.Results, models.MigrationResult{
					Issue:   r,
					Outcome: models.OutcomeSkipped,
					Err:     interrupted,
				})
				summary.Counts[models.OutcomeSkipped]++
			}
			break
		}
	}

	utils.LogInfo("移行処理が完了しました: 作成=%d, 作成+クローズ=%d, クローズ失敗=%d, 作成失敗=%d, スキップ=%d",
		summary.Counts[models.OutcomeInserted],
		summary.Counts[models.OutcomeInsertedAndClosed],
		summary.Counts[models.OutcomeCloseFailed],
		summary.Counts[models.OutcomeInsertFailed],
		summary.Counts[models.OutcomeSkipped])
	return summary, interrupted
}

// migrateIssue は1行を作成し、必要ならクローズします。
// 2番目の戻り値は作成リクエストを送信したかどうかです
func (m *MigrationService) migrateIssue(ctx context.Context, project *models.TargetProject, dir *UserDirectory, issue models.SourceIssue) (models.MigrationResult, bool) {
	result := models.MigrationResult{Issue: issue}

	if strings.TrimSpace(issue.Title) == "" {
		result.Outcome = models.OutcomeSkipped
		result.Err = errors.New("タイトルが空です")
		return result, false
	}

	author, ok := dir.FindBySourceDisplayName(issue.ReporterDisplayName)
	if !ok || !author.Resolved() {
		result.Outcome = models.OutcomeSkipped
		result.Err = errors.Errorf("報告者 '%s' を解決できません", issue.ReporterDisplayName)
		return result, false
	}

	assignee, hasAssignee := dir.FindBySourceUsername(assigneeKey(issue.AssigneeUsername))
	if hasAssignee && !assignee.Resolved() && assignee.SourceUsername != config.UnassignedUsername {
		utils.LogWarn("%s: 担当者 '%s' のGitLabユーザーがないため担当者なしで作成します", issue.ID, assignee.SourceUsername)
	}

	req := api.CreateIssueRequest{
		Title:       issue.Title,
		Description: BuildDescription(issue.Description, issue.ID),
		AssigneeID:  assignee.TargetID,
		Labels:      DeriveLabels(issue.Tags, issue.Type, issue.Priority, issue.Subsystem),
		AuthorID:    author.TargetID,
	}

	created, err := m.tracker.CreateIssue(ctx, project.ID, req, m.config.GitLabToken)
	if err != nil {
		result.Outcome = models.OutcomeInsertFailed
		result.Err = err
		return result, true
	}
	if created.ProjectID == 0 {
		created.ProjectID = project.ID
	}
	result.Target = created

	if !config.IsClosedState(issue.State) {
		result.Outcome = models.OutcomeInserted
		return result, true
	}

	// 監査ログのため、可能なら担当者本人としてクローズする
	token := m.config.GitLabToken
	if hasAssignee && assignee.TargetToken != "" {
		token = assignee.TargetToken
	}
	if err := m.tracker.CloseIssue(ctx, created, token); err != nil {
		result.Outcome = models.OutcomeCloseFailed
		result.Err = err
		return result, true
	}

	result.Outcome = models.OutcomeInsertedAndClosed
	return result, true
}

func (m *MigrationService) reportResult(log *logrus.Entry, r models.MigrationResult) {
	switch r.Outcome {
	case models.OutcomeInserted:
		m.status.Pass("%s: 作成しました (#%d)", r.Issue.ID, r.Target.IID)
	case models.OutcomeInsertedAndClosed:
		m.status.Pass("%s: 作成してクローズしました (#%d)", r.Issue.ID, r.Target.IID)
	case models.OutcomeCloseFailed:
		m.status.Warn("%s: 作成しましたがクローズに失敗しました (#%d)", r.Issue.ID, r.Target.IID)
		log.Errorf("クローズ失敗: %v", r.Err)
	case models.OutcomeInsertFailed:
		m.status.Fail("%s: 作成に失敗しました", r.Issue.ID)
		log.Errorf("作成失敗: %v", r.Err)
	case models.OutcomeSkipped:
		m.status.Fail("%s: スキップしました: %v", r.Issue.ID, r.Err)
	}
}

// BuildDescription は元の説明の末尾にYouTrackのIDを付与します
func BuildDescription(description, sourceID string) string {
	if description == "" {
		return sourceID
	}
	return description + "\n" + sourceID
}

// SortIssues は作成日時の昇順に並べ替えたコピーを返します。同時刻の行は入力順を保ちます
func SortIssues(issues []models.SourceIssue) []models.SourceIssue {
	sorted := make([]models.SourceIssue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// BuildPlans はGitLabに送信する予定の内容を作成します (ドライラン用)
func BuildPlans(issues []models.SourceIssue, dir *UserDirectory) []models.IssuePlan {
	plans := make([]models.IssuePlan, 0, len(issues))
	for _, issue := range issues {
		author, _ := dir.FindBySourceDisplayName(issue.ReporterDisplayName)
		assignee, _ := dir.FindBySourceUsername(assigneeKey(issue.AssigneeUsername))
		plans = append(plans, models.IssuePlan{
			SourceID:    issue.ID,
			Title:       issue.Title,
			Description: BuildDescription(issue.Description, issue.ID),
			Labels:      DeriveLabels(issue.Tags, issue.Type, issue.Priority, issue.Subsystem),
			AssigneeID:  assignee.TargetID,
			AuthorID:    author.TargetID,
			Close:       config.IsClosedState(issue.State),
		})
	}
	return plans
}
