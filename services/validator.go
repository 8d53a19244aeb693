package services

import "youtracktogitlab/models"

// ValidationReport は解決できなかったユーザーの一覧です (初出順・重複なし)
type ValidationReport struct {
	MissingAssignees []string
	MissingReporters []string
}

// OK は全員のマッピングが解決できたかどうかを返します
func (r ValidationReport) OK() bool {
	return len(r.MissingAssignees) == 0 && len(r.MissingReporters) == 0
}

// Validate は全行の担当者と報告者がマッピングで解決できるかを確認します。
// 報告者はSudoに使うため、GitLabユーザーIDまで解決できている必要があります。
// 報告者が空欄の行は未解決として "" を報告します
func Validate(rows []models.SourceIssue, dir *UserDirectory) ValidationReport {
	var report ValidationReport
	seenAssignee := make(map[string]bool)
	seenReporter := make(map[string]bool)

	for _, row := range rows {
		assignee := assigneeKey(row.AssigneeUsername)
		if _, ok := dir.FindBySourceUsername(assignee); !ok && !seenAssignee[assignee] {
			seenAssignee[assignee] = true
			report.MissingAssignees = append(report.MissingAssignees, assignee)
		}

		reporter := row.ReporterDisplayName
		if m, ok := dir.FindBySourceDisplayName(reporter); (!ok || !m.Resolved()) && !seenReporter[reporter] {
			seenReporter[reporter] = true
			report.MissingReporters = append(report.MissingReporters, reporter)
		}
	}

	return report
}
