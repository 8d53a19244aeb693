package services

import (
	"strings"

	"youtracktogitlab/config"
)

// DeriveLabels はタグ・タイプ・優先度・サブシステムからGitLabラベルを作成します。
// 既定値 (Task, Normal, No subsystem) はラベルにしません
func DeriveLabels(tags []string, issueType, priority, subsystem string) string {
	labels := make([]string, 0, len(tags)+3)
	labels = append(labels, tags...)

	if issueType != "" && issueType != config.DefaultType {
		labels = append(labels, "type:"+strings.ToLower(issueType))
	}
	if priority != "" && priority != config.DefaultPriority {
		labels = append(labels, "priority:"+strings.ToLower(priority))
	}
	if subsystem != "" && subsystem != config.DefaultSubsystem {
		labels = append(labels, "subsystem:"+strings.ToLower(subsystem))
	}

	return strings.Join(labels, ",")
}
