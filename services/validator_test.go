package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"youtracktogitlab/models"
)

func testDirectory() *UserDirectory {
	return NewUserDirectory(ResolveMappings([]models.UserMapping{
		{SourceUsername: "alice", SourceDisplayName: "Alice Smith", TargetUsername: "asmith"},
		{SourceUsername: "bob", SourceDisplayName: "Bob Jones", TargetUsername: "bjones", TargetToken: "bob-token"},
		{SourceUsername: "carol", SourceDisplayName: "Carol", TargetUsername: "left-company"},
	}, []models.TargetUser{
		{ID: 11, Username: "asmith"},
		{ID: 12, Username: "bjones"},
	}))
}

func TestValidate_MissingAssigneesDeduplicated(t *testing.T) {
	rows := []models.SourceIssue{
		{ID: "A-1", AssigneeUsername: "alice", ReporterDisplayName: "Alice Smith"},
		{ID: "A-2", AssigneeUsername: "ghost", ReporterDisplayName: "Alice Smith"},
		{ID: "A-3", AssigneeUsername: "ghost", ReporterDisplayName: "Alice Smith"},
	}

	report := Validate(rows, testDirectory())

	assert.Equal(t, []string{"ghost"}, report.MissingAssignees)
	assert.Empty(t, report.MissingReporters)
	assert.False(t, report.OK())
}

func TestValidate_MissingReportersInFirstSeenOrder(t *testing.T) {
	rows := []models.SourceIssue{
		{ID: "A-1", AssigneeUsername: "alice", ReporterDisplayName: "Zed"},
		{ID: "A-2", AssigneeUsername: "alice", ReporterDisplayName: "Yan"},
		{ID: "A-3", AssigneeUsername: "alice", ReporterDisplayName: "Zed"},
		// ユーザー名では報告者を解決しない
		{ID: "A-4", AssigneeUsername: "alice", ReporterDisplayName: "alice"},
	}

	report := Validate(rows, testDirectory())

	assert.Empty(t, report.MissingAssignees)
	assert.Equal(t, []string{"Zed", "Yan", "alice"}, report.MissingReporters)
}

func TestValidate_ReporterWithoutGitLabUser(t *testing.T) {
	rows := []models.SourceIssue{
		{ID: "A-1", AssigneeUsername: "carol", ReporterDisplayName: "Carol"},
	}

	report := Validate(rows, testDirectory())

	// 担当者は未解決でも担当者なしで作成できるが、報告者はSudoに必要
	assert.Empty(t, report.MissingAssignees)
	assert.Equal(t, []string{"Carol"}, report.MissingReporters)
}

func TestValidate_UnassignedAlwaysResolves(t *testing.T) {
	rows := []models.SourceIssue{
		{ID: "A-1", AssigneeUsername: "Unassigned", ReporterDisplayName: "Bob Jones"},
		{ID: "A-2", AssigneeUsername: "", ReporterDisplayName: "Bob Jones"},
	}

	report := Validate(rows, testDirectory())
	assert.True(t, report.OK())
}

func TestValidate_EmptyReporterIsMissing(t *testing.T) {
	dir := NewUserDirectory(ResolveMappings([]models.UserMapping{
		{SourceUsername: "svc", TargetUsername: "svcbot"},
		{SourceUsername: "alice", SourceDisplayName: "Alice Smith", TargetUsername: "asmith"},
	}, []models.TargetUser{
		{ID: 99, Username: "svcbot"},
		{ID: 11, Username: "asmith"},
	}))
	rows := []models.SourceIssue{
		{ID: "A-1", AssigneeUsername: "alice", ReporterDisplayName: ""},
		{ID: "A-2", AssigneeUsername: "alice", ReporterDisplayName: "Alice Smith"},
		{ID: "A-3", AssigneeUsername: "svc", ReporterDisplayName: ""},
	}

	report := Validate(rows, dir)

	assert.Empty(t, report.MissingAssignees)
	assert.Equal(t, []string{""}, report.MissingReporters)
	assert.False(t, report.OK())
}
