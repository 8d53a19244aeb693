package services

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"youtracktogitlab/config"
	"youtracktogitlab/models"
	"youtracktogitlab/utils"
)

// YouTrackエクスポートの列名
const (
	ColumnIssueID     = "Issue Id"
	ColumnSummary     = "Summary"
	ColumnDescription = "Description"
	ColumnAssignee    = "Assignee"
	ColumnTags        = "Tags"
	ColumnType        = "Type"
	ColumnPriority    = "Priority"
	ColumnSubsystem   = "Subsystem"
	ColumnReporter    = "Reporter"
	ColumnState       = "State"
	ColumnCreated     = "Created"
)

var requiredColumns = []string{
	ColumnIssueID, ColumnSummary, ColumnDescription, ColumnAssignee, ColumnTags,
	ColumnType, ColumnPriority, ColumnSubsystem, ColumnReporter, ColumnState, ColumnCreated,
}

// YouTrackが出力する日付形式
var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
	"1/2/06 3:04 PM",
	"Jan 2, 2006",
}

// CSVProcessor はCSVファイルの読み書きを担当します
type CSVProcessor struct {
	config *config.Config
}

// NewCSVProcessor は新しいCSVプロセッサーを作成します
func NewCSVProcessor(cfg *config.Config) *CSVProcessor {
	return &CSVProcessor{
		config: cfg,
	}
}

// ReadIssues は設定された入力ファイル (CSV または XLSX) からイシューを読み込みます
func (p *CSVProcessor) ReadIssues() ([]models.SourceIssue, error) {
	path := p.config.SourceData
	utils.LogInfo("YouTrackエクスポート '%s' を読み込みます", path)

	var (
		records []models.CSVRecord
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		records, err = p.ReadXLSX(path)
	} else {
		records, err = p.ReadCSV(path)
	}
	if err != nil {
		return nil, err
	}

	issues := make([]models.SourceIssue, 0, len(records))
	for i, rec := range records {
		issue, err := recordToIssue(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "行 %d", i+2)
		}
		issues = append(issues, issue)
	}

	utils.LogInfo("YouTrackエクスポートを読み込みました: %d 行", len(issues))
	return issues, nil
}

// ReadCSV は汎用CSVリーダーです
func (p *CSVProcessor) ReadCSV(filePath string) ([]models.CSVRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "CSVオープンエラー")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "CSV読み込みエラー")
	}

	return rowsToRecords(rows)
}

// ReadXLSX は最初のシートを CSVRecord として読み込みます
func (p *CSVProcessor) ReadXLSX(filePath string) ([]models.CSVRecord, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "XLSXオープンエラー")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("XLSXにシートがありません")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "XLSX読み込みエラー")
	}

	return rowsToRecords(rows)
}

// rowsToRecords は先頭行をヘッダーとして各行をマップに変換します
func rowsToRecords(rows [][]string) ([]models.CSVRecord, error) {
	if len(rows) < 1 {
		return nil, errors.New("CSVデータが不足しています")
	}

	headers := rows[0]
	if len(headers) > 0 {
		// Excelが付与するBOMを除去
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("必要なカラムが見つかりません: %s", strings.Join(missing, ", "))
	}

	result := make([]models.CSVRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(models.CSVRecord, len(headers))
		for j := 0; j < min(len(headers), len(row)); j++ {
			rowData[headers[j]] = row[j]
		}
		result = append(result, rowData)
	}
	return result, nil
}

func recordToIssue(rec models.CSVRecord) (models.SourceIssue, error) {
	created, err := parseCreated(rec[ColumnCreated])
	if err != nil {
		return models.SourceIssue{}, err
	}

	return models.SourceIssue{
		ID:                  strings.TrimSpace(rec[ColumnIssueID]),
		Title:               rec[ColumnSummary],
		Description:         rec[ColumnDescription],
		AssigneeUsername:    assigneeKey(strings.TrimSpace(rec[ColumnAssignee])),
		ReporterDisplayName: strings.TrimSpace(rec[ColumnReporter]),
		Tags:                splitTags(rec[ColumnTags]),
		Type:                strings.TrimSpace(rec[ColumnType]),
		Priority:            strings.TrimSpace(rec[ColumnPriority]),
		Subsystem:           strings.TrimSpace(rec[ColumnSubsystem]),
		State:               strings.TrimSpace(rec[ColumnState]),
		CreatedAt:           created,
	}, nil
}

// splitTags はカンマ区切りのタグを順序を保って分割します
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseCreated はエポックミリ秒または既知の日付形式を解析します
func parseCreated(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("作成日時が空です")
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("作成日時を解析できません: '%s'", s)
}

// WriteReport は移行結果をCSVに書き込みます
func (p *CSVProcessor) WriteReport(summary *models.MigrationSummary) error {
	utils.LogInfo("移行結果レポート '%s' を作成します", p.config.ReportCSV)

	headers := []string{"Run Id", ColumnIssueID, ColumnSummary, "Outcome", "GitLab IID", "GitLab URL", "Error"}
	rows := make([][]string, 0, len(summary.Results)+1)
	rows = append(rows, headers)

	for _, r := range summary.Results {
		iid, webURL, errMsg := "", "", ""
		if r.Target != nil {
			iid = strconv.Itoa(r.Target.IID)
			webURL = r.Target.WebURL
		}
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		rows = append(rows, []string{summary.RunID, r.Issue.ID, r.Issue.Title, r.Outcome.String(), iid, webURL, errMsg})
	}

	return writeCSV(p.config.ReportCSV, rows)
}

// WritePlan はドライランの作成予定をCSVに書き込みます
func (p *CSVProcessor) WritePlan(plans []models.IssuePlan) error {
	utils.LogInfo("作成予定CSV '%s' を作成します", p.config.PlanCSV)

	headers := []string{ColumnIssueID, "Title", "Description", "Labels", "Assignee Id", "Author Id", "Close"}
	rows := make([][]string, 0, len(plans)+1)
	rows = append(rows, headers)

	for _, plan := range plans {
		assignee := ""
		if plan.AssigneeID != 0 {
			assignee = strconv.Itoa(plan.AssigneeID)
		}
		rows = append(rows, []string{
			plan.SourceID, plan.Title, plan.Description, plan.Labels,
			assignee, strconv.Itoa(plan.AuthorID), strconv.FormatBool(plan.Close),
		})
	}

	return writeCSV(p.config.PlanCSV, rows)
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "CSVファイル作成エラー")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return errors.Wrap(err, "CSV書き込みエラー")
	}

	utils.LogInfo("CSV書き込み完了: %d 行", len(rows)-1)
	return nil
}
