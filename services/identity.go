package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"youtracktogitlab/config"
	"youtracktogitlab/models"
	"youtracktogitlab/utils"
)

// LoadMappings はユーザーマッピングファイルを読み込みます。
// 拡張子が .yaml/.yml の場合はYAML、それ以外はJSONとして解析します
func LoadMappings(path string) ([]models.UserMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "マッピングファイル読み込みエラー")
	}

	var mappings []models.UserMapping
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &mappings)
	default:
		err = json.Unmarshal(data, &mappings)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "マッピングファイル解析エラー: %s", path)
	}

	utils.LogInfo("ユーザーマッピングを読み込みました: %d 件", len(mappings))
	return mappings, nil
}

// ResolveMappings はGitLabユーザー一覧と照合し、TargetIDを設定した新しいマッピングを返します。
// 入力のスライスは変更しません。Unassigned のマッピングが無い場合は追加します
func ResolveMappings(mappings []models.UserMapping, users []models.TargetUser) []models.UserMapping {
	byUsername := make(map[string]int, len(users))
	for _, u := range users {
		if _, ok := byUsername[u.Username]; !ok {
			byUsername[u.Username] = u.ID
		}
	}

	resolved := make([]models.UserMapping, 0, len(mappings)+1)
	hasUnassigned := false
	for _, m := range mappings {
		m.TargetID = 0
		if id, ok := byUsername[m.TargetUsername]; ok && m.TargetUsername != "" {
			m.TargetID = id
		} else if m.SourceUsername != config.UnassignedUsername {
			utils.LogWarn("GitLabユーザー '%s' が見つかりません (YouTrack: %s)", m.TargetUsername, m.SourceUsername)
		}
		if m.SourceUsername == config.UnassignedUsername {
			hasUnassigned = true
		}
		resolved = append(resolved, m)
	}

	if !hasUnassigned {
		resolved = append(resolved, models.UserMapping{
			SourceUsername:    config.UnassignedUsername,
			SourceDisplayName: config.UnassignedUsername,
		})
	}
	return resolved
}

// UserDirectory は解決済みマッピングをユーザー名と表示名の2つのキーで引けるようにします。
// キーが重複する場合は先に登録されたものが優先されます
type UserDirectory struct {
	mappings      []models.UserMapping
	byUsername    map[string]int
	byDisplayName map[string]int
}

// NewUserDirectory はマッピングから UserDirectory を作成します
func NewUserDirectory(mappings []models.UserMapping) *UserDirectory {
	d := &UserDirectory{
		mappings:      mappings,
		byUsername:    make(map[string]int, len(mappings)),
		byDisplayName: make(map[string]int, len(mappings)),
	}
	for i, m := range mappings {
		// 空のキーで引けると、空欄の行が無関係なユーザーに割り当てられる
		if _, ok := d.byUsername[m.SourceUsername]; !ok && strings.TrimSpace(m.SourceUsername) != "" {
			d.byUsername[m.SourceUsername] = i
		}
		if _, ok := d.byDisplayName[m.SourceDisplayName]; !ok && strings.TrimSpace(m.SourceDisplayName) != "" {
			d.byDisplayName[m.SourceDisplayName] = i
		}
	}
	return d
}

// Mappings はディレクトリ内のマッピングを返します
func (d *UserDirectory) Mappings() []models.UserMapping {
	return d.mappings
}

// FindBySourceUsername はYouTrackのログイン名でマッピングを探します (担当者用)
func (d *UserDirectory) FindBySourceUsername(username string) (models.UserMapping, bool) {
	i, ok := d.byUsername[username]
	if !ok {
		return models.UserMapping{}, false
	}
	return d.mappings[i], true
}

// FindBySourceDisplayName はYouTrackの表示名でマッピングを探します (報告者用)
func (d *UserDirectory) FindBySourceDisplayName(displayName string) (models.UserMapping, bool) {
	i, ok := d.byDisplayName[displayName]
	if !ok {
		return models.UserMapping{}, false
	}
	return d.mappings[i], true
}

// assigneeKey は空の担当者を Unassigned として扱います
func assigneeKey(username string) string {
	if strings.TrimSpace(username) == "" {
		return config.UnassignedUsername
	}
	return username
}
