package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"youtracktogitlab/models"
)

const (
	// APIPath はGitLab API v4のパスです
	APIPath = "/api/v4"

	// MaxPageSize は1ページあたりの取得件数です
	MaxPageSize = 100

	// MaxPages は不正な X-Next-Page による無限ループを防ぐ上限です
	MaxPages = 1000
)

// ErrProjectNotFound はプロジェクトが見つからない場合のエラーです
var ErrProjectNotFound = errors.New("プロジェクトが見つかりません")

// StatusError は想定外のHTTPステータスを表します
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s失敗 (HTTP %d): %s", e.Op, e.StatusCode, e.Body)
}

// CreateIssueRequest はイシュー作成時のパラメータです
type CreateIssueRequest struct {
	Title       string
	Description string
	AssigneeID  int // 0 の場合は担当者なし
	MilestoneID int // 0 の場合はマイルストーンなし
	Labels      string
	// AuthorID は Sudo で成りすますユーザーIDです
	AuthorID int
}

// GitLabClient はGitLab APIとのやり取りを処理します
type GitLabClient struct {
	baseURL string
	client  *http.Client
}

// NewGitLabClient は新しいGitLabクライアントを作成します
func NewGitLabClient(baseURL string, httpClient *http.Client) *GitLabClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GitLabClient{
		baseURL: baseURL,
		client:  httpClient,
	}
}

func (g *GitLabClient) buildURL(path string, params url.Values) string {
	u := g.baseURL + APIPath + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (g *GitLabClient) newRequest(ctx context.Context, method, u, token string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "JSONエンコードエラー")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.Wrap(err, "リクエスト作成エラー")
	}
	req.Header.Set("PRIVATE-TOKEN", token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do はリクエストを送信し、想定ステータスならレスポンスをデコードします
func (g *GitLabClient) do(req *http.Request, op string, wantStatus int, out interface{}) (*http.Response, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: リクエスト送信エラー", op)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		return resp, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, errors.Wrapf(err, "%s: レスポンス解析エラー", op)
		}
	}
	return resp, nil
}

// nextPage は X-Next-Page ヘッダーから次のページ番号を返します。0 は最終ページです
func nextPage(resp *http.Response) int {
	n, err := strconv.Atoi(resp.Header.Get("X-Next-Page"))
	if err != nil {
		return 0
	}
	return n
}

// CheckAuth はトークンを確認し、認証されたユーザーを返します
func (g *GitLabClient) CheckAuth(ctx context.Context, token string) (*models.TargetUser, error) {
	req, err := g.newRequest(ctx, http.MethodGet, g.buildURL("/user", nil), token, nil)
	if err != nil {
		return nil, err
	}

	var user models.TargetUser
	if _, err := g.do(req, "認証確認", http.StatusOK, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindProject は group/project 形式のパスに完全一致するプロジェクトを探します
func (g *GitLabClient) FindProject(ctx context.Context, path, token string) (*models.TargetProject, error) {
	page := 1
	for i := 0; i < MaxPages && page > 0; i++ {
		params := url.Values{}
		params.Set("search", path)
		params.Set("search_namespaces", "true")
		params.Set("per_page", strconv.Itoa(MaxPageSize))
		params.Set("page", strconv.Itoa(page))

		req, err := g.newRequest(ctx, http.MethodGet, g.buildURL("/projects", params), token, nil)
		if err != nil {
			return nil, err
		}

		var projects []models.TargetProject
		resp, err := g.do(req, "プロジェクト取得", http.StatusOK, &projects)
		if err != nil {
			return nil, err
		}

		for _, p := range projects {
			if p.PathWithNamespace == path {
				return &p, nil
			}
		}
		page = nextPage(resp)
	}

	return nil, errors.Wrap(ErrProjectNotFound, path)
}

// ListUsers はGitLabの全ユーザーを取得します
func (g *GitLabClient) ListUsers(ctx context.Context, token string) ([]models.TargetUser, error) {
	var users []models.TargetUser

	page := 1
	for i := 0; i < MaxPages && page > 0; i++ {
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(MaxPageSize))
		params.Set("page", strconv.Itoa(page))

		req, err := g.newRequest(ctx, http.MethodGet, g.buildURL("/users", params), token, nil)
		if err != nil {
			return nil, err
		}

		var batch []models.TargetUser
		resp, err := g.do(req, "ユーザー一覧取得", http.StatusOK, &batch)
		if err != nil {
			return nil, err
		}
		users = append(users, batch...)
		page = nextPage(resp)
	}

	return users, nil
}

type createIssuePayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AssigneeIDs []int  `json:"assignee_ids,omitempty"`
	MilestoneID int    `json:"milestone_id,omitempty"`
	Labels      string `json:"labels,omitempty"`
}

// CreateIssue はGitLabイシューを作成します。成功は 201 のみです
func (g *GitLabClient) CreateIssue(ctx context.Context, projectID int, r CreateIssueRequest, token string) (*models.TargetIssue, error) {
	payload := createIssuePayload{
		Title:       r.Title,
		Description: r.Description,
		MilestoneID: r.MilestoneID,
		Labels:      r.Labels,
	}
	if r.AssigneeID != 0 {
		payload.AssigneeIDs = []int{r.AssigneeID}
	}

	u := g.buildURL(fmt.Sprintf("/projects/%d/issues", projectID), nil)
	req, err := g.newRequest(ctx, http.MethodPost, u, token, payload)
	if err != nil {
		return nil, err
	}
	if r.AuthorID != 0 {
		req.Header.Set("Sudo", strconv.Itoa(r.AuthorID))
	}

	var issue models.TargetIssue
	if _, err := g.do(req, "イシュー作成", http.StatusCreated, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// CloseIssue はイシューをクローズします。成功は 200 のみです
func (g *GitLabClient) CloseIssue(ctx context.Context, issue *models.TargetIssue, token string) error {
	u := g.buildURL(fmt.Sprintf("/projects/%d/issues/%d", issue.ProjectID, issue.IID), nil)
	req, err := g.newRequest(ctx, http.MethodPut, u, token, map[string]string{"state_event": "close"})
	if err != nil {
		return err
	}

	_, err = g.do(req, "イシュークローズ", http.StatusOK, nil)
	return err
}
