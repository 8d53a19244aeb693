package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"youtracktogitlab/models"
)

func TestBuildURL(t *testing.T) {
	client := NewGitLabClient("https://gitlab.example.com", nil)

	assert.Equal(t, "https://gitlab.example.com/api/v4/users", client.buildURL("/users", nil))

	params := map[string][]string{"page": {"2"}}
	assert.Equal(t, "https://gitlab.example.com/api/v4/users?page=2", client.buildURL("/users", params))
}

func TestCheckAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/user", r.URL.Path)
		if r.Header.Get("PRIVATE-TOKEN") != "admin-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(models.TargetUser{ID: 1, Username: "root"})
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)

	user, err := client.CheckAuth(context.Background(), "admin-token")
	require.NoError(t, err)
	assert.Equal(t, "root", user.Username)

	_, err = client.CheckAuth(context.Background(), "wrong")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestFindProject_Pagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects", r.URL.Path)
		assert.Equal(t, "group/app", r.URL.Query().Get("search"))
		assert.Equal(t, "true", r.URL.Query().Get("search_namespaces"))

		switch r.URL.Query().Get("page") {
		case "1":
			w.Header().Set("X-Next-Page", "2")
			json.NewEncoder(w).Encode([]models.TargetProject{
				{ID: 10, PathWithNamespace: "group/app-legacy"},
			})
		case "2":
			json.NewEncoder(w).Encode([]models.TargetProject{
				{ID: 11, PathWithNamespace: "other/app"},
				{ID: 12, PathWithNamespace: "group/app"},
			})
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	project, err := client.FindProject(context.Background(), "group/app", "token")
	require.NoError(t, err)
	assert.Equal(t, 12, project.ID)
}

func TestFindProject_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.TargetProject{{ID: 1, PathWithNamespace: "group/app2"}})
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	_, err := client.FindProject(context.Background(), "group/app", "token")
	assert.True(t, errors.Is(err, ErrProjectNotFound))
}

func TestListUsers_AllPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/users", r.URL.Path)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 3 {
			w.Header().Set("X-Next-Page", strconv.Itoa(page+1))
		}
		json.NewEncoder(w).Encode([]models.TargetUser{{ID: page, Username: "user" + strconv.Itoa(page)}})
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	users, err := client.ListUsers(context.Background(), "token")
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "user3", users[2].Username)
}

func TestListUsers_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"403 Forbidden"}`))
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	_, err := client.ListUsers(context.Background(), "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403 Forbidden")
}

func TestCreateIssue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/projects/42/issues", r.URL.Path)
		assert.Equal(t, "admin-token", r.Header.Get("PRIVATE-TOKEN"))
		assert.Equal(t, "7", r.Header.Get("Sudo"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Crash on start", body["title"])
		assert.Equal(t, "boom\nAPP-1", body["description"])
		assert.Equal(t, []interface{}{float64(3)}, body["assignee_ids"])
		assert.Equal(t, "bug,type:bug", body["labels"])
		assert.NotContains(t, body, "milestone_id")

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.TargetIssue{ID: 900, IID: 5, ProjectID: 42, State: "opened"})
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	issue, err := client.CreateIssue(context.Background(), 42, CreateIssueRequest{
		Title:       "Crash on start",
		Description: "boom\nAPP-1",
		AssigneeID:  3,
		Labels:      "bug,type:bug",
		AuthorID:    7,
	}, "admin-token")
	require.NoError(t, err)
	assert.Equal(t, 5, issue.IID)
	assert.Equal(t, 42, issue.ProjectID)
}

func TestCreateIssue_WithoutAssignee(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "assignee_ids")

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.TargetIssue{ID: 1, IID: 1, ProjectID: 42})
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	_, err := client.CreateIssue(context.Background(), 42, CreateIssueRequest{Title: "t", AuthorID: 1}, "token")
	require.NoError(t, err)
}

func TestCreateIssue_UnexpectedStatus(t *testing.T) {
	// 200 でも 201 以外は失敗として扱う
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.TargetIssue{ID: 1, IID: 1})
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	_, err := client.CreateIssue(context.Background(), 42, CreateIssueRequest{Title: "t"}, "token")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusOK, statusErr.StatusCode)
}

func TestCreateIssue_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewGitLabClient(server.URL, nil)
	_, err := client.CreateIssue(context.Background(), 42, CreateIssueRequest{Title: "t"}, "token")
	require.Error(t, err)
}

func TestCloseIssue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v4/projects/42/issues/5", r.URL.Path)
		assert.Equal(t, "assignee-token", r.Header.Get("PRIVATE-TOKEN"))
		assert.Empty(t, r.Header.Get("Sudo"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "close", body["state_event"])

		json.NewEncoder(w).Encode(models.TargetIssue{ID: 900, IID: 5, ProjectID: 42, State: "closed"})
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	err := client.CloseIssue(context.Background(), &models.TargetIssue{ID: 900, IID: 5, ProjectID: 42}, "assignee-token")
	require.NoError(t, err)
}

func TestCloseIssue_Forbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewGitLabClient(server.URL, nil)
	err := client.CloseIssue(context.Background(), &models.TargetIssue{IID: 5, ProjectID: 42}, "token")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}
