// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// PullRequest is a pull request as returned by the API.
type PullRequest struct {
	Number  int    `json:"number"`
	State   string `json:"state"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	Head    struct {
		Ref string `json:"ref"`
	} `json:"head"`
	Base struct {
		Ref string `json:"ref"`
	} `json:"base"`
}

// NewPullRequest are the parameters for creating or updating a pull
// request.
type NewPullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// CreatePullRequest opens a pull request from head into base.
func (client *Client) CreatePullRequest(ctx context.Context, owner, repo string, pr NewPullRequest) (*PullRequest, error) {
	var result PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := client.do(ctx, http.MethodPost, path, pr, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListOpenPullRequestsByHead lists open pull requests whose head
// branch is head. The API requires the head filter in "owner:branch"
// form.
func (client *Client) ListOpenPullRequestsByHead(ctx context.Context, owner, repo, head string) ([]PullRequest, error) {
	var result []PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls?state=open&head=%s",
		owner, repo, url.QueryEscape(owner+":"+head))
	if err := client.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePullRequest updates the title and body of an existing pull
// request.
func (client *Client) UpdatePullRequest(ctx context.Context, owner, repo string, number int, title, body string) (*PullRequest, error) {
	var result PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number)
	payload := map[string]string{"title": title, "body": body}
	if err := client.do(ctx, http.MethodPatch, path, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EnsurePullRequest upserts a pull request on a fixed head branch:
// when an open PR from head into base already exists it is updated in
// place, otherwise one is created. Idempotent: calling it twice
// never yields two open pull requests on the same branch.
func (client *Client) EnsurePullRequest(ctx context.Context, owner, repo string, pr NewPullRequest) (*PullRequest, error) {
	open, err := client.ListOpenPullRequestsByHead(ctx, owner, repo, pr.Head)
	if err != nil {
		return nil, err
	}
	for _, existing := range open {
		if existing.Base.Ref == pr.Base {
			client.logger.Info("updating existing pull request",
				"number", existing.Number, "head", pr.Head)
			return client.UpdatePullRequest(ctx, owner, repo, existing.Number, pr.Title, pr.Body)
		}
	}
	return client.CreatePullRequest(ctx, owner, repo, pr)
}
