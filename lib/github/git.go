// Copyright 2026 The Conveyor Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Ref is a git reference (branch or tag) and the object it points to.
type Ref struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

// Commit is a git commit object.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Tree    struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

// TreeEntry is one entry of a git tree: a file path plus its mode and
// content. Content-bearing entries use mode "100644" and type "blob".
type TreeEntry struct {
	Path    string `json:"path"`
	Mode    string `json:"mode"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

// Tree is a created git tree.
type Tree struct {
	SHA string `json:"sha"`
}

// GetRef fetches a reference, e.g. "heads/main".
func (client *Client) GetRef(ctx context.Context, owner, repo, ref string) (*Ref, error) {
	var result Ref
	path := fmt.Sprintf("/repos/%s/%s/git/ref/%s", owner, repo, url.PathEscape(ref))
	if err := client.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateRef creates a reference pointing at sha. The ref is the fully
// qualified name, e.g. "refs/heads/conveyor/docs-requirements".
func (client *Client) CreateRef(ctx context.Context, owner, repo, ref, sha string) (*Ref, error) {
	var result Ref
	path := fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo)
	body := map[string]string{"ref": ref, "sha": sha}
	if err := client.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateRef force-moves an existing reference to sha. Used to reuse a
// fixed automation branch across sync runs instead of accumulating
// branches.
func (client *Client) UpdateRef(ctx context.Context, owner, repo, ref, sha string) (*Ref, error) {
	var result Ref
	path := fmt.Sprintf("/repos/%s/%s/git/refs/%s", owner, repo, url.PathEscape(ref))
	body := map[string]any{"sha": sha, "force": true}
	if err := client.do(ctx, http.MethodPatch, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCommit fetches a commit object by SHA.
func (client *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error) {
	var result Commit
	path := fmt.Sprintf("/repos/%s/%s/git/commits/%s", owner, repo, sha)
	if err := client.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateTree creates a tree layered on baseTree with the given
// entries.
func (client *Client) CreateTree(ctx context.Context, owner, repo, baseTree string, entries []TreeEntry) (*Tree, error) {
	var result Tree
	path := fmt.Sprintf("/repos/%s/%s/git/trees", owner, repo)
	body := map[string]any{"base_tree": baseTree, "tree": entries}
	if err := client.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateCommit creates a commit with the given tree and parents.
func (client *Client) CreateCommit(ctx context.Context, owner, repo, message, tree string, parents []string) (*Commit, error) {
	var result Commit
	path := fmt.Sprintf("/repos/%s/%s/git/commits", owner, repo)
	body := map[string]any{"message": message, "tree": tree, "parents": parents}
	if err := client.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
