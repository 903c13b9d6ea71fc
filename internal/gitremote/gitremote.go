// Package gitremote resolves the repository URL of a local checkout.
package gitremote

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Errors returned by OriginURL.
var (
	ErrNotRepository = errors.New("not inside a git repository")
	ErrNoOrigin      = errors.New("repository has no origin remote")
)

// OriginURL returns the normalized URL of the origin remote of the
// repository containing dir.
func OriginURL(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", ErrNotRepository
		}
		return "", fmt.Errorf("open repository: %w", err)
	}

	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", ErrNoOrigin
		}
		return "", fmt.Errorf("read origin: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || urls[0] == "" {
		return "", ErrNoOrigin
	}
	return Normalize(urls[0])
}

// Normalize turns SSH and credentialed remote forms into a plain https URL
// without the .git suffix. Userinfo is always dropped.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty remote URL")
	}

	// scp-like syntax: git@github.com:owner/repo.git
	if !strings.Contains(raw, "://") {
		at := strings.Index(raw, "@")
		colon := strings.Index(raw, ":")
		if colon <= 0 || colon < at {
			return "", fmt.Errorf("unsupported remote URL %q", raw)
		}
		host := raw[at+1 : colon]
		path := raw[colon+1:]
		return build(host, path)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse remote URL: %w", err)
	}
	switch u.Scheme {
	case "https", "http", "ssh", "git":
	default:
		return "", fmt.Errorf("unsupported remote scheme %q", u.Scheme)
	}
	return build(u.Hostname(), u.Path)
}

func build(host, path string) (string, error) {
	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if host == "" || path == "" {
		return "", fmt.Errorf("remote URL is missing host or path")
	}
	return "https://" + host + "/" + path, nil
}
