// Package github builds authenticated go-github clients and adapts them to
// the download.Remote port.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com"

// Options selects how the client authenticates. When AppID is set the client
// authenticates as a GitHub App installation; otherwise Token is used.
type Options struct {
	Token          string
	BaseURL        string // "" for api.github.com
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	Timeout        time.Duration // overall per-request cap on the HTTP client
}

// NewClient creates a *github.Client according to opts.
func NewClient(opts Options) (*gogithub.Client, error) {
	if opts.AppID != 0 {
		return NewAppClient(opts.AppID, opts.InstallationID, opts.PrivateKeyPath, opts.BaseURL, opts.Timeout)
	}
	return NewTokenClient(opts.Token, opts.BaseURL, opts.Timeout), nil
}

// NewTokenClient creates a *github.Client authenticated with a personal access
// token. An empty token yields an anonymous client. Pass baseURL="" for the
// real GitHub API, or e.g. "http://localhost:9090" for the mock server.
func NewTokenClient(token, baseURL string, timeout time.Duration) *gogithub.Client {
	httpClient := &http.Client{Timeout: timeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = timeout
	}
	c := gogithub.NewClient(httpClient)
	applyBaseURL(c, baseURL)
	return c
}

// NewAppClient creates a *github.Client authenticated as a GitHub App
// installation. privateKeyPath is the path to the app's PEM private key.
func NewAppClient(appID, installationID int64, privateKeyPath, baseURL string, timeout time.Duration) (*gogithub.Client, error) {
	base := baseURL
	if base == "" {
		base = defaultAPIURL
	}

	tr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("github app auth: %w", err)
	}
	tr.BaseURL = strings.TrimSuffix(base, "/")

	c := gogithub.NewClient(&http.Client{Transport: tr, Timeout: timeout})
	applyBaseURL(c, baseURL)
	return c, nil
}

func applyBaseURL(c *gogithub.Client, baseURL string) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" || baseURL == defaultAPIURL {
		return
	}
	u, err := url.Parse(baseURL + "/")
	if err != nil {
		return
	}
	c.BaseURL = u
}
