// Package github wraps the GitHub API behind the narrow surface the
// review pipeline needs: fetching pull request data and posting review
// comments.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gogithub "github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/reviewloop/reviewloop/internal/core"
)

// Client is the contract used by the review pipeline. Implementations
// are created per invocation because each run authenticates with the
// requesting user's token.
type Client interface {
	// GetPullRequestData fetches the PR's title, description, and unified
	// diff. Failures wrap core.ErrDiffFetchFailed.
	GetPullRequestData(ctx context.Context, owner, repo string, number int) (*core.PullRequestData, error)

	// PostComment posts a comment on the pull request's conversation.
	PostComment(ctx context.Context, owner, repo string, number int, body string) error

	// HasMarkerComment reports whether any existing comment on the pull
	// request contains marker. Used to keep re-delivered review events
	// from posting duplicates.
	HasMarkerComment(ctx context.Context, owner, repo string, number int, marker string) (bool, error)
}

// ClientFactory builds a Client for a user access token.
type ClientFactory func(ctx context.Context, token string) Client

type tokenClient struct {
	gh     *gogithub.Client
	logger *slog.Logger
}

// NewTokenClient creates a Client authenticated with a user's OAuth
// access token.
func NewTokenClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &tokenClient{gh: gogithub.NewClient(tc), logger: logger}
}

func (c *tokenClient) GetPullRequestData(ctx context.Context, owner, repo string, number int) (*core.PullRequestData, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching pull request %s/%s#%d: %v", core.ErrDiffFetchFailed, owner, repo, number, err)
	}

	diff, _, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, number, gogithub.RawOptions{Type: gogithub.Diff})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching diff for %s/%s#%d: %v", core.ErrDiffFetchFailed, owner, repo, number, err)
	}

	return &core.PullRequestData{
		Diff:        diff,
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
	}, nil
}

func (c *tokenClient) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	comment := &gogithub.IssueComment{Body: gogithub.Ptr(body)}
	_, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, comment)
	if err != nil {
		return fmt.Errorf("posting comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	c.logger.Info("posted pull request comment", "repo", owner+"/"+repo, "pr", number)
	return nil
}

func (c *tokenClient) HasMarkerComment(ctx context.Context, owner, repo string, number int, marker string) (bool, error) {
	opts := &gogithub.IssueListCommentsOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return false, fmt.Errorf("listing comments on %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, comment := range comments {
			if strings.Contains(comment.GetBody(), marker) {
				return true, nil
			}
		}
		if resp.NextPage == 0 {
			return false, nil
		}
		opts.Page = resp.NextPage
	}
}
