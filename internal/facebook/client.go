package facebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/esaver-notifier/internal/domain"
	"github.com/blackmichael/esaver-notifier/internal/httpclient"
)

const (
	// postFields are the Graph API fields requested for each post.
	postFields = "id,message,created_time,permalink_url"

	// graphTimeLayout is the Graph API timestamp format (e.g. 2024-05-01T08:30:00+0000).
	graphTimeLayout = "2006-01-02T15:04:05-0700"
)

var (
	ErrNoAccessToken = errors.New("failed to get access token")
	ErrNoPosts       = errors.New("failed to fetch posts")
)

// Config identifies the app and page to read from.
type Config struct {
	AppID     string
	AppSecret string
	PageID    string
	Version   string
}

// Client reads recent posts of a single page through the Graph API using an
// app access token. It implements domain.PostSource.
type Client struct {
	http   *httpclient.Client
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a Graph API client for the page in cfg.
func NewClient(graphURL string, timeout time.Duration, cfg Config, logger *slog.Logger) *Client {
	if cfg.Version == "" {
		cfg.Version = "v18.0"
	}
	return &Client{
		http:   httpclient.New(graphURL, timeout),
		cfg:    cfg,
		logger: logger,
	}
}

// RecentPosts fetches a fresh app token and then the page's newest posts.
func (c *Client) RecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("got feed access token")

	return c.Posts(ctx, token, limit)
}

// AccessToken exchanges the app credentials for an app access token.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	resp, err := c.http.Do(ctx, httpclient.Request{
		Path: "/oauth/access_token",
		Query: url.Values{
			"client_id":     {c.cfg.AppID},
			"client_secret": {c.cfg.AppSecret},
			"grant_type":    {"client_credentials"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("request access token: %w", err)
	}

	var body accessTokenResponse
	if err := resp.Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: %s", ErrNoAccessToken, body.Error.describe(resp.StatusCode))
	}
	return body.AccessToken, nil
}

// Posts lists up to limit recent posts of the configured page.
func (c *Client) Posts(ctx context.Context, accessToken string, limit int) ([]domain.Post, error) {
	resp, err := c.http.Do(ctx, httpclient.Request{
		Path: "/" + c.cfg.Version + "/" + url.PathEscape(c.cfg.PageID) + "/posts",
		Query: url.Values{
			"fields":       {postFields},
			"access_token": {accessToken},
			"limit":        {strconv.Itoa(limit)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("request posts: %w", err)
	}

	var body postsResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPosts, body.Error.describe(resp.StatusCode))
	}

	posts := make([]domain.Post, 0, len(body.Data))
	for _, p := range body.Data {
		created, err := parseGraphTime(p.CreatedTime)
		if err != nil {
			c.logger.Warn("unparseable post created_time", "post_id", p.ID, "created_time", p.CreatedTime)
		}
		posts = append(posts, domain.Post{
			ID:           p.ID,
			Message:      p.Message,
			CreatedTime:  created,
			PermalinkURL: p.PermalinkURL,
		})
	}
	return posts, nil
}

func parseGraphTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(graphTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *graphError) describe(status int) string {
	if e == nil || e.Message == "" {
		return "status " + strconv.Itoa(status)
	}
	parts := []string{e.Message}
	if e.Type != "" {
		parts = append(parts, "type "+e.Type)
	}
	if e.Code != 0 {
		parts = append(parts, "code "+strconv.Itoa(e.Code))
	}
	return strings.Join(parts, ", ")
}

type accessTokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	Error       *graphError `json:"error,omitempty"`
}

type postsResponse struct {
	Data  []graphPost `json:"data"`
	Error *graphError `json:"error,omitempty"`
}

type graphPost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
}
