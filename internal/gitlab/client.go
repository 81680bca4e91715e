package gitlab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/slok/glexport/internal/clock"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
)

const (
	// DefaultPerPage is the default (and maximum) page size GitLab accepts.
	DefaultPerPage = 100
	// DefaultResponseHeaderTimeout is how long a request waits for the response headers.
	DefaultResponseHeaderTimeout = 90 * time.Second

	apiPrefix = "/api/v4"
	// Max bytes read from error bodies.
	maxErrorBody = 1 << 20
)

// ClientConfig is the configuration of the GitLab API client.
type ClientConfig struct {
	// BaseURL is the GitLab instance URL (e.g. https://gitlab.com).
	BaseURL string
	Token   string
	// AllProjects lists every visible project, not only the ones where the caller is a member.
	AllProjects       bool
	PerPage           int
	Retry             RetryConfig
	RequestsPerSecond float64
	// ResponseHeaderTimeout bounds the wait for the response headers of every
	// attempt, the body (e.g. an archive download) is not bounded.
	ResponseHeaderTimeout time.Duration
	// HTTPTransport is the base transport, defaults to a http.DefaultTransport
	// clone using ResponseHeaderTimeout.
	HTTPTransport http.RoundTripper
	Clock         clock.Clock
	Logger        log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL %q is not valid", c.BaseURL)
	}
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.PerPage == 0 {
		c.PerPage = DefaultPerPage
	}
	if c.PerPage < 0 || c.PerPage > DefaultPerPage {
		return fmt.Errorf("per page must be between 1 and %d", DefaultPerPage)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second can't be negative")
	}
	c.Retry.defaults()
	if c.ResponseHeaderTimeout == 0 {
		c.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	}
	if c.HTTPTransport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = c.ResponseHeaderTimeout
		c.HTTPTransport = t
	}
	if c.Clock == nil {
		c.Clock = clock.Real
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "gitlab.Client"})

	return nil
}

// Client is the GitLab REST API (v4) client.
type Client struct {
	apiURL      string
	allProjects bool
	perPage     int
	httpClient  *http.Client
	logger      log.Logger
}

// NewClient returns a new GitLab API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	transport := newTransport(transportConfig{
		Base:              cfg.HTTPTransport,
		Host:              base.Host,
		Token:             cfg.Token,
		Retry:             cfg.Retry,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Clock:             cfg.Clock,
		Logger:            cfg.Logger,
	})

	return &Client{
		apiURL:      strings.TrimRight(cfg.BaseURL, "/") + apiPrefix,
		allProjects: cfg.AllProjects,
		perPage:     cfg.PerPage,
		httpClient:  &http.Client{Transport: transport},
		logger:      cfg.Logger,
	}, nil
}

var _ API = &Client{}

func (c *Client) ListProjects(ctx context.Context, page int) (*ProjectPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.perPage))
	// Stable order so pages don't shift while walking them.
	q.Set("order_by", "id")
	q.Set("sort", "asc")
	q.Set("simple", "true")
	if !c.allProjects {
		q.Set("membership", "true")
	}

	resp, err := c.do(ctx, http.MethodGet, "/projects?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var pjs []projectJSON
	if err := json.NewDecoder(resp.Body).Decode(&pjs); err != nil {
		return nil, &model.DecodeError{Kind: "project list", Err: err}
	}

	projects := make([]model.Project, 0, len(pjs))
	for _, pj := range pjs {
		p, err := pj.toModel()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}

	pp := &ProjectPage{Projects: projects}
	if pp.Page, err = pageHeader(resp.Header, "X-Page"); err != nil {
		return nil, err
	}
	if pp.TotalPages, err = pageHeader(resp.Header, "X-Total-Pages"); err != nil {
		return nil, err
	}
	if pp.NextPage, err = pageHeader(resp.Header, "X-Next-Page"); err != nil {
		return nil, err
	}

	return pp, nil
}

func (c *Client) StartExport(ctx context.Context, projectID int64) (*StartExportResult, error) {
	resp, err := c.do(ctx, http.MethodPost, exportPath(projectID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return &StartExportResult{Accepted: true, StatusCode: resp.StatusCode}, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StartExportResult{
		Accepted:   false,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp.StatusCode, body),
	}, nil
}

func (c *Client) ExportStatus(ctx context.Context, projectID int64) (*model.ExportStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, exportPath(projectID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var ej exportStatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&ej); err != nil {
		return nil, &model.DecodeError{Kind: "export status", Err: err}
	}

	return ej.toModel(projectID)
}

func (c *Client) DownloadExport(ctx context.Context, projectID int64) (*Download, error) {
	resp, err := c.do(ctx, http.MethodGet, exportPath(projectID)+"/download")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}

	cd := resp.Header.Get("Content-Disposition")
	filename, ok := contentDispositionFilename(cd)
	if !ok {
		c.logger.Warningf("Ignoring unsafe advertised filename for project %d: %q", projectID, cd)
	}

	return &Download{
		Filename: filename,
		Size:     resp.ContentLength,
		Body:     resp.Body,
	}, nil
}

func (c *Client) do(ctx context.Context, method, urlPath string) (*http.Response, error) {
	u := c.apiURL + urlPath
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debugf("%s %s", method, urlPath)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Unwrap the url.Error so callers get our typed errors.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, uerr.Err
		}
		return nil, fmt.Errorf("executing request: %w", err)
	}

	return resp, nil
}

func exportPath(projectID int64) string {
	return fmt.Sprintf("/projects/%d/export", projectID)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &model.APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp.StatusCode, body),
	}
}

// contentDispositionFilename returns the advertised filename, empty if none.
// Returns false when a filename was advertised but it's not a plain file name.
func contentDispositionFilename(v string) (string, bool) {
	if v == "" {
		return "", true
	}

	_, params, err := mime.ParseMediaType(v)
	if err != nil {
		return "", true
	}

	name, ok := params["filename"]
	if !ok || name == "" {
		return "", true
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}

	return name, true
}
