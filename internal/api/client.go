package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// RepoResponse is the subset of the coverage service's repository payload
// the dashboard reads.
type RepoResponse struct {
	Name   string `json:"name"`
	Totals struct {
		Coverage json.Number `json:"coverage"`
		Files    int         `json:"files"`
		Lines    int         `json:"lines"`
	} `json:"totals"`
}

type CoverageClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewCoverageClient(baseURL, token string) *CoverageClient {
	return &CoverageClient{
		token:   token,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *CoverageClient) GetRepo(ctx context.Context, owner, repo string) (*RepoResponse, error) {
	endpoint := fmt.Sprintf("%s/api/v2/github/%s/repos/%s/", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var repoResp RepoResponse
	if err := json.NewDecoder(resp.Body).Decode(&repoResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &repoResp, nil
}

// ProjectCoverage returns the repository's total line coverage percentage.
func (c *CoverageClient) ProjectCoverage(ctx context.Context, owner, repo string) (float64, error) {
	r, err := c.GetRepo(ctx, owner, repo)
	if err != nil {
		return 0, err
	}
	pct, err := strconv.ParseFloat(r.Totals.Coverage.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing coverage %q: %w", r.Totals.Coverage, err)
	}
	return pct, nil
}
