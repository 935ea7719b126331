// Package search looks videos up by keyword on the YouTube results page.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"guild-jukebox/pkg/retrylimit"

	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://www.youtube.com"

// videosOnly is the results-page filter that drops channels and playlists.
const videosOnly = "EgIQAQ%3D%3D"

var (
	ErrNotFound     = errors.New("no videos found")
	ErrEmptyKeyword = errors.New("empty search keyword")

	initialDataPattern = regexp.MustCompile(`(?s)var ytInitialData\s*=\s*(\{.*?\});\s*</script>`)
)

// Result is one video from a search. Duration is the display length as the
// provider formats it and is empty for live streams.
type Result struct {
	Title    string
	ID       string
	Duration string
}

// ProviderError reports a failed or unreadable provider response.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return "search provider: " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// Client searches the catalog.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.Config
	log     zerolog.Logger
}

// New creates a client. An empty baseURL selects DefaultBaseURL and a nil
// httpClient a client with a 10s timeout.
func New(baseURL string, httpClient *http.Client, limiter *retrylimit.AdaptiveLimiter, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	log = log.With().Str("component", "search").Logger()
	retry := retrylimit.DefaultConfig()
	retry.Logger = log
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		limiter: limiter,
		retry:   retry,
		log:     log,
	}
}

// Search returns the videos matching keyword in provider order.
func (c *Client) Search(ctx context.Context, keyword string) ([]Result, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}

	var page []byte
	err := retrylimit.Do(ctx, c.limiter, c.retry, func(ctx context.Context) error {
		var err error
		page, err = c.fetch(ctx, keyword)
		return err
	})
	if err != nil {
		c.log.Warn().Err(err).Str("keyword", keyword).Msg("search request failed")
		return nil, &ProviderError{Err: err}
	}

	results, err := parseResults(page)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	c.log.Debug().Str("keyword", keyword).Int("results", len(results)).Msg("search done")
	return results, nil
}

func (c *Client) fetch(ctx context.Context, keyword string) ([]byte, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s&sp=%s", c.baseURL, url.QueryEscape(keyword), videosOnly)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, &retrylimit.Permanent{Err: err}
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := &retrylimit.StatusError{Code: resp.StatusCode, Op: "search"}
		if retrylimit.Overload(serr) {
			return nil, serr
		}
		return nil, &retrylimit.Permanent{Err: serr}
	}
	return io.ReadAll(resp.Body)
}

type textRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (t textRuns) String() string {
	var b strings.Builder
	for _, r := range t.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

type videoRenderer struct {
	VideoID    string   `json:"videoId"`
	Title      textRuns `json:"title"`
	LengthText struct {
		SimpleText string `json:"simpleText"`
	} `json:"lengthText"`
}

type initialData struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []struct {
						ItemSectionRenderer struct {
							Contents []struct {
								VideoRenderer *videoRenderer `json:"videoRenderer"`
							} `json:"contents"`
						} `json:"itemSectionRenderer"`
					} `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

// parseResults extracts the video entries embedded in a results page.
func parseResults(page []byte) ([]Result, error) {
	m := initialDataPattern.FindSubmatch(page)
	if m == nil {
		return nil, errors.New("results page has no initial data")
	}

	var data initialData
	if err := json.Unmarshal(m[1], &data); err != nil {
		return nil, fmt.Errorf("decode initial data: %w", err)
	}

	var results []Result
	seen := make(map[string]struct{})
	for _, section := range data.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents {
		for _, item := range section.ItemSectionRenderer.Contents {
			v := item.VideoRenderer
			if v == nil || v.VideoID == "" {
				continue
			}
			if _, dup := seen[v.VideoID]; dup {
				continue
			}
			seen[v.VideoID] = struct{}{}
			results = append(results, Result{
				Title:    v.Title.String(),
				ID:       v.VideoID,
				Duration: v.LengthText.SimpleText,
			})
		}
	}
	return results, nil
}
