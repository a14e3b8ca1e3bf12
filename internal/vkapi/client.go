package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Options configures a Client. Zero values fall back to production defaults,
// except PolitenessDelay where zero genuinely means "no delay".
type Options struct {
	Token           string
	Version         string
	BaseURL         string
	MaxRetries      int
	BaseRetryDelay  time.Duration
	RateLimitDelay  time.Duration
	PolitenessDelay time.Duration
	RequestTimeout  time.Duration
	Clock           clockwork.Clock
}

// Client calls VK API methods over HTTPS, injecting the access token and API
// version into every request and applying the retry/backoff policy.
type Client struct {
	http            *resty.Client
	token           string
	version         string
	baseURL         string
	maxRetries      int
	baseRetryDelay  time.Duration
	rateLimitDelay  time.Duration
	politenessDelay time.Duration
	clock           clockwork.Clock
}

// Ensure Client implements API
var _ API = (*Client)(nil)

// NewClient creates a VK API client.
func NewClient(opts Options) *Client {
	if opts.Version == "" {
		opts.Version = "5.131"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.vk.com/method/"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseRetryDelay <= 0 {
		opts.BaseRetryDelay = time.Second
	}
	if opts.RateLimitDelay <= 0 {
		opts.RateLimitDelay = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 300 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Client{
		http:            resty.New().SetTimeout(opts.RequestTimeout),
		token:           opts.Token,
		version:         opts.Version,
		baseURL:         opts.BaseURL,
		maxRetries:      opts.MaxRetries,
		baseRetryDelay:  opts.BaseRetryDelay,
		rateLimitDelay:  opts.RateLimitDelay,
		politenessDelay: opts.PolitenessDelay,
		clock:           opts.Clock,
	}
}

// apiEnvelope is the outer object every VK API response is wrapped in.
type apiEnvelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// Call POSTs a VK API method and returns the unwrapped response payload.
// Throttle (code 6), quota (code 29), non-JSON replies and transport
// failures are retried with backoff; any other API error fails immediately.
func (c *Client) Call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	form := url.Values{}
	for k, vs := range params {
		form[k] = vs
	}
	form.Set("access_token", c.token)
	form.Set("v", c.version)

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err := c.http.R().
			SetContext(ctx).
			SetFormDataFromValues(form).
			Post(c.baseURL + method)

		if err != nil {
			logrus.Warnf("VK API %s: network error: %v (attempt %d/%d)", method, err, attempt+1, c.maxRetries)
			if attempt == c.maxRetries-1 {
				return nil, fmt.Errorf("vk api %s: network error after %d attempts: %w", method, c.maxRetries, err)
			}
			c.clock.Sleep(backoffDelay(c.baseRetryDelay, attempt))
			continue
		}

		contentType := resp.Header().Get("Content-Type")
		if !strings.Contains(contentType, "application/json") {
			logrus.Warnf("VK API %s: unexpected Content-Type %q (attempt %d/%d)", method, contentType, attempt+1, c.maxRetries)
			if attempt < c.maxRetries-1 {
				c.clock.Sleep(backoffDelay(c.baseRetryDelay, attempt))
				continue
			}
			return nil, fmt.Errorf("vk api %s: unexpected content type %q", method, contentType)
		}

		var envelope apiEnvelope
		if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
			return nil, fmt.Errorf("vk api %s: decoding response: %w", method, err)
		}

		if resp.StatusCode() >= 400 {
			logrus.Warnf("VK API %s: HTTP %d (attempt %d/%d)", method, resp.StatusCode(), attempt+1, c.maxRetries)
			if attempt == c.maxRetries-1 {
				return nil, fmt.Errorf("vk api %s: http status %d after %d attempts", method, resp.StatusCode(), c.maxRetries)
			}
			c.clock.Sleep(backoffDelay(c.baseRetryDelay, attempt))
			continue
		}

		if envelope.Error != nil {
			apiErr := envelope.Error
			apiErr.Method = method
			act, delay := classifyAPIError(apiErr.Code, attempt, c.baseRetryDelay, c.rateLimitDelay)
			if act == actionFatal {
				return nil, apiErr
			}
			logrus.Warnf("VK API %s: code %d (%s), backing off %v (attempt %d/%d)",
				method, apiErr.Code, apiErr.Msg, delay, attempt+1, c.maxRetries)
			c.clock.Sleep(delay)
			if attempt == c.maxRetries-1 {
				return nil, fmt.Errorf("vk api %s: error not resolved after %d attempts: %w", method, c.maxRetries, apiErr)
			}
			continue
		}

		if c.politenessDelay > 0 {
			c.clock.Sleep(c.politenessDelay)
		}
		return envelope.Response, nil
	}

	return nil, fmt.Errorf("vk api %s: exhausted %d attempts", method, c.maxRetries)
}

// GroupInfo is one entry of a groups.getById response.
type GroupInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

// Post is one wall post as returned by wall.get.
type Post struct {
	ID       int64         `json:"id"`
	OwnerID  int64         `json:"owner_id"`
	FromID   int64         `json:"from_id"`
	Date     int64         `json:"date"`
	Text     string        `json:"text"`
	Comments *CommentsInfo `json:"comments"`
}

// CommentsInfo carries the comment count the API reports on a post.
type CommentsInfo struct {
	Count int `json:"count"`
}

// WallPage is one page of wall.get results.
type WallPage struct {
	Count int    `json:"count"`
	Items []Post `json:"items"`
}

// Comment is one comment as returned by wall.getComments.
type Comment struct {
	ID     int64  `json:"id"`
	FromID int64  `json:"from_id"`
	Date   int64  `json:"date"`
	Text   string `json:"text"`
}

// CommentsPage is one page of wall.getComments results.
type CommentsPage struct {
	Count int       `json:"count"`
	Items []Comment `json:"items"`
}

// GroupsGetByID resolves a group identifier (numeric id or screen name) to
// its numeric id, display name and screen name.
func (c *Client) GroupsGetByID(ctx context.Context, identifier string) ([]GroupInfo, error) {
	params := url.Values{}
	params.Set("group_id", identifier)
	params.Set("fields", "name,screen_name")

	raw, err := c.Call(ctx, "groups.getById", params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("vk api groups.getById: empty response for %q", identifier)
	}

	var groups []GroupInfo
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("vk api groups.getById: decoding payload: %w", err)
	}
	return groups, nil
}

// WallGet fetches one page of a group's own wall posts, newest first.
// ownerID must already be negated for groups.
func (c *Client) WallGet(ctx context.Context, ownerID int64, count, offset int) (*WallPage, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(ownerID, 10))
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("filter", "owner")

	raw, err := c.Call(ctx, "wall.get", params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("vk api wall.get: empty response for owner %d", ownerID)
	}

	var page WallPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("vk api wall.get: decoding payload: %w", err)
	}
	return &page, nil
}

// WallGetComments fetches one page of a post's comments in ascending date
// order, without thread expansion.
func (c *Client) WallGetComments(ctx context.Context, ownerID, postID int64, count, offset int) (*CommentsPage, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(ownerID, 10))
	params.Set("post_id", strconv.FormatInt(postID, 10))
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sort", "asc")
	params.Set("thread_items_count", "0")

	raw, err := c.Call(ctx, "wall.getComments", params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("vk api wall.getComments: empty response for post %d", postID)
	}

	var page CommentsPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("vk api wall.getComments: decoding payload: %w", err)
	}
	return &page, nil
}
