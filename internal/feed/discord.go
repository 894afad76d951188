package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultBaseURL is the Discord REST API root used when no override is
// configured. Tests point this at an httptest server instead.
const DefaultBaseURL = "https://discord.com/api/v10"

// connection pooling limits; the client talks to a single host
const (
	defaultMaxIdleConns    = 10
	defaultIdleConnTimeout = 60 * time.Second
)

// DiscordClient fetches recent channel messages from the Discord REST API.
//
// DiscordClient implements [Client]. It holds no gateway connection; every
// call is a plain authenticated HTTP request with a per-request timeout
// applied via context.
type DiscordClient struct {
	baseURL    string
	botToken   string
	channelID  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewDiscordClient creates a [DiscordClient] for one channel.
//
// baseURL may be empty, in which case [DefaultBaseURL] is used. timeout
// bounds every request; a hung call is surfaced as a fetch error rather
// than stalling the caller.
func NewDiscordClient(baseURL, botToken, channelID string, timeout time.Duration) *DiscordClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &DiscordClient{
		baseURL:   baseURL,
		botToken:  botToken,
		channelID: channelID,
		timeout:   timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    defaultMaxIdleConns,
				IdleConnTimeout: defaultIdleConnTimeout,
			},
		},
	}
}

// discordMessage mirrors the fields of the REST API's message object that
// the relay cares about.
type discordMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Author    struct {
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
	} `json:"author"`
}

// RecentMessages fetches up to limit messages from the channel, newest
// first (the API's natural order). Messages whose timestamp cannot be
// parsed are returned with a zero CreatedAt; the poller decides whether
// to skip them.
func (c *DiscordClient) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s/channels/%s/messages?limit=%s",
		c.baseURL, url.PathEscape(c.channelID), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed messages: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("feed rate limited (status %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("feed authentication rejected (status %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var raw []discordMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		createdAt, _ := time.Parse(time.RFC3339, m.Timestamp)
		author := m.Author.GlobalName
		if author == "" {
			author = m.Author.Username
		}
		messages = append(messages, Message{
			ID:        m.ID,
			Author:    author,
			Content:   m.Content,
			CreatedAt: createdAt,
		})
	}
	return messages, nil
}

// Ping measures round-trip latency with an unauthenticated request to the
// API's gateway endpoint.
func (c *DiscordClient) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/gateway", nil)
	if err != nil {
		return 0, fmt.Errorf("build ping request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ping feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ping returned status %d", resp.StatusCode)
	}
	return time.Since(start), nil
}

// Close releases idle connections in the client's pool. Safe to call
// multiple times and on a nil client.
func (c *DiscordClient) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
