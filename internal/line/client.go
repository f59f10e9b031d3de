package line

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"groupguard/internal/bot"
	"groupguard/internal/metrics"
	"groupguard/internal/tracing"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// MaxTextLength is the longest text message the platform accepts
const MaxTextLength = 5000

// APIError is a non-2xx response from the platform
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api: status %d: %s", e.StatusCode, e.Message)
}

// Client calls the messaging platform on behalf of the bot
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ bot.Platform = (*Client)(nil)

// NewClient creates a client. A nil httpClient gets an instrumented default.
func NewClient(baseURL, accessToken string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   accessToken,
		http:    httpClient,
	}
	if _, err := c.api(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// api returns a messaging API client bound to ctx. The SDK keeps the context on the client
// value, so every call gets its own.
func (c *Client) api(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	api, err := messaging_api.NewMessagingApiAPI(c.token,
		messaging_api.WithEndpoint(c.baseURL),
		messaging_api.WithHTTPClient(c.http),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging api client: %w", err)
	}
	return api.WithContext(ctx), nil
}

func textMessages(text string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{
		messaging_api.TextMessage{Text: truncate(text, MaxTextLength)},
	}
}

// Send pushes text to a group. Each push carries a fresh retry key so the platform
// can discard a duplicate if the request is retried.
func (c *Client) Send(ctx context.Context, groupID, text string) error {
	return c.call(ctx, "push", groupID, func(api *messaging_api.MessagingApiAPI) (*http.Response, error) {
		res, _, err := api.PushMessageWithHttpInfo(&messaging_api.PushMessageRequest{
			To:       groupID,
			Messages: textMessages(text),
		}, uuid.NewString())
		return res, err
	})
}

// Reply answers a delivery using its reply token
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	return c.call(ctx, "reply", "", func(api *messaging_api.MessagingApiAPI) (*http.Response, error) {
		res, _, err := api.ReplyMessageWithHttpInfo(&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   textMessages(text),
		})
		return res, err
	})
}

// DisplayName looks up a group member's profile name
func (c *Client) DisplayName(ctx context.Context, groupID, userID string) (string, error) {
	var name string
	err := c.call(ctx, "profile", groupID, func(api *messaging_api.MessagingApiAPI) (*http.Response, error) {
		res, profile, err := api.GetGroupMemberProfileWithHttpInfo(groupID, userID)
		if profile != nil {
			name = profile.DisplayName
		}
		return res, err
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Kick removes a member from a group. The messaging SDK has no binding for this endpoint.
func (c *Client) Kick(ctx context.Context, groupID, userID string) error {
	path := "/v2/bot/group/" + url.PathEscape(groupID) + "/members/" + url.PathEscape(userID)
	return c.call(ctx, "kick", groupID, func(*messaging_api.MessagingApiAPI) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("build kick request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode/100 != 2 {
			return res, fmt.Errorf("unexpected status code: %d", res.StatusCode)
		}
		_ = res.Body.Close()
		return res, nil
	})
}

// call runs one platform request inside a span and records its outcome. A response with a
// non-2xx status becomes an *APIError carrying the platform's message.
func (c *Client) call(ctx context.Context, op, groupID string, fn func(*messaging_api.MessagingApiAPI) (*http.Response, error)) (err error) {
	ctx, span := tracing.PlatformSpan(ctx, op, groupID)
	defer func() {
		tracing.EndWithError(span, err)
		span.End()
	}()

	api, err := c.api(ctx)
	if err != nil {
		return err
	}

	res, err := fn(api)
	if res == nil {
		if err != nil {
			metrics.PlatformRequestsTotal.WithLabelValues(op, "error").Inc()
			return fmt.Errorf("%s request: %w", op, err)
		}
		return nil
	}
	metrics.PlatformRequestsTotal.WithLabelValues(op, strconv.Itoa(res.StatusCode)).Inc()

	if res.StatusCode/100 != 2 {
		defer res.Body.Close()
		return &APIError{StatusCode: res.StatusCode, Message: errorMessage(res.Body)}
	}
	if err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return strings.TrimSpace(string(data))
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
