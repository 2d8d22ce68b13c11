// Package testclient is a thin SNS/SQS wire-protocol client used by
// internal/server's end-to-end tests. It speaks the same form-encoded,
// XML-responding protocol the real AWS SDKs use against SNS/SQS, so a test
// driving it exercises the wire codec exactly as an external client would.
package testclient

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config mirrors the teacher rest client's tunables, trimmed to what a
// local test client against an in-process server needs: no circuit
// breaker, since there is no upstream to protect.
type Config struct {
	Timeout   time.Duration `env:"CLIENT_TIMEOUT" env-default:"10s"`
	Retries   int           `env:"CLIENT_RETRIES" env-default:"0"`
	UserAgent string        `env:"CLIENT_USER_AGENT" env-default:"pubsub-capture-testclient"`
}

// Client is a small SNS/SQS-shaped client for exercising a running
// mockbusd instance in tests.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client pointed at baseURL: a retryablehttp client whose
// transport is wrapped with otelhttp, with no circuit breaker.
func New(baseURL string, cfg Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil

	baseTransport := retryClient.HTTPClient.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(baseTransport)

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: retryClient.StandardClient()}
}

type publishResult struct {
	XMLName xml.Name `xml:"PublishResponse"`
	Result  struct {
		MessageID string `xml:"MessageId"`
	} `xml:"PublishResult"`
}

type sendMessageResult struct {
	XMLName xml.Name `xml:"SendMessageResponse"`
	Result  struct {
		MessageID        string `xml:"MessageId"`
		MD5OfMessageBody string `xml:"MD5OfMessageBody"`
	} `xml:"SendMessageResult"`
}

type createTopicResult struct {
	XMLName xml.Name `xml:"CreateTopicResponse"`
	Result  struct {
		TopicArn string `xml:"TopicArn"`
	} `xml:"CreateTopicResult"`
}

type errorResult struct {
	XMLName xml.Name `xml:"ErrorResponse"`
	Error   struct {
		Code    string `xml:"Code"`
		Message string `xml:"Message"`
	} `xml:"Error"`
}

// WireError is returned when the server responds with a non-2xx AWS-style
// error envelope.
type WireError struct {
	Status  int
	Code    string
	Message string
}

func (e *WireError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Publish calls the SNS-shaped Publish action.
func (c *Client) Publish(ctx context.Context, topicArn, message string) (string, error) {
	form := url.Values{"Action": {"Publish"}, "TopicArn": {topicArn}, "Message": {message}}
	var out publishResult
	if err := c.post(ctx, form, &out); err != nil {
		return "", err
	}
	return out.Result.MessageID, nil
}

// CreateTopic calls the SNS-shaped CreateTopic action.
func (c *Client) CreateTopic(ctx context.Context, name string) (string, error) {
	form := url.Values{"Action": {"CreateTopic"}, "Name": {name}}
	var out createTopicResult
	if err := c.post(ctx, form, &out); err != nil {
		return "", err
	}
	return out.Result.TopicArn, nil
}

// SendMessage calls the SQS-shaped SendMessage action.
func (c *Client) SendMessage(ctx context.Context, queueURL, body string) (string, error) {
	form := url.Values{"Action": {"SendMessage"}, "QueueUrl": {queueURL}, "MessageBody": {body}}
	var out sendMessageResult
	if err := c.post(ctx, form, &out); err != nil {
		return "", err
	}
	return out.Result.MessageID, nil
}

func (c *Client) post(ctx context.Context, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		var wireErr errorResult
		_ = xml.Unmarshal(body, &wireErr)
		return &WireError{Status: resp.StatusCode, Code: wireErr.Error.Code, Message: wireErr.Error.Message}
	}

	return xml.Unmarshal(body, out)
}

// CapturedRecord mirrors the verification endpoint's JSON record shape.
type CapturedRecord struct {
	ID         string         `json:"id"`
	Topic      string         `json:"topic"`
	Body       string         `json:"body"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// List fetches captured records from the verification prefix, optionally
// filtered by topic.
func (c *Client) List(ctx context.Context, prefix, topic string) ([]CapturedRecord, error) {
	u := c.baseURL + prefix
	if topic != "" {
		u += "?topic=" + url.QueryEscape(topic)
	}
	var out []CapturedRecord
	if err := c.get(ctx, u, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches a single captured record by id.
func (c *Client) Get(ctx context.Context, prefix, id string) (CapturedRecord, error) {
	var out CapturedRecord
	err := c.get(ctx, c.baseURL+prefix+"/"+id, &out)
	return out, err
}

// Clear deletes all captured records under prefix.
func (c *Client) Clear(ctx context.Context, prefix string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+prefix, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clear failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
