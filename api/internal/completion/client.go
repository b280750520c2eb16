// Package completion talks to an OpenAI-compatible chat completions endpoint.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ll-buddy/api/internal/logger"
	"ll-buddy/api/internal/metrics"
	"ll-buddy/api/internal/prompts"
	"ll-buddy/api/internal/util"
)

// ErrEmptyResponse: ответ без choices или с пустым content.
var ErrEmptyResponse = errors.New("completion: empty response")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	TotalTimeout   time.Duration
}

type Client struct {
	api     openai.Client
	model   string
	total   time.Duration
	prompts *prompts.Store
	log     *logger.Logger
	metrics *metrics.Metrics
}

func newHTTPClient(cfg Config) *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	// общий лимит задаётся контекстом вызова, здесь не обрезаем чтение тела
	return &http.Client{Transport: tr}
}

func New(cfg Config, store *prompts.Store, log *logger.Logger, m *metrics.Metrics) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(newHTTPClient(cfg)),
		option.WithRequestTimeout(cfg.RequestTimeout),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:     openai.NewClient(opts...),
		model:   cfg.Model,
		total:   cfg.TotalTimeout,
		prompts: store,
		log:     log.With("component", "completion"),
		metrics: m,
	}
}

func (c *Client) Model() string { return c.model }

// Complete отправляет один запрос: системная инструкция по kind, пользовательский текст
// и (если задан) imageURL. Повторов нет, решение о ретраях за вызывающим.
func (c *Client) Complete(ctx context.Context, kind prompts.Kind, input, imageURL string) (string, error) {
	system, ok := c.prompts.Get(kind)
	if !ok {
		return "", fmt.Errorf("completion %s: unknown prompt kind", kind)
	}
	if c.total > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.total)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			userMessage(input, imageURL),
		},
	}

	started := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	out, err := extract(resp, err)
	c.metrics.CompletionObserved(string(kind), err == nil, time.Since(started))
	if err != nil {
		c.log.Warn("completion failed", "kind", kind, "model", c.model, "elapsed", time.Since(started), "error", err)
		return "", fmt.Errorf("completion %s: %w", kind, err)
	}
	c.log.Debug("completion ok", "kind", kind, "model", c.model, "elapsed", time.Since(started), "chars", len(out))
	return out, nil
}

func userMessage(input, imageURL string) openai.ChatCompletionMessageParamUnion {
	if imageURL == "" {
		return openai.UserMessage(input)
	}
	return openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(input),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageURL}),
	})
}

func extract(resp *openai.ChatCompletion, err error) (string, error) {
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("status %d: %w", apiErr.StatusCode, err)
		}
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := util.StripCodeFences(resp.Choices[0].Message.Content)
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
