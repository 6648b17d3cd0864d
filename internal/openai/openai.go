package openai

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
	"github.com/vasilisp/autopost/internal/config"
	"github.com/vasilisp/autopost/internal/errs"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/util"
)

const (
	MaxTokensDefault   = 1800
	MaxTokensPillar    = 2400
	MaxTokensAuxiliary = 1500

	Temperature    = 0.7
	DefaultTimeout = 60 * time.Second
	DefaultModel   = "mistralai/mistral-7b-instruct"
)

// Completer is the single operation the pipelines need from a model.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Client talks to an OpenAI-compatible chat completion endpoint (OpenRouter
// by default). Settings are read from the store on every call so a key
// saved after startup is picked up.
type Client struct {
	config config.Store
	log    *logger.Logger
}

func NewClient(store config.Store, log *logger.Logger) *Client {
	util.Assert(store != nil, "NewClient nil config store")

	return &Client{
		config: store,
		log:    logger.OrNop(log),
	}
}

func (c *Client) options(apiKey string) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}

	if base := c.config.GetString(config.KeyAIBaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if site := c.config.GetString(config.KeySiteURL); site != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", site))
	}
	if title := c.config.GetString(config.KeySiteTitle); title != "" {
		opts = append(opts, option.WithHeader("X-Title", title))
	}

	return opts
}

func (c *Client) model() string {
	if model := c.config.GetString(config.KeyAIModel); model != "" {
		return model
	}
	return DefaultModel
}

func (c *Client) timeout() time.Duration {
	if d := c.config.GetDuration(config.KeyAITimeout); d > 0 {
		return d
	}
	return DefaultTimeout
}

func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	util.Assert(c != nil, "Complete nil client")

	if strings.TrimSpace(prompt) == "" {
		return "", errs.Validation("prompt", "Prompt cannot be empty.")
	}
	if maxTokens <= 0 {
		maxTokens = MaxTokensDefault
	}

	apiKey := c.config.GetString(config.KeyAIAPIKey)
	if apiKey == "" {
		return "", c.fail(errs.Config("OpenRouter.ai API key not configured. Please set it in the settings."), "")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	client := openai.NewClient(c.options(apiKey)...)

	chatCompletion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(c.model()),
		Temperature: openai.Float(Temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", c.fail(classify(err), err.Error())
	}

	return c.extract(chatCompletion)
}

func classify(err error) *errs.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return errs.API("API returned an error. Please check your API key configuration.", err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return errs.Transport("Failed to connect to API. Please try again later.", err)
	}

	return errs.E(errs.KindMalformedResponse, "Invalid response from API. Please try again.", err)
}

// extract pulls the completion text out of the raw body. OpenRouter can
// answer 200 with an error object instead of choices, so the raw JSON is
// inspected rather than the typed fields.
func (c *Client) extract(chatCompletion *openai.ChatCompletion) (string, error) {
	if chatCompletion == nil {
		return "", c.fail(errs.Malformed("Invalid response from API. Please try again."), "nil completion")
	}

	raw := chatCompletion.RawJSON()

	if apiError := gjson.Get(raw, "error"); apiError.Exists() {
		return "", c.fail(errs.API("API returned an error. Please check your API key configuration.", nil), apiError.Raw)
	}

	content := gjson.Get(raw, "choices.0.message.content")
	if !content.Exists() || content.Type != gjson.String {
		return "", c.fail(errs.Malformed("Invalid response from API. Please try again."), "missing choices[0].message.content")
	}

	text := content.String()
	if strings.HasPrefix(text, "ERROR") {
		return "", c.fail(errs.ContentPolicy(text), text)
	}

	return text, nil
}

func (c *Client) fail(e *errs.Error, detail string) *errs.Error {
	c.log.Error("completion failed",
		"kind", e.Kind.String(),
		"message", util.Truncate(e.Msg, 200),
		"detail", util.Truncate(detail, 300),
	)
	return e
}
