package agentapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/document-verifier/internal/infrastructure/resilience"
)

const (
	DefaultUploadPath = "/api/v1/assets/upload"
	DefaultChatPath   = "/api/v1/agents/chat"
)

type Options struct {
	BaseURL    string
	UploadPath string
	ChatPath   string
	APIKey     string
	AgentID    string
	Timeout    time.Duration

	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

// Client talks to the remote inference agent and its asset upload endpoint.
type Client struct {
	baseURL    string
	uploadPath string
	chatPath   string
	apiKey     string
	agentID    string
	httpClient *http.Client
	executor   *resilience.Executor
	validate   *validator.Validate
}

func New(options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	uploadPath := options.UploadPath
	if uploadPath == "" {
		uploadPath = DefaultUploadPath
	}
	chatPath := options.ChatPath
	if chatPath == "" {
		chatPath = DefaultChatPath
	}

	return &Client{
		baseURL:    strings.TrimRight(options.BaseURL, "/"),
		uploadPath: uploadPath,
		chatPath:   chatPath,
		apiKey:     strings.TrimSpace(options.APIKey),
		agentID:    strings.TrimSpace(options.AgentID),
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
		validate:   validator.New(),
	}
}
