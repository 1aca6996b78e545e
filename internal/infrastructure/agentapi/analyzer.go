package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/document-verifier/internal/core/domain"
	"github.com/kirillkom/document-verifier/internal/infrastructure/resilience"
)

type chatRequest struct {
	Message        string         `json:"message" validate:"required"`
	AgentID        string         `json:"agent_id" validate:"required"`
	SessionID      string         `json:"session_id" validate:"required"`
	AttachmentRefs attachmentRefs `json:"attachment_refs"`
}

type attachmentRefs struct {
	Assets []string `json:"assets" validate:"min=1,dive,required"`
}

type chatResponse struct {
	Success  bool              `json:"success"`
	Response *chatResponseBody `json:"response"`
	Error    string            `json:"error"`
}

type chatResponseBody struct {
	Result   json.RawMessage `json:"result"`
	Metadata *chatMetadata   `json:"metadata"`
}

type chatMetadata struct {
	AgentName string          `json:"agent_name"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	c := a.client
	payload := chatRequest{
		Message:        req.Message,
		AgentID:        c.agentID,
		SessionID:      req.SessionID,
		AttachmentRefs: attachmentRefs{Assets: req.AssetIDs},
	}
	if err := c.validate.Struct(payload); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "agent chat request", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	out, err := resilience.Call(ctx, c.executor, "agent.chat", func(ctx context.Context) (*domain.AnalysisResponse, error) {
		var resp chatResponse
		if err := c.do(ctx, "chat", func(ctx context.Context) (*http.Request, error) {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.chatPath, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			return httpReq, nil
		}, &resp); err != nil {
			return nil, err
		}
		return decodeChatResponse(resp)
	}, classifyAgentError)
	if err != nil {
		return nil, wrapTransportFault("chat", err)
	}
	return out, nil
}

func decodeChatResponse(resp chatResponse) (*domain.AnalysisResponse, error) {
	if !resp.Success {
		return nil, collaboratorFailure("chat", resp.Error)
	}
	if resp.Response == nil {
		return nil, collaboratorFailure("chat", "")
	}

	result, err := decodeResult(resp.Response.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", collaboratorFailure("chat", ""), err)
	}

	out := &domain.AnalysisResponse{Result: result}
	if meta := resp.Response.Metadata; meta != nil {
		out.Metadata = &domain.ResultMetadata{
			AgentName: meta.AgentName,
			Timestamp: scalarText(meta.Timestamp),
		}
	}
	return out, nil
}

// decodeResult accepts the result as a JSON object or as a string holding
// JSON, possibly wrapped in prose or a fenced block.
func decodeResult(raw json.RawMessage) (*domain.StructuredResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("empty result")
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("decode result string: %w", err)
		}
		trimmed = []byte(extractJSONObject(text))
	}

	var result domain.StructuredResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("parse result json: %w", err)
	}
	return &result, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func scalarText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}
