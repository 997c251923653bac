package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/pawpal/petmail/config"
	"github.com/pawpal/petmail/interfaces"
	"github.com/pawpal/petmail/internal/tracing"
	"github.com/pawpal/petmail/internal/utils"
)

var (
	ErrOracleUnavailable = errors.New("oracle request failed")
	ErrOracleResponse    = errors.New("oracle response did not match schema")
)

type geminiOracle struct {
	cfg    *config.OracleConfig
	client *http.Client
}

func NewGeminiOracle(cfg *config.OracleConfig) interfaces.Oracle {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &geminiOracle{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
	Temperature      float64        `json:"temperature"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func (s *geminiOracle) GenerateJSON(ctx context.Context, prompt string, document *interfaces.InlineDocument, schema map[string]any, out any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "geminiOracle.GenerateJSON")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("model", s.cfg.Model)

	parts := []geminiPart{{Text: prompt}}
	if document != nil && len(document.Data) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: document.MimeType,
			Data:     base64.StdEncoding.EncodeToString(document.Data),
		}})
	}
	request := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal payload")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(s.cfg.Url, "/"), s.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.cfg.ApiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(ErrOracleUnavailable, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(ErrOracleUnavailable, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = errors.Wrapf(ErrOracleUnavailable, "status code %d: %s", resp.StatusCode, utils.Truncate(string(body), 512))
		tracing.TraceErr(span, err)
		return err
	}

	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(ErrOracleResponse, err.Error())
	}
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return errors.Wrapf(ErrOracleResponse, "prompt blocked: %s", response.PromptFeedback.BlockReason)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return errors.Wrap(ErrOracleResponse, "no candidates returned")
	}

	text := stripCodeFence(response.Candidates[0].Content.Parts[0].Text)
	if err := json.Unmarshal([]byte(text), out); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(ErrOracleResponse, err.Error())
	}
	tracing.LogObjectAsJson(span, "response", out)

	return nil
}

// stripCodeFence tolerates answers wrapped in a markdown json fence.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
