// Package apicall provides the outbound HTTP runner. Every request goes
// through the SSRF policy after template resolution and is bounded by a
// hard timeout.
package apicall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowmatic/flowmatic/pkg/models"
	"github.com/flowmatic/flowmatic/pkg/protocol"
	"github.com/flowmatic/flowmatic/pkg/ssrf"
	"github.com/flowmatic/flowmatic/pkg/template"
)

// DefaultTimeout bounds every outbound call; there is no configuration
// that can raise it above MaxTimeout.
const (
	DefaultTimeout = 10 * time.Second
	MaxTimeout     = 10 * time.Second
)

// Config defines the configuration for API nodes.
type Config struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

// Runner performs one outbound HTTP request with context-variable
// substitution in URL, headers and body.
type Runner struct {
	config Config
	policy ssrf.Policy
	client *http.Client
}

// NewRunner creates an API runner from node configuration. The SSRF
// policy and HTTP client are injected by the factory, never taken from
// workflow config.
func NewRunner(config map[string]any, policy ssrf.Policy, client *http.Client) (*Runner, error) {
	cfg := Config{
		Method:  http.MethodGet,
		Headers: make(map[string]string),
		Timeout: DefaultTimeout,
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	cfg.URL = url

	if method, ok := config["method"].(string); ok && method != "" {
		cfg.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for key, value := range headers {
			if text, ok := value.(string); ok {
				cfg.Headers[key] = text
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		cfg.Body = body
	}

	if seconds, ok := config["timeout"].(float64); ok && seconds > 0 {
		cfg.Timeout = time.Duration(seconds * float64(time.Second))
		if cfg.Timeout > MaxTimeout {
			cfg.Timeout = MaxTimeout
		}
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &Runner{config: cfg, policy: policy, client: client}, nil
}

// Execute renders the request templates, validates the URL and performs
// the call.
func (r *Runner) Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (*protocol.RunnerResult, error) {
	url, err := r.renderString(r.config.URL, execCtx)
	if err != nil {
		return failure("API_TEMPLATE: failed to render url: " + err.Error()), nil
	}

	if err := ssrf.Validate(r.policy, url); err != nil {
		return failure("SSRF_BLOCKED: " + err.Error()), nil
	}

	body := ""
	if r.config.Body != "" {
		body, err = r.renderString(r.config.Body, execCtx)
		if err != nil {
			return failure("API_TEMPLATE: failed to render body: " + err.Error()), nil
		}
	}

	headers := make(map[string]string, len(r.config.Headers))

	for key, value := range r.config.Headers {
		rendered, err := r.renderString(value, execCtx)
		if err != nil {
			// Header templates that fail keep their literal value.
			rendered = value
		}

		headers[key] = rendered
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	output, err := r.perform(callCtx, url, body, headers)
	if err != nil {
		return failure(classifyError(err)), nil
	}

	execCtx.AppendLog("info", node.ID, fmt.Sprintf("%s %s -> %v", r.config.Method, url, output["status_code"]))

	return &protocol.RunnerResult{
		Success:        true,
		Output:         output,
		ShouldContinue: true,
	}, nil
}

func (r *Runner) renderString(input string, execCtx *models.ExecutionContext) (string, error) {
	if !template.NeedsTemplating(input) {
		return input, nil
	}

	rendered, err := template.RenderWithContext(input, execCtx)
	if err != nil {
		return "", err
	}

	if text, ok := rendered.(string); ok {
		return text, nil
	}

	return fmt.Sprintf("%v", rendered), nil
}

// statusError marks non-2xx responses so they classify separately from
// transport failures.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

func (r *Runner) perform(ctx context.Context, url, body string, headers map[string]string) (map[string]any, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, r.config.Method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     flattenHeaders(resp.Header),
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		result["json"] = jsonBody
	}

	return result, nil
}

func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for key := range header {
		flat[key] = header.Get(key)
	}

	return flat
}

// classifyError maps transport failures to stable code-prefixed
// messages for the execution record.
func classifyError(err error) string {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("API_STATUS: request returned HTTP %d", statusErr.code)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "API_TIMEOUT: request exceeded timeout"
	}

	return "API_NETWORK: " + err.Error()
}

func failure(message string) *protocol.RunnerResult {
	return &protocol.RunnerResult{Success: false, Error: message}
}
