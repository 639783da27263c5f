package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/docassist/internal/core/domain"
	"github.com/kirillkom/docassist/internal/core/ports"
	"github.com/kirillkom/docassist/internal/infrastructure/resilience"
)

const (
	defaultQueryPath = "/analyze"
	defaultTimeout   = 60 * time.Second
)

type Options struct {
	BaseURL   string
	QueryPath string
	Timeout   time.Duration

	// RequestsPerSecond caps outbound calls; zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the document analysis backend over its JSON/multipart API.
type Client struct {
	baseURL    string
	queryPath  string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(opts Options, executor *resilience.Executor) *Client {
	queryPath := strings.TrimSpace(opts.QueryPath)
	if queryPath == "" {
		queryPath = defaultQueryPath
	}
	if !strings.HasPrefix(queryPath, "/") {
		queryPath = "/" + queryPath
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		queryPath:  queryPath,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   executor,
	}
}

func (c *Client) Upload(ctx context.Context, file ports.UploadFile, userID string) (*ports.UploadReceipt, error) {
	if file.Open == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("file has no content source"))
	}

	type uploadResponse struct {
		Success    *bool              `json:"success"`
		DocumentID string             `json:"document_id"`
		Document   *domain.RemoteFile `json:"document"`
		Error      json.RawMessage    `json:"error"`
		Message    string             `json:"message"`
	}
	response, err := resilience.Do(ctx, c.executor, "backend_upload", func(ctx context.Context) (uploadResponse, error) {
		var out uploadResponse
		body, contentType, err := encodeMultipart(file, userID)
		if err != nil {
			return out, err
		}
		err = c.do(ctx, http.MethodPost, "/upload", contentType, body, &out, "upload")
		return out, err
	}, classifyBackendError)
	if err != nil {
		return nil, wrapNetworkError("upload", err)
	}

	if response.Success != nil && !*response.Success {
		message := firstNonEmpty(backendMessage(response.Error), response.Message, "upload rejected by backend")
		return nil, &domain.BackendError{Operation: "upload", Message: message}
	}

	receipt := &ports.UploadReceipt{ServerID: response.DocumentID}
	if response.Document != nil {
		receipt.Document = *response.Document
		if receipt.ServerID == "" {
			receipt.ServerID = response.Document.ID
		}
	}
	return receipt, nil
}

func (c *Client) ListFiles(ctx context.Context) ([]domain.RemoteFile, error) {
	files, err := resilience.Do(ctx, c.executor, "backend_list_files", func(ctx context.Context) ([]domain.RemoteFile, error) {
		var response struct {
			Files []domain.RemoteFile `json:"files"`
		}
		err := c.do(ctx, http.MethodGet, "/files", "", nil, &response, "list files")
		return response.Files, err
	}, classifyBackendError)
	if err != nil {
		return nil, wrapNetworkError("list files", err)
	}
	if files == nil {
		return []domain.RemoteFile{}, nil
	}
	return files, nil
}

func (c *Client) AuthURL(ctx context.Context) (string, error) {
	type authResponse struct {
		AuthURL string          `json:"auth_url"`
		Error   json.RawMessage `json:"error"`
	}
	response, err := resilience.Do(ctx, c.executor, "backend_auth_url", func(ctx context.Context) (authResponse, error) {
		var out authResponse
		err := c.do(ctx, http.MethodGet, "/auth/url", "", nil, &out, "auth url")
		return out, err
	}, classifyBackendError)
	if err != nil {
		return "", wrapNetworkError("auth url", err)
	}
	if message := backendMessage(response.Error); message != "" {
		return "", &domain.BackendError{Operation: "auth url", Message: message}
	}
	if strings.TrimSpace(response.AuthURL) == "" {
		return "", &domain.BackendError{Operation: "auth url", Message: "backend returned no authorization url"}
	}
	return response.AuthURL, nil
}

// Analyze sends a single query. A 2xx body carrying "error" is a backend
// domain error and is returned as *domain.BackendError, whatever JSON type
// the error member has.
func (c *Client) Analyze(ctx context.Context, query domain.AnalysisQuery) (*domain.AnalysisResult, error) {
	type analyzeResponse struct {
		domain.AnalysisResult
		Error json.RawMessage `json:"error"`
	}
	payload, err := jsonBody(query)
	if err != nil {
		return nil, err
	}
	response, err := resilience.Do(ctx, c.executor, "backend_analyze", func(ctx context.Context) (analyzeResponse, error) {
		var out analyzeResponse
		err := c.do(ctx, http.MethodPost, c.queryPath, "application/json", payload, &out, "analyze")
		return out, err
	}, classifyBackendError)
	if err != nil {
		return nil, wrapNetworkError("analyze", err)
	}
	if message := backendMessage(response.Error); message != "" {
		return nil, &domain.BackendError{Operation: "analyze", Message: message}
	}

	result := response.AnalysisResult
	result.Source = domain.SourceBackend
	return &result, nil
}

// Ping probes the service root; any 2xx counts as alive.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/", "", nil, nil, "ping")
	if err != nil {
		return wrapNetworkError("ping", err)
	}
	return nil
}

func encodeMultipart(file ports.UploadFile, userID string) (*bytes.Buffer, string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("open %s: %w", file.Name, err))
	}
	defer src.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(fileHeader(file))
	if err != nil {
		return nil, "", fmt.Errorf("create multipart file part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("read %s: %w", file.Name, err))
	}
	if userID != "" {
		if err := writer.WriteField("user_id", userID); err != nil {
			return nil, "", fmt.Errorf("write user_id field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// backendMessage renders the "error" member of a response. Strings are
// unquoted; objects, numbers and other shapes are kept as compact JSON text.
func backendMessage(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
