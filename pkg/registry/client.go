package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/streamhouse/eventflow/pkg/compat"
	"github.com/streamhouse/eventflow/pkg/observability"
	"github.com/streamhouse/eventflow/pkg/schema"
)

const contentType = "application/vnd.schemaregistry.v1+json"

// VersionLatest addresses the most recent version of a subject.
const VersionLatest = -1

// Store is the interface the rest of the pipeline programs against.
// *Client is the HTTP implementation; tests substitute fakes.
type Store interface {
	// Register registers a schema under a subject and returns its id.
	// Registration is idempotent: an identical definition returns the
	// existing id without creating a new version.
	Register(ctx context.Context, subject string, def *schema.Definition) (int, error)

	// GetByID retrieves a schema by its registry id
	GetByID(ctx context.Context, id int) (*schema.Definition, error)

	// GetBySubjectVersion retrieves one version of a subject's schema.
	// Pass VersionLatest for the most recent version.
	GetBySubjectVersion(ctx context.Context, subject string, version int) (*Metadata, error)

	// ListSubjects returns all subject names
	ListSubjects(ctx context.Context) ([]string, error)

	// ListVersions returns the ordered version numbers of a subject
	ListVersions(ctx context.Context, subject string) ([]int, error)

	// CheckCompatibility asks the registry whether def is a compatible
	// evolution of the subject's latest version. Messages describe the
	// violations when the answer is false.
	CheckCompatibility(ctx context.Context, subject string, def *schema.Definition) (bool, []string, error)

	// GetConfig returns the compatibility mode of a subject, or the
	// global mode when subject is empty.
	GetConfig(ctx context.Context, subject string) (compat.Mode, error)

	// SetConfig sets the compatibility mode of a subject, or the global
	// mode when subject is empty.
	SetConfig(ctx context.Context, subject string, mode compat.Mode) error
}

// Metadata describes one registered schema version.
type Metadata struct {
	// ID is the registry-assigned schema id
	ID int

	// Version is the 1-based version number within the subject
	Version int

	// Subject is the registration scope
	Subject string

	// Definition is the parsed schema
	Definition *schema.Definition
}

// Client is the HTTP implementation of Store, speaking the Confluent
// Schema Registry REST protocol. The client holds no mutable state
// beyond its connection configuration; caching belongs to the codec
// layer.
type Client struct {
	url        string
	httpClient *http.Client
	username   string
	password   string
	retry      RetryPolicy
	observer   observability.Observer
}

// NewClient creates a new schema registry client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("schema registry URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retry.Backoff == 0 {
		cfg.Retry.Backoff = DefaultBackoff
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = DefaultMaxBackoff
	}

	return &Client{
		url: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		username: cfg.Username,
		password: cfg.Password,
		retry:    cfg.Retry,
	}, nil
}

// WithObserver attaches an observer for tracking registry operations
// and returns the client for chaining.
func (c *Client) WithObserver(observer observability.Observer) *Client {
	c.observer = observer
	return c
}

// HealthCheck verifies the registry is reachable and responding.
// Startup gates use this: a pipeline process must not start against an
// unreachable schema authority.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListSubjects(ctx)
	return err
}

// Register registers a schema under a subject and returns its id.
func (c *Client) Register(ctx context.Context, subject string, def *schema.Definition) (int, error) {
	body, err := json.Marshal(map[string]string{"schema": def.Document()})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result struct {
		ID int `json:"id"`
	}
	err = c.call(ctx, "register", subject, http.MethodPost,
		fmt.Sprintf("/subjects/%s/versions", url.PathEscape(subject)), body, &result)
	if err != nil {
		return 0, err
	}
	return result.ID, nil
}

// GetByID retrieves a schema by its registry id.
func (c *Client) GetByID(ctx context.Context, id int) (*schema.Definition, error) {
	var result struct {
		Schema string `json:"schema"`
	}
	err := c.call(ctx, "get_by_id", strconv.Itoa(id), http.MethodGet,
		fmt.Sprintf("/schemas/ids/%d", id), nil, &result)
	if err != nil {
		return nil, err
	}

	def, err := schema.Parse([]byte(result.Schema))
	if err != nil {
		return nil, fmt.Errorf("registry returned unparseable schema for id %d: %w", id, err)
	}
	return def, nil
}

// GetBySubjectVersion retrieves one version of a subject's schema.
func (c *Client) GetBySubjectVersion(ctx context.Context, subject string, version int) (*Metadata, error) {
	var result struct {
		ID      int    `json:"id"`
		Version int    `json:"version"`
		Schema  string `json:"schema"`
	}
	err := c.call(ctx, "get_by_version", subject, http.MethodGet,
		fmt.Sprintf("/subjects/%s/versions/%s", url.PathEscape(subject), versionPath(version)), nil, &result)
	if err != nil {
		return nil, err
	}

	def, err := schema.Parse([]byte(result.Schema))
	if err != nil {
		return nil, fmt.Errorf("registry returned unparseable schema for %s/%s: %w", subject, versionPath(version), err)
	}

	return &Metadata{
		ID:         result.ID,
		Version:    result.Version,
		Subject:    subject,
		Definition: def,
	}, nil
}

// ListSubjects returns all subject names.
func (c *Client) ListSubjects(ctx context.Context) ([]string, error) {
	var subjects []string
	err := c.call(ctx, "list_subjects", "", http.MethodGet, "/subjects", nil, &subjects)
	if err != nil {
		return nil, err
	}
	return subjects, nil
}

// ListVersions returns the ordered version numbers of a subject.
func (c *Client) ListVersions(ctx context.Context, subject string) ([]int, error) {
	var versions []int
	err := c.call(ctx, "list_versions", subject, http.MethodGet,
		fmt.Sprintf("/subjects/%s/versions", url.PathEscape(subject)), nil, &versions)
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// CheckCompatibility asks the registry whether def is a compatible
// evolution of the subject's latest version.
func (c *Client) CheckCompatibility(ctx context.Context, subject string, def *schema.Definition) (bool, []string, error) {
	body, err := json.Marshal(map[string]string{"schema": def.Document()})
	if err != nil {
		return false, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result struct {
		IsCompatible bool     `json:"is_compatible"`
		Messages     []string `json:"messages"`
	}
	err = c.call(ctx, "check_compatibility", subject, http.MethodPost,
		fmt.Sprintf("/compatibility/subjects/%s/versions/latest?verbose=true", url.PathEscape(subject)), body, &result)
	if err != nil {
		return false, nil, err
	}
	return result.IsCompatible, result.Messages, nil
}

// GetConfig returns the compatibility mode of a subject, or the global
// mode when subject is empty.
func (c *Client) GetConfig(ctx context.Context, subject string) (compat.Mode, error) {
	var result struct {
		CompatibilityLevel string `json:"compatibilityLevel"`
	}
	err := c.call(ctx, "get_config", subject, http.MethodGet, configPath(subject), nil, &result)
	if err != nil {
		return "", err
	}
	return compat.ParseMode(result.CompatibilityLevel)
}

// SetConfig sets the compatibility mode of a subject, or the global
// mode when subject is empty.
func (c *Client) SetConfig(ctx context.Context, subject string, mode compat.Mode) error {
	body, err := json.Marshal(map[string]string{"compatibility": string(mode)})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.call(ctx, "set_config", subject, http.MethodPut, configPath(subject), body, nil)
}

// DeleteSubject deletes all versions of a subject and returns the
// deleted version numbers.
func (c *Client) DeleteSubject(ctx context.Context, subject string) ([]int, error) {
	var versions []int
	err := c.call(ctx, "delete_subject", subject, http.MethodDelete,
		fmt.Sprintf("/subjects/%s", url.PathEscape(subject)), nil, &versions)
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// DeleteVersion deletes one version of a subject's schema and returns
// the deleted version number.
func (c *Client) DeleteVersion(ctx context.Context, subject string, version int) (int, error) {
	var deleted int
	err := c.call(ctx, "delete_version", subject, http.MethodDelete,
		fmt.Sprintf("/subjects/%s/versions/%s", url.PathEscape(subject), versionPath(version)), nil, &deleted)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func versionPath(version int) string {
	if version == VersionLatest {
		return "latest"
	}
	return strconv.Itoa(version)
}

func configPath(subject string) string {
	if subject == "" {
		return "/config"
	}
	return fmt.Sprintf("/config/%s", url.PathEscape(subject))
}

// call performs one registry round trip with bounded retries on
// transient failures, decoding a 2xx JSON body into out when non-nil.
func (c *Client) call(ctx context.Context, operation, resource, method, path string, body []byte, out any) error {
	start := time.Now()
	err := c.callWithRetry(ctx, method, path, body, out)
	c.observeOperation(operation, resource, time.Since(start), err, int64(len(body)))
	return err
}

func (c *Client) callWithRetry(ctx context.Context, method, path string, body []byte, out any) error {
	backoff := c.retry.Backoff

	var err error
	for attempt := 1; ; attempt++ {
		err = c.doOnce(ctx, method, path, body, out)
		if err == nil || !IsRetryable(err) || attempt >= c.retry.MaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrRegistryUnavailable, ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.retry.MaxBackoff {
			backoff = c.retry.MaxBackoff
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrRegistryUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return c.classifyError(resp.StatusCode, respBody)
}

// classifyError maps an error response onto the package taxonomy using
// the HTTP status and the Confluent error code in the body.
func (c *Client) classifyError(status int, body []byte) error {
	var regErr struct {
		ErrorCode int    `json:"error_code"`
		Message   string `json:"message"`
	}
	_ = json.Unmarshal(body, &regErr)

	message := regErr.Message
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	switch regErr.ErrorCode {
	case codeSubjectNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownSubject, message)
	case codeVersionNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownVersion, message)
	case codeSchemaNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownSchemaID, message)
	case codeInvalidSchema:
		return fmt.Errorf("%w: %s", ErrInvalidSchema, message)
	}

	switch {
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrIncompatibleSchema, message)
	case status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrInvalidSchema, message)
	case status >= 500:
		return fmt.Errorf("%w: registry returned status %d: %s", ErrRegistryUnavailable, status, message)
	}

	return fmt.Errorf("registry returned status %d: %s", status, message)
}

func (c *Client) observeOperation(operation, resource string, duration time.Duration, err error, size int64) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveOperation(observability.OperationContext{
		Component: "registry",
		Operation: operation,
		Resource:  resource,
		Duration:  duration,
		Error:     err,
		Size:      size,
	})
}
