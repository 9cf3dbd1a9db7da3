package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"packmule/internal/logging"
)

// source identifies this tool on mutating API calls.
const source = "packmule"

// Client issues catalog API requests with bearer authentication. Server-side
// 5xx responses (notably 503 while an upload is still processing) are
// retried with a backoff before surfacing as errors.
type Client struct {
	apiURL    string
	tenantURL string
	appsURL   string
	token     string

	http     *retryablehttp.Client
	uploader *http.Client
	logger   *slog.Logger
}

// NewClient builds a Client for the given tenant API URL. A bare host gets
// an https scheme; an explicit scheme is honoured as given.
func NewClient(apiURL, token string, logger *slog.Logger) (*Client, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("catalog API URL is required")
	}
	if token == "" {
		return nil, fmt.Errorf("catalog API token is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if !strings.Contains(apiURL, "://") {
		apiURL = "https://" + apiURL
	}
	apiURL = strings.TrimRight(apiURL, "/")

	retrying := retryablehttp.NewClient()
	retrying.RetryMax = 4
	retrying.RetryWaitMin = 5 * time.Second
	retrying.RetryWaitMax = 30 * time.Second
	retrying.Logger = nil

	return &Client{
		apiURL:    apiURL,
		tenantURL: strings.Replace(apiURL, ".api.", ".", 1),
		appsURL:   apiURL + "/api/v1/library/custom-apps",
		token:     token,
		http:      retrying,
		uploader:  &http.Client{Timeout: 15 * time.Minute},
		logger:    logger,
	}, nil
}

// EntryURL returns the tenant console URL for a catalog entry, suitable for
// human-facing links.
func (c *Client) EntryURL(id string) string {
	return c.tenantURL + "/library/custom-apps/" + id
}

// List fetches the current catalog snapshot.
func (c *Client) List(ctx context.Context) ([]Entry, error) {
	var payload struct {
		Results []Entry `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, c.appsURL, nil, &payload); err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	return payload.Results, nil
}

// Categories fetches the tenant's Self Service categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	url := c.apiURL + "/api/v1/self-service/categories"
	if err := c.do(ctx, http.MethodGet, url, nil, &categories); err != nil {
		return nil, fmt.Errorf("list self service categories: %w", err)
	}
	return categories, nil
}

// Presign requests an upload ticket for the named artifact.
func (c *Client) Presign(ctx context.Context, name string) (UploadTicket, error) {
	var ticket UploadTicket
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, c.appsURL+"/upload", body, &ticket); err != nil {
		return UploadTicket{}, fmt.Errorf("presign upload for %q: %w", name, err)
	}
	return ticket, nil
}

// Upload posts the artifact to the presigned storage URL. The ticket's form
// fields are forwarded verbatim with the file as the final part, as the
// storage backend requires.
func (c *Client) Upload(ctx context.Context, ticket UploadTicket, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact %q: %w", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for key, value := range ticket.PostData {
		if err := form.WriteField(key, value); err != nil {
			return fmt.Errorf("build upload form: %w", err)
		}
	}
	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("read artifact %q: %w", path, err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ticket.PostURL, &buf)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.uploader.Do(req)
	if err != nil {
		return fmt.Errorf("upload %q: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode > 204 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload %q: HTTP %d: %s", filepath.Base(path), resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	c.logger.Info("uploaded artifact", "name", filepath.Base(path))
	return nil
}

// Create adds a new catalog entry.
func (c *Client) Create(ctx context.Context, req CreateRequest) (Entry, error) {
	var entry Entry
	if err := c.do(ctx, http.MethodPost, c.appsURL, req, &entry); err != nil {
		return Entry{}, fmt.Errorf("create catalog entry %q: %w", req.Name, err)
	}
	return entry, nil
}

// Update patches an existing catalog entry with a new file key.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) (Entry, error) {
	var entry Entry
	if err := c.do(ctx, http.MethodPatch, c.appsURL+"/"+id, req, &entry); err != nil {
		return Entry{}, fmt.Errorf("update catalog entry %s: %w", id, err)
	}
	return entry, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}
	if method != http.MethodGet {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("parse request URL: %w", err)
		}
		query := parsed.Query()
		query.Set("source", source)
		parsed.RawQuery = query.Encode()
		rawURL = parsed.String()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode > 204 {
		detail := responseDetail(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("HTTP %d: %s: validate the token is set with appropriate permissions and try again",
				resp.StatusCode, detail)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// responseDetail extracts the API's detail message when present, otherwise
// the raw body.
func responseDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable response body"
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}
