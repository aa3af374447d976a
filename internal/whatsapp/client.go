// Package whatsapp integrates with the WhatsApp Cloud (Graph) API: outbound
// text/image messages, media upload, and inbound webhook payload extraction.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultAPIVersion is used when no Graph API version is configured.
const DefaultAPIVersion = "v18.0"

const defaultBaseURL = "https://graph.facebook.com"

var (
	// ErrMissingPhoneNumberID is returned when no sender phone number id is
	// configured. Checked at call time, not startup.
	ErrMissingPhoneNumberID = errors.New("missing WHATSAPP_PHONE_NUMBER_ID")

	// ErrMissingAccessToken is returned when no bearer token is configured.
	ErrMissingAccessToken = errors.New("missing WHATSAPP_ACCESS_TOKEN")
)

// APIError is a non-2xx response from the Graph API, carrying the upstream
// error body for diagnosis.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status %d: %s", e.StatusCode, e.Body)
}

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	baseURL       string
	apiVersion    string
	phoneNumberID string
	accessToken   string
	httpClient    *http.Client
}

// NewClient creates a WhatsApp client. apiVersion may be empty, in which
// case DefaultAPIVersion is used. Missing credentials only surface when a
// call is made.
func NewClient(apiVersion, phoneNumberID, accessToken string) *Client {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &Client{
		baseURL:       defaultBaseURL,
		apiVersion:    apiVersion,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the Graph API origin. Used by tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
}

func (c *Client) endpoint(resource string) (string, error) {
	if c.phoneNumberID == "" {
		return "", ErrMissingPhoneNumberID
	}
	return fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.apiVersion, c.phoneNumberID, resource), nil
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return c.sendMessage(ctx, payload)
}

// SendImageByID sends an image message referencing previously uploaded media.
func (c *Client) SendImageByID(ctx context.Context, to, mediaID, caption string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             map[string]string{"id": mediaID, "caption": caption},
	}
	return c.sendMessage(ctx, payload)
}

// SendImageByLink sends an image message referencing a public URL, e.g. one
// served from the receipts static mount.
func (c *Client) SendImageByLink(ctx context.Context, to, imageURL, caption string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             map[string]string{"link": imageURL, "caption": caption},
	}
	return c.sendMessage(ctx, payload)
}

func (c *Client) sendMessage(ctx context.Context, payload map[string]any) error {
	url, err := c.endpoint("messages")
	if err != nil {
		return err
	}
	if c.accessToken == "" {
		return ErrMissingAccessToken
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	return nil
}

type uploadResponse struct {
	ID string `json:"id"`
}

// UploadMedia uploads a local file to the media endpoint and returns its
// media id. An empty id with a 2xx response is returned as-is; the caller
// decides whether that is fatal.
func (c *Client) UploadMedia(ctx context.Context, path, mimeType string) (string, error) {
	url, err := c.endpoint("media")
	if err != nil {
		return "", err
	}
	if c.accessToken == "" {
		return "", ErrMissingAccessToken
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", fmt.Errorf("write upload field: %w", err)
	}
	if err := writer.WriteField("type", mimeType); err != nil {
		return "", fmt.Errorf("write upload field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create upload part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy media file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", readAPIError(resp)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return parsed.ID, nil
}

func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	if err != nil {
		body = []byte(fmt.Sprintf("<unreadable body: %v>", err))
	}
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
