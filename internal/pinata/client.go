// Package pinata uploads files to IPFS through the Pinata v3 API and turns
// content identifiers into public gateway URLs.
package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultUploadBase = "https://uploads.pinata.cloud/v3"

// File is the upload result returned by Pinata.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CID      string `json:"cid"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Client wraps HTTP calls to the Pinata upload API.
type Client struct {
	httpClient *http.Client
	uploadBase string
	jwt        string // PINATA_JWT
	gateway    string // e.g. example.mypinata.cloud
}

// Option configures a Client.
type Option func(*Client)

// WithUploadBase points uploads at another base URL (tests, proxies).
func WithUploadBase(base string) Option {
	return func(c *Client) { c.uploadBase = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client authenticated with a Pinata JWT.
func New(jwt, gateway string, opts ...Option) (*Client, error) {
	if jwt == "" {
		return nil, fmt.Errorf("pinata JWT is not set")
	}
	if gateway == "" {
		return nil, fmt.Errorf("pinata gateway is not set")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		uploadBase: defaultUploadBase,
		jwt:        jwt,
		gateway:    gateway,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// GatewayURL converts a CID to a public gateway URL.
func (c *Client) GatewayURL(cid string) string {
	gw := strings.TrimSuffix(c.gateway, "/")
	if !strings.HasPrefix(gw, "http://") && !strings.HasPrefix(gw, "https://") {
		gw = "https://" + gw
	}
	return gw + "/ipfs/" + cid
}

// UploadFile pins r publicly under name.
func (c *Client) UploadFile(ctx context.Context, name, contentType string, r io.Reader) (*File, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("network", "public"); err != nil {
		return nil, err
	}
	if err := mw.WriteField("name", name); err != nil {
		return nil, err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadBase+"/files", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pinata upload returned %d: %s", resp.StatusCode, string(respData))
	}

	var out struct {
		Data File `json:"data"`
	}
	if err := json.Unmarshal(respData, &out); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}
	if out.Data.CID == "" {
		return nil, fmt.Errorf("pinata upload response has no cid")
	}
	return &out.Data, nil
}

// PinFile uploads r and returns its gateway URL.
func (c *Client) PinFile(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	f, err := c.UploadFile(ctx, name, contentType, r)
	if err != nil {
		return "", err
	}
	return c.GatewayURL(f.CID), nil
}

// PinJSON uploads v as an indented JSON document and returns its gateway URL.
func (c *Client) PinJSON(ctx context.Context, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	return c.PinFile(ctx, name, "application/json", bytes.NewReader(data))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
