// Package r2s3 uploads run artifacts to S3-compatible object storage (Cloudflare R2 by default).
package r2s3

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// R2 ignores the region but SigV4 still needs one in the scope.
const (
	region  = "auto"
	service = "s3"
)

// Client PUTs whole files into one bucket with path-style URLs.
type Client struct {
	base   *url.URL
	bucket string
	keyID  string
	secret string
	http   *http.Client
}

func New(endpoint, bucket, accessKeyID, secretAccessKey string) (*Client, error) {
	c := &Client{
		bucket: strings.TrimSpace(bucket),
		keyID:  strings.TrimSpace(accessKeyID),
		secret: strings.TrimSpace(secretAccessKey),
		http:   &http.Client{Timeout: 2 * time.Minute},
	}
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" || c.bucket == "" || c.keyID == "" || c.secret == "" {
		return nil, fmt.Errorf("r2s3: endpoint, bucket and both credentials are required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("r2s3: bad endpoint %q", endpoint)
	}
	c.base = u
	return c, nil
}

// Upload stores the file at localPath under key. Artifacts are small enough to buffer.
func (c *Client) Upload(ctx context.Context, key, localPath string) error {
	body, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return c.PutObject(ctx, key, body)
}

func (c *Client) PutObject(ctx context.Context, key string, body []byte) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("r2s3: bad object key %q", key)
	}
	u := *c.base
	u.Path = path.Join("/", u.Path, c.bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType(key))
	c.sign(req, hashHex(body), time.Now().UTC())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	return fmt.Errorf("r2s3: put %s: status %d: %s", key, resp.StatusCode, bytes.TrimSpace(msg))
}

// sign sets the SigV4 headers. Only host, payload hash and date are signed.
func (c *Client) sign(req *http.Request, payloadHash string, now time.Time) {
	stamp := now.Format("20060102T150405Z")
	day := stamp[:8]
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", stamp)

	const signed = "host;x-amz-content-sha256;x-amz-date"
	canonical := fmt.Sprintf("%s\n%s\n\nhost:%s\nx-amz-content-sha256:%s\nx-amz-date:%s\n\n%s\n%s",
		req.Method, req.URL.EscapedPath(), req.URL.Host, payloadHash, stamp, signed, payloadHash)
	scope := day + "/" + region + "/" + service + "/aws4_request"
	toSign := "AWS4-HMAC-SHA256\n" + stamp + "\n" + scope + "\n" + hashHex([]byte(canonical))

	key := []byte("AWS4" + c.secret)
	for _, part := range []string{day, region, service, "aws4_request"} {
		key = mac(key, part)
	}
	req.Header.Set("Authorization", fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%x",
		c.keyID, scope, signed, mac(key, toSign)))
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".zst":
		return "application/zstd"
	}
	return "application/octet-stream"
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func mac(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
