// Package upload transfers local files to presigned object store URLs.
//
// The uploader performs exactly one HTTP request per call. Retrying, and
// presigning again before each retry, is the staging coordinator's job.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

// maxErrorBody bounds how much of a rejection body ends up in the error.
const maxErrorBody = 512

// IsSuccessStatus reports whether an object store response accepted the upload.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 400
}

// Uploader sends file content to presigned targets.
// Safe for concurrent use.
type Uploader struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the HTTP client. The uploader never modifies c; a nil
// client keeps the default.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) {
		u.client = c
	}
}

// WithTimeout bounds each request, body transfer included. It overrides the
// timeout of a client given with WithHTTPClient, in either order.
func WithTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		u.timeout = d
	}
}

// WithRateLimit allows at most perSecond request starts per second.
// Zero or negative disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(u *Uploader) {
		if perSecond <= 0 {
			u.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		u.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewUploader creates an uploader with the default upload timeout and no rate limit.
func NewUploader(opts ...Option) *Uploader {
	u := &Uploader{}
	for _, opt := range opts {
		opt(u)
	}

	switch {
	case u.client == nil:
		timeout := u.timeout
		if timeout <= 0 {
			timeout = bendsink.DefaultUploadTimeout
		}
		u.client = &http.Client{Timeout: timeout}
	case u.timeout > 0:
		c := *u.client
		c.Timeout = u.timeout
		u.client = &c
	}
	return u
}

// Upload sends content to target with unknown length and returns the response
// status. content is closed on every path.
func (u *Uploader) Upload(ctx context.Context, target bendsink.PresignedTarget, content io.ReadCloser) (int, error) {
	return u.send(ctx, target, content, -1)
}

// UploadFile opens path and sends it to target with its size as Content-Length.
func (u *Uploader) UploadFile(ctx context.Context, target bendsink.PresignedTarget, path string) (int, error) {
	op := "upload " + target.RedactedURL()

	f, err := os.Open(path)
	if err != nil {
		return 0, bendsink.NewError(bendsink.KindBatchAccess, op, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, bendsink.NewError(bendsink.KindBatchAccess, op, err)
	}
	return u.send(ctx, target, f, info.Size())
}

func (u *Uploader) send(ctx context.Context, target bendsink.PresignedTarget, content io.ReadCloser, size int64) (int, error) {
	op := "upload " + target.RedactedURL()
	defer content.Close()

	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return 0, bendsink.NewError(bendsink.KindUpload, op, fmt.Errorf("rate limiter: %w", err))
		}
	}

	method := target.Method
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL, content)
	if err != nil {
		return 0, bendsink.NewError(bendsink.KindUpload, op, fmt.Errorf("create request: %w", redactURLError(err)))
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}
	for k, v := range target.Headers {
		if strings.EqualFold(k, "host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, bendsink.NewError(bendsink.KindUpload, op, redactURLError(err))
	}
	defer resp.Body.Close()

	if IsSuccessStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return resp.StatusCode, &bendsink.Error{
		Kind:       bendsink.KindUpload,
		Op:         op,
		Err:        fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		StatusCode: resp.StatusCode,
	}
}

// Download fetches target into w. Used to read staged objects back.
func (u *Uploader) Download(ctx context.Context, target bendsink.PresignedTarget, w io.Writer) error {
	op := "download " + target.RedactedURL()

	method := target.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target.URL, nil)
	if err != nil {
		return bendsink.NewError(bendsink.KindUpload, op, fmt.Errorf("create request: %w", redactURLError(err)))
	}
	for k, v := range target.Headers {
		if strings.EqualFold(k, "host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return bendsink.NewError(bendsink.KindUpload, op, redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &bendsink.Error{
			Kind:       bendsink.KindUpload,
			Op:         op,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return bendsink.NewError(bendsink.KindUpload, op, err)
	}
	return nil
}

// redactURLError strips the request URL, which carries presigned credentials,
// from net/http errors.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
