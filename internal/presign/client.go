// Package presign asks the warehouse control plane for short-lived object
// store URLs.
package presign

import (
	"context"
	"fmt"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

const (
	presignUploadQuery   = "PRESIGN UPLOAD @%s/%s%s;"
	presignDownloadQuery = "PRESIGN @%s/%s%s;"
)

// Client issues PRESIGN statements over the control connection.
type Client struct {
	conn bendsink.DBConnection
}

// NewClient creates a presign client. Panics if conn is nil.
func NewClient(conn bendsink.DBConnection) *Client {
	if conn == nil {
		panic("conn cannot be nil")
	}
	return &Client{conn: conn}
}

// UploadQuery returns the statement presigning an upload of fileName.
func UploadQuery(stageName, stagingPath, fileName string) string {
	return fmt.Sprintf(presignUploadQuery, stageName, stagingPath, fileName)
}

// DownloadQuery returns the statement presigning a download of fileName.
func DownloadQuery(stageName, stagingPath, fileName string) string {
	return fmt.Sprintf(presignDownloadQuery, stageName, stagingPath, fileName)
}

// PresignUpload returns a fresh upload target for one file.
func (c *Client) PresignUpload(ctx context.Context, stageName, stagingPath, fileName string) (bendsink.PresignedTarget, error) {
	return c.presign(ctx, "presign upload", UploadQuery(stageName, stagingPath, fileName))
}

// PresignDownload returns a fresh download target for one staged file.
func (c *Client) PresignDownload(ctx context.Context, stageName, stagingPath, fileName string) (bendsink.PresignedTarget, error) {
	return c.presign(ctx, "presign download", DownloadQuery(stageName, stagingPath, fileName))
}

func (c *Client) presign(ctx context.Context, op, query string) (bendsink.PresignedTarget, error) {
	op = op + " " + query
	var method, rawHeaders, url string
	if err := c.conn.QueryRow(ctx, query).Scan(&method, &rawHeaders, &url); err != nil {
		return bendsink.PresignedTarget{}, bendsink.NewError(bendsink.KindPresign, op, err)
	}
	if url == "" {
		return bendsink.PresignedTarget{}, bendsink.NewError(bendsink.KindPresign, op, fmt.Errorf("empty url"))
	}

	headers, err := ParseHeaders(rawHeaders)
	if err != nil {
		return bendsink.PresignedTarget{}, bendsink.NewError(bendsink.KindPresign, op, err)
	}

	return bendsink.PresignedTarget{
		Method:  method,
		URL:     url,
		Headers: headers,
	}, nil
}
