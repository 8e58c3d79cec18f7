package monzo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// RegisterAttachment attaches the image at fileURL to a transaction and
// returns the registered attachment.
func (c *Client) RegisterAttachment(ctx context.Context, transactionID, fileURL, mimeType string) (*Attachment, error) {
	form := url.Values{
		"external_id": {transactionID},
		"file_type":   {mimeType},
		"file_url":    {fileURL},
	}
	data, err := c.postForm(ctx, "attachment/register", form)
	if err != nil {
		return nil, err
	}
	return decodeFirst[Attachment](data, "attachment")
}

// DeregisterAttachment removes an attachment from its transaction.
func (c *Client) DeregisterAttachment(ctx context.Context, attachmentID string) error {
	form := url.Values{"id": {attachmentID}}
	_, err := c.postForm(ctx, "attachment/deregister", form)
	return err
}

// UploadAttachment uploads a local file to the attachment store and
// returns the URL it can be fetched from. The returned URL can then be
// registered against a transaction with RegisterAttachment.
//
// The API hands back a presigned upload location; the file content is
// sent there directly, without the bearer token.
func (c *Client) UploadAttachment(ctx context.Context, filePath, mimeType string) (string, error) {
	form := url.Values{
		"file_name": {filepath.Base(filePath)},
		"file_type": {mimeType},
	}
	data, err := c.postForm(ctx, "attachment/upload", form)
	if err != nil {
		return "", err
	}

	fileURL := gjson.GetBytes(data, "file_url").String()
	uploadURL := gjson.GetBytes(data, "upload_url").String()
	if fileURL == "" || uploadURL == "" {
		return "", fmt.Errorf("upload response carried no upload location")
	}
	log.Debugf("Retrieved upload location: %s", uploadURL)

	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read attachment file: %w", err)
	}
	if err := c.uploadContent(ctx, uploadURL, filePath, mimeType, content); err != nil {
		return "", err
	}
	log.Debugf("Upload complete. File can be accessed: %s", fileURL)
	return fileURL, nil
}

// uploadContent PUTs the file content to the presigned upload location.
func (c *Client) uploadContent(ctx context.Context, uploadURL, filePath, mimeType string, content []byte) error {
	target, err := url.Parse(uploadURL)
	if err != nil {
		return fmt.Errorf("invalid upload location: %w", err)
	}
	query := target.Query()
	query.Set("file", filePath)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(resp.StatusCode, body)
	}
	return nil
}
