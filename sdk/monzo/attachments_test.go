package monzo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestRegisterAttachmentDecodesEnvelope(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attachment/register" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = r.ParseForm()
		if got := r.PostForm.Get("external_id"); got != "tx_1" {
			t.Errorf("external_id = %q", got)
		}
		if got := r.PostForm.Get("file_type"); got != "image/png" {
			t.Errorf("file_type = %q", got)
		}
		if got := r.PostForm.Get("file_url"); got != "https://example.com/receipt.png" {
			t.Errorf("file_url = %q", got)
		}
		_, _ = w.Write([]byte(`{"attachment": {
			"id": "attach_1", "external_id": "tx_1", "file_type": "image/png",
			"file_url": "https://example.com/receipt.png", "user_id": "user_1"
		}}`))
	}))

	attachment, err := c.RegisterAttachment(context.Background(), "tx_1", "https://example.com/receipt.png", "image/png")
	if err != nil {
		t.Fatalf("RegisterAttachment failed: %v", err)
	}
	if attachment.ID != "attach_1" || attachment.ExternalID != "tx_1" {
		t.Errorf("attachment = %+v", attachment)
	}
}

func TestDeregisterAttachmentSendsID(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attachment/deregister" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = r.ParseForm()
		if got := r.PostForm.Get("id"); got != "attach_1" {
			t.Errorf("id = %q", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))

	if err := c.DeregisterAttachment(context.Background(), "attach_1"); err != nil {
		t.Fatalf("DeregisterAttachment failed: %v", err)
	}
}

func TestUploadAttachmentFlow(t *testing.T) {
	t.Parallel()

	content := []byte("fake png bytes")
	dir := t.TempDir()
	filePath := filepath.Join(dir, "receipt.png")
	if err := os.WriteFile(filePath, content, 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	uploadTarget := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("upload method = %q", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "image/png" {
			t.Errorf("upload Content-Type = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("upload should not carry the bearer token, got %q", got)
		}
		if got := r.URL.Query().Get("file"); got != filePath {
			t.Errorf("file query = %q, want %q", got, filePath)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != string(content) {
			t.Errorf("upload body = %q", string(body))
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(uploadTarget.Close)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attachment/upload" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = r.ParseForm()
		if got := r.PostForm.Get("file_name"); got != "receipt.png" {
			t.Errorf("file_name = %q", got)
		}
		if got := r.PostForm.Get("file_type"); got != "image/png" {
			t.Errorf("file_type = %q", got)
		}
		_, _ = fmt.Fprintf(w, `{"file_url": "https://cdn.example.com/receipt.png", "upload_url": %q}`, uploadTarget.URL)
	}))

	fileURL, err := c.UploadAttachment(context.Background(), filePath, "image/png")
	if err != nil {
		t.Fatalf("UploadAttachment failed: %v", err)
	}
	if fileURL != "https://cdn.example.com/receipt.png" {
		t.Errorf("fileURL = %q", fileURL)
	}
}

func TestUploadAttachmentMissingFile(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"file_url": "https://cdn.example.com/x", "upload_url": "https://upload.example.com/x"}`))
	}))

	_, err := c.UploadAttachment(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "image/png")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestUploadAttachmentRejectsEmptyLocation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	dir := t.TempDir()
	filePath := filepath.Join(dir, "receipt.png")
	if err := os.WriteFile(filePath, []byte("x"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	_, err := c.UploadAttachment(context.Background(), filePath, "image/png")
	if err == nil {
		t.Fatal("expected an error when the API returns no upload location")
	}
}
