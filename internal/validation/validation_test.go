package validation

import (
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
)

func fileHeader(filename, contentType string, size int64) *multipart.FileHeader {
	h := textproto.MIMEHeader{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &multipart.FileHeader{
		Filename: filename,
		Header:   h,
		Size:     size,
	}
}

func TestIsAllowedUploadType(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"image/jpeg", true},
		{"IMAGE/PNG", true},
		{"application/pdf", true},
		{"text/plain; charset=utf-8", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, c := range cases {
		if got := IsAllowedUploadType(c.contentType); got != c.want {
			t.Errorf("IsAllowedUploadType(%q) = %v, want %v", c.contentType, got, c.want)
		}
	}
}

func TestValidateUpload(t *testing.T) {
	if errs := ValidateUpload(fileHeader("scan.jpg", "image/jpeg", 1024), nil, 10<<20); len(errs) != 0 {
		t.Fatalf("expected valid upload, got %v", errs)
	}

	if errs := ValidateUpload(nil, nil, 10<<20); len(errs) == 0 {
		t.Fatal("expected error for missing file")
	}

	if errs := ValidateUpload(fileHeader("scan.jpg", "image/jpeg", 0), nil, 10<<20); len(errs) == 0 {
		t.Fatal("expected error for empty file")
	}

	errs := ValidateUpload(fileHeader("scan.jpg", "image/jpeg", 11<<20), nil, 10<<20)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "exceeds maximum size") {
		t.Fatalf("expected size error, got %v", errs)
	}

	errs = ValidateUpload(fileHeader("notes.txt", "text/plain", 64), nil, 10<<20)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "unsupported content type") {
		t.Fatalf("expected content type error, got %v", errs)
	}
}

func TestValidateUpload_SniffsWhenHeaderMissing(t *testing.T) {
	// PNG magic bytes
	head := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	if errs := ValidateUpload(fileHeader("logo", "", int64(len(head))), head, 10<<20); len(errs) != 0 {
		t.Fatalf("expected sniffed png to pass, got %v", errs)
	}

	text := []byte("plain text, not an image")
	if errs := ValidateUpload(fileHeader("notes", "", int64(len(text))), text, 10<<20); len(errs) == 0 {
		t.Fatal("expected sniffed text to be rejected")
	}
}

func TestValidateStruct(t *testing.T) {
	type loginRequest struct {
		Email    string `validate:"required,email"`
		Password string `validate:"required,min=6"`
	}

	if errs := ValidateStruct(loginRequest{Email: "anna@example.com", Password: "secret1"}); len(errs) != 0 {
		t.Fatalf("expected valid struct, got %v", errs)
	}

	errs := ValidateStruct(loginRequest{Email: "not-an-email", Password: "ab"})
	if len(errs) != 2 {
		t.Fatalf("expected 2 validation errors, got %v", errs)
	}
	if errs[0].Field != "email" {
		t.Errorf("expected lowercased field name, got %q", errs[0].Field)
	}
	if !strings.Contains(errs[1].Message, "at least 6") {
		t.Errorf("expected min message, got %q", errs[1].Message)
	}
}
