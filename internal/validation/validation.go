package validation

import (
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

var AllowedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
	// TODO add HEIC support for phone camera invoice scans
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// IsAllowedUploadType reports whether a content type (parameters stripped)
// may be stored as an attachment.
func IsAllowedUploadType(contentType string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	return AllowedMimeTypes[strings.ToLower(strings.TrimSpace(ct))]
}

// ValidateUpload checks a single multipart file against the configured size
// limit and the attachment content-type allowlist. The declared Content-Type
// header wins; when the header is absent the first bytes are sniffed.
func ValidateUpload(file *multipart.FileHeader, head []byte, maxFileSize int64) ValidationErrors {
	var errors ValidationErrors

	if file == nil {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: "a file must be provided",
		})
		return errors
	}

	if file.Size == 0 {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file %s is empty", file.Filename),
		})
		return errors
	}

	if file.Size > maxFileSize {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file %s exceeds maximum size of %d bytes", file.Filename, maxFileSize),
		})
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(head).String()
	}

	if !IsAllowedUploadType(contentType) {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file %s has unsupported content type: %s", file.Filename, contentType),
		})
	}

	return errors
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs validator tags over a request DTO and flattens the
// result into field-keyed messages.
func ValidateStruct(s any) ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var errors ValidationErrors
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errors = append(errors, ValidationError{Field: "request", Message: err.Error()})
		return errors
	}

	for _, fe := range fieldErrs {
		errors = append(errors, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: messageForTag(fe),
		})
	}
	return errors
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "uuid":
		return "must be a valid UUID"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
