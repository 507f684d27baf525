package handlers

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/storage"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const attachmentField = "attachment"

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return invalidPayload()
	}
	return nil
}

// multipartForm parses a multipart body, reporting parse failures as bad requests.
func multipartForm(c *fiber.Ctx) (*multipart.Form, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, invalidPayload()
	}
	return form, nil
}

func invalidPayload() error {
	return apperrors.NewDomainError(apperrors.CodeBadRequest, "invalid payload", fiber.StatusBadRequest, nil)
}

// upload is an attachment opened from a multipart request. Close must be called.
type upload struct {
	*storage.Upload
	file multipart.File
}

func (u *upload) Close() {
	if u != nil && u.file != nil {
		_ = u.file.Close()
	}
}

func (u *upload) value() *storage.Upload {
	if u == nil {
		return nil
	}
	return u.Upload
}

// formUpload opens the attachment part if present.
func formUpload(form *multipart.Form) (*upload, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[attachmentField]
	if len(headers) == 0 {
		return nil, nil
	}
	header := headers[0]
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("The given data was invalid.", map[string]any{
			attachmentField: []string{"The attachment failed to upload."},
		})
	}
	return &upload{
		Upload: &storage.Upload{
			FileName:    header.Filename,
			ContentType: header.Header.Get(fiber.HeaderContentType),
			Size:        header.Size,
			Content:     file,
		},
		file: file,
	}, nil
}

// formValue returns a pointer to the named multipart value, or nil when absent.
func formValue(form *multipart.Form, key string) *string {
	if form == nil {
		return nil
	}
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func formString(form *multipart.Form, key string) string {
	if v := formValue(form, key); v != nil {
		return *v
	}
	return ""
}
