package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentcar/internal/app/apperrors"
	"rentcar/internal/infra/storage/s3"
)

const maxLicenseSize = 10 << 20

var errLicenseTooLarge = errors.New("license file exceeds 10MB")

type LicenseHandler struct {
	Store s3.LicenseStore
}

// Upload stores a multipart "file" and returns the reference to send as
// licenseReference when booking.
func (h LicenseHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, err)
		return
	}
	if file.Size > maxLicenseSize {
		writeError(c, apperrors.Validation(errLicenseTooLarge))
		return
	}
	src, err := file.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer src.Close()

	ref, err := h.Store.Store(c.Request.Context(), file.Filename, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		writeError(c, apperrors.Wrap(err, apperrors.KindPersistence, "license upload failed"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reference": ref})
}

var _ LicenseHTTP = LicenseHandler{}
