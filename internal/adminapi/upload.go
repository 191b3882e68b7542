package adminapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/amanice/storefront/internal/catalog"
	"github.com/amanice/storefront/internal/upload"
	"github.com/amanice/storefront/internal/webserver"
	"github.com/amanice/storefront/pkg/common"
)

const localImagePrefix = "api/images/"

type base64UploadPayload struct {
	Image    string `json:"image"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

type deleteImagePayload struct {
	ImagePath string `json:"imagePath"`
}

func registerUploadRoutes() {
	webserver.LegacyPOST("/upload", uploadImage)
	webserver.LegacyPOST("/delete", deleteImage)
	webserver.ApiPOST("/upload", uploadBase64Image)
	webserver.ApiGET("/images/:name", getLocalImage)
}

func uploadFail(c echo.Context, err error) error {
	var uerr *upload.Error
	if errors.As(err, &uerr) {
		return legacyFail(c, uerr.Status, uerr.Message)
	}
	zap.L().Error("image upload failed", zap.String("namespace", "adminapi"), zap.Error(err))
	return legacyFail(c, http.StatusInternalServerError, "Failed to save uploaded file. Please try again.")
}

func uploadImage(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return legacyFail(c, http.StatusBadRequest, "No file uploaded or upload error occurred.")
	}
	src, err := fh.Open()
	if err != nil {
		return legacyFail(c, http.StatusBadRequest, "No file uploaded or upload error occurred.")
	}
	defer src.Close()

	result, err := GetAppContext(c).Uploads().Save(fh.Filename, fh.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		return uploadFail(c, err)
	}
	logOperation(c, "upload", "uploaded image "+result.Path)
	return c.JSON(http.StatusOK, result)
}

// uploadBase64Image stores a base64 image. When the upload directory cannot be
// written the image is kept in the override store and served from /api/images.
func uploadBase64Image(c echo.Context) error {
	var payload base64UploadPayload
	if err := c.Bind(&payload); err != nil {
		return legacyFail(c, http.StatusBadRequest, "Invalid JSON data")
	}
	appCtx := GetAppContext(c)
	result, err := appCtx.Uploads().SaveBase64(payload.Image, payload.FileName, payload.FileType)
	var uerr *upload.Error
	if err == nil || errors.As(err, &uerr) {
		if err != nil {
			return uploadFail(c, err)
		}
		logOperation(c, "upload", "uploaded image "+result.Path)
		return c.JSON(http.StatusOK, result)
	}

	zap.L().Warn("upload directory unavailable, keeping image in local store",
		zap.String("namespace", "adminapi"), zap.Error(err))
	dataURL, err := upload.DataURL(payload.Image)
	if err != nil {
		return uploadFail(c, err)
	}
	name := common.UUIDBase36()
	if perr := appCtx.Overrides().PutImage(name, dataURL); perr != nil && !errors.Is(perr, catalog.ErrStorageQuota) {
		return uploadFail(c, perr)
	}
	return c.JSON(http.StatusOK, upload.Result{
		Status:   "success",
		Path:     localImagePrefix + name,
		FileName: name,
		FileSize: int64(base64.StdEncoding.DecodedLen(len(dataURL))),
	})
}

func getLocalImage(c echo.Context) error {
	dataURL, found, err := GetAppContext(c).Overrides().GetImage(c.Param("name"))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to read image", err.Error())
	}
	if !found {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Image not found", nil)
	}
	i := strings.Index(dataURL, ";base64,")
	if i < len("data:") {
		return fail(c, http.StatusInternalServerError, "STORAGE_ERROR", "Stored image is malformed", nil)
	}
	data, err := base64.StdEncoding.DecodeString(dataURL[i+len(";base64,"):])
	if err != nil {
		return fail(c, http.StatusInternalServerError, "STORAGE_ERROR", "Stored image is malformed", nil)
	}
	return c.Blob(http.StatusOK, mimetype.Detect(data).String(), data)
}

func deleteImage(c echo.Context) error {
	var payload deleteImagePayload
	if err := c.Bind(&payload); err != nil {
		return legacyFail(c, http.StatusBadRequest, "Invalid JSON data")
	}
	if err := GetAppContext(c).Uploads().Delete(payload.ImagePath); err != nil {
		return uploadFail(c, err)
	}
	logOperation(c, "delete_image", "deleted image "+payload.ImagePath)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Image deleted successfully",
	})
}
