package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/service"
	"github.com/crm-electoral-api/internal/spreadsheet"
)

// ImportHandler handles import endpoints
type ImportHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ImportHandler {
	return &ImportHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "import").Logger(),
	}
}

// CreateImport handles POST /v1/affiliates/imports
// Accepts a multipart .xlsx, .xlsm or .csv upload in the "file" field
func (h *ImportHandler) CreateImport(c *gin.Context) {
	ctx := c.Request.Context()

	// Replays are resolved by the import service after its permission check
	idempotencyKey := c.GetHeader("Idempotency-Key")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	defer file.Close()

	// Validate file size
	if header.Size > h.cfg.Import.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large, max size is %d MB", h.cfg.Import.MaxUploadSize/(1024*1024)),
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !spreadsheet.IsSupported(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato no soportado, usa .xlsx o .csv"})
		return
	}

	// Save uploaded file
	uploadDir := h.cfg.Import.UploadDir
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		h.log.Error().Err(err).Msg("Failed to create upload directory")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}

	filePath := filepath.Join(uploadDir, fmt.Sprintf("afiliados_%s%s", uuid.New().String()[:8], ext))
	if err := saveUpload(file, filePath); err != nil {
		h.log.Error().Err(err).Msg("Failed to save upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save file"})
		return
	}

	req := &models.ImportRequest{
		FileName:       header.Filename,
		FilePath:       filePath,
		IdempotencyKey: idempotencyKey,
	}

	job, err := h.services.Import.CreateImportJob(ctx, currentActor(c), req)
	if err != nil {
		os.Remove(filePath)
		respondError(c, h.log, err, "failed to create import job")
		return
	}

	// An earlier job with the same key keeps its own file
	if job.FilePath != filePath {
		os.Remove(filePath)
		h.log.Info().Str("job_id", job.ID).Msg("Returning existing job for idempotency key")
		c.JSON(http.StatusOK, job)
		return
	}

	h.log.Info().
		Str("job_id", job.ID).
		Str("file", header.Filename).
		Int64("size_bytes", header.Size).
		Int("rows", job.TotalRecords).
		Msg("Import job created")

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":        job.ID,
		"status":        job.Status,
		"total_records": job.TotalRecords,
		"message":       "Import job created and queued for processing",
	})
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

// GetImportStatus handles GET /v1/affiliates/imports/:job_id
func (h *ImportHandler) GetImportStatus(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}

	job, err := h.services.Job.GetJob(ctx, currentActor(c), jobID)
	if err != nil {
		respondError(c, h.log, err, "failed to get job status")
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetImportErrors handles GET /v1/affiliates/imports/:job_id/errors
func (h *ImportHandler) GetImportErrors(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}

	failed, err := h.services.Job.GetJobErrors(ctx, currentActor(c), jobID)
	if err != nil {
		respondError(c, h.log, err, "failed to get errors")
		return
	}
	if failed == nil {
		failed = []models.ImportRowResult{}
	}

	// Determine format from query param
	format := c.Query("format")
	if format == "" {
		format = "json"
	}

	if format == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=errores_%s.csv", jobID))
		writer := csv.NewWriter(c.Writer)
		writer.Write([]string{"fila", "cedula", "nombre", "error"})
		for _, r := range failed {
			var cedula, nombre string
			if r.Data != nil {
				cedula, nombre = r.Data.Cedula, r.Data.FullName()
			}
			writer.Write([]string{strconv.Itoa(r.Row), cedula, nombre, r.Error})
		}
		writer.Flush()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":      jobID,
		"error_count": len(failed),
		"errors":      failed,
	})
}
