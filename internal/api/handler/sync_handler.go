package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thomasldk/granite-erp-sub002/internal/api/dto"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/paths"
)

// PollJob handles GET /api/v1/sync/poll
// Returns the next pending job, claiming its quote, or 204 when idle
func (h *SyncHandler) PollJob(c *gin.Context) {
	job, found, err := h.dispatcher.ClaimNextJob(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to claim next job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to claim next job",
		})
		return
	}

	if !found {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		ID:             job.QuoteID,
		Reference:      job.Reference,
		JobType:        string(job.JobType),
		XMLContent:     job.XMLPayload,
		TargetFilename: job.TargetFilename,
		FileParams:     job.FileParams,
	})
}

// UploadResult handles POST /api/v1/sync/quotes/:quote_id/result
// Persists the uploaded XML result artifact and ingests it
func (h *SyncHandler) UploadResult(c *gin.Context) {
	quoteID := c.Param("quote_id")
	if _, err := uuid.Parse(quoteID); err != nil {
		h.logger.Error("Invalid quote_id format", slog.String("quote_id", quoteID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "quote_id must be a valid UUID",
		})
		return
	}

	data, originalName, ok := h.readUpload(c)
	if !ok {
		return
	}

	if _, err := h.persistUpload(quoteID, originalName, false, data); err != nil {
		h.logger.Error("Failed to persist result artifact", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to persist result artifact",
		})
		return
	}

	summary, err := h.ingester.Ingest(c.Request.Context(), quoteID, data)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQuoteNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Quote not found",
			})
		case errors.Is(err, domain.ErrDecodeFailed):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Result artifact could not be decoded",
			})
		default:
			h.logger.Error("Failed to ingest result", slog.String("quote_id", quoteID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to ingest result",
			})
		}
		return
	}

	c.JSON(http.StatusOK, dto.IngestResponse{
		QuoteID:   quoteID,
		Reference: summary.Reference,
		ItemCount: summary.ItemCount,
		Total:     summary.Total,
	})
}

// UploadExcel handles POST /api/v1/sync/quotes/:quote_id/excel
// Persists the companion spreadsheet and records its path on the quote.
// preserve_name=true keeps the uploaded filename recoverable for reimports.
func (h *SyncHandler) UploadExcel(c *gin.Context) {
	quoteID := c.Param("quote_id")
	if _, err := uuid.Parse(quoteID); err != nil {
		h.logger.Error("Invalid quote_id format", slog.String("quote_id", quoteID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "quote_id must be a valid UUID",
		})
		return
	}

	if _, err := h.storage.GetByID(c.Request.Context(), quoteID); err != nil {
		if errors.Is(err, domain.ErrQuoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Quote not found",
			})
			return
		}
		h.logger.Error("Failed to load quote", slog.String("quote_id", quoteID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load quote",
		})
		return
	}

	data, originalName, ok := h.readUpload(c)
	if !ok {
		return
	}

	preserve := c.Query("preserve_name") == "true"
	storedName, err := h.persistUpload(quoteID, originalName, preserve, data)
	if err != nil {
		h.logger.Error("Failed to persist spreadsheet artifact", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to persist spreadsheet artifact",
		})
		return
	}

	relativePath := "uploads/" + storedName
	if err := h.storage.SetExcelFilePath(c.Request.Context(), quoteID, relativePath); err != nil {
		h.logger.Error("Failed to record artifact path", slog.String("quote_id", quoteID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to record artifact path",
		})
		return
	}

	c.JSON(http.StatusOK, dto.UploadResponse{
		QuoteID:  quoteID,
		FilePath: relativePath,
	})
}

// PrepareDuplicate handles POST /api/v1/sync/quotes/:quote_id/duplicate
// Writes the duplicate job artifact and queues the quote for the Executor
func (h *SyncHandler) PrepareDuplicate(c *gin.Context) {
	quoteID := c.Param("quote_id")
	if _, err := uuid.Parse(quoteID); err != nil {
		h.logger.Error("Invalid quote_id format", slog.String("quote_id", quoteID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "quote_id must be a valid UUID",
		})
		return
	}

	var req dto.PrepareDuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	quote, err := h.storage.GetByID(c.Request.Context(), quoteID)
	if err != nil {
		if errors.Is(err, domain.ErrQuoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Quote not found",
			})
			return
		}
		h.logger.Error("Failed to load quote", slog.String("quote_id", quoteID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load quote",
		})
		return
	}

	if err := h.dispatcher.PrepareDuplicate(c.Request.Context(), quote, req.SourceReference); err != nil {
		if errors.Is(err, domain.ErrQuoteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Source quote not found",
			})
			return
		}
		h.logger.Error("Failed to prepare duplicate", slog.String("quote_id", quoteID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to prepare duplicate",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quote_id":  quoteID,
		"reference": quote.Reference,
		"status":    string(domain.StatusPendingDuplicate),
	})
}

func (h *SyncHandler) readUpload(c *gin.Context) ([]byte, string, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Multipart field 'file' is required",
		})
		return nil, "", false
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read uploaded file",
		})
		return nil, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read uploaded file",
		})
		return nil, "", false
	}

	return data, fileHeader.Filename, true
}

func (h *SyncHandler) persistUpload(quoteID, originalName string, preserve bool, data []byte) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}

	storedName := paths.UploadFilename(quoteID, originalName, preserve)
	if err := os.WriteFile(filepath.Join(h.uploadDir, storedName), data, 0o644); err != nil {
		return "", err
	}
	return storedName, nil
}
