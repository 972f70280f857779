package ingest

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dropwatch/dropwatch/internal/logging"
	"github.com/dropwatch/dropwatch/internal/metrics"
	"github.com/dropwatch/dropwatch/internal/records"
)

const (
	previewLimit    = 10
	maxPreviewLimit = 100
	sampleLimit     = 3 // per-file sample rows in upload responses
)

// EventEmitter broadcasts upload events to real-time subscribers.
type EventEmitter interface {
	EmitUpload(fileName string, dataType string, rows int)
	EmitRecordsCleared()
}

// uploadStatus remembers the most recent successful upload per type.
type uploadStatus struct {
	FileName   string    `json:"fileName"`
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Handler provides HTTP endpoints for uploading and inspecting raw records.
type Handler struct {
	store  records.Store
	parser *Parser
	events EventEmitter // optional

	mu     sync.Mutex
	status map[records.DataType]uploadStatus
}

// NewHandler creates an upload handler backed by the given record store.
func NewHandler(store records.Store, parser *Parser) *Handler {
	return &Handler{
		store:  store,
		parser: parser,
		status: make(map[records.DataType]uploadStatus),
	}
}

// WithEvents adds an event emitter to the handler.
func (h *Handler) WithEvents(events EventEmitter) *Handler {
	h.events = events
	return h
}

// RegisterRoutes sets up the upload routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/uploads", h.Upload)
	r.GET("/uploads/status", h.Status)
	r.GET("/uploads/preview/:type", h.Preview)
	r.DELETE("/uploads", h.Clear)
}

// fileResult reports the outcome of one uploaded file.
type fileResult struct {
	FileName string      `json:"fileName"`
	Status   string      `json:"status"`
	Type     string      `json:"type,omitempty"`
	Rows     int         `json:"rows,omitempty"`
	Skipped  int         `json:"skipped,omitempty"`
	Sample   interface{} `json:"sample,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Upload handles POST /v1/uploads
//
// Accepts one or more files under the multipart field "files". Each file is
// parsed, type-detected, normalized, and appended to the store independently;
// a bad file never fails the batch.
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "multipart form with 'files' field required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "no files provided"})
		return
	}

	// Optional type override; when absent the type is detected per file.
	var forcedType records.DataType
	if v := c.PostForm("type"); v != "" {
		forcedType = records.DataType(v)
		if !forcedType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_type", "message": "type must be attendance, marks, or fees"})
			return
		}
	}

	log := logging.L(c.Request.Context())
	results := make([]fileResult, 0, len(files))
	succeeded := 0

	for _, fh := range files {
		res := fileResult{FileName: fh.Filename}

		if !ValidFormat(fh.Filename) {
			res.Status = "error"
			res.Error = "unsupported file format, expected .csv or .xlsx"
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			results = append(results, res)
			continue
		}

		f, err := fh.Open()
		if err != nil {
			res.Status = "error"
			res.Error = "failed to read file"
			metrics.UploadsTotal.WithLabelValues("error").Inc()
			results = append(results, res)
			continue
		}
		table, err := ReadTable(fh.Filename, f)
		f.Close()
		if err != nil {
			log.Warn("failed to parse upload", "file", fh.Filename, "error", err)
			res.Status = "error"
			res.Error = err.Error()
			metrics.UploadsTotal.WithLabelValues("error").Inc()
			results = append(results, res)
			continue
		}

		typ := forcedType
		if typ == "" {
			typ = DetectType(fh.Filename, table.Columns)
		}
		batch := h.parser.Normalize(table, typ)

		if err := h.appendBatch(c, batch); err != nil {
			log.Error("failed to store upload", "file", fh.Filename, "error", err)
			res.Status = "error"
			res.Error = "failed to store records"
			metrics.UploadsTotal.WithLabelValues("error").Inc()
			results = append(results, res)
			continue
		}

		res.Status = "ok"
		res.Type = string(typ)
		res.Rows = batch.Count()
		res.Skipped = batch.Skipped
		res.Sample = batch.Sample(sampleLimit)
		results = append(results, res)
		succeeded++

		metrics.UploadsTotal.WithLabelValues("ok").Inc()
		metrics.UploadRowsTotal.WithLabelValues(string(typ)).Add(float64(batch.Count()))
		metrics.UploadRowsSkippedTotal.WithLabelValues(string(typ)).Add(float64(batch.Skipped))

		h.recordStatus(typ, fh.Filename, batch)

		if h.events != nil {
			h.events.EmitUpload(fh.Filename, string(typ), batch.Count())
		}
		log.Info("upload processed", "file", fh.Filename, "type", typ, "rows", batch.Count(), "skipped", batch.Skipped)
	}

	// Per-file outcomes are the payload; a batch with failures is still a
	// successful batch request.
	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

func (h *Handler) appendBatch(c *gin.Context, batch *Batch) error {
	ctx := c.Request.Context()
	switch batch.Type {
	case records.TypeAttendance:
		return h.store.AppendAttendance(ctx, batch.Attendance)
	case records.TypeMarks:
		return h.store.AppendMarks(ctx, batch.Marks)
	case records.TypeFees:
		return h.store.AppendFees(ctx, batch.Fees)
	}
	return nil
}

func (h *Handler) recordStatus(typ records.DataType, fileName string, batch *Batch) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status[typ] = uploadStatus{
		FileName:   fileName,
		Rows:       batch.Count(),
		Skipped:    batch.Skipped,
		UploadedAt: time.Now().UTC(),
	}
}

// Status handles GET /v1/uploads/status
func (h *Handler) Status(c *gin.Context) {
	attendance, marks, fees, err := h.store.Counts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to count records"})
		return
	}

	h.mu.Lock()
	uploads := make(map[string]uploadStatus, len(h.status))
	for typ, st := range h.status {
		uploads[string(typ)] = st
	}
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"counts": gin.H{
			string(records.TypeAttendance): attendance,
			string(records.TypeMarks):      marks,
			string(records.TypeFees):       fees,
		},
		"uploads": uploads,
		"ready":   attendance > 0 && marks > 0 && fees > 0,
	})
}

// Preview handles GET /v1/uploads/preview/:type
func (h *Handler) Preview(c *gin.Context) {
	typ := records.DataType(c.Param("type"))
	if !typ.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_type", "message": "type must be attendance, marks, or fees"})
		return
	}

	limit := previewLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPreviewLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit", "message": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	ds, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to load records"})
		return
	}

	var preview interface{}
	var total int
	switch typ {
	case records.TypeAttendance:
		total = len(ds.Attendance)
		preview = ds.Attendance[:min(limit, total)]
	case records.TypeMarks:
		total = len(ds.Marks)
		preview = ds.Marks[:min(limit, total)]
	case records.TypeFees:
		total = len(ds.Fees)
		preview = ds.Fees[:min(limit, total)]
	}

	c.JSON(http.StatusOK, gin.H{
		"type":    typ,
		"total":   total,
		"records": preview,
	})
}

// Clear handles DELETE /v1/uploads
func (h *Handler) Clear(c *gin.Context) {
	if err := h.store.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "failed to clear records"})
		return
	}

	h.mu.Lock()
	h.status = make(map[records.DataType]uploadStatus)
	h.mu.Unlock()

	if h.events != nil {
		h.events.EmitRecordsCleared()
	}

	logging.L(c.Request.Context()).Info("record store cleared")
	c.JSON(http.StatusOK, gin.H{"message": "all records cleared"})
}
