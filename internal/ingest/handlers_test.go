package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dropwatch/dropwatch/internal/records"
)

func setupUploadRouter() (*gin.Engine, records.Store, *Handler) {
	gin.SetMode(gin.TestMode)

	store := records.NewMemoryStore()
	handler := NewHandler(store, NewParser(slog.New(slog.NewTextHandler(io.Discard, nil))))

	r := gin.New()
	v1 := r.Group("/v1")
	handler.RegisterRoutes(v1)

	return r, store, handler
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fmt.Fprint(part, content)
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func TestHandler_Upload(t *testing.T) {
	router, store, _ := setupUploadRouter()

	body, contentType := multipartBody(t, map[string]string{
		"class_attendance.csv": "Name,Class,Date,Status\nAsha Rao,10A,2026-01-05,Present\nVikram Iyer,10A,2026-01-05,Absent\n",
	})

	req := httptest.NewRequest("POST", "/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results   []fileResult `json:"results"`
		Succeeded int          `json:"succeeded"`
		Failed    int          `json:"failed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Succeeded != 1 || resp.Failed != 0 {
		t.Fatalf("succeeded=%d failed=%d", resp.Succeeded, resp.Failed)
	}
	if resp.Results[0].Type != "attendance" || resp.Results[0].Rows != 2 {
		t.Errorf("unexpected result: %+v", resp.Results[0])
	}

	ds, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(ds.Attendance) != 2 {
		t.Errorf("stored %d attendance records, want 2", len(ds.Attendance))
	}
}

func TestHandler_Upload_MixedBatch(t *testing.T) {
	router, _, _ := setupUploadRouter()

	body, contentType := multipartBody(t, map[string]string{
		"marks.csv":  "Name,Subject,Marks\nAsha Rao,Math,82\n",
		"notes.docx": "irrelevant",
	})

	req := httptest.NewRequest("POST", "/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results   []fileResult `json:"results"`
		Succeeded int          `json:"succeeded"`
		Failed    int          `json:"failed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Succeeded != 1 || resp.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 1/1", resp.Succeeded, resp.Failed)
	}
}

func TestHandler_Upload_AllRejected(t *testing.T) {
	router, _, _ := setupUploadRouter()

	body, contentType := multipartBody(t, map[string]string{"report.pdf": "x"})

	req := httptest.NewRequest("POST", "/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// The batch itself is well-formed, so it reports per-file failures with 200.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Succeeded != 0 || resp.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 0/1", resp.Succeeded, resp.Failed)
	}
}

func TestHandler_Upload_ForcedType(t *testing.T) {
	router, store, _ := setupUploadRouter()

	// Filename says attendance, but the caller pins the type to marks.
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	mw.WriteField("type", "marks")
	part, err := mw.CreateFormFile("files", "attendance_sheet.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(part, "Name,Subject,Score\nAsha Rao,Math,82\n")
	mw.Close()

	req := httptest.NewRequest("POST", "/v1/uploads", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	ds, _ := store.Snapshot(context.Background())
	if len(ds.Marks) != 1 || len(ds.Attendance) != 0 {
		t.Errorf("marks=%d attendance=%d, want 1/0", len(ds.Marks), len(ds.Attendance))
	}
}

func TestHandler_Upload_NoFiles(t *testing.T) {
	router, _, _ := setupUploadRouter()

	req := httptest.NewRequest("POST", "/v1/uploads", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandler_Status(t *testing.T) {
	router, store, _ := setupUploadRouter()

	store.AppendAttendance(context.Background(), []records.AttendanceRecord{
		{StudentName: "Asha Rao", IsPresent: true},
	})

	req := httptest.NewRequest("GET", "/v1/uploads/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Counts map[string]int `json:"counts"`
		Ready  bool           `json:"ready"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Counts["attendance"] != 1 {
		t.Errorf("attendance count = %d, want 1", resp.Counts["attendance"])
	}
	// Marks and fees are still empty.
	if resp.Ready {
		t.Error("ready should be false with missing types")
	}
}

func TestHandler_Preview(t *testing.T) {
	router, store, _ := setupUploadRouter()

	var recs []records.MarksRecord
	for i := 0; i < 15; i++ {
		recs = append(recs, records.MarksRecord{StudentName: fmt.Sprintf("Student %d", i), Marks: float64(i)})
	}
	store.AppendMarks(context.Background(), recs)

	req := httptest.NewRequest("GET", "/v1/uploads/preview/marks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Total   int                   `json:"total"`
		Records []records.MarksRecord `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 15 {
		t.Errorf("total = %d, want 15", resp.Total)
	}
	if len(resp.Records) != previewLimit {
		t.Errorf("preview size = %d, want %d", len(resp.Records), previewLimit)
	}
}

func TestHandler_Preview_InvalidType(t *testing.T) {
	router, _, _ := setupUploadRouter()

	req := httptest.NewRequest("GET", "/v1/uploads/preview/grades", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandler_Clear(t *testing.T) {
	router, store, _ := setupUploadRouter()

	store.AppendFees(context.Background(), []records.FeeRecord{{StudentName: "Asha Rao"}})

	req := httptest.NewRequest("DELETE", "/v1/uploads", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	att, marks, fees, err := store.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if att != 0 || marks != 0 || fees != 0 {
		t.Errorf("counts after clear = %d/%d/%d, want 0/0/0", att, marks, fees)
	}
}
