package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Skufu/heartrisk/internal/batch"
	"github.com/Skufu/heartrisk/internal/classifier"
	"github.com/Skufu/heartrisk/internal/middleware"
	"github.com/Skufu/heartrisk/internal/patient"
	"github.com/Skufu/heartrisk/internal/report"
	"github.com/Skufu/heartrisk/internal/table"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

type PredictResponse struct {
	Prediction int             `json:"prediction"`
	Verdict    string          `json:"verdict"`
	Style      string          `json:"style"`
	Date       string          `json:"date"`
	Record     []patient.Field `json:"record"`
	ReportURL  string          `json:"report_url"`
}

type BatchResponse struct {
	Status   batch.Status `json:"status"`
	Message  string       `json:"message"`
	Missing  []string     `json:"missing,omitempty"`
	Columns  []string     `json:"columns,omitempty"`
	Rows     [][]string   `json:"rows,omitempty"`
	Count    int          `json:"count"`
	Download string       `json:"download,omitempty"`
}

// Handler serves the prediction API. The classifier is shared read-only.
type Handler struct {
	clf     classifier.Classifier
	logger  logrus.FieldLogger
	reports report.Generator
	now     func() time.Time
}

func New(clf classifier.Classifier, logger logrus.FieldLogger) *Handler {
	return &Handler{clf: clf, logger: logger, now: time.Now}
}

// WithClock overrides the clock used for report dates.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	h.reports.Now = now
	return h
}

func (h *Handler) ModelName() string { return h.clf.Name() }

func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/options", h.Options)
	api.POST("/predict", h.Predict)
	api.POST("/report", h.Report)
	api.POST("/batch", h.Batch)
}

// Options lists the choices of every categorical field.
func (h *Handler) Options(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"columns": patient.FeatureColumns,
		"options": patient.Options(),
	})
}

// Predict classifies one submitted form.
// @Summary Single patient prediction
// @Accept json
// @Produce json
// @Success 200 {object} PredictResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/predict [post]
func (h *Handler) Predict(c *gin.Context) {
	rec, ok := h.bindRecord(c)
	if !ok {
		return
	}
	label, ok := h.predictOne(c, rec)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, PredictResponse{
		Prediction: int(label),
		Verdict:    label.Verdict(),
		Style:      label.Style(),
		Date:       h.now().Format(report.DateLayout),
		Record:     rec.Fields(),
		ReportURL:  "/api/report",
	})
}

// Report classifies one submitted form and returns the PDF report.
// @Summary Single patient PDF report
// @Accept json
// @Produce application/pdf
// @Router /api/report [post]
func (h *Handler) Report(c *gin.Context) {
	rec, ok := h.bindRecord(c)
	if !ok {
		return
	}
	label, ok := h.predictOne(c, rec)
	if !ok {
		return
	}

	pdf, err := h.reports.Generate(rec, label)
	if err != nil {
		h.log(c).WithError(err).Error("report generation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "report generation failed", Details: err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
	c.Data(http.StatusOK, report.ContentType, pdf)
}

// Batch predicts every row of an uploaded CSV file.
// @Summary Batch prediction from CSV
// @Accept multipart/form-data
// @Param file formData file true "CSV with the 13 feature columns"
// @Param format query string false "csv to download predictions.csv"
// @Success 200 {object} BatchResponse
// @Failure 422 {object} BatchResponse
// @Router /api/batch [post]
func (h *Handler) Batch(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required", Details: err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "could not open upload", Details: err.Error()})
		return
	}
	defer f.Close()

	t, err := table.Read(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "could not read CSV", Details: err.Error()})
		return
	}

	out := batch.Run(c.Request.Context(), h.clf, t)
	log := h.log(c).WithFields(logrus.Fields{
		"file":   fh.Filename,
		"rows":   t.Len(),
		"status": out.Status,
	})

	switch out.Status {
	case batch.StatusWarning:
		log.WithField("missing", out.Missing).Warn("batch upload rejected")
		c.JSON(http.StatusUnprocessableEntity, BatchResponse{Status: out.Status, Message: out.Message, Missing: out.Missing})
		return
	case batch.StatusError:
		log.WithError(out.Err).Warn("batch prediction failed")
		status := http.StatusUnprocessableEntity
		if errors.Is(out.Err, classifier.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, BatchResponse{Status: out.Status, Message: out.Message})
		return
	}

	var buf bytes.Buffer
	if err := batch.Export(&buf, out.Table); err != nil {
		log.WithError(err).Error("batch export failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "export failed", Details: err.Error()})
		return
	}
	log.WithField("disease", countDisease(out.Labels)).Info("batch predictions generated")

	if c.Query("format") == "csv" {
		c.Header("Content-Disposition", `attachment; filename="`+batch.ExportFilename+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}
	c.JSON(http.StatusOK, BatchResponse{
		Status:   out.Status,
		Message:  out.Message,
		Columns:  out.Table.Header,
		Rows:     out.Table.Rows,
		Count:    out.Table.Len(),
		Download: "data:text/csv;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

func (h *Handler) bindRecord(c *gin.Context) (patient.Record, bool) {
	var form patient.Form
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: err.Error()})
		return patient.Record{}, false
	}
	rec, err := form.Record()
	if err != nil {
		resp := ErrorResponse{Error: "invalid input", Details: err.Error()}
		var fe *patient.FieldError
		if errors.As(err, &fe) {
			resp.Field = fe.Field
			if errors.Is(err, patient.ErrInvalidSelection) {
				resp.Error = "invalid selection"
			}
		}
		c.JSON(http.StatusBadRequest, resp)
		return patient.Record{}, false
	}
	return rec, true
}

func (h *Handler) predictOne(c *gin.Context, rec patient.Record) (classifier.Label, bool) {
	labels, err := h.clf.Predict(c.Request.Context(), rec.Table())
	if err == nil && len(labels) != 1 {
		err = errors.New("classifier returned no label")
	}
	if err != nil {
		h.log(c).WithError(err).Error("prediction failed")
		status := http.StatusInternalServerError
		if errors.Is(err, classifier.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, ErrorResponse{Error: "prediction failed", Details: err.Error()})
		return 0, false
	}

	h.log(c).WithField("prediction", int(labels[0])).Info("prediction made")
	return labels[0], true
}

func (h *Handler) log(c *gin.Context) logrus.FieldLogger {
	return h.logger.WithField("correlation_id", middleware.GetCorrelationID(c))
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func countDisease(labels []classifier.Label) int {
	n := 0
	for _, l := range labels {
		if l == classifier.Disease {
			n++
		}
	}
	return n
}
