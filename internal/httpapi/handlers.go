package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"voicedash/internal/calls"
	"voicedash/internal/crm"
	"voicedash/internal/monitor"
	"voicedash/internal/reporting"
	"voicedash/internal/target"
	"voicedash/internal/vapi"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

// Refresher performs a manual provider poll outside the monitor loop.
// Satisfied by *monitor.Monitor.
type Refresher interface {
	Refresh(ctx context.Context, providerCallID string) (monitor.PollResult, error)
}

// RecordingFetcher downloads recording bytes from the provider.
// Satisfied by *vapi.Client.
type RecordingFetcher interface {
	FetchRecording(ctx context.Context, recordingURL string) ([]byte, error)
}

type Handlers struct {
	Calls      *calls.Service
	Monitor    Refresher
	Recordings RecordingFetcher
	Reports    *reporting.Service
	CRM        *crm.Service
	Auditor    calls.Auditor
}

// --- Dispatch ---

type scheduleRequest struct {
	EarliestAt string `json:"earliest_at"`
	LatestAt   string `json:"latest_at,omitempty"`
}

func (r *scheduleRequest) window() (*vapi.ScheduleWindow, error) {
	if r == nil || r.EarliestAt == "" {
		return nil, nil
	}
	earliest, err := time.Parse(time.RFC3339, r.EarliestAt)
	if err != nil {
		return nil, errors.New("earliest_at must be RFC3339")
	}
	w := vapi.ScheduleWindow{EarliestAt: earliest}
	if r.LatestAt != "" {
		latest, err := time.Parse(time.RFC3339, r.LatestAt)
		if err != nil {
			return nil, errors.New("latest_at must be RFC3339")
		}
		w.LatestAt = &latest
	}
	return &w, nil
}

type singleCallRequest struct {
	AssistantID   string           `json:"assistant_id"`
	PhoneNumberID string           `json:"phone_number_id"`
	Number        string           `json:"number"`
	Name          string           `json:"name,omitempty"`
	Email         string           `json:"email,omitempty"`
	Schedule      *scheduleRequest `json:"schedule,omitempty"`
}

func (h Handlers) DispatchSingle(c *gin.Context) {
	var req singleCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	window, err := req.Schedule.window()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tgt := target.CallTarget{Number: req.Number, Name: req.Name, Email: req.Email}
	out, err := h.Calls.DispatchSingle(c.Request.Context(), req.AssistantID, req.PhoneNumberID, tgt, window)
	if err != nil {
		abortDispatchError(c, err, out)
		return
	}
	c.JSON(http.StatusCreated, out)
}

type bulkCallRequest struct {
	AssistantID   string              `json:"assistant_id"`
	PhoneNumberID string              `json:"phone_number_id"`
	Targets       []target.CallTarget `json:"targets,omitempty"`
	Numbers       string              `json:"numbers,omitempty"`
	CustomerIDs   []string            `json:"customer_ids,omitempty"`
	Schedule      *scheduleRequest    `json:"schedule,omitempty"`
}

// DispatchBulk accepts targets from three sources in one request: an explicit
// target list, a pasted text block, and saved customer ids. Unusable lines and
// contacts are reported as skips, not errors.
func (h Handlers) DispatchBulk(c *gin.Context) {
	var req bulkCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	window, err := req.Schedule.window()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targets := append([]target.CallTarget(nil), req.Targets...)
	var skipped []target.Skip
	if req.Numbers != "" {
		report := target.ParseText(req.Numbers)
		targets = append(targets, report.Targets...)
		skipped = append(skipped, report.Skipped...)
	}
	var skippedCustomers []string
	if len(req.CustomerIDs) > 0 {
		if h.CRM == nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "customer directory not configured"})
			return
		}
		resolved, skippedIDs, err := h.CRM.CallTargets(c.Request.Context(), req.CustomerIDs)
		if err != nil {
			if errors.Is(err, crm.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown customer id"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "customer lookup failed"})
			return
		}
		targets = append(targets, resolved...)
		skippedCustomers = skippedIDs
	}

	out, err := h.Calls.DispatchBulk(c.Request.Context(), req.AssistantID, req.PhoneNumberID, targets, window)
	if err != nil {
		if errors.Is(err, calls.ErrBulkCapExceeded) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		abortDispatchError(c, err, out)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"attempts":          out.Attempts,
		"provider_raw":      out.ProviderRaw,
		"skipped":           skipped,
		"skipped_customers": skippedCustomers,
	})
}

// --- Target parsing ---

type parseTargetsRequest struct {
	Text string `json:"text"`
}

// ParseTargets previews a bulk import. JSON bodies carry a pasted text block;
// multipart bodies carry a CSV upload in the "file" field.
func (h Handlers) ParseTargets(c *gin.Context) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
			return
		}
		defer f.Close()
		report, err := target.ParseCSV(f)
		if err != nil {
			if errors.Is(err, target.ErrMissingColumn) {
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid csv"})
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	var req parseTargetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	c.JSON(http.StatusOK, target.ParseText(req.Text))
}

// --- History & lifecycle ---

func (h Handlers) ListCalls(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	attempts, err := h.Calls.History(c.Request.Context(), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (h Handlers) RefreshCall(c *gin.Context) {
	providerCallID := c.Param("provider_call_id")
	if providerCallID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "provider_call_id required"})
		return
	}
	res, err := h.Monitor.Refresh(c.Request.Context(), providerCallID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown call"})
			return
		}
		abortProviderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) ClearCalls(c *gin.Context) {
	if err := h.Calls.ClearHistory(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRecording proxies recording bytes so the dashboard never needs provider
// credentials.
func (h Handlers) GetRecording(c *gin.Context) {
	providerCallID := c.Param("provider_call_id")
	a, err := h.Calls.Attempt(c.Request.Context(), providerCallID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown call"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "attempt lookup failed"})
		return
	}
	if a.RecordingURL == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no recording available"})
		return
	}

	data, err := h.Recordings.FetchRecording(c.Request.Context(), a.RecordingURL)
	if err != nil {
		if h.Auditor != nil {
			h.Auditor.Record(c.Request.Context(), a.ID, "call.recording_failed", err.Error())
		}
		abortProviderError(c, err)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// --- Reporting ---

func (h Handlers) CallsReport(c *gin.Context) {
	summary, err := h.Reports.CallsSummary(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// --- Customers ---

type createCustomerRequest struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

func (h Handlers) ListCustomers(c *gin.Context) {
	list, err := h.CRM.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "customer lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": list})
}

func (h Handlers) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cust, err := h.CRM.Create(c.Request.Context(), crm.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Company: req.Company,
	})
	if err != nil {
		if errors.Is(err, crm.ErrInvalidPhone) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "customer create failed"})
		return
	}
	c.JSON(http.StatusCreated, cust)
}

func (h Handlers) DeleteCustomer(c *gin.Context) {
	id := c.Param("id")
	if err := h.CRM.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown customer"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "customer delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Error mapping ---

// abortDispatchError maps a failed dispatch to a response. Attempts recorded
// before the failure (the failed-dispatch history row) are still returned.
func abortDispatchError(c *gin.Context, err error, out calls.DispatchOutcome) {
	status := providerErrorStatus(err)
	body := gin.H{"error": err.Error()}
	if ve, ok := vapi.AsError(err); ok {
		body["kind"] = string(ve.Kind)
	}
	if len(out.Attempts) > 0 {
		body["attempts"] = out.Attempts
	}
	c.AbortWithStatusJSON(status, body)
}

func abortProviderError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if ve, ok := vapi.AsError(err); ok {
		body["kind"] = string(ve.Kind)
	}
	c.AbortWithStatusJSON(providerErrorStatus(err), body)
}

func providerErrorStatus(err error) int {
	if errors.Is(err, vapi.ErrEmptyTargets) || errors.Is(err, vapi.ErrInvalidTarget) || errors.Is(err, vapi.ErrInvalidSchedule) {
		return http.StatusBadRequest
	}
	ve, ok := vapi.AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ve.Kind {
	case vapi.KindValidation:
		return http.StatusBadRequest
	case vapi.KindTimeout:
		return http.StatusGatewayTimeout
	case vapi.KindHTTP:
		if ve.HTTPStatus == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case vapi.KindConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
