package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tablematch/internal/core"
	"github.com/JonMunkholm/tablematch/internal/history"
	"github.com/JonMunkholm/tablematch/internal/logging"
	"github.com/JonMunkholm/tablematch/internal/web/templates"
)

// Response statuses for a comparison.
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

const (
	msgMatch    = "FILES MATCH PERFECTLY"
	msgMismatch = "FILES DO NOT MATCH"
)

// historyTimeout bounds the history insert after a comparison.
const historyTimeout = 5 * time.Second

// CompareResponse is the JSON body of POST /api/compare.
type CompareResponse struct {
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	Match      bool             `json:"match"`
	Stage      core.Stage       `json:"stage"`
	Diff       *core.DiffReport `json:"diff,omitempty"`
	Error      string           `json:"error,omitempty"`
	Code       string           `json:"code,omitempty"`
	FileA      core.FileStats   `json:"file_a"`
	FileB      core.FileStats   `json:"file_b"`
	DurationMS int64            `json:"duration_ms"`
	HistoryID  string           `json:"history_id,omitempty"`
}

// comparison is a finished comparison of two uploads.
type comparison struct {
	NameA, NameB string
	Result       core.Result
	HistoryID    string
}

// handleIndex renders the verification form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.VerificationPage(nil).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Warn("render index", "error", err)
	}
}

// handleFileVerification compares two uploaded files and renders the verdict.
func (s *Server) handleFileVerification(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.compareUploads(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	v := verdictFor(cmp)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var renderErr error
	if isHTMX(r) {
		renderErr = templates.VerdictPartial(v).Render(r.Context(), w)
	} else {
		renderErr = templates.VerificationPage(&v).Render(r.Context(), w)
	}
	if renderErr != nil {
		logging.FromContext(r.Context()).Warn("render verdict", "error", renderErr)
	}
}

// handleCompare compares two uploaded files and responds with JSON.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	cmp, err := s.compareUploads(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	resp := compareResponse(cmp)
	status := http.StatusOK
	if cmp.Result.Err != nil {
		status = resultStatus(cmp.Result.Err)
	}
	writeJSON(w, status, resp)
}

// compareUploads runs the shared flow of both comparison routes: save the
// two uploads, wait for a comparison slot, compare, record history and
// remove the uploads. A returned error means no comparison ran; load
// failures are reported in the Result instead.
func (s *Server) compareUploads(w http.ResponseWriter, r *http.Request) (*comparison, error) {
	if err := s.parseUploadForm(w, r, 2); err != nil {
		return nil, err
	}

	uploads, cleanup, err := s.saveUploads(r, "file1", "file2")
	defer cleanup()
	if err != nil {
		return nil, err
	}

	opts, err := s.compareOptions(r)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(WithRequestMetadata(r.Context(), r), s.cfg.Upload.Timeout)
	defer cancel()

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "file_a", uploads[0].Name, "file_b", uploads[1].Name)
	opts.Logger = logger

	res := core.NewComparator(opts).Compare(ctx, uploads[0].Path, uploads[1].Path)
	cmp := &comparison{NameA: uploads[0].Name, NameB: uploads[1].Name, Result: res}
	logger.Info("comparison finished",
		"match", res.Matched,
		"stage", res.Stage,
		"duration_ms", res.Duration.Milliseconds(),
	)

	cmp.HistoryID = s.recordHistory(ctx, cmp)
	return cmp, nil
}

// compareOptions builds comparator options from configuration and the
// optional "mode" and "header" form fields.
func (s *Server) compareOptions(r *http.Request) (core.Options, error) {
	opts := core.DefaultOptions()
	opts.SizeThreshold = s.cfg.Compare.SizeThreshold
	opts.SampleRows = s.cfg.Compare.SampleRows
	opts.DiffSampleLimit = s.cfg.Compare.DiffSampleLimit
	opts.HasHeader = s.cfg.Compare.HasHeader
	if s.cfg.Compare.ColumnAligned {
		opts.Mode = core.ModeColumnAligned
	}

	if mode := r.FormValue("mode"); mode != "" {
		opts.Mode = core.ParseRowMode(mode)
	}
	if header := r.FormValue("header"); header != "" {
		v, err := parseFormBool(header)
		if err != nil {
			return opts, fmt.Errorf("%w: header: %w", errBadRequest, err)
		}
		opts.HasHeader = v
	}
	return opts, nil
}

func parseFormBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// recordHistory stores the comparison when history is enabled. Failures are
// logged and never affect the response.
func (s *Server) recordHistory(ctx context.Context, cmp *comparison) string {
	if s.history == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()

	entry, err := s.history.Record(ctx, history.FromResult(ctx, cmp.NameA, cmp.NameB, cmp.Result))
	if err != nil {
		logging.FromContext(ctx).Warn("record comparison history", "error", err)
		return ""
	}
	return entry.ID
}

// resultStatus maps an absorbed comparison failure to an HTTP status. Load
// failures are the client's input, not a server fault.
func resultStatus(err error) int {
	if core.IsLoadError(err) {
		return http.StatusUnprocessableEntity
	}
	if status := statusFor(err); status != http.StatusInternalServerError {
		return status
	}
	return http.StatusUnprocessableEntity
}

func compareResponse(cmp *comparison) CompareResponse {
	res := cmp.Result
	resp := CompareResponse{
		Match:      res.Matched,
		Stage:      res.Stage,
		Diff:       res.Diff,
		FileA:      res.A,
		FileB:      res.B,
		DurationMS: res.Duration.Milliseconds(),
		HistoryID:  cmp.HistoryID,
	}
	// Server paths stay private.
	resp.FileA.Path = cmp.NameA
	resp.FileB.Path = cmp.NameB

	switch {
	case res.Err != nil:
		msg := core.MapError(res.Err)
		resp.Status = statusError
		resp.Message = msg.Message
		resp.Error = msg.Message
		resp.Code = msg.Code
	case res.Matched:
		resp.Status = statusSuccess
		resp.Message = msgMatch
	default:
		resp.Status = statusFail
		resp.Message = msgMismatch
	}
	return resp
}

func verdictFor(cmp *comparison) templates.Verdict {
	res := cmp.Result
	v := templates.Verdict{
		FileA:   cmp.NameA,
		FileB:   cmp.NameB,
		Matched: res.Matched,
		Stage:   string(res.Stage),
		Message: msgMismatch,
	}
	if res.Matched {
		v.Message = msgMatch
	}
	if res.Err != nil {
		msg := core.MapError(res.Err)
		v.Error = fmt.Sprintf("%s. %s (%s)", msg.Message, msg.Action, msg.Code)
	}

	if d := res.Diff; d != nil {
		v.Partial = d.Partial
		v.TotalOnlyInA = d.TotalOnlyInA
		v.TotalOnlyInB = d.TotalOnlyInB
		v.TotalMismatches = d.TotalCountMismatches
		for _, row := range d.RowsOnlyInA {
			v.OnlyInA = append(v.OnlyInA, row.String())
		}
		for _, row := range d.RowsOnlyInB {
			v.OnlyInB = append(v.OnlyInB, row.String())
		}
		for _, m := range d.CountMismatches {
			v.CountMismatches = append(v.CountMismatches,
				fmt.Sprintf("%s: %d in A, %d in B", m.Row, m.CountA, m.CountB))
		}
	}
	return v
}
