package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tablematch/internal/config"
	"github.com/JonMunkholm/tablematch/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Upload: config.UploadConfig{
			Dir:           t.TempDir(),
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       time.Minute,
		},
		Compare: config.CompareConfig{
			SizeThreshold:   core.DefaultSizeThreshold,
			SampleRows:      core.DefaultSampleRows,
			DiffSampleLimit: core.DefaultDiffSampleLimit,
			HasHeader:       true,
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s := NewServer(cfg, core.NewComparisonLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime), nil)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

// uploadRequest builds a multipart POST with file1 and file2 plus extra fields.
func uploadRequest(t *testing.T, target string, files map[string][2]string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, f := range files {
		part, err := mw.CreateFormFile(field, f[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(f[1]))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeCompare(t *testing.T, rec *httptest.ResponseRecorder) CompareResponse {
	t.Helper()
	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/file-verification"`)
}

func TestCompareAPI(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		fields     map[string]string
		wantCode   int
		wantStatus string
		wantMatch  bool
		wantStage  core.Stage
	}{
		{
			name:       "reordered rows",
			a:          "id,val\n1,10\n2,20\n",
			b:          "id,val\n2,20\n1,10\n",
			wantCode:   http.StatusOK,
			wantStatus: statusSuccess,
			wantMatch:  true,
			wantStage:  core.StageFull,
		},
		{
			name:       "different rows",
			a:          "id,val\n1,10\n2,20\n",
			b:          "id,val\n1,10\n3,30\n",
			wantCode:   http.StatusOK,
			wantStatus: statusFail,
			wantStage:  core.StageFull,
		},
		{
			name:       "moved values need tolerant mode",
			a:          "x,y\n1,2\n",
			b:          "x,y\n2,1\n",
			fields:     map[string]string{"mode": "column-aligned"},
			wantCode:   http.StatusOK,
			wantStatus: statusFail,
			wantStage:  core.StageFull,
		},
		{
			name:       "empty file",
			a:          "",
			b:          "a,b\n1,2\n",
			wantCode:   http.StatusUnprocessableEntity,
			wantStatus: statusError,
			wantStage:  core.StageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(t))
			req := uploadRequest(t, "/api/compare", map[string][2]string{
				"file1": {"a.csv", tt.a},
				"file2": {"b.csv", tt.b},
			}, tt.fields)
			rec := serve(s, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decodeCompare(t, rec)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantMatch, resp.Match)
			assert.Equal(t, tt.wantStage, resp.Stage)
			assert.Equal(t, "a.csv", resp.FileA.Path)
			assert.Equal(t, "b.csv", resp.FileB.Path)
		})
	}
}

func TestCompareAPI_Messages(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	rec := serve(s, uploadRequest(t, "/api/compare", map[string][2]string{
		"file1": {"a.csv", "a,b\n1,2\n"},
		"file2": {"b.csv", "a,b\n1,2\n1,2\n"},
	}, nil))
	resp := decodeCompare(t, rec)
	assert.Equal(t, msgMismatch, resp.Message)
	assert.Equal(t, core.StageShape, resp.Stage)
	require.NotNil(t, resp.Diff)
	assert.Equal(t, 1, resp.Diff.TotalCountMismatches)

	rec = serve(s, uploadRequest(t, "/api/compare", map[string][2]string{
		"file1": {"a.csv", "a,b\n1,2\n"},
		"file2": {"b.tsv", "a\tb\n1\t2\n"},
	}, nil))
	resp = decodeCompare(t, rec)
	assert.Equal(t, msgMatch, resp.Message)
	assert.Equal(t, "tab", resp.FileB.Delimiter)
	assert.Empty(t, resp.HistoryID, "history is disabled")
}

func TestCompareAPI_HeaderOption(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	files := map[string][2]string{
		"file1": {"a.csv", "h1,h2\n1,2\n"},
		"file2": {"b.csv", "other,names\n1,2\n"},
	}
	rec := serve(s, uploadRequest(t, "/api/compare", files, map[string]string{"header": "true"}))
	assert.True(t, decodeCompare(t, rec).Match, "headers are not compared")

	rec = serve(s, uploadRequest(t, "/api/compare", files, map[string]string{"header": "false"}))
	assert.False(t, decodeCompare(t, rec).Match)

	rec = serve(s, uploadRequest(t, "/api/compare", files, map[string]string{"header": "maybe"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQ001")
}

func TestCompareAPI_UploadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		s := newTestServer(t, testConfig(t))
		rec := serve(s, uploadRequest(t, "/api/compare", map[string][2]string{
			"file1": {"a.csv", "a,b\n1,2\n"},
		}, nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "FILE006", resp.Code)
	})

	t.Run("file too large", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Upload.MaxFileSize = 16
		s := newTestServer(t, cfg)
		rec := serve(s, uploadRequest(t, "/api/compare", map[string][2]string{
			"file1": {"a.csv", strings.Repeat("x,y\n", 10)},
			"file2": {"b.csv", "x,y\n"},
		}, nil))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "FILE001")
	})

	t.Run("uploads are removed", func(t *testing.T) {
		cfg := testConfig(t)
		s := newTestServer(t, cfg)
		rec := serve(s, uploadRequest(t, "/api/compare", map[string][2]string{
			"file1": {"a.csv", "a,b\n1,2\n"},
			"file2": {"b.csv", "a,b\n1,2\n"},
		}, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		left, err := os.ReadDir(cfg.Upload.Dir)
		require.NoError(t, err)
		assert.Empty(t, left)
	})
}

func TestCompareAPI_Busy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxConcurrent = 1
	cfg.Upload.MaxWaitTime = 10 * time.Millisecond
	s := newTestServer(t, cfg)

	require.True(t, s.limiter.TryAcquire())
	defer s.limiter.Release()

	rec := serve(s, uploadRequest(t, "/api/compare", map[string][2]string{
		"file1": {"a.csv", "a,b\n1,2\n"},
		"file2": {"b.csv", "a,b\n1,2\n"},
	}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "CMP001")
}

func TestFileVerification(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	files := map[string][2]string{
		"file1": {"left.csv", "id,val\n1,10\n2,20\n"},
		"file2": {"right.csv", "id,val\n1,10\n2,99\n"},
	}

	rec := serve(s, uploadRequest(t, "/file-verification", files, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, msgMismatch)
	assert.Contains(t, html, "left.csv")
	assert.Contains(t, html, "Rows only in File A (1)")

	req := uploadRequest(t, "/file-verification", files, nil)
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<html")
	assert.Contains(t, rec.Body.String(), `class="verdict mismatch"`)
}

func TestFileVerification_MissingFileRendersPage(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := serve(s, uploadRequest(t, "/file-verification", nil, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "FILE006")
}

func TestQuoteList(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	form := url.Values{"text": {"apple, banana\ncherry\n\n"}}
	req := httptest.NewRequest(http.MethodPost, "/api/quote-list", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","result":"\"apple\", \"banana\", \"cherry\""}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/quote-list", strings.NewReader(`{"text":"a,b"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(s, req)
	assert.JSONEq(t, `{"status":"success","result":"\"a\", \"b\""}`, rec.Body.String())
}

func TestTokenCompare(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	t.Run("form values", func(t *testing.T) {
		form := url.Values{
			"val1": {"a b c"},
			"val2": {""},
			"val3": {"C, B, A"},
			"val4": {"a b d"},
		}
		req := httptest.NewRequest(http.MethodPost, "/api/token-compare", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := serve(s, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Status     string `json:"status"`
			Match      bool   `json:"match"`
			Compared   int    `json:"compared"`
			Mismatches []struct {
				Slot    int      `json:"slot"`
				Missing []string `json:"missing"`
				Extra   []string `json:"extra"`
			} `json:"mismatches"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, statusFail, resp.Status)
		assert.False(t, resp.Match)
		assert.Equal(t, 3, resp.Compared)
		require.Len(t, resp.Mismatches, 1)
		assert.Equal(t, 4, resp.Mismatches[0].Slot)
		assert.Equal(t, []string{"c"}, resp.Mismatches[0].Missing)
		assert.Equal(t, []string{"d"}, resp.Mismatches[0].Extra)
	})

	t.Run("json values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/token-compare", strings.NewReader(`{"values":["x y","y x"]}`))
		req.Header.Set("Content-Type", "application/json")
		rec := serve(s, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"success"`)
	})

	t.Run("too few values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/token-compare", strings.NewReader(`{"values":["x",""]}`))
		req.Header.Set("Content-Type", "application/json")
		rec := serve(s, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "TXT001")
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/token-compare", strings.NewReader(`{`))
		req.Header.Set("Content-Type", "application/json")
		rec := serve(s, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "REQ001")
	})
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Comparisons.MaxConcurrent)
	assert.Equal(t, 2, resp.Comparisons.Available)
	assert.False(t, resp.HistoryEnabled)
	assert.Equal(t, "tolerant", resp.Mode)
}

func TestHistory_Disabled(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "HIST001")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/history?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "pages do not need a key")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, CompareLimit: 1}
	s := newTestServer(t, cfg)

	files := map[string][2]string{
		"file1": {"a.csv", "a,b\n1,2\n"},
		"file2": {"b.csv", "a,b\n1,2\n"},
	}
	rec := serve(s, uploadRequest(t, "/api/compare", files, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, uploadRequest(t, "/api/compare", files, nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "other routes keep the general limit")
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     2,
		window:   time.Minute,
		now:      func() time.Time { return now },
	}

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"), "limits are per IP")

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.allow("10.0.0.1"))
}
