package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tablematch/internal/textutil"
)

// tokenSlots is the number of text boxes on the token comparison form.
const tokenSlots = 5

// maxTextBody bounds the text tool request bodies.
const maxTextBody = 1 << 20

// QuoteListResponse is the JSON body of POST /api/quote-list.
type QuoteListResponse struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

// TokenCompareRequest is the JSON form of POST /api/token-compare.
type TokenCompareRequest struct {
	Values []string `json:"values"`
}

// TokenCompareResponse is the JSON body of POST /api/token-compare.
type TokenCompareResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	*textutil.TokenComparison
}

// handleQuoteList quotes each comma or newline separated value of "text".
func (s *Server) handleQuoteList(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTextBody)

	var text string
	if isJSONBody(r) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, err), http.StatusBadRequest)
			return
		}
		text = req.Text
	} else {
		if err := r.ParseForm(); err != nil {
			s.respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, err), http.StatusBadRequest)
			return
		}
		text = r.PostFormValue("text")
	}

	writeJSON(w, http.StatusOK, QuoteListResponse{
		Status: statusSuccess,
		Result: textutil.QuoteList(text),
	})
}

// handleTokenCompare compares up to five values, either as form fields
// val1..val5 or as a JSON list.
func (s *Server) handleTokenCompare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTextBody)

	values, err := tokenValues(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	cmp, err := textutil.CompareTokenSets(values)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	resp := TokenCompareResponse{
		Status:          statusSuccess,
		Message:         "All values contain the same tokens",
		TokenComparison: cmp,
	}
	if !cmp.Match {
		resp.Status = statusFail
		resp.Message = "Values differ"
	}
	writeJSON(w, http.StatusOK, resp)
}

func tokenValues(r *http.Request) ([]string, error) {
	if isJSONBody(r) {
		var req TokenCompareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		if len(req.Values) > tokenSlots {
			return nil, fmt.Errorf("%w: at most %d values", errBadRequest, tokenSlots)
		}
		return req.Values, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	values := make([]string, tokenSlots)
	for i := range values {
		values[i] = r.PostFormValue(fmt.Sprintf("val%d", i+1))
	}
	return values, nil
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
