package cli

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/mchmarny/trackscore/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func importTestCSV(t *testing.T, h http.Handler) {
	t.Helper()
	body, ct := multipartBody(t, importFormField, "responses.csv", testCSV)
	w := doRequest(t, h, http.MethodPost, "/data/import", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHomeView(t *testing.T) {
	h := makeRouter(setupTestSession(t), false)

	w := doRequest(t, h, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hypothesesControls")
	assert.Contains(t, w.Body.String(), "prog")
	assert.Contains(t, w.Body.String(), `step="0.1"`)
}

func TestStaticAndFavicon(t *testing.T) {
	h := makeRouter(setupTestSession(t), false)

	w := doRequest(t, h, http.MethodGet, "/static/js/app.js", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, http.MethodGet, "/favicon.ico", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
}

func TestHypothesesAPI(t *testing.T) {
	h := makeRouter(setupTestSession(t), false)

	w := doRequest(t, h, http.MethodGet, "/data/hypotheses", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var list []hypothesis.Hypothesis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "prog", list[0].Label)
}

func TestImportAndResultsAPI(t *testing.T) {
	h := makeRouter(setupTestSession(t), false)
	importTestCSV(t, h)

	w := doRequest(t, h, http.MethodGet, "/data/results", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var res resultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Table, 3)
	assert.Equal(t, "e1", res.Table[0].ID)
	assert.Equal(t, "0.50", res.Table[0].IPS)
	require.NotNil(t, res.Import)
	assert.Equal(t, "responses.csv", res.Import.Source)
	assert.Equal(t, 3, res.Import.Records)
}

func TestImportAPI_Errors(t *testing.T) {
	h := makeRouter(setupTestSession(t), false)
	importTestCSV(t, h)

	body, ct := multipartBody(t, importFormField, "empty.csv", "")
	w := doRequest(t, h, http.MethodPost, "/data/import", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartBody(t, "other", "responses.csv", testCSV)
	w = doRequest(t, h, http.MethodPost, "/data/import", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// failed imports keep the previous records
	w = doRequest(t, h, http.MethodGet, "/data/results", nil, "")
	var res resultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Table, 3)
}

func TestWeightAPI(t *testing.T) {
	h := makeRouter(setupTestSession(t), false)
	importTestCSV(t, h)

	w := doRequest(t, h, http.MethodPut, "/data/hypotheses/0/weight", bytes.NewBufferString(`{"weight": 1.7}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got hypothesis.Hypothesis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.InDelta(t, hypothesis.MaxWeight, got.Weight, 1e-9)

	w = doRequest(t, h, http.MethodGet, "/data/results", nil, "")
	var res resultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "1.00", res.Table[0].IPS)
	assert.Equal(t, hypothesis.TrackIPS, res.Table[0].Predicted)
}

func TestWeightAPI_Errors(t *testing.T) {
	h := makeRouter(setupTestSession(t), false)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"unknown index", "/data/hypotheses/9/weight", `{"weight": 0.1}`, http.StatusNotFound},
		{"negative index", "/data/hypotheses/-1/weight", `{"weight": 0.1}`, http.StatusNotFound},
		{"bad index", "/data/hypotheses/x/weight", `{"weight": 0.1}`, http.StatusBadRequest},
		{"missing weight", "/data/hypotheses/0/weight", `{}`, http.StatusBadRequest},
		{"bad body", "/data/hypotheses/0/weight", `weight`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, http.MethodPut, tt.path, bytes.NewBufferString(tt.body), "application/json")
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestChartAPIs(t *testing.T) {
	h := makeRouter(setupTestSession(t), false)
	importTestCSV(t, h)

	w := doRequest(t, h, http.MethodGet, "/data/charts/bar", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var bar report.Chart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bar))
	assert.Equal(t, []string{"e1", "e2", "e3"}, bar.Labels)
	require.Len(t, bar.Datasets, 2)
	assert.Equal(t, report.LabelIPS, bar.Datasets[0].Label)

	w = doRequest(t, h, http.MethodGet, "/data/charts/distribution", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var dist report.Distribution
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dist))
	assert.Equal(t, []int{1, 2}, dist.Data)
	assert.Equal(t, report.DistributionTitle, dist.Title)

	w = doRequest(t, h, http.MethodGet, "/data/charts/divergent", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var div report.Chart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &div))
	assert.Equal(t, []float64{-0.5, 0, -0.5}, div.Datasets[1].Data)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/json"))
}
