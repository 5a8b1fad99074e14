package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/amanicare/labwatch/pkg/data"
	"github.com/amanicare/labwatch/pkg/model"
	"github.com/amanicare/labwatch/pkg/scoring"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), data.DataFileName)
	require.NoError(t, data.Init(path))

	db, err := data.GetDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return makeRouter(db, scoring.NewScorer(model.Demo())), db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPredictPersistsAndResponds(t *testing.T) {
	r, db := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/predict", map[string]any{
		"creatinine": 2.0, "bun": 30, "glucose": 100,
		"hemoglobin": 14, "wbc": 7, "crp": 3, "hba1c": 5.5,
		"clinic_id": "clinic-a",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp predictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.TS)
	assert.Equal(t, "clinic-a", resp.ClinicID)
	assert.True(t, resp.Anomaly)
	assert.Greater(t, resp.Score, 0.5)
	assert.True(t, resp.IsoAnomaly)
	require.Len(t, resp.Explanation, scoring.ExplainTopK)
	assert.Equal(t, "creatinine", resp.Explanation[0].Feature)

	list, err := data.ListPredictions(db, "clinic-a", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, resp.ID, list[0].ID)
	assert.Equal(t, resp.Score, list[0].Score)
	assert.Equal(t, 2.0, list[0].Payload["creatinine"])
}

func TestPredictPartialPanelUsesDefaults(t *testing.T) {
	r, db := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/predict", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)

	var resp predictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, scoring.ClinicDefault, resp.ClinicID)
	assert.False(t, resp.Anomaly)

	list, err := data.ListPredictions(db, "", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, scoring.PanelDefaults["glucose"], list[0].Payload["glucose"])
}

func TestPredictValidation(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/predict", map[string]any{"glucose": "high"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
}

func TestResultsEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	for i := 0; i < 3; i++ {
		w := doJSON(t, r, http.MethodPost, "/predict", map[string]any{"clinic_id": "clinic-a"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/results?clinic_id=clinic-a&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp resultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Results, 2)
}

func TestResultsLimitValidation(t *testing.T) {
	r, _ := testRouter(t)

	for _, q := range []string{"limit=0", "limit=201", "limit=-5", "limit=abc"} {
		w := doJSON(t, r, http.MethodGet, "/results?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w := doJSON(t, r, http.MethodGet, "/results?limit=200", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	// 2 normal + 1 anomalous for the same clinic
	for i := 0; i < 2; i++ {
		w := doJSON(t, r, http.MethodPost, "/predict", map[string]any{"clinic_id": "clinic-a"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := doJSON(t, r, http.MethodPost, "/predict", map[string]any{"clinic_id": "clinic-a", "creatinine": 2.5})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/results/summary?hours=24", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 24, resp.WindowHours)
	require.Len(t, resp.Clinics, 1)
	assert.Equal(t, "clinic-a", resp.Clinics[0].ClinicID)
	assert.Equal(t, 3, resp.Clinics[0].Total)
	assert.Equal(t, 1, resp.Clinics[0].Abnormal)
	assert.Equal(t, 0.333, resp.Clinics[0].AbnormalRate)
}

func TestSummaryWindowValidation(t *testing.T) {
	r, _ := testRouter(t)

	for _, q := range []string{"hours=0", "hours=-3", "hours=abc"} {
		w := doJSON(t, r, http.MethodGet, "/results/summary?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w := doJSON(t, r, http.MethodGet, "/results/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, summaryWindowHoursDefault, resp.WindowHours)
	assert.Empty(t, resp.Clinics)
}

func TestAnalyzeRules(t *testing.T) {
	r, _ := testRouter(t)

	tests := []struct {
		name    string
		panel   map[string]any
		anomaly bool
		reason  string
	}{
		{"renal", map[string]any{"creatinine": 2.5}, true, "renal pattern"},
		{"renal bun", map[string]any{"bun": 30}, true, "renal pattern"},
		{"infection", map[string]any{"wbc": 15, "crp": 25}, true, "infection pattern"},
		{"glycemic", map[string]any{"hba1c": 9.1}, true, "glycemic"},
		{"normal", map[string]any{}, false, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/analyze", tc.panel)
			require.Equal(t, http.StatusOK, w.Code)

			var resp struct {
				Anomaly bool     `json:"anomaly"`
				Reasons []string `json:"reasons"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.anomaly, resp.Anomaly)
			if tc.reason != "" {
				assert.Contains(t, resp.Reasons, tc.reason)
			}
		})
	}
}
