package cli

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/amanicare/labwatch/pkg/data"
	"github.com/amanicare/labwatch/pkg/scoring"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const summaryWindowHoursDefault = 24

type predictResponse struct {
	ID          string          `json:"id"`
	TS          string          `json:"ts"`
	ClinicID    string          `json:"clinic_id"`
	Anomaly     bool            `json:"anomaly"`
	Score       float64         `json:"score"`
	IsoAnomaly  bool            `json:"iso_anomaly"`
	IsoScore    float64         `json:"iso_score"`
	Explanation []scoring.Entry `json:"explanation"`
}

type resultsResponse struct {
	Count   int                `json:"count"`
	Results []*data.Prediction `json:"results"`
}

type summaryResponse struct {
	WindowHours int                   `json:"window_hours"`
	Clinics     []*data.ClinicSummary `json:"clinics"`
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// predictHandler scores one panel and persists the prediction. There is no
// idempotency key: a caller retrying after a 5xx creates a new prediction
// under a new id.
func predictHandler(db *sql.DB, scorer *scoring.Scorer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw map[string]any
		if err := c.ShouldBindJSON(&raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		clinicID := scoring.ClinicDefault
		if v, ok := raw["clinic_id"].(string); ok && v != "" {
			clinicID = v
		}

		res, err := scorer.Score(raw)
		if err != nil {
			if errors.Is(err, scoring.ErrInvalidField) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Errorf("failed to score panel: %s", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error scoring panel"})
			return
		}

		p := &data.Prediction{
			ID:         uuid.NewString(),
			TS:         time.Now().UTC().Format(time.RFC3339),
			ClinicID:   clinicID,
			Anomaly:    res.Anomaly,
			Score:      res.Score,
			IsoAnomaly: res.IsoAnomaly,
			IsoScore:   res.IsoScore,
			Payload:    res.Payload,
		}

		if err := data.InsertPrediction(db, p); err != nil {
			if errors.Is(err, data.ErrDuplicateID) {
				log.Errorf("prediction id collision, integrity violation: %s", err)
			} else {
				log.Errorf("failed to persist prediction: %s", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error persisting prediction"})
			return
		}

		c.JSON(http.StatusOK, predictResponse{
			ID:          p.ID,
			TS:          p.TS,
			ClinicID:    p.ClinicID,
			Anomaly:     p.Anomaly,
			Score:       p.Score,
			IsoAnomaly:  p.IsoAnomaly,
			IsoScore:    p.IsoScore,
			Explanation: res.Explanation,
		})
	}
}

func resultsHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := data.ListLimitDefault
		if v := c.Query("limit"); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
				return
			}
			limit = i
		}

		list, err := data.ListPredictions(db, c.Query("clinic_id"), limit)
		if err != nil {
			if errors.Is(err, data.ErrInvalidLimit) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Errorf("failed to list predictions: %s", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error querying predictions"})
			return
		}

		c.JSON(http.StatusOK, resultsResponse{Count: len(list), Results: list})
	}
}

func summaryHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		hours := summaryWindowHoursDefault
		if v := c.Query("hours"); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be an integer"})
				return
			}
			hours = i
		}
		if hours < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}

		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339)
		clinics, err := data.SummarizePredictions(db, since)
		if err != nil {
			log.Errorf("failed to summarize predictions: %s", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error summarizing predictions"})
			return
		}

		c.JSON(http.StatusOK, summaryResponse{WindowHours: hours, Clinics: clinics})
	}
}

// analyzeHandler is the rule-based screen kept from the early demo backend.
// It does not score with the models and does not persist anything.
func analyzeHandler(scorer *scoring.Scorer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw map[string]any
		if err := c.ShouldBindJSON(&raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		payload, err := scoring.BuildPayload(raw, scorer.Features())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		reasons := make([]string, 0)
		if payload["creatinine"] > 1.8 || payload["bun"] > 25 {
			reasons = append(reasons, "renal pattern")
		}
		if payload["wbc"] > 12 && payload["crp"] > 20 {
			reasons = append(reasons, "infection pattern")
		}
		if payload["glucose"] > 200 || payload["hba1c"] > 8 {
			reasons = append(reasons, "glycemic")
		}

		c.JSON(http.StatusOK, gin.H{
			"received": payload,
			"anomaly":  len(reasons) > 0,
			"reasons":  reasons,
		})
	}
}
