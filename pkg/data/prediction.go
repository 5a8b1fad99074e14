package data

import (
	"database/sql"
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
)

const (
	// ListLimitDefault is the number of predictions returned when the caller
	// does not specify a limit.
	ListLimitDefault = 20
	ListLimitMin     = 1
	ListLimitMax     = 200

	insertPredictionSQL = `INSERT INTO prediction (
			id, ts, clinic_id, anomaly, score, iso_anomaly, iso_score, payload
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	// Ties on ts break on reverse insertion order so concurrent writes
	// still list deterministically.
	selectPredictionSQL = `SELECT
			id, ts, clinic_id, anomaly, score, iso_anomaly, iso_score, payload
		FROM prediction
		WHERE clinic_id = COALESCE(?, clinic_id)
		ORDER BY ts DESC, rowid DESC
		LIMIT ?
	`

	summarizePredictionSQL = `SELECT
			clinic_id,
			COUNT(*) AS total,
			SUM(anomaly) AS abnormal
		FROM prediction
		WHERE ts >= ?
		GROUP BY clinic_id
		ORDER BY abnormal DESC
	`
)

var (
	// ErrInvalidLimit indicates a list limit outside of the accepted range.
	ErrInvalidLimit = errors.Errorf("limit must be between %d and %d", ListLimitMin, ListLimitMax)

	// ErrDuplicateID indicates an insert with an already persisted identifier.
	// Under UUID generation this should never happen, treat it as an
	// integrity violation rather than a retryable failure.
	ErrDuplicateID = errors.New("prediction id already exists")
)

// Prediction is one scored lab panel. Records are immutable once written,
// there are no updates or deletes.
type Prediction struct {
	ID         string             `json:"id" yaml:"id"`
	TS         string             `json:"ts" yaml:"ts"`
	ClinicID   string             `json:"clinic_id" yaml:"clinic_id"`
	Anomaly    bool               `json:"anomaly" yaml:"anomaly"`
	Score      float64            `json:"score" yaml:"score"`
	IsoAnomaly bool               `json:"iso_anomaly" yaml:"iso_anomaly"`
	IsoScore   float64            `json:"iso_score" yaml:"iso_score"`
	Payload    map[string]float64 `json:"payload" yaml:"payload"`
}

// ClinicSummary is the aggregate abnormality view for a single clinic.
type ClinicSummary struct {
	ClinicID     string  `json:"clinic_id" yaml:"clinic_id"`
	Total        int     `json:"total" yaml:"total"`
	Abnormal     int     `json:"abnormal" yaml:"abnormal"`
	AbnormalRate float64 `json:"abnormal_rate" yaml:"abnormal_rate"`
}

// InsertPrediction persists a single prediction. The write either commits
// whole or fails whole, there is no partial state to clean up on error.
func InsertPrediction(db *sql.DB, p *Prediction) error {
	if db == nil {
		return errDBNotInitialized
	}
	if p == nil {
		return errors.New("prediction required")
	}
	if p.ID == "" || p.TS == "" {
		return errors.New("prediction id and ts are required")
	}

	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize payload for prediction: %s", p.ID)
	}

	_, err = db.Exec(insertPredictionSQL,
		p.ID, p.TS, p.ClinicID,
		boolToInt(p.Anomaly), p.Score,
		boolToInt(p.IsoAnomaly), p.IsoScore,
		string(payload))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return errors.Wrapf(ErrDuplicateID, "id: %s", p.ID)
		}
		return errors.Wrapf(err, "failed to insert prediction: %s", p.ID)
	}

	return nil
}

// ListPredictions returns the most recent predictions, newest first,
// optionally filtered to a single clinic. The limit is validated, not
// clamped: out of range values are the caller's error.
func ListPredictions(db *sql.DB, clinicID string, limit int) ([]*Prediction, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if limit < ListLimitMin || limit > ListLimitMax {
		return nil, errors.Wrapf(ErrInvalidLimit, "got: %d", limit)
	}

	stmt, err := db.Prepare(selectPredictionSQL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare prediction select statement")
	}
	defer stmt.Close()

	rows, err := stmt.Query(optional(clinicID), limit)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "failed to execute prediction select statement")
	}
	defer rows.Close()

	list := make([]*Prediction, 0)

	for rows.Next() {
		p := &Prediction{}
		var anomaly, isoAnomaly int
		var payload string
		if err := rows.Scan(&p.ID, &p.TS, &p.ClinicID, &anomaly, &p.Score,
			&isoAnomaly, &p.IsoScore, &payload); err != nil {
			return nil, errors.Wrap(err, "failed to scan prediction row")
		}
		p.Anomaly = anomaly == 1
		p.IsoAnomaly = isoAnomaly == 1
		if err := json.Unmarshal([]byte(payload), &p.Payload); err != nil {
			return nil, errors.Wrapf(err, "failed to decode payload for prediction: %s", p.ID)
		}
		list = append(list, p)
	}

	return list, nil
}

// SummarizePredictions returns per clinic totals and abnormal counts for all
// predictions at or after the given ISO-8601 UTC cutoff, most abnormal
// clinics first.
func SummarizePredictions(db *sql.DB, since string) ([]*ClinicSummary, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}
	if since == "" {
		return nil, errors.New("since timestamp required")
	}

	stmt, err := db.Prepare(summarizePredictionSQL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare summary statement")
	}
	defer stmt.Close()

	rows, err := stmt.Query(since)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "failed to execute summary statement")
	}
	defer rows.Close()

	list := make([]*ClinicSummary, 0)

	for rows.Next() {
		s := &ClinicSummary{}
		if err := rows.Scan(&s.ClinicID, &s.Total, &s.Abnormal); err != nil {
			return nil, errors.Wrap(err, "failed to scan summary row")
		}
		if s.Total > 0 {
			s.AbnormalRate = round3(float64(s.Abnormal) / float64(s.Total))
		}
		list = append(list, s)
	}

	return list, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
