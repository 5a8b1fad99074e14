package cli

import (
	"time"

	"github.com/amanicare/labwatch/pkg/data"
	"github.com/amanicare/labwatch/pkg/model"
	"github.com/pkg/errors"
	urfave "github.com/urfave/cli/v2"
)

var (
	clinicFlag = &urfave.StringFlag{
		Name:  "clinic",
		Usage: "Filter results to a single clinic id",
	}

	limitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: "Max number of predictions to return (1-200)",
		Value: data.ListLimitDefault,
	}

	hoursFlag = &urfave.IntFlag{
		Name:  "hours",
		Usage: "Size of the summary window in hours",
		Value: summaryWindowHoursDefault,
	}

	resultsCmd = &urfave.Command{
		Name:   "results",
		Usage:  "List the most recent persisted predictions",
		Action: cmdQueryResults,
		Flags: []urfave.Flag{
			clinicFlag,
			limitFlag,
		},
	}

	summaryCmd = &urfave.Command{
		Name:   "summary",
		Usage:  "Print per-clinic abnormality summary over a time window",
		Action: cmdQuerySummary,
		Flags: []urfave.Flag{
			hoursFlag,
		},
	}

	modelCmd = &urfave.Command{
		Name:  "model",
		Usage: "Model artifact operations",
		Subcommands: []*urfave.Command{
			{
				Name:   "init",
				Usage:  "Write the built-in demo artifact to the model path",
				Action: cmdModelInit,
			},
			{
				Name:   "verify",
				Usage:  "Load the model artifact and print its metadata",
				Action: cmdModelVerify,
			},
		},
	}
)

func cmdQueryResults(c *urfave.Context) error {
	cfg := getConfig(c)

	list, err := data.ListPredictions(cfg.DB, c.String(clinicFlag.Name), c.Int(limitFlag.Name))
	if err != nil {
		return errors.Wrap(err, "listing predictions")
	}

	return encode(resultsResponse{Count: len(list), Results: list})
}

func cmdQuerySummary(c *urfave.Context) error {
	cfg := getConfig(c)

	hours := c.Int(hoursFlag.Name)
	if hours < 1 {
		return errors.Errorf("hours must be a positive integer, got: %d", hours)
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339)
	clinics, err := data.SummarizePredictions(cfg.DB, since)
	if err != nil {
		return errors.Wrap(err, "summarizing predictions")
	}

	return encode(summaryResponse{WindowHours: hours, Clinics: clinics})
}

func cmdModelInit(c *urfave.Context) error {
	cfg := getConfig(c)
	if err := model.Demo().Save(cfg.ModelPath); err != nil {
		return errors.Wrap(err, "writing demo artifact")
	}
	return encode(map[string]string{"model": cfg.ModelPath})
}

type modelInfo struct {
	Path           string   `json:"path" yaml:"path"`
	Version        int      `json:"version" yaml:"version"`
	Features       []string `json:"features" yaml:"features"`
	ClassifierSize int      `json:"classifier_trees" yaml:"classifier_trees"`
	IsolationSize  int      `json:"isolation_trees" yaml:"isolation_trees"`
}

func cmdModelVerify(c *urfave.Context) error {
	cfg := getConfig(c)

	a, err := model.Load(cfg.ModelPath)
	if err != nil {
		return errors.Wrap(err, "loading model artifact")
	}

	return encode(modelInfo{
		Path:           cfg.ModelPath,
		Version:        a.Version,
		Features:       a.Features,
		ClassifierSize: len(a.Classifier.Trees),
		IsolationSize:  len(a.Isolation.Trees),
	})
}
