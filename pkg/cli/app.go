package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/amanicare/labwatch/pkg/data"
	"github.com/amanicare/labwatch/pkg/model"
	log "github.com/sirupsen/logrus"
	urfave "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	name         = "labwatch"
	dirMode      = 0700
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	outputFormat = formatJSON

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	dbFilePathFlag = &urfave.StringFlag{
		Name:  "db",
		Usage: fmt.Sprintf("Path to the Sqlite database file (optional, defaults to $HOME/.%s/%s)", name, data.DataFileName),
	}

	modelFilePathFlag = &urfave.StringFlag{
		Name:  "model",
		Usage: fmt.Sprintf("Path to the model artifact file (optional, defaults to $HOME/.%s/%s)", name, model.ArtifactFileName),
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	initLogging(false)

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		log.Errorf("fatal error: %s", err)
		os.Exit(1)
	}
}

type appConfig struct {
	DBPath    string
	ModelPath string
	Debug     bool
	DB        *sql.DB
}

func getConfig(c *urfave.Context) *appConfig {
	return c.App.Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.App {
	return &urfave.App{
		Name:                 name,
		Version:              fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Compiled:             time.Now(),
		EnableBashCompletion: true,
		HideHelpCommand:      true,
		Usage:                "Lab panel anomaly scoring service with per-clinic abnormality summaries",
		Flags: []urfave.Flag{
			debugFlag,
			dbFilePathFlag,
			modelFilePathFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			serverCmd,
			resultsCmd,
			summaryCmd,
			modelCmd,
			simulateCmd,
		},
		Before: func(c *urfave.Context) error {
			if c.Bool(debugFlag.Name) {
				initLogging(true)
			}

			f := c.String(formatFlag.Name)
			if f == formatYAML || f == "yml" {
				outputFormat = formatYAML
			}

			dbPath := c.String(dbFilePathFlag.Name)
			if dbPath == "" {
				dbPath = path.Join(getHomeDir(), data.DataFileName)
			}

			modelPath := c.String(modelFilePathFlag.Name)
			if modelPath == "" {
				modelPath = path.Join(getHomeDir(), model.ArtifactFileName)
			}

			if err := data.Init(dbPath); err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}

			db, err := data.GetDB(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}

			c.App.Metadata[appConfigKey] = &appConfig{
				DBPath:    dbPath,
				ModelPath: modelPath,
				Debug:     c.Bool(debugFlag.Name),
				DB:        db,
			}
			return nil
		},
		After: func(c *urfave.Context) error {
			if cfg, ok := c.App.Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

func initLogging(debug bool) {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	if debug {
		log.SetLevel(log.DebugLevel)
	}
}

func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Debugf("error getting home dir, using current dir instead: %s", err)
		return "."
	}

	dirPath := filepath.Join(home, "."+name)
	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		log.Debugf("creating dir: %s", dirPath)
		if err := os.Mkdir(dirPath, dirMode); err != nil {
			log.Debugf("error creating dir %s: %s", dirPath, err)
			return home
		}
	}
	return dirPath
}

func encode(v any) error {
	if outputFormat == formatYAML {
		return yaml.NewEncoder(os.Stdout).Encode(v)
	}
	e := json.NewEncoder(os.Stdout)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
