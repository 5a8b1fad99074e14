package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amanicare/labwatch/pkg/model"
	"github.com/amanicare/labwatch/pkg/scoring"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	urfave "github.com/urfave/cli/v2"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080
)

var (
	portFlag = &urfave.IntFlag{
		Name:     "port",
		Usage:    "Port on which the server will listen",
		Value:    serverPortDefault,
		Required: false,
	}

	serverCmd = &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local HTTP scoring server",
		Action:  cmdStartServer,
		Flags: []urfave.Flag{
			portFlag,
		},
	}
)

func cmdStartServer(c *urfave.Context) error {
	cfg := getConfig(c)
	port := c.Int(portFlag.Name)
	address := fmt.Sprintf("127.0.0.1:%d", port)

	// No model, no service.
	artifact, err := model.Load(cfg.ModelPath)
	if err != nil {
		return errors.Wrap(err, "loading model artifact")
	}
	scorer := scoring.NewScorer(artifact)

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(cfg.DB, scorer),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("error starting server: %s", err)
		}
	}()

	log.Infof("server started on http://%s", address)

	<-done

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		log.Errorf("error shutting down server: %s", err)
	}
	return nil
}

func makeRouter(db *sql.DB, scorer *scoring.Scorer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", healthHandler)
	r.POST("/predict", predictHandler(db, scorer))
	r.GET("/results", resultsHandler(db))
	r.GET("/results/summary", summaryHandler(db))
	r.POST("/analyze", analyzeHandler(scorer))

	return r
}
