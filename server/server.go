// Package server is a read-only http view of the persisted snapshot.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scriptrack/scriptrack/app"
	"github.com/scriptrack/scriptrack/log"
	ptf "github.com/scriptrack/scriptrack/portfolio"
	"github.com/scriptrack/scriptrack/state"
)

type Handler struct {
	StateFile string
	// Maps a security id to its display title. Identity if nil.
	Titles ptf.TitleFunc
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/report", h.report)
	r.GET("/positions", h.positions)
	r.GET("/gains", h.gains)
	r.GET("/query", h.query)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) load(c *gin.Context) (*state.Snapshot, bool) {
	snap, err := state.Load(h.StateFile)
	if err != nil {
		log.L().Error("load state", zap.Error(err))
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return nil, false
	}
	return snap, true
}

func (h *Handler) report(c *gin.Context) {
	snap, ok := h.load(c)
	if !ok {
		return
	}
	if snap.LastReport == nil {
		Error(c, http.StatusNotFound, "no report has been generated yet", nil)
		return
	}
	Ok(c, snap.LastReport, map[string]any{"saved_at": snap.SavedAt})
}

type positionView struct {
	*ptf.Position
	Title string `json:"title"`
}

func (h *Handler) title(sec string) string {
	if h.Titles == nil {
		return sec
	}
	return h.Titles(sec)
}

func (h *Handler) positions(c *gin.Context) {
	snap, ok := h.load(c)
	if !ok {
		return
	}
	book, err := app.BuildBook(snap)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	views := make([]positionView, 0, len(book.Positions))
	for _, sec := range book.Securities() {
		views = append(views, positionView{Position: book.Positions[sec], Title: h.title(sec)})
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

type gainsView struct {
	Total      string            `json:"total"`
	Years      map[int]string    `json:"years"`
	Securities map[string]string `json:"securities"`
}

func (h *Handler) gains(c *gin.Context) {
	snap, ok := h.load(c)
	if !ok {
		return
	}
	book, err := app.BuildBook(snap)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	secGains, gains := ptf.CalcBookCumulativeGains(book)
	view := gainsView{
		Total:      gains.GainsTotal.String(),
		Years:      make(map[int]string, len(gains.GainsYearTotals)),
		Securities: make(map[string]string, len(secGains)),
	}
	for year, total := range gains.GainsYearTotals {
		view.Years[year] = total.String()
	}
	for sec, g := range secGains {
		view.Securities[sec] = g.GainsTotal.String()
	}
	Ok(c, view, nil)
}

func (h *Handler) query(c *gin.Context) {
	path := strings.TrimSpace(c.Query("path"))
	if path == "" {
		Error(c, http.StatusBadRequest, "path required", nil)
		return
	}
	snap, ok := h.load(c)
	if !ok {
		return
	}
	res, err := snap.Query(path)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, res, map[string]any{"path": path})
}

func NewEngine(h *Handler, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.Register(engine)
	return engine
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, engine *gin.Engine) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.L().Info("http server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var err error
	select {
	case <-ctx.Done():
		log.L().Info("shutdown requested")
	case err = <-errCh:
		log.L().Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return err
}
