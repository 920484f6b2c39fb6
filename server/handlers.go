package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/postmux/postmux/activity"
	"github.com/postmux/postmux/agent"
	"github.com/postmux/postmux/dedup"
	"github.com/postmux/postmux/history"
	"github.com/postmux/postmux/model"
	"github.com/postmux/postmux/utils"
)

// ApiHandler bundles the agent components the control surface exposes. All
// run mutations go through the dispatcher and orchestrator, so the API never
// bypasses the single-active-run state machine.
type ApiHandler struct {
	Dispatcher   *agent.Dispatcher
	Orchestrator *agent.Orchestrator
	Timer        *agent.AutoRunTimer
	ActivityLog  *activity.Log
	History      history.Store
	Table        dedup.AdmissionTable
}

// StartRun triggers a manual run over freshly fetched articles. Responds 409
// when a run is already active.
func (h *ApiHandler) StartRun(c *gin.Context) {
	settings := model.RunSettings{
		IntervalSeconds: h.Timer.State().IntervalSeconds,
		NewestFirst:     h.Dispatcher.Config.NewestFirst,
	}
	run, err := h.Dispatcher.TriggerRun(c.Request.Context(), agent.TriggerSourceManual, settings)
	if errors.Is(err, agent.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{
			"code": utils.ErrorRunConflict,
			"msg":  "a run is already in progress",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code": utils.ErrorInternal,
			"msg":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, run)
}

// RunStatus returns the latest run, running or terminal. Responds 404 if no
// run has ever been started.
func (h *ApiHandler) RunStatus(c *gin.Context) {
	run, err := h.Orchestrator.Status()
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code": utils.ErrorNoActiveRun,
			"msg":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, run)
}

// CancelRun requests cooperative cancellation of the active run. The run
// winds down at the next item boundary.
func (h *ApiHandler) CancelRun(c *gin.Context) {
	if err := h.Orchestrator.Cancel(); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code": utils.ErrorNoActiveRun,
			"msg":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "cancellation requested"})
}

// RunHistory lists terminal runs, most recent first.
func (h *ApiHandler) RunHistory(c *gin.Context) {
	runs, err := h.History.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code": utils.ErrorInternal,
			"msg":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Activity returns activity entries of a run with sequence greater than the
// since offset, so clients can poll without gaps or duplicates.
func (h *ApiHandler) Activity(c *gin.Context) {
	runId := c.Query("run_id")
	if runId == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code": utils.ErrorMissingRunId,
			"msg":  "run_id is required",
		})
		return
	}
	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code": utils.ErrorInvalidRequestBody,
			"msg":  "since must be an integer",
		})
		return
	}

	entries := h.ActivityLog.EntriesSince(runId, since)
	next := since
	if len(entries) > 0 {
		next = entries[len(entries)-1].Sequence
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":    entries,
		"next_since": next,
	})
}

// TimerState reports the auto-run timer, including the live countdown and
// whether it is paused for an active run.
func (h *ApiHandler) TimerState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Timer.State())
}

type timerConfigRequest struct {
	IntervalSeconds int  `json:"interval_seconds"`
	Enabled         bool `json:"enabled"`
}

// ConfigureTimer updates the auto-run interval and enablement. The interval
// must come from the allowed set; anything else is a 400.
func (h *ApiHandler) ConfigureTimer(c *gin.Context) {
	req := timerConfigRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code": utils.ErrorInvalidRequestBody,
			"msg":  err.Error(),
		})
		return
	}
	if err := h.Timer.Configure(req.IntervalSeconds, req.Enabled); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code": utils.ErrorInvalidInterval,
			"msg":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, h.Timer.State())
}

type submittedArticle struct {
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	SourceName  string     `json:"source_name"`
	OriginUrl   string     `json:"origin_url"`
	PublishedAt *time.Time `json:"published_at"`
}

type submitArticlesRequest struct {
	Articles []submittedArticle `json:"articles"`
}

type submissionResult struct {
	Title       string `json:"title"`
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// SubmitArticles runs candidate articles through dedup admission. Admitted
// fingerprints are recorded, so the same story arriving later from ingestion
// is skipped. The response reports the outcome per article.
func (h *ApiHandler) SubmitArticles(c *gin.Context) {
	req := submitArticlesRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code": utils.ErrorInvalidRequestBody,
			"msg":  err.Error(),
		})
		return
	}
	if len(req.Articles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code": utils.ErrorInvalidRequestBody,
			"msg":  "articles must not be empty",
		})
		return
	}

	results := []submissionResult{}
	for _, submitted := range req.Articles {
		article := model.Article{
			Id:         uuid.New().String(),
			Title:      submitted.Title,
			Snippet:    submitted.Snippet,
			SourceName: submitted.SourceName,
			OriginUrl:  submitted.OriginUrl,
		}
		if submitted.PublishedAt != nil {
			article.PublishedAt = *submitted.PublishedAt
		} else {
			article.PublishedAt = time.Now()
		}

		err := h.Table.Admit(&article)
		switch {
		case err == nil:
			results = append(results, submissionResult{
				Title:       article.Title,
				Status:      "admitted",
				Fingerprint: article.Fingerprint,
			})
		case errors.Is(err, dedup.ErrDuplicateArticle):
			results = append(results, submissionResult{
				Title:       article.Title,
				Status:      "duplicate",
				Fingerprint: article.Fingerprint,
			})
		default:
			results = append(results, submissionResult{
				Title:  article.Title,
				Status: "rejected",
				Reason: err.Error(),
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
