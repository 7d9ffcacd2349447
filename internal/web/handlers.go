package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Laisky/topic-news/internal/news"
	"github.com/Laisky/topic-news/internal/session"
	"github.com/Laisky/topic-news/library/log"
)

// SessionCookie carries the id of the browser's credential session.
const SessionCookie = "topic_news_session"

const sessionCookieMaxAge = 24 * time.Hour

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	Topic string `json:"topic"`
	news.Credentials
}

func (s *Server) handleIndex(ctx *gin.Context) {
	creds, _ := s.loadCredentials(ctx)
	data := pageData{
		HasLLMKey:    strings.TrimSpace(creds.LLMAPIKey) != "",
		HasSearchKey: strings.TrimSpace(creds.SearchAPIKey) != "",
		ShowLogs:     ctx.Query("show_logs") != "",
	}
	if data.ShowLogs {
		data.Logs = s.tailLogs()
	}
	s.renderPage(ctx, http.StatusOK, data)
}

func (s *Server) handleSaveCredentials(ctx *gin.Context) {
	logger := gmw.GetLogger(ctx).Named("credentials")

	id, err := ctx.Cookie(SessionCookie)
	if err != nil {
		id = session.NewID()
	} else if _, err = uuid.Parse(id); err != nil {
		id = session.NewID()
	}

	// an empty field keeps the stored key
	stored, _ := s.loadCredentials(ctx)
	creds := news.Credentials{
		LLMAPIKey:    strings.TrimSpace(ctx.PostForm("llm_api_key")),
		SearchAPIKey: strings.TrimSpace(ctx.PostForm("search_api_key")),
	}
	if creds.LLMAPIKey == "" {
		creds.LLMAPIKey = stored.LLMAPIKey
	}
	if creds.SearchAPIKey == "" {
		creds.SearchAPIKey = stored.SearchAPIKey
	}

	if err := s.sessions.Save(ctx, id, creds); err != nil {
		logger.Error("save credentials", zap.Error(err))
		s.renderPage(ctx, http.StatusInternalServerError, pageData{Error: "failed to save credentials"})
		return
	}

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(SessionCookie, id, int(sessionCookieMaxAge/time.Second), "/", "", false, true)
	ctx.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleRun(ctx *gin.Context) {
	topic := strings.TrimSpace(ctx.PostForm("topic"))
	creds, _ := s.loadCredentials(ctx)

	data := pageData{
		Topic:        topic,
		HasLLMKey:    strings.TrimSpace(creds.LLMAPIKey) != "",
		HasSearchKey: strings.TrimSpace(creds.SearchAPIKey) != "",
		ShowLogs:     ctx.PostForm("show_logs") != "",
	}

	if err := news.ValidateRequest(topic, creds); err != nil {
		data.Warning = err.Error()
		if data.ShowLogs {
			data.Logs = s.tailLogs()
		}
		s.renderPage(ctx, http.StatusOK, data)
		return
	}

	report := s.runner.Run(ctx, topic, creds)
	data.Report = report
	if report.Succeeded() {
		data.Success = report.Message
	} else {
		data.Error = report.Message
	}
	if data.ShowLogs {
		data.Logs = s.tailLogs()
	}

	s.renderPage(ctx, http.StatusOK, data)
}

func (s *Server) handleLogs(ctx *gin.Context) {
	ctx.String(http.StatusOK, s.tailLogs())
}

func (s *Server) handleAPIRun(ctx *gin.Context) {
	req := new(RunRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if err := news.ValidateRequest(req.Topic, req.Credentials); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, s.runner.Run(ctx, req.Topic, req.Credentials))
}

func (s *Server) loadCredentials(ctx *gin.Context) (news.Credentials, error) {
	id, err := ctx.Cookie(SessionCookie)
	if err != nil || id == "" {
		return news.Credentials{}, session.ErrNotFound
	}

	creds, err := s.sessions.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			gmw.GetLogger(ctx).Warn("load credentials", zap.Error(err))
		}
		return news.Credentials{}, err
	}
	return creds, nil
}

func (s *Server) tailLogs() string {
	if s.logFile == "" {
		return news.MsgNoLogFile
	}

	content, err := log.TailFile(s.logFile, s.logTail)
	if err != nil {
		if !errors.Is(err, log.ErrNoLogFile) {
			s.logger.Warn("read log file", zap.Error(err), zap.String("path", s.logFile))
		}
		return news.MsgNoLogFile
	}
	return content
}
