package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/realdiag-server/internal/domain"
	"github.com/realdiag-server/internal/middleware"
	"github.com/realdiag-server/internal/service"
)

const readinessTimeout = 2 * time.Second

func (s *Server) appInfo() domain.AppInfo {
	cfg := s.configManager.GetConfig()
	return domain.AppInfo{App: cfg.App.Name, Version: cfg.App.Version}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, s.appInfo())
}

func (s *Server) handleHealthVersion(c *gin.Context) {
	info := s.appInfo()
	c.JSON(http.StatusOK, gin.H{"ok": true, "app": info.App, "version": info.Version})
}

// handleReady runs every readiness check; any failure answers 503.
func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	ready := true
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.WithError(err).WithField("check", name).Warn("Readiness check failed")
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	body := gin.H{"ok": ready, "checks": checks}
	if s.cacheStats != nil {
		body["cache"] = s.cacheStats.Stats()
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, body)
}

func (s *Server) handleListTrees(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trees": s.engine.ListTrees()})
}

// handleEvaluateTree accepts patient facts as the JSON body; an empty body
// evaluates with no facts.
func (s *Server) handleEvaluateTree(c *gin.Context) {
	treeID := c.Param("tree_id")

	var facts domain.PatientFacts
	if err := c.ShouldBindJSON(&facts); err != nil && !errors.Is(err, io.EOF) {
		s.respondBadRequest(c, fmt.Sprintf("invalid patient facts: %v", err))
		return
	}

	result, err := s.engine.EvaluateTree(c.Request.Context(), treeID, facts)
	if err != nil {
		s.respondError(c, err, domain.KindTree, treeID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tree_result": result})
}

func (s *Server) handleListFamilies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"families": s.engine.ListFamilies()})
}

func (s *Server) handleGetFamily(c *gin.Context) {
	name := c.Param("family")
	doc, err := s.engine.GetFamily(name)
	if err != nil {
		s.respondError(c, err, domain.KindFamily, name)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleGetRule(c *gin.Context) {
	id := c.Param("rule_id")
	rec, err := s.engine.GetRule(id)
	if err != nil {
		s.respondError(c, err, domain.KindRule, id)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleSearchRules(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		s.respondBadRequest(c, "query parameter 'q' is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": s.engine.SearchRules(query, c.Query("family"))})
}

func (s *Server) handleSearchBySymptoms(c *gin.Context) {
	var req domain.SymptomSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, fmt.Sprintf("invalid symptom search request: %v", err))
		return
	}

	resp, err := s.engine.SearchBySymptoms(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, domain.KindFamily, req.Family)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetSearchSuggestions())
}

func (s *Server) handleReference(c *gin.Context) {
	name := c.Param("family")
	ref, err := s.engine.GetReference(name)
	if err != nil {
		s.respondError(c, err, domain.KindFamily, name)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (s *Server) handleSubmitFeedback(c *gin.Context) {
	if !s.feedbackEnabled(c) {
		return
	}

	var req service.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, fmt.Sprintf("invalid feedback: %v", err))
		return
	}

	fb, err := s.feedback.Submit(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err, domain.KindRule, req.RuleID)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(c *gin.Context) {
	if !s.feedbackEnabled(c) {
		return
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondBadRequest(c, err.Error())
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		s.respondBadRequest(c, err.Error())
		return
	}

	page, err := s.feedback.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err, "", "")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleExportFeedback(c *gin.Context) {
	if !s.feedbackEnabled(c) {
		return
	}

	filename := fmt.Sprintf("realdiag-feedback-%s.json", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Status(http.StatusOK)

	if err := s.feedback.Export(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Feedback export failed")
	}
}

func (s *Server) feedbackEnabled(c *gin.Context) bool {
	if s.feedback != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error":          "feedback storage is disabled",
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	})
	return false
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("query parameter '%s' must be an integer", name)
	}
	return n, nil
}

func (s *Server) respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":          message,
		"code":           domain.ErrInvalidInput,
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	})
}

// respondError maps engine errors to HTTP responses. Not-found answers carry
// suggestions for the unknown id of the given kind.
func (s *Server) respondError(c *gin.Context, err error, kind, id string) {
	correlationID := c.GetString(middleware.CorrelationIDKey)

	var ve *domain.ValidationError
	var de *domain.DiagnosticError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          ve.Error(),
			"code":           domain.ErrInvalidInput,
			"field":          ve.Field,
			"correlation_id": correlationID,
		})

	case domain.IsNotFound(err):
		errors.As(err, &de)
		if de.Details != "" {
			kind = de.Details
		}
		c.JSON(http.StatusNotFound, gin.H{
			"error":          de.Message,
			"code":           domain.ErrNotFound,
			"did_you_mean":   s.engine.DidYouMean(kind, id),
			"correlation_id": correlationID,
		})

	case domain.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          err.Error(),
			"code":           domain.ErrInvalidInput,
			"correlation_id": correlationID,
		})

	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":          "Request timeout",
			"correlation_id": correlationID,
		})

	default:
		s.logger.WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"path":           c.FullPath(),
		}).WithError(err).Error("Request failed")

		code := domain.ErrInternal
		if errors.As(err, &de) {
			code = de.Code
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":          "internal error",
			"code":           code,
			"correlation_id": correlationID,
		})
	}
}
