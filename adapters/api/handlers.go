package api

import (
	"log"
	"net/http"

	"numcmc/domain/core"
	"numcmc/internal/errors"
	"numcmc/ports"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListPlots(c *gin.Context) {
	plots, err := s.reader.ListPlots(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plots": plots,
		"count": len(plots),
	})
}

func (s *Server) handleGetPlot(c *gin.Context) {
	id, err := core.ParsePlotID(c.Param("id"))
	if err != nil {
		s.fail(c, errors.InvalidInput(err.Error()))
		return
	}
	detail, err := s.reader.GetPlot(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleReport(c *gin.Context) {
	format := ports.ReportFormat(c.DefaultQuery("format", string(ports.ReportMarkdown)))
	out, err := s.reader.Report(c.Request.Context(), format)
	if err != nil {
		s.fail(c, err)
		return
	}
	contentType := "text/markdown; charset=utf-8"
	if format == ports.ReportHTML {
		contentType = "text/html; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, []byte(out))
}

// fail maps an error code onto an HTTP status
func (s *Server) fail(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeInvalidInput:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] Request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
