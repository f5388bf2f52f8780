package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"Vid2News/internal/domain"
	"Vid2News/internal/usecase"
)

type deskView struct {
	Name string   `json:"name"`
	Jobs []string `json:"jobs"`
}

type postView struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	SourceURLs   []string `json:"source_video_urls"`
	SourceLabels []string `json:"source_channels"`
	Status       string   `json:"status"`
	Score        *float64 `json:"score"`
}

type jobView struct {
	Desk   string `json:"desk"`
	Job    string `json:"job"`
	Status string `json:"status"`
}

func (s *Server) listDesks(c echo.Context) error {
	out := make([]deskView, 0, len(s.order))
	for _, name := range s.order {
		d := s.desks[name]
		view := deskView{Name: name, Jobs: []string{}}
		if d.Generate != nil {
			view.Jobs = append(view.Jobs, usecase.JobGenerate)
		}
		if d.Analyze != nil {
			view.Jobs = append(view.Jobs, usecase.JobAnalyze)
		}
		if d.Publish != nil {
			view.Jobs = append(view.Jobs, usecase.JobPublish)
		}
		out = append(out, view)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listPosts(c echo.Context) error {
	d, err := s.desk(c)
	if err != nil {
		return err
	}

	status := c.QueryParam("status")
	if status != "" {
		status = d.Labels.Label(domain.PostStatus(status))
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	rows, err := d.Posts(c.Request().Context(), status, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error()).SetInternal(err)
	}
	out := make([]postView, 0, len(rows))
	for _, r := range rows {
		out = append(out, postView{
			ID:           r.ID,
			Title:        r.Title,
			Content:      r.Content,
			SourceURLs:   r.SourceURLs,
			SourceLabels: r.SourceLabels,
			Status:       r.Status,
			Score:        r.Score,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// generate starts a run in the background; a run takes minutes.
func (s *Server) generate(c echo.Context) error {
	d, err := s.desk(c)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	err = d.GenerateInBackground(s.background, func(report domain.RunReport, err error) {
		defer s.wg.Done()
		if err != nil {
			if s.logger != nil {
				s.logger.Error("manual generation failed", "desk", d.Name, "run", report.RunID, "error", err)
			}
			return
		}
		s.info("manual generation done", "desk", d.Name, "run", report.RunID, "posts", report.Posts)
	})
	if err != nil {
		s.wg.Done()
		return jobError(err)
	}

	return c.JSON(http.StatusAccepted, jobView{Desk: d.Name, Job: usecase.JobGenerate, Status: "started"})
}

func (s *Server) analyze(c echo.Context) error {
	d, err := s.desk(c)
	if err != nil {
		return err
	}
	report, err := d.RunAnalyze(c.Request().Context())
	if err != nil {
		return jobError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) publish(c echo.Context) error {
	d, err := s.desk(c)
	if err != nil {
		return err
	}

	outcome, err := d.RunPublish(c.Request().Context())
	if err != nil {
		return jobError(err)
	}
	if outcome == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, outcome)
}

// jobError maps job failures to status codes: 409 while the job is in flight,
// 422 for posts that cannot be published, 502 for collaborator failures.
func jobError(err error) error {
	code := http.StatusBadGateway
	switch {
	case errors.Is(err, usecase.ErrJobRunning):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrPublishing):
		code = http.StatusUnprocessableEntity
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}
