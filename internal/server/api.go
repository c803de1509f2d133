package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/cgast/questcheck/internal/grader"
	"github.com/cgast/questcheck/pkg/attempt"
	"github.com/cgast/questcheck/pkg/audit"
	"github.com/cgast/questcheck/pkg/mission"
	"github.com/cgast/questcheck/pkg/protocol"
)

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.grader.Catalog()
	writeJSON(w, http.StatusOK, protocol.CatalogInfo{
		Version:  cat.Version(),
		Source:   s.grader.SourceName(),
		Missions: cat.Len(),
	})
}

func (s *Server) handleMissions(w http.ResponseWriter, r *http.Request) {
	cat := s.grader.Catalog()
	missions := cat.All()
	if d := r.URL.Query().Get("difficulty"); d != "" {
		missions = cat.ByDifficulty(mission.Difficulty(d))
	}
	out := make([]protocol.MissionSummary, 0, len(missions))
	for _, m := range missions {
		out = append(out, protocol.Summarize(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMission(w http.ResponseWriter, r *http.Request) {
	m, ok := s.grader.Catalog().Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "mission not found: "+r.PathValue("id"))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// validateBody is the JSON form of a validation request. Plain text
// bodies are taken as the source, with the learner in the query string.
type validateBody struct {
	Learner string `json:"learner"`
	Source  string `json:"source"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var body validateBody
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeBodyError(w, err)
			return
		}
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeBodyError(w, err)
			return
		}
		body.Source = string(data)
		body.Learner = r.URL.Query().Get("learner")
	}

	o, err := s.grader.Validate(r.Context(), grader.Submission{
		Learner:   body.Learner,
		MissionID: r.PathValue("id"),
		Source:    body.Source,
	})
	if err != nil {
		s.writeGraderError(w, err)
		return
	}

	res := protocol.ValidateResult{
		Cached:   o.Cached,
		Result:   o.Result(),
		Unlocked: o.Unlocked,
	}
	if s.grader.StoreEnabled() {
		res.AttemptID = o.Attempt.ID
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := attempt.Filter{
		Learner:   q.Get("learner"),
		MissionID: q.Get("mission"),
	}
	if v := q.Get("passed"); v != "" {
		passed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid passed: "+v)
			return
		}
		f.PassedOnly = passed
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		f.Limit = limit
	}

	list, err := s.grader.Attempts(f)
	if err != nil {
		s.writeGraderError(w, err)
		return
	}
	if list == nil {
		list = []attempt.Attempt{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	p, err := s.grader.Path(r.URL.Query().Get("learner"))
	if err != nil {
		s.writeGraderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grader.PathResult(p))
}

func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
}

func (s *Server) writeGraderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grader.ErrMissionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, grader.ErrInvalidSubmission):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, grader.ErrStoreDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, audit.ErrInvalidRule):
		s.logger.Error("invalid mission content", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
