package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"transcssr/adapters/dot"
	"transcssr/domain/core"
	"transcssr/domain/machine"
	"transcssr/domain/stream"
	"transcssr/internal/filter"
	"transcssr/internal/infotheory"
	"transcssr/internal/reconstruct"
	"transcssr/internal/wordstats"
)

// reconstructRequest carries the streams and parameter overrides for one
// reconstruction run.
type reconstructRequest struct {
	Name     string  `json:"name"`
	X        string  `json:"x"`
	Y        string  `json:"y"`
	Inputs   string  `json:"inputs"`
	Outputs  string  `json:"outputs"`
	Alpha    float64 `json:"alpha,omitempty"`
	LMaxCSSR int     `json:"l_max_cssr,omitempty"`
}

type reconstructResponse struct {
	ID              string `json:"id"`
	States          int    `json:"states"`
	RecurrentStates int    `json:"recurrent_states"`
	SplitPasses     int    `json:"split_passes"`
}

func (s *Server) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	var req reconstructRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	params := s.params
	if req.Alpha > 0 {
		params.Alpha = req.Alpha
	}
	if req.LMaxCSSR > 0 {
		params.LMaxCSSR = req.LMaxCSSR
		if params.LMaxWords < params.LMaxCSSR {
			params.LMaxWords = params.LMaxCSSR
		}
	}

	ps, err := pairFromRequest(req.X, req.Y, req.Inputs, req.Outputs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tbl, err := wordstats.Estimate(ps, params.LMaxWords)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	res, err := reconstruct.Reconstruct(tbl, params)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	res.Machine.Name = req.Name

	data, err := dot.Marshal(res.Machine)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.Save(r.Context(), res.Machine, data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, reconstructResponse{
		ID:              res.Machine.ID.String(),
		States:          res.Machine.StateCount(),
		RecurrentStates: len(res.Machine.RecurrentStates()),
		SplitPasses:     res.SplitPasses,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetDOT(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseMachineID(chi.URLParam(r, "machineID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := s.store.LoadDOT(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type filterRequest struct {
	X        string `json:"x"`
	Y        string `json:"y"`
	FailFast bool   `json:"fail_fast,omitempty"`
}

type filterResponse struct {
	Predictions [][]float64        `json:"predictions"`
	States      []machine.StateID  `json:"states"`
	Predicted   []core.Symbol      `json:"predicted"`
	Violations  []filter.Violation `json:"violations,omitempty"`
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseMachineID(chi.URLParam(r, "machineID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := s.store.Load(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	ps, err := pairFromRequest(req.X, req.Y, m.Inputs.String(), m.Outputs.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := filter.Replay(m, ps, filter.Options{FailFast: req.FailFast})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, filterResponse{
		Predictions: res.Predictions,
		States:      res.States,
		Predicted:   res.Predicted,
		Violations:  res.Violations,
	})
}

// maxMeasureDepth bounds the l_max query parameter; block-entropy cost grows
// exponentially in the depth.
const maxMeasureDepth = 16

func (s *Server) handleMeasures(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseMachineID(chi.URLParam(r, "machineID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lMax := s.params.LMaxICT
	if v := r.URL.Query().Get("l_max"); v != "" {
		parsed, err := strconv.Atoi(v)
		// Block-entropy enumeration visits up to |outputs|^(2*lMax)
		// words, so an unbounded depth would pin the handler.
		if err != nil || parsed < 1 || parsed > maxMeasureDepth {
			writeError(w, http.StatusBadRequest,
				fmt.Errorf("l_max must be an integer between 1 and %d", maxMeasureDepth))
			return
		}
		lMax = parsed
	}
	m, err := s.store.Load(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	measures, err := infotheory.Analyze(m, infotheory.Options{LMax: lMax})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, measures)
}

func pairFromRequest(x, y, inputs, outputs string) (stream.Paired, error) {
	outAlpha, err := stream.ParseAlphabet(outputs)
	if err != nil {
		return stream.Paired{}, err
	}
	if x == "" {
		// Output-only convention: constant '0' input.
		for range y {
			x += "0"
		}
		inputs = "0"
	}
	inAlpha, err := stream.ParseAlphabet(inputs)
	if err != nil {
		return stream.Paired{}, err
	}
	return stream.NewPaired(stream.Stream(x), stream.Stream(y), inAlpha, outAlpha)
}

func statusFor(err error) int {
	switch {
	case core.IsInputMismatch(err), core.IsInsufficientData(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrMachineNotFound):
		return http.StatusNotFound
	case core.IsForbiddenTransition(err), core.IsNonErgodic(err), core.IsNonConvergence(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
