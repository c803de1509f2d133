package grader

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cgast/questcheck/pkg/audit"
	"github.com/cgast/questcheck/pkg/mission"
	"github.com/cgast/questcheck/pkg/protocol"
)

// Register installs the grading methods on h.
func (g *Grader) Register(h *protocol.Handler) {
	h.Register(protocol.MethodCatalogInfo, g.rpcCatalogInfo)
	h.Register(protocol.MethodMissionsList, g.rpcMissionsList)
	h.Register(protocol.MethodMissionsGet, g.rpcMissionsGet)
	h.Register(protocol.MethodMissionValidate, g.rpcValidate)
	h.Register(protocol.MethodAttemptsList, g.rpcAttemptsList)
	h.Register(protocol.MethodPathNext, g.rpcPathNext)
}

// rpcError maps grader errors onto JSON-RPC error codes.
func rpcError(err error) *protocol.Error {
	code := protocol.CodeInternalError
	switch {
	case errors.Is(err, ErrMissionNotFound):
		code = protocol.CodeMissionNotFound
	case errors.Is(err, audit.ErrInvalidRule):
		code = protocol.CodeInvalidContent
	case errors.Is(err, ErrInvalidSubmission):
		code = protocol.CodeInvalidSubmission
	case errors.Is(err, ErrStoreDisabled):
		code = protocol.CodeStoreDisabled
	}
	return &protocol.Error{Code: code, Message: err.Error()}
}

func (g *Grader) rpcCatalogInfo(_ context.Context, _ json.RawMessage) (any, *protocol.Error) {
	cat := g.Catalog()
	return protocol.CatalogInfo{
		Version:  cat.Version(),
		Source:   g.sourceName,
		Missions: cat.Len(),
	}, nil
}

func (g *Grader) rpcMissionsList(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
	p, rpcErr := protocol.ParseParams[protocol.MissionsListParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cat := g.Catalog()
	missions := cat.All()
	if p.Difficulty != "" {
		missions = cat.ByDifficulty(mission.Difficulty(p.Difficulty))
	}
	out := make([]protocol.MissionSummary, 0, len(missions))
	for _, m := range missions {
		out = append(out, protocol.Summarize(m))
	}
	return out, nil
}

func (g *Grader) rpcMissionsGet(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
	p, rpcErr := protocol.ParseParams[protocol.MissionParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	m, ok := g.Catalog().Get(p.ID)
	if !ok {
		return nil, &protocol.Error{
			Code:    protocol.CodeMissionNotFound,
			Message: "mission not found: " + p.ID,
		}
	}
	return m, nil
}

func (g *Grader) rpcValidate(ctx context.Context, params json.RawMessage) (any, *protocol.Error) {
	p, rpcErr := protocol.ParseParams[protocol.ValidateParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	o, err := g.Validate(ctx, Submission{
		Learner:   p.Learner,
		MissionID: p.MissionID,
		Source:    p.Source,
	})
	if err != nil {
		return nil, rpcError(err)
	}
	res := protocol.ValidateResult{
		Cached:   o.Cached,
		Result:   o.Result(),
		Unlocked: o.Unlocked,
	}
	if g.store != nil {
		res.AttemptID = o.Attempt.ID
	}
	return res, nil
}

func (g *Grader) rpcAttemptsList(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
	p, rpcErr := protocol.ParseParams[protocol.AttemptsListParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	list, err := g.Attempts(p.Filter())
	if err != nil {
		return nil, rpcError(err)
	}
	return list, nil
}

func (g *Grader) rpcPathNext(_ context.Context, params json.RawMessage) (any, *protocol.Error) {
	p, rpcErr := protocol.ParseParams[protocol.PathParams](params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	progress, err := g.Path(p.Learner)
	if err != nil {
		return nil, rpcError(err)
	}
	return PathResult(progress), nil
}

// PathResult converts progress into its wire form.
func PathResult(p Progress) protocol.PathResult {
	res := protocol.PathResult{
		Completed: p.Completed,
		Unlocked:  make([]string, 0, len(p.Unlocked)),
	}
	if res.Completed == nil {
		res.Completed = []string{}
	}
	for _, m := range p.Unlocked {
		res.Unlocked = append(res.Unlocked, m.ID)
	}
	if p.Next != nil {
		s := protocol.Summarize(*p.Next)
		res.Next = &s
	}
	return res
}
