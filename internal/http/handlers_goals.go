package http

import (
	"net/http"

	"salvadanaio/internal/log"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request, owner string) error {
	bal, err := s.deps.Accounts.Balance(r.Context(), owner)
	if err != nil {
		return err
	}
	NewJSONResponse().Body(map[string]any{"balance": newBalanceJSON(bal)}).Write(w)
	return nil
}

func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request, owner string) error {
	limit, err := parseLimit(r)
	if err != nil {
		return err
	}
	entries, err := s.deps.Accounts.History(r.Context(), owner, limit)
	if err != nil {
		return err
	}
	out := make([]balanceEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, newBalanceEntryJSON(e))
	}
	NewJSONResponse().Body(map[string]any{"entries": out}).Write(w)
	return nil
}

func (s *Server) handleSetStartingBalance(w http.ResponseWriter, r *http.Request, owner string) error {
	var req startingBalanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if !req.Amount.set {
		return requiredField("amount")
	}

	bal, err := s.deps.Accounts.SetStartingBalance(r.Context(), owner, req.Amount.value, sanitizeInput(req.Notes))
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Starting balance set",
		log.FieldOwnerID, owner,
		log.FieldAmount, formatAmount(req.Amount.value))
	NewJSONResponse().Body(map[string]any{"balance": newBalanceJSON(bal)}).Write(w)
	return nil
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, owner string) error {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	g, err := req.toGoal(owner)
	if err != nil {
		return err
	}
	created, err := s.deps.Goals.Create(r.Context(), g)
	if err != nil {
		return err
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/"+created.ID).
		Body(map[string]any{"goal": newGoalJSON(created)}).
		Write(w)
	return nil
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request, owner string) error {
	goals, err := s.deps.Goals.List(r.Context(), owner)
	if err != nil {
		return err
	}
	out := make([]goalJSON, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalJSON(g))
	}
	NewJSONResponse().Body(map[string]any{"goals": out}).Write(w)
	return nil
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request, owner string) error {
	g, err := s.deps.Goals.Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		return err
	}
	NewJSONResponse().Body(map[string]any{"goal": newGoalJSON(g)}).Write(w)
	return nil
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request, owner string) error {
	list, err := s.deps.Goals.Contributions(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		return err
	}
	out := make([]contributionJSON, 0, len(list))
	for _, c := range list {
		out = append(out, newContributionJSON(c))
	}
	NewJSONResponse().Body(map[string]any{"contributions": out}).Write(w)
	return nil
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request, owner string) error {
	var req contributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	amount, month, err := req.parse(s.now())
	if err != nil {
		return err
	}

	goalID := r.PathValue("id")
	res, err := s.deps.Contributions.Contribute(r.Context(), owner, goalID, amount, month, sanitizeInput(req.Notes))
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Contribution recorded",
		log.FieldOwnerID, owner,
		log.FieldGoalID, goalID,
		log.FieldAmount, formatAmount(amount),
		log.FieldMonth, month.String())

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(newContributionResultJSON(res)).
		Write(w)
	return nil
}

func (s *Server) handleReverseContribution(w http.ResponseWriter, r *http.Request, owner string) error {
	id := r.PathValue("id")
	res, err := s.deps.Contributions.Reverse(r.Context(), owner, id)
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Contribution reversed",
		log.FieldOwnerID, owner,
		log.FieldGoalID, res.Goal.ID,
		log.FieldAmount, formatAmount(res.Contribution.Amount))
	NewJSONResponse().Body(newContributionResultJSON(res)).Write(w)
	return nil
}
