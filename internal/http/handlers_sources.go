package http

import (
	"net/http"

	"salvadanaio/internal/log"
)

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request, owner string) error {
	var req sourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	src, err := req.toSource(owner)
	if err != nil {
		return err
	}

	created, n, err := s.deps.Sources.Create(r.Context(), src)
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Source created",
		log.FieldOwnerID, owner,
		log.FieldSourceID, created.ID,
		log.FieldAffected, n)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/sources/"+created.ID).
		Body(map[string]any{"source": newSourceJSON(created), "entries_created": n}).
		Write(w)
	return nil
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request, owner string) error {
	list, err := s.deps.Sources.List(r.Context(), owner)
	if err != nil {
		return err
	}
	out := make([]sourceJSON, 0, len(list))
	for _, src := range list {
		out = append(out, newSourceJSON(src))
	}
	NewJSONResponse().Body(map[string]any{"sources": out}).Write(w)
	return nil
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request, owner string) error {
	src, err := s.deps.Sources.Get(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		return err
	}
	NewJSONResponse().Body(map[string]any{"source": newSourceJSON(src)}).Write(w)
	return nil
}

// handleUpdateSource replaces the editable fields of a source. A committed
// edit whose entries could not be realigned is still a 200, carrying the
// warning.
func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request, owner string) error {
	var req sourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	src, err := req.toSource(owner)
	if err != nil {
		return err
	}
	src.ID = r.PathValue("id")

	res, err := s.deps.Sources.Update(r.Context(), src)
	if err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Source updated",
		log.FieldOwnerID, owner,
		log.FieldSourceID, src.ID,
		log.FieldChange, string(res.Change),
		log.FieldAffected, res.Affected)

	NewJSONResponse().Body(newSourceUpdateJSON(res)).Write(w)
	return nil
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request, owner string) error {
	id := r.PathValue("id")
	if err := s.deps.Sources.Delete(r.Context(), owner, id); err != nil {
		return err
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Source deleted",
		log.FieldOwnerID, owner,
		log.FieldSourceID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
	return nil
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request, owner string) error {
	entries, err := s.deps.Sources.ListEntries(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		return err
	}
	NewJSONResponse().Body(map[string]any{"entries": newEntriesJSON(entries)}).Write(w)
	return nil
}
