package server

import (
	"net/http"

	"github.com/iacguard/iacguard/pkg/models"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	openCounts, err := s.store.CountOpenByProject()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type projectView struct {
		models.Project
		OpenFindings int `json:"open_findings"`
	}
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, projectView{Project: p, OpenFindings: openCounts[p.ID]})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var project models.Project
	if err := decodeJSON(r, &project); err != nil {
		writeError(w, http.StatusBadRequest, "invalid project payload: "+err.Error())
		return
	}
	project.ID = 0
	if err := s.store.CreateProject(&project); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	project, err := s.store.GetProject(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	existing, err := s.store.GetProject(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var payload struct {
		Name          *string `json:"name"`
		Description   *string `json:"description"`
		RepositoryURL *string `json:"repository_url"`
		Framework     *string `json:"framework"`
		Status        *string `json:"status"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid project payload: "+err.Error())
		return
	}
	if payload.Name != nil {
		existing.Name = *payload.Name
	}
	if payload.Description != nil {
		existing.Description = *payload.Description
	}
	if payload.RepositoryURL != nil {
		existing.RepositoryURL = *payload.RepositoryURL
	}
	if payload.Framework != nil {
		existing.Framework = *payload.Framework
	}
	if payload.Status != nil {
		existing.Status = *payload.Status
	}

	if err := s.store.UpdateProject(existing); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteProject(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
