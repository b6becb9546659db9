package internalhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/lomoval/otus-golang/tasks_calendar_sync/internal/storage"
	log "github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20

func (s *Server) health(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	f, err := filterFromQuery(r.URL.Query())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	tasks, err := s.app.ListTasks(r.Context(), f)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponses(tasks))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	t, err := readTask(w, r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	created, err := s.app.CreateTask(r.Context(), t)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	log.WithField("task", created.ID).WithField("subject", subject(r)).Debug("task created")
	writeJSON(w, http.StatusCreated, toResponse(created))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request, params map[string]string) {
	t, err := s.app.GetTask(r.Context(), params["id"])
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(t))
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request, params map[string]string) {
	t, err := readTask(w, r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	updated, err := s.app.UpdateTask(r.Context(), params["id"], t)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(updated))
}

func (s *Server) removeTask(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if err := s.app.RemoveTask(r.Context(), params["id"]); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	log.WithField("task", params["id"]).WithField("subject", subject(r)).Debug("task removed")
	w.WriteHeader(http.StatusNoContent)
}

func subject(r *http.Request) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return claims.Subject
	}
	return ""
}

func readTask(w http.ResponseWriter, r *http.Request) (storage.Task, error) {
	var req taskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		return storage.Task{}, fmt.Errorf("malformed request body: %w", storage.ErrInvalidTask)
	}
	return req.toTask()
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidTask):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFoundTask):
		writeError(w, http.StatusNotFound, "task not found")
	default:
		log.WithField("method", r.Method).WithField("path", r.URL.Path).Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}
