package api

import (
	"fmt"
	"net/http"

	"github.com/banshee-data/display1593/internal/db"
	"github.com/banshee-data/display1593/internal/httputil"
)

type saveSnapshotRequest struct {
	Label string `json:"label"`
}

// handleSaveSnapshot stores the cached state. The body is optional.
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, fmt.Errorf("snapshots: %w", errUnavailable))
		return
	}
	var req saveSnapshotRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}
	id, err := s.db.SaveSnapshot(req.Label, s.state.Colors())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, fmt.Errorf("snapshots: %w", errUnavailable))
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	list, err := s.db.Snapshots(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if list == nil {
		list = []db.Snapshot{}
	}
	httputil.WriteJSONOK(w, list)
}

// handleRestoreSnapshot sends a saved frame. The id "latest" picks the most
// recent snapshot.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, fmt.Errorf("snapshots: %w", errUnavailable))
		return
	}
	id := r.PathValue("id")
	var snap *db.Snapshot
	var err error
	if id == "latest" {
		snap, err = s.db.LatestSnapshot()
	} else {
		snap, err = s.db.Snapshot(id)
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if snap == nil {
		httputil.NotFound(w, fmt.Sprintf("snapshot %q not found", id))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.display.SetAll(snap.Colors); err != nil {
		writeError(w, err)
		return
	}
	s.state.Replace(snap.Colors)
	httputil.WriteJSONOK(w, snap)
}
