package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthd/hearth/internal/events"
	"github.com/hearthd/hearth/internal/home"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.controller.List(r.Context())
	if err != nil {
		s.logger.Error("list devices failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "devices unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func (s *Server) handleRoomDevices(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	devices, err := s.controller.List(r.Context())
	if err != nil {
		s.logger.Error("list devices failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "devices unavailable")
		return
	}

	filtered := make([]home.Device, 0)
	for _, d := range devices {
		if d.Room == room {
			filtered = append(filtered, d)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"room":    room,
		"devices": filtered,
		"count":   len(filtered),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	device, err := s.controller.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, home.ErrDeviceNotFound) {
			s.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		s.logger.Error("get device failed", "device", id, "err", err)
		s.writeError(w, http.StatusInternalServerError, "device unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, device)
}

type updateDeviceRequest struct {
	Status     *string        `json:"status,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var status *home.Status
	if req.Status != nil {
		parsed, err := home.ParseStatus(*req.Status)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = &parsed
	}

	device, err := s.controller.Update(r.Context(), id, status, req.Properties)
	if err != nil {
		switch {
		case errors.Is(err, home.ErrDeviceNotFound):
			s.writeError(w, http.StatusNotFound, "device not found")
		default:
			// Property validation failures land here.
			s.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	s.bus.Emit(events.SourceDevices, events.KindDeviceUpdated, map[string]any{
		"device_id": device.ID,
		"status":    string(device.Status),
	})
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "device updated",
		"device":  device,
	})
}

type occupancyRequest struct {
	Occupied bool `json:"occupied"`
}

func (s *Server) handleSetOccupancy(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	var req occupancyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.env.SetOccupancy(r.Context(), room, req.Occupied); err != nil {
		if errors.Is(err, home.ErrDeviceNotFound) {
			s.writeError(w, http.StatusNotFound, "no motion sensor in room")
			return
		}
		s.logger.Error("set occupancy failed", "room", room, "err", err)
		s.writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"room":     room,
		"occupied": req.Occupied,
	})
}
