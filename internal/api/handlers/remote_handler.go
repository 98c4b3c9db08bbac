package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"norelock.dev/osmcremote/internal/remote"
	"norelock.dev/osmcremote/internal/utils"
)

// maxGestureBody bounds a gesture request body.
const maxGestureBody = 4096

// RemoteController is the part of the remote controller the REST surface uses.
type RemoteController interface {
	Submit(ctx context.Context, g remote.Gesture) error
	Snapshot() remote.Snapshot
}

// RemoteHandler exposes gestures and state over plain HTTP for clients
// that do not keep a socket open.
type RemoteHandler struct {
	ctrl   RemoteController
	logger *utils.Logger
}

// NewRemoteHandler creates a new remote handler.
func NewRemoteHandler(ctrl RemoteController, logger *utils.Logger) *RemoteHandler {
	return &RemoteHandler{
		ctrl:   ctrl,
		logger: logger.Named("remote_handler"),
	}
}

// PostGesture queues a gesture. The response only acknowledges the
// gesture; its effect arrives through the view.
func (h *RemoteHandler) PostGesture(w http.ResponseWriter, r *http.Request) {
	var g remote.Gesture
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGestureBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&g); err != nil {
		utils.RespondWithAppError(w, utils.BadRequestError("Invalid request body", err))
		return
	}

	if err := h.ctrl.Submit(r.Context(), g); err != nil {
		if errors.Is(err, remote.ErrStopped) {
			err = utils.UnavailableError("Remote is shutting down", err)
		}
		h.logger.Debug("Gesture rejected", "kind", string(g.Kind), "error", err.Error())
		utils.RespondWithAppError(w, err)
		return
	}

	utils.RespondWithData(w, http.StatusAccepted, map[string]any{"kind": g.Kind})
}

// GetState returns the current state and view.
func (h *RemoteHandler) GetState(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithData(w, http.StatusOK, h.ctrl.Snapshot())
}
