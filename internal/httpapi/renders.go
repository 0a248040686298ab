package httpapi

import (
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ivlev/daybyday/internal/engine"
	"github.com/ivlev/daybyday/internal/httpkit"
	"github.com/ivlev/daybyday/internal/jobs"
	"github.com/ivlev/daybyday/internal/pkg/errors"
)

type acceptedResponse struct {
	ID    string       `json:"id"`
	State engine.State `json:"state"`
}

func (h *Handler) PostRender(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.renders.StartRender(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	state := engine.StateIdle
	if snap, err := h.renders.Status(id); err == nil {
		state = snap.State
	}
	w.Header().Set("Location", "/renders/"+id)
	httpkit.WriteJSON(w, http.StatusAccepted, acceptedResponse{ID: id, State: state})
}

func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	snap, err := h.renders.Status(chi.URLParam(r, "renderId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpkit.WriteJSON(w, http.StatusOK, snap)
}

// DeleteRender requests cancellation; the job ends asynchronously.
func (h *Handler) DeleteRender(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "renderId")
	if err := h.renders.Cancel(id); err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.renders.Status(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpkit.WriteJSON(w, http.StatusAccepted, acceptedResponse{ID: id, State: snap.State})
}

func (h *Handler) RenderArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "renderId")
	snap, err := h.renders.Status(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if snap.Result == nil || snap.Result.Status != engine.StatusCompleted || snap.Result.Handle == "" {
		h.fail(w, r, errors.Newf(errors.CodeConflict, "render %s has no artifact", id).WithField("state", string(snap.State)))
		return
	}
	if h.artifacts == nil {
		h.fail(w, r, errors.New(errors.CodeUnavailable, "artifact storage is not configured"))
		return
	}

	rc, ct, size, err := h.artifacts.Open(r.Context(), snap.Result.Handle)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()

	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(snap.Result.Handle)+`"`)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.log.FromContext(r.Context()).Warn("artifact download interrupted", "render_id", id, "error", err.Error())
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.GetHTTPStatus(err) >= 500 {
		log := h.log
		var coded *errors.Error
		if errors.As(err, &coded) && len(coded.Stack) > 0 {
			log = log.WithFields(map[string]any{"stack": coded.StackTrace()})
		}
		log.LogError(ctx, "request failed", err, "path", r.URL.Path, "code", string(errors.GetCode(err)))
	} else {
		h.log.FromContext(ctx).Warn("request rejected", "path", r.URL.Path, "code", string(errors.GetCode(err)), "error", err.Error())
	}
	httpkit.WriteError(w, err)
}
