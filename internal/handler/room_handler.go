/*
Package handler provides HTTP handler functions for the room REST surface:
listing active rooms, reading a room's recent history, and posting
operational notices.
*/
package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"parley/internal/app/hub"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/req"
	"parley/internal/pkg/resp"
)

// HandleListRooms returns the active rooms with their member counts.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"rooms": deps.Hub.RoomSummaries(),
		})
	}
}

// HandleRoomHistory returns the recent message window of a room, oldest
// first. The reserved private-thread namespace is not readable here.
func HandleRoomHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := strings.TrimSpace(chi.URLParam(r, "room"))
		if customErr := validateRoomParam(room); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		limit := deps.Config.HistoryLimit
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			parsed, err := strconv.Atoi(rawLimit)
			if err != nil || parsed < 1 {
				resp.RespondError(w, r, errs.New(errs.ErrInvalidParams))
				return
			}
			limit = min(parsed, deps.Config.HistoryLimit)
		}

		messages, err := deps.Messages.RecentByRoom(r.Context(), room, limit)
		if err != nil {
			logx.Error(err, "History query failed", "room", room)
			resp.RespondError(w, r, errs.New(errs.ErrStoreUnavailable))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"room":     room,
			"messages": messages,
		})
	}
}

type PostNoticeInput struct {
	// From is the service name the notice is attributed to (optional).
	From string `json:"from,omitempty"`

	// Body is the notice text, validated like a chat message.
	Body string `json:"body"`
}

// HandlePostNotice injects an operational announcement into a room from
// outside any session. The notice is persisted and broadcast to the room's
// current members.
func HandlePostNotice(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := chi.URLParam(r, "room")

		var input PostNoticeInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Hub.PostNotice(r.Context(), room, input.From, input.Body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

// validateRoomParam rejects empty, malformed and reserved room names in
// REST paths.
func validateRoomParam(room string) *errs.CustomError {
	if hub.IsReservedRoom(room) {
		return errs.New(errs.ErrRoomNameReserved)
	}
	if room == "" || strings.Contains(room, ":") {
		return errs.New(errs.ErrInvalidParams)
	}
	return nil
}
