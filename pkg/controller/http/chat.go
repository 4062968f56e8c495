package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/event"
	"github.com/secmon-lab/examchat/pkg/domain/model/chat"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/domain/types"
	"github.com/secmon-lab/examchat/pkg/usecase"
	"github.com/secmon-lab/examchat/pkg/utils/safe"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		handleError(w, r, goerr.Wrap(err, "failed to marshal response", goerr.T(errs.TagInternal)))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}

func decodeBody(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return goerr.Wrap(err, "failed to decode request body", goerr.T(errs.TagValidation))
	}
	return nil
}

func healthHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := uc.Health(r.Context())
		status := http.StatusOK
		if !health.Healthy() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, r, status, health)
	}
}

func searchHistoryHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := uc.SearchHistory(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		if history == nil {
			history = []string{}
		}
		writeJSON(w, r, http.StatusOK, history)
	}
}

func clearSearchHistoryHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := uc.ClearSearchHistory(r.Context()); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func sessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, tabFrom(r.Context()).Store().Snapshot())
	}
}

func listChatsHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chats, err := uc.ListChats(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		if chats == nil {
			chats = []*usecase.ChatSummary{}
		}
		writeJSON(w, r, http.StatusOK, chats)
	}
}

type newChatResponse struct {
	ID types.SessionID `json:"id"`
}

func newChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tab := tabFrom(ctx)

		id, err := tab.Store().StartNewSession(ctx)
		if err != nil {
			handleError(w, r, err)
			return
		}
		// Other surfaces of the tab follow the new session.
		tab.Bus().Publish(ctx, &event.NewChat{ChatID: id})
		if !id.IsGuest() {
			tab.Bus().Publish(ctx, &event.RefreshChatList{})
		}

		writeJSON(w, r, http.StatusCreated, newChatResponse{ID: id})
	}
}

type loadChatRequest struct {
	Title string `json:"title"`
}

func loadChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tab := tabFrom(ctx)

		var req loadChatRequest
		if err := decodeBody(r, &req); err != nil {
			handleError(w, r, err)
			return
		}

		id := types.SessionID(chi.URLParam(r, "chatID"))
		if err := tab.Store().LoadSession(ctx, id, req.Title); err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, tab.Store().Snapshot())
	}
}

func deleteChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := types.SessionID(chi.URLParam(r, "chatID"))
		if err := tabFrom(ctx).Store().DeleteSession(ctx, id); err != nil {
			handleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type questionRequest struct {
	Question string `json:"question"`
	Subject  string `json:"subject"`
}

type questionResponse struct {
	Answer  *chat.Message    `json:"answer"`
	Session usecase.Snapshot `json:"session"`
}

func questionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		store := tabFrom(ctx).Store()

		var req questionRequest
		if err := decodeBody(r, &req); err != nil {
			handleError(w, r, err)
			return
		}

		answer, err := store.SubmitQuestion(ctx, req.Question, req.Subject)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, questionResponse{
			Answer:  answer,
			Session: store.Snapshot(),
		})
	}
}
