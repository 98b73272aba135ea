package httphandler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"messaging-service/internal/domain"
	"messaging-service/internal/usecase"
	"messaging-service/pkg/middleware"
	"messaging-service/pkg/response"
)

type MessageHandler struct {
	uc *usecase.MessageUsecase
}

func NewMessageHandler(uc *usecase.MessageUsecase) *MessageHandler {
	return &MessageHandler{uc: uc}
}

func actorFrom(r *http.Request) usecase.Actor {
	return usecase.Actor{
		UserID:    middleware.UserID(r.Context()),
		DeviceID:  middleware.DeviceID(r.Context()),
		SessionID: middleware.SessionID(r.Context()),
	}
}

// accessFromQuery rebuilds the access context from query parameters for
// GET endpoints; mutating endpoints carry it in the JSON body.
func accessFromQuery(r *http.Request) domain.AccessContext {
	q := r.URL.Query()
	return domain.AccessContext{
		Kind:             domain.AccessKind(q.Get("kind")),
		ChannelID:        q.Get("channelId"),
		CommunityID:      q.Get("communityId"),
		CallID:           q.Get("callId"),
		ChatID:           q.Get("chatId"),
		ArticleID:        q.Get("articleId"),
		OwnerCommunityID: q.Get("ownerCommunityId"),
		OwnerUserID:      q.Get("ownerUserId"),
	}
}

type createMessageRequest struct {
	Access  domain.AccessContext `json:"access"`
	Message domain.Message       `json:"message"`
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	created, err := h.uc.Create(r.Context(), actorFrom(r), req.Access, &req.Message)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, created)
}

type editMessageRequest struct {
	Access      domain.AccessContext `json:"access"`
	Body        []domain.Span        `json:"body"`
	Attachments []domain.Attachment  `json:"attachments"`
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	updated, err := h.uc.Edit(r.Context(), actorFrom(r), req.Access, chi.URLParam(r, "id"), req.Body, req.Attachments)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, updated)
}

type accessRequest struct {
	Access domain.AccessContext `json:"access"`
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	res, err := h.uc.Delete(r.Context(), actorFrom(r), req.Access, chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *MessageHandler) DeleteAllByCreator(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	creatorID := r.URL.Query().Get("creatorId")
	if creatorID == "" {
		creatorID = actorFrom(r).UserID
	}

	res, err := h.uc.DeleteAllByCreator(r.Context(), actorFrom(r), req.Access, creatorID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *MessageHandler) SetReaction(w http.ResponseWriter, r *http.Request) {
	h.reaction(w, r, h.uc.SetReaction)
}

func (h *MessageHandler) UnsetReaction(w http.ResponseWriter, r *http.Request) {
	h.reaction(w, r, h.uc.UnsetReaction)
}

func (h *MessageHandler) reaction(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, actor usecase.Actor, a domain.AccessContext, messageID, symbol string) (map[string]int, error)) {

	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid input")
		return
	}

	reactions, err := op(r.Context(), actorFrom(r), req.Access, chi.URLParam(r, "id"), chi.URLParam(r, "symbol"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	if reactions == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"reactions": reactions})
}

func (h *MessageHandler) LoadRange(w http.ResponseWriter, r *http.Request) {
	a := accessFromQuery(r)

	before := time.Now()
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "invalid before timestamp")
			return
		}
		before = t
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.uc.LoadRange(r.Context(), actorFrom(r), a, before, limit)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) LoadByIDs(w http.ResponseWriter, r *http.Request) {
	a := accessFromQuery(r)

	ids := strings.Split(r.URL.Query().Get("ids"), ",")
	messages, err := h.uc.LoadByIDs(r.Context(), actorFrom(r), a, ids)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) LoadUpdatesSince(w http.ResponseWriter, r *http.Request) {
	a := accessFromQuery(r)

	since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid since timestamp")
		return
	}

	messages, err := h.uc.LoadUpdatesSince(r.Context(), actorFrom(r), a, since)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, messages)
}
