package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/calendar-assistant/internal/llm"
	"github.com/capitalize-ai/calendar-assistant/internal/middleware"
	"github.com/capitalize-ai/calendar-assistant/internal/model"
	"github.com/capitalize-ai/calendar-assistant/internal/service"
	"github.com/capitalize-ai/calendar-assistant/pkg/logger"
)

// maxAudioBytes caps voice uploads at the Whisper API limit.
const maxAudioBytes = 25 << 20

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	chat        *service.ChatService
	transcriber llm.Transcriber
	logger      *logger.Logger
}

// NewChatHandler creates a new chat handler. transcriber may be nil, which
// disables voice input.
func NewChatHandler(chat *service.ChatService, transcriber llm.Transcriber, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:        chat,
		transcriber: transcriber,
		logger:      log,
	}
}

// Chat handles POST /chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.send(w, r, &req)
}

// Voice handles POST /chat/voice. The multipart field "audio" is transcribed
// and the transcript is handled as a chat message.
func (h *ChatHandler) Voice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx, h.logger)

	if h.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "voice input is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	transcript, err := h.transcriber.Transcribe(ctx, header.Filename, file)
	if err != nil {
		log.Warn("transcription failed", zap.String("filename", header.Filename), zap.Error(err))
		transcript = ""
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		writeError(w, http.StatusBadRequest, "Could not transcribe audio")
		return
	}
	log.Info("audio transcribed", zap.Int("chars", len(transcript)))

	req := model.ChatRequest{Message: transcript}
	if id := r.FormValue("conversation_id"); id != "" {
		req.ConversationID = &id
	}
	h.send(w, r, &req)
}

func (h *ChatHandler) send(w http.ResponseWriter, r *http.Request, req *model.ChatRequest) {
	ctx := r.Context()

	if req.ConversationID != nil && *req.ConversationID != "" {
		if err := middleware.ValidateUUID(*req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid conversation_id format")
			return
		}
	}

	resp, err := h.chat.Send(ctx, middleware.GetUserID(ctx), req)
	if err != nil {
		writeServiceError(ctx, w, h.logger, err, "Conversation", "process message")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
