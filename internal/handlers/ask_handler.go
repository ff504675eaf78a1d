package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/grvbrk/vidmetrics_server/internal/nlq"
	"github.com/grvbrk/vidmetrics_server/internal/store"
	"github.com/grvbrk/vidmetrics_server/internal/utils"
)

const maxQuestionLength = 2000

// Asker answers a natural-language question with a single outcome.
// Satisfied by nlq.Pipeline.
type Asker interface {
	Ask(ctx context.Context, question string) nlq.Outcome
}

type AskHandler struct {
	Pipeline Asker
	Cache    *store.RedisAnswerCache
	Logger   *log.Logger
}

func NewAskHandler(pipeline Asker, cache *store.RedisAnswerCache, logger *log.Logger) *AskHandler {
	return &AskHandler{
		Pipeline: pipeline,
		Cache:    cache,
		Logger:   logger,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

// HandlerAskQuestion answers one question per request. Pipeline failures are
// logged in full and collapse to a generic message; the user never sees
// generated SQL or database internals.
func (ah *AskHandler) HandlerAskQuestion(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := utils.ReadJSON(w, r, &req); err != nil {
		ah.Logger.Println("Error reading ask request body:", err)
		utils.WriteJSON(w, http.StatusBadRequest, utils.Envelope{"message": "Bad Request"})
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		ah.Logger.Println("Error: question is missing")
		utils.WriteJSON(w, http.StatusBadRequest, utils.Envelope{"message": "Bad Request"})
		return
	}
	if len(question) > maxQuestionLength {
		ah.Logger.Printf("Error: question too long (%d chars)", len(question))
		utils.WriteJSON(w, http.StatusBadRequest, utils.Envelope{"message": "Bad Request"})
		return
	}

	ah.Logger.Printf("User Query: %s", question)

	if ah.Cache != nil {
		answer, err := ah.Cache.Get(r.Context(), question)
		if err != nil {
			ah.Logger.Println("Error reading answer cache:", err)
		} else if answer != "" {
			utils.WriteJSON(w, http.StatusOK, utils.Envelope{"data": map[string]string{"answer": answer}})
			return
		}
	}

	outcome := ah.Pipeline.Ask(r.Context(), question)

	if outcome.Kind == nlq.OutcomeFailure {
		ah.Logger.Printf("Error processing question %q: %v", question, outcome.Failure)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.Envelope{"message": outcome.Message()})
		return
	}

	answer := outcome.Message()

	if ah.Cache != nil && outcome.Kind == nlq.OutcomeScalar {
		if err := ah.Cache.Set(r.Context(), question, answer); err != nil {
			ah.Logger.Println("Error writing answer cache:", err)
		}
	}

	utils.WriteJSON(w, http.StatusOK, utils.Envelope{"data": map[string]string{"answer": answer}})
}
