// Package assistant proxies room chat questions to an OpenAI-compatible
// completion API. Request/response only, outside the room protocol.
package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

var (
	apiKey  string
	baseURL string
	model   string
)

func Init() {
	apiKey = os.Getenv("OPENAI_API_KEY")
	baseURL = os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model = os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	if apiKey == "" {
		logrus.Warn("OPENAI_API_KEY not set, assistant endpoint will not work")
	}
}

type (
	ChatRequest struct {
		Message  string `json:"message"`
		Code     string `json:"code"`
		Language string `json:"language"`
		RoomID   string `json:"roomId"`
		Username string `json:"username"`
	}

	ChatResponse struct {
		Reply string `json:"reply"`
	}

	completionMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	completionRequest struct {
		Model    string              `json:"model"`
		Messages []completionMessage `json:"messages"`
	}

	completionResponse struct {
		Choices []struct {
			Message completionMessage `json:"message"`
		} `json:"choices"`
	}
)

const systemPrompt = "You are a coding assistant inside a collaborative editor. " +
	"Answer questions about the user's code concisely."

// HandleChat answers a single assistant question with the user's current file
// as context.
func HandleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apiKey == "" {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Assistant is not configured on the server"})
			return
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Message == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Message is required"})
			return
		}

		userContent := req.Message
		if req.Code != "" {
			userContent = fmt.Sprintf("Current %s file:\n```\n%s\n```\n\n%s", req.Language, req.Code, req.Message)
		}

		body, err := json.Marshal(completionRequest{
			Model: model,
			Messages: []completionMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: userContent},
			},
		})
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to build assistant request"})
			return
		}

		proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
			baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create assistant request"})
			return
		}
		proxyReq.Header.Set("Authorization", "Bearer "+apiKey)
		proxyReq.Header.Set("Content-Type", "application/json")

		client := &http.Client{Timeout: 2 * time.Minute}
		resp, err := client.Do(proxyReq)
		if err != nil {
			logrus.WithError(err).Error("Failed to reach assistant service")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Assistant service unavailable"})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			logrus.WithField("status", resp.StatusCode).Warn("Assistant service returned an error")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Assistant service returned an error"})
			return
		}

		var result completionResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || len(result.Choices) == 0 {
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Invalid response from assistant service"})
			return
		}

		render.JSON(w, r, ChatResponse{Reply: result.Choices[0].Message.Content})
	}
}
