// Package execute proxies client run requests to an external code-execution
// service. The room engine never calls it and does not depend on its
// availability.
package execute

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

var executeBaseURL string

const defaultBaseURL = "https://emkc.org/api/v2/piston"

func Init() {
	executeBaseURL = os.Getenv("EXECUTE_API_URL")
	if executeBaseURL == "" {
		executeBaseURL = defaultBaseURL
	}
}

type (
	RunRequest struct {
		Language string `json:"language"`
		Code     string `json:"code"`
	}

	RunResponse struct {
		Output string `json:"output"`
	}

	pistonFile struct {
		Content string `json:"content"`
	}

	pistonRequest struct {
		Language string       `json:"language"`
		Version  string       `json:"version"`
		Files    []pistonFile `json:"files"`
	}

	pistonResponse struct {
		Run struct {
			Stdout string `json:"stdout"`
			Stderr string `json:"stderr"`
			Output string `json:"output"`
		} `json:"run"`
		Message string `json:"message"`
	}
)

// HandleRun executes a code snippet through the configured Piston-compatible
// service and returns its combined output.
func HandleRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Code == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Code is required"})
			return
		}

		body, err := json.Marshal(pistonRequest{
			Language: req.Language,
			Version:  "*",
			Files:    []pistonFile{{Content: req.Code}},
		})
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to build execution request"})
			return
		}

		proxyReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
			executeBaseURL+"/execute", bytes.NewReader(body))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create execution request"})
			return
		}
		proxyReq.Header.Set("Content-Type", "application/json")

		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Do(proxyReq)
		if err != nil {
			logrus.WithError(err).Error("Failed to reach execution service")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Execution service unavailable"})
			return
		}
		defer resp.Body.Close()

		var result pistonResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Invalid response from execution service"})
			return
		}

		if resp.StatusCode != http.StatusOK {
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": result.Message})
			return
		}

		output := result.Run.Output
		if output == "" {
			output = result.Run.Stdout + result.Run.Stderr
		}
		render.JSON(w, r, RunResponse{Output: output})
	}
}
