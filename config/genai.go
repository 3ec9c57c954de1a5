package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"google.golang.org/genai"
)

var (
	genaiClient   *genai.Client
	genaiClientMu sync.Mutex
)

// GeminiModel is the model used for company extraction calls.
func GeminiModel() string {
	if v := strings.TrimSpace(os.Getenv("GEMINI_MODEL")); v != "" {
		return v
	}
	return "gemini-2.0-flash"
}

// GetGenAIClient returns a shared Gemini API client keyed by GEMINI_API_KEY.
func GetGenAIClient(ctx context.Context) (*genai.Client, error) {
	genaiClientMu.Lock()
	defer genaiClientMu.Unlock()
	if genaiClient != nil {
		return genaiClient, nil
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, err
	}
	genaiClient = client
	return genaiClient, nil
}
