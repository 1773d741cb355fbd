// Package agent talks to the local LLM over its /api/generate
// endpoint, for chat answers and per-video summaries.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"vidsearch/types"
)

type GenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

type Agent struct {
	url    string
	model  string
	client *http.Client
}

func New(cfg types.Config) *Agent {
	return &Agent{
		url:   cfg.LLMURL,
		model: cfg.LLMModel,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateAnswer asks the model to answer a question from the given
// transcript context only.
func (a *Agent) GenerateAnswer(ctx context.Context, transcript, question string) (string, error) {
	start := time.Now()
	defer func() {
		log.Printf("[AGENT] answer took %v", time.Since(start))
	}()

	prompt := fmt.Sprintf(`Answer the question based on the given context. If the context is empty or holds no information for this request, answer 'No information for this request'. Nothing else.
Context:
%s
Question:
%s
Answer:`, transcript, question)

	system := `You are an assistant answering questions about video transcripts.
Answer clearly and to the point, without adding any additional information.
Don't add introductions like 'Of course!' or 'Here's the answer:'`

	return a.generate(ctx, system, prompt)
}

// Summarize produces a short summary of a video transcript.
func (a *Agent) Summarize(ctx context.Context, transcript string) (string, error) {
	prompt := fmt.Sprintf(`Summarize the following video transcript in a few sentences.
Transcript:
%s
Summary:`, transcript)

	return a.generate(ctx, "You summarize video transcripts. Be concise and factual.", prompt)
}

func (a *Agent) generate(ctx context.Context, system, prompt string) (string, error) {
	reqBody, err := json.Marshal(GenerateRequest{
		Model:  a.model,
		System: system,
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}

	if count, err := CountTokens(reqBody); err == nil {
		log.Printf("[AGENT] prompt size: %d tokens, %d bytes", count, len(reqBody))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling LLM: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response, nil
	}

	// streaming response: concatenate the chunks
	var output string
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk GenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output += chunk.Response
	}
	return output, nil
}

func CountTokens(data []byte) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(string(data), nil, nil)), nil
}
