// Package llm provides LLM-based paper summarization for the citation
// graph service.
//
// It defines the Summarizer abstraction and the prompt engineering to turn
// a paper's metadata and abstract into a concise scholarly summary using
// large language models (OpenAI, Anthropic).
//
// Example usage:
//
//	summarizer, err := llm.NewSummarizer(cfg)
//	req := llm.SummaryRequest{
//		Title:    "Deep residual learning for image recognition",
//		Abstract: "Deeper neural networks are more difficult to train...",
//	}
//	result, err := summarizer.Summarize(ctx, req)
package llm

import (
	"context"
	"fmt"
	"strings"
)

// SummaryRequest contains the paper material to summarize.
type SummaryRequest struct {
	// Title is the paper title.
	Title string

	// Abstract is the paper abstract, the primary summarization input.
	Abstract string

	// Authors is a display string of the paper's authors (optional).
	Authors string

	// CustomPrompt replaces the default user instructions when set. The
	// paper material is still appended after it.
	CustomPrompt string

	// MaxWords bounds the requested summary length (0 means default).
	MaxWords int
}

// SummaryResult contains the generated summary and call metadata.
type SummaryResult struct {
	// Summary is the generated text.
	Summary string

	// Model is the LLM model used.
	Model string

	// InputTokens is the number of input tokens used.
	InputTokens int

	// OutputTokens is the number of output tokens used.
	OutputTokens int
}

// Summarizer defines the interface for LLM-based paper summarization.
//
// Implementations handle provider-specific API calls, response parsing and
// error handling while conforming to this unified interface.
type Summarizer interface {
	// Summarize generates a summary of the given paper material.
	// The context should be used for cancellation and deadline propagation.
	Summarize(ctx context.Context, req SummaryRequest) (*SummaryResult, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}

// defaultSummaryWords is the requested summary length when the caller
// does not specify one.
const defaultSummaryWords = 200

// BuildSummaryPrompt builds the system and user prompts for summarization.
func BuildSummaryPrompt(req SummaryRequest) (systemPrompt, userPrompt string) {
	return buildSystemPrompt(), buildUserPrompt(req)
}

// buildSystemPrompt constructs the system-level instructions for the LLM.
func buildSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You are an expert academic assistant that writes concise, ")
	sb.WriteString("faithful summaries of research papers for a personal paper library.\n\n")

	sb.WriteString("Guidelines:\n")
	sb.WriteString("1. Summarize only what the provided material supports. Never invent findings.\n")
	sb.WriteString("2. Lead with the problem the paper addresses and its main contribution.\n")
	sb.WriteString("3. Mention the method and the key result, with numbers when given.\n")
	sb.WriteString("4. Write in plain prose. No headings, no bullet points, no preamble.\n")

	return sb.String()
}

// buildUserPrompt constructs the user-level prompt with the paper material.
func buildUserPrompt(req SummaryRequest) string {
	var sb strings.Builder

	maxWords := req.MaxWords
	if maxWords <= 0 {
		maxWords = defaultSummaryWords
	}

	if req.CustomPrompt != "" {
		sb.WriteString(req.CustomPrompt)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("Summarize the following paper in at most %d words.\n\n", maxWords))
	}

	sb.WriteString("Paper material:\n---\n")
	if req.Title != "" {
		sb.WriteString("Title: ")
		sb.WriteString(req.Title)
		sb.WriteString("\n")
	}
	if req.Authors != "" {
		sb.WriteString("Authors: ")
		sb.WriteString(req.Authors)
		sb.WriteString("\n")
	}
	if req.Abstract != "" {
		sb.WriteString("Abstract: ")
		sb.WriteString(req.Abstract)
		sb.WriteString("\n")
	}
	sb.WriteString("---")

	return sb.String()
}
