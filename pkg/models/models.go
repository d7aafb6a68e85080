package models

import "time"

// GeneratedFile is one source file produced by a generation run.
type GeneratedFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
	FileType string `json:"fileType"`
}

// Usage captures token consumption for one provider call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add returns the element-wise sum of two usage records.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// GenerationMetadata summarizes the provider work behind a generation result.
type GenerationMetadata struct {
	Template     string    `json:"template"`
	Framework    string    `json:"framework,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	TokensUsed   Usage     `json:"tokensUsed"`
	Cost         float64   `json:"cost"`
	ProcessingMs int64     `json:"processingMs"`
	GeneratedAt  time.Time `json:"generatedAt"`
}
