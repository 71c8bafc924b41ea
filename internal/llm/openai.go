// Package llm generates question feedback and similar questions through an
// OpenAI-compatible chat-completion API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/satprep-labs/practice-session-service/internal/models"
)

// FeedbackRequest carries everything the model needs to explain one
// answered question.
type FeedbackRequest struct {
	Question      *models.Question
	UserAnswer    []string
	IsCorrect     *bool
	TopicName     string
	SessionType   string
}

// SimilarQuestionRequest asks for a new question on the same topic and at
// the same difficulty as the source question.
type SimilarQuestionRequest struct {
	Source    *models.Question
	TopicName string
}

// Generator produces AI content for practice sessions.
type Generator interface {
	GenerateFeedback(ctx context.Context, req FeedbackRequest) (*models.AIFeedbackContent, error)
	GenerateSimilarQuestion(ctx context.Context, req SimilarQuestionRequest) (*models.Question, error)
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

const defaultModel = "gpt-4o-mini"

// OpenAIGenerator implements Generator using the OpenAI SDK. BaseURL allows
// pointing at any OpenAI-compatible API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

const feedbackSystemPrompt = `You are an SAT tutor. Given a question, its correct answer and the student's answer, produce JSON with fields "explanation" (why the correct answer is right and, when the student was wrong, where their reasoning likely failed), "concept_review" (a short refresher on the underlying concept) and "tips" (an array of up to three short study tips). Respond with JSON only.`

func (g *OpenAIGenerator) GenerateFeedback(ctx context.Context, req FeedbackRequest) (*models.AIFeedbackContent, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: feedbackSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildFeedbackPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("feedback generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("feedback generation returned no choices")
	}

	var content models.AIFeedbackContent
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &content); err != nil {
		return nil, fmt.Errorf("failed to decode feedback content: %w", err)
	}
	if content.Explanation == "" {
		return nil, fmt.Errorf("feedback content missing explanation")
	}
	return &content, nil
}

const similarSystemPrompt = `You are an SAT item writer. Given a source question, write a NEW question testing the same concept at the same difficulty. Produce JSON with fields "stem", "question_type" (copy from the source), "answer_options" (array of {"id","label","content"} with labels A-D, only for multiple_choice), "correct_answer" (array of accepted labels or values) and "rationale". Respond with JSON only.`

// generatedQuestion is the wire shape the model is asked to produce.
type generatedQuestion struct {
	Stem          string                `json:"stem"`
	Type          models.QuestionType   `json:"question_type"`
	AnswerOptions []models.AnswerOption `json:"answer_options,omitempty"`
	CorrectAnswer []string              `json:"correct_answer"`
	Rationale     string                `json:"rationale,omitempty"`
}

func (g *OpenAIGenerator) GenerateSimilarQuestion(ctx context.Context, req SimilarQuestionRequest) (*models.Question, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: similarSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildSimilarPrompt(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("similar question generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("similar question generation returned no choices")
	}

	var gen generatedQuestion
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &gen); err != nil {
		return nil, fmt.Errorf("failed to decode generated question: %w", err)
	}
	if gen.Stem == "" || len(gen.CorrectAnswer) == 0 {
		return nil, fmt.Errorf("generated question is incomplete")
	}

	question := &models.Question{
		Stem:       gen.Stem,
		Type:       gen.Type,
		Difficulty: req.Source.Difficulty,
		TopicID:    req.Source.TopicID,
		IsActive:   true,
	}
	if question.Type == "" {
		question.Type = req.Source.Type
	}
	if gen.Rationale != "" {
		question.Rationale = &gen.Rationale
	}

	correct, err := json.Marshal(gen.CorrectAnswer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode correct answer: %w", err)
	}
	question.CorrectAnswer = correct

	if len(gen.AnswerOptions) > 0 {
		opts, err := json.Marshal(gen.AnswerOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode answer options: %w", err)
		}
		question.AnswerOptions = opts
	}

	return question, nil
}

func buildFeedbackPrompt(req FeedbackRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", req.TopicName)
	fmt.Fprintf(&b, "Question: %s\n", req.Question.Stem)
	if req.Question.Stimulus != nil {
		fmt.Fprintf(&b, "Stimulus: %s\n", *req.Question.Stimulus)
	}
	if opts, err := req.Question.Options(); err == nil && len(opts) > 0 {
		b.WriteString("Options:\n")
		for _, opt := range opts {
			fmt.Fprintf(&b, "  %s: %s\n", opt.Label, opt.Content)
		}
	}
	fmt.Fprintf(&b, "Correct answer: %s\n", strings.Join(req.Question.CorrectAnswers(), ", "))
	fmt.Fprintf(&b, "Student answer: %s\n", strings.Join(req.UserAnswer, ", "))
	if req.IsCorrect != nil {
		fmt.Fprintf(&b, "Student was correct: %t\n", *req.IsCorrect)
	}
	if req.Question.Rationale != nil {
		fmt.Fprintf(&b, "Reference rationale: %s\n", *req.Question.Rationale)
	}
	return b.String()
}

func buildSimilarPrompt(req SimilarQuestionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", req.TopicName)
	fmt.Fprintf(&b, "Difficulty: %s\n", req.Source.Difficulty)
	fmt.Fprintf(&b, "Source question: %s\n", req.Source.Stem)
	if opts, err := req.Source.Options(); err == nil && len(opts) > 0 {
		b.WriteString("Source options:\n")
		for _, opt := range opts {
			fmt.Fprintf(&b, "  %s: %s\n", opt.Label, opt.Content)
		}
	}
	fmt.Fprintf(&b, "Source correct answer: %s\n", strings.Join(req.Source.CorrectAnswers(), ", "))
	return b.String()
}
