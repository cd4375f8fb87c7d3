package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/ObiAU/feeddigest/internal/models"
)

const systemPrompt = "You are a senior analyst who writes long, dense and well structured briefings. " +
	"Extract every piece of valuable information from the source without adding your own interpretation. " +
	"Prioritise concrete data, actionable conclusions and deep insights. Drop filler and obvious remarks. " +
	"Format with emojis, Unicode bullets, ━━━ separators and only these HTML tags: " +
	"<b>, <strong>, <i>, <em>, <u>, <ins>, <s>, <strike>, <del>, <a href=\"...\">, <tg-spoiler>. " +
	"Never use <code>, <pre>, <!doctype>, <html>, <head>, <body>, <div>, <span> or <p>."

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Language    string
	MaxRetries  int
}

type Summarizer struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	language    string
}

func NewSummarizer(cfg Config) *Summarizer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Summarizer{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		language:    cfg.Language,
	}
}

// Summarize asks the model for a briefing of text. The reply is markup
// that still has to go through the normalizer before delivery.
func (s *Summarizer) Summarize(ctx context.Context, item models.Item, text string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(s.buildPrompt(item, text)),
		},
		Temperature: openai.Float(s.temperature),
	}
	if s.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(s.maxTokens))
	}

	response, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: openai request failed: %v", models.ErrGenerationFailed, err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from openai", models.ErrGenerationFailed)
	}

	summary := strings.TrimSpace(response.Choices[0].Message.Content)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary from openai", models.ErrGenerationFailed)
	}
	return summary, nil
}

func (s *Summarizer) buildPrompt(item models.Item, text string) string {
	var sb strings.Builder
	sb.WriteString("Analyse the following content and write a HIGH VALUE EXECUTIVE SUMMARY.\n\n")
	sb.WriteString(fmt.Sprintf("📹 TITLE: %s\n", item.Title))
	sb.WriteString(fmt.Sprintf("📢 SOURCE: %s\n", item.Source))
	sb.WriteString(fmt.Sprintf("📅 DATE: %s\n", item.Published))
	if item.HasDescription() {
		sb.WriteString(fmt.Sprintf("📝 DESCRIPTION: %s\n", item.Description))
	}
	sb.WriteString("\nCONTENT:\n\"\"\"")
	sb.WriteString(text)
	sb.WriteString("\"\"\"\n\n")

	sb.WriteString("Keep only what matters to an informed investor: ideas, theses, implications, risks, market signals, new data and practical consequences. ")
	sb.WriteString("Ignore filler, generic phrases, introductions, repetition and jokes.\n\n")

	sb.WriteString("Use exactly these sections, separated by ━━━━━━━━━━━━━━━━━━━━━━━━━━━━:\n")
	sb.WriteString("🎯 <b>CORE IDEA</b>: 1-3 sentences with the main thesis.\n")
	sb.WriteString("💡 <b>GOLD NUGGETS</b>: 6-10 bullets \"▪️ <b>[concept]:</b> concrete finding\".\n")
	sb.WriteString("📊 <b>KEY DATA</b>: 5-8 bullets \"• <b>[metric]:</b> exact value and why it matters\".\n")
	sb.WriteString("📈 <b>IMPLICATIONS</b>: 4-6 bullets \"🔸 <b>[area]:</b> cause → effect\".\n")
	sb.WriteString("⚠️ <b>RISKS</b>: 3-5 bullets \"❗ <b>[risk]:</b> description and potential impact\".\n")
	sb.WriteString("🔑 <b>CONCLUSION</b>: <i>2-4 sentences with the key takeaways</i>.\n")
	sb.WriteString("🛡️ <b>STRATEGIES MENTIONED</b>: only strategies the author states LITERALLY (instrument, asset, direction, horizon, context, signals). ")
	sb.WriteString("If there are none, say so in italics. Never invent one.\n\n")

	sb.WriteString("Rules:\n")
	sb.WriteString("- Long and dense, at least 2500 characters, every line must add value.\n")
	sb.WriteString("- <b>bold</b> for section titles, key concepts and figures; <i>italics</i> for conclusions; <u>underline</u> only for critical warnings.\n")
	sb.WriteString("- Only use the tags b, strong, i, em, u, ins, s, strike, del, a and tg-spoiler.\n")
	sb.WriteString(fmt.Sprintf("- Answer in %s.\n", s.language))

	return sb.String()
}
