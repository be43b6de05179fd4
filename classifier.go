package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClassifierModel = "claude-sonnet-4-5-20250929"

type classifiedItemResponse struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Features   []string `json:"features"`
	Objects    []struct {
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
	} `json:"objects"`
}

// ClassifyItem classifies an item description into the fixed category
// taxonomy and extracts visual features and detected object classes.
// Without an API key it degrades to the keyword heuristic so item intake
// keeps working offline.
func ClassifyItem(cfg Config, description string, tags []string) (*AIClassification, []DetectedObject, error) {
	if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
		c, objs := heuristicClassification(description, tags)
		return c, objs, nil
	}

	model := cfg.ClassifierModel
	if model == "" {
		model = defaultClassifierModel
	}

	systemPrompt := fmt.Sprintf(`You classify lost-and-found item reports.
Choose exactly one category from:
%s

Also:
- extract up to 8 short visual feature tags (color, material, brand, distinguishing marks)
- list the physical object classes you can infer from the description, each with a confidence between 0 and 1
- set confidence between 0 and 1 for the category choice.

Respond with JSON only (no markdown):
{"category": "electronics", "confidence": 0.92, "features": ["black", "leather case"], "objects": [{"class": "laptop", "confidence": 0.9}]}`,
		"- "+strings.Join(AppCategories, "\n- "))

	userPrompt := "Description: " + strings.TrimSpace(description)
	if len(tags) > 0 {
		userPrompt += "\nTags: " + strings.Join(tags, ", ")
	}

	log.Printf("classify model=%s desc_len=%d", model, len(description))
	responseText, err := callClassifier(cfg.AnthropicAPIKey, model, systemPrompt, userPrompt)
	if err != nil {
		// Intake must not depend on the API being up.
		log.Printf("classify error (falling back to heuristic): %v", err)
		c, objs := heuristicClassification(description, tags)
		return c, objs, nil
	}

	parsed, err := parseClassifierResponse(responseText)
	if err != nil {
		log.Printf("classify parse error (falling back to heuristic): %v", err)
		c, objs := heuristicClassification(description, tags)
		return c, objs, nil
	}
	return parsed.classification(), parsed.detectedObjects(), nil
}

func (r classifiedItemResponse) classification() *AIClassification {
	category := strings.ToLower(strings.TrimSpace(r.Category))
	if !validCategory(category) {
		category = "accessories"
	}
	features := make([]string, 0, len(r.Features))
	for _, f := range r.Features {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			features = append(features, f)
		}
	}
	return &AIClassification{
		Category:   category,
		Confidence: clamp01(r.Confidence),
		Features:   features,
	}
}

func (r classifiedItemResponse) detectedObjects() []DetectedObject {
	var out []DetectedObject
	for _, o := range r.Objects {
		cls := strings.ToLower(strings.TrimSpace(o.Class))
		if cls == "" {
			continue
		}
		out = append(out, DetectedObject{Class: cls, Confidence: clamp01(o.Confidence)})
	}
	return out
}

func validCategory(category string) bool {
	for _, c := range AppCategories {
		if c == category {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func parseClassifierResponse(responseText string) (classifiedItemResponse, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var parsed classifiedItemResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err != nil {
		return parsed, fmt.Errorf("parsing classifier response: %w (response: %s)", err, responseText)
	}
	return parsed, nil
}

func callClassifier(apiKey, model, systemPrompt, userPrompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

// categoryKeywords backs the offline heuristic classifier.
var categoryKeywords = map[string][]string{
	"electronics":     {"phone", "laptop", "tablet", "charger", "headphone", "earbud", "camera", "airpods", "macbook", "iphone"},
	"clothing":        {"jacket", "coat", "hoodie", "shirt", "sweater", "scarf", "hat", "glove", "pants"},
	"accessories":     {"wallet", "watch", "glasses", "sunglasses", "umbrella", "belt"},
	"bags":            {"backpack", "bag", "purse", "suitcase", "duffel", "tote"},
	"books":           {"book", "notebook", "textbook", "journal", "novel"},
	"keys":            {"key", "keys", "keychain", "keyfob", "fob"},
	"jewelry":         {"ring", "necklace", "bracelet", "earring", "pendant"},
	"sports_equipment": {"ball", "racket", "helmet", "skateboard", "cleats", "yoga"},
	"documents":       {"passport", "license", "card", "document", "certificate", "id"},
	"toys":            {"toy", "plush", "doll", "lego", "puzzle"},
	"tools":           {"tool", "screwdriver", "wrench", "hammer", "drill"},
	"furniture":       {"chair", "desk", "lamp", "table", "shelf"},
}

// heuristicClassification is the keyword fallback used when the API is
// unconfigured or unreachable. Its confidence is kept low so downstream
// scoring treats it as weak evidence.
func heuristicClassification(description string, tags []string) (*AIClassification, []DetectedObject) {
	text := strings.ToLower(description + " " + strings.Join(tags, " "))
	words := strings.Fields(text)

	bestCategory := "accessories"
	bestHits := 0
	var bestMatches []string
	for _, category := range AppCategories {
		hits := 0
		var matched []string
		for _, kw := range categoryKeywords[category] {
			for _, w := range words {
				if strings.Trim(w, ".,!?;:") == kw {
					hits++
					matched = append(matched, kw)
					break
				}
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestCategory = category
			bestMatches = matched
		}
	}

	confidence := 0.3
	if bestHits > 0 {
		confidence = math.Min(0.7, 0.4+0.1*float64(bestHits))
	}

	var objects []DetectedObject
	for _, kw := range bestMatches {
		objects = append(objects, DetectedObject{Class: kw, Confidence: confidence})
	}

	features := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			features = append(features, t)
		}
	}

	return &AIClassification{
		Category:   bestCategory,
		Confidence: confidence,
		Features:   features,
	}, objects
}

// TextEmbedding hashes a description into a fixed-dimension vector via
// feature hashing over its significant words, L2 normalized. It stands in
// for a real image embedding: deterministic, so identical descriptions are
// identical vectors and related descriptions land near each other.
func TextEmbedding(text string, dim int) []float64 {
	if dim < 1 {
		return nil
	}
	vec := make([]float64, dim)
	words := significantWords(text)
	if len(words) == 0 {
		return vec
	}
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(dim))
		sign := 1.0
		if (sum>>32)&1 == 1 {
			sign = -1.0
		}
		vec[idx] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
