package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultNERModel is the Gemini model used when none is configured.
const DefaultNERModel = "gemini-1.5-pro"

// --- NER Model Prompts ---
const NERSystemPrompt = "You are a named-entity recognition engine. You identify people, organizations, locations, dates and other named entities in text and report them exactly as written. You must output your response as a valid JSON array."
const NERUserPrompt = `Identify every named entity in the text that follows these instructions.

Follow these rules precisely:
1.  Report each occurrence separately, in the order it appears in the text. If the same entity appears three times, report it three times.
2.  Create a JSON object for each occurrence with exactly two keys:
    - "text": the entity exactly as it appears in the text, character for character. Do not correct spelling, expand abbreviations or change case.
    - "label": one of PERSON, NORP, FAC, ORG, GPE, LOC, PRODUCT, EVENT, WORK_OF_ART, LAW, LANGUAGE, DATE, TIME, PERCENT, MONEY, QUANTITY, ORDINAL, CARDINAL.
3.  The final output MUST be a single, valid JSON array of these objects. Return an empty array if there are no entities. Do not include any text before or after the JSON array.

Example output format:
[
  {"text": "Jane Doe", "label": "PERSON"},
  {"text": "Acme Corp", "label": "ORG"},
  {"text": "2020", "label": "DATE"}
]

Text:`

// VertexClient holds the pre-configured generative model used for entity recognition.
type VertexClient struct {
	NERModel   *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexClient creates a new client holding the NER model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultNERModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	nerModel := baseClient.GenerativeModel(modelName)
	nerModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(NERSystemPrompt)},
	}
	nerModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. Entities are parsed, never shown raw.
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"text":  {Type: genai.TypeString},
					"label": {Type: genai.TypeString},
				},
				Required: []string{"text", "label"},
			},
		},
		Temperature: genai.Ptr[float32](0.0), // Same text in, same entities out.
	}
	nerModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		NERModel:   nerModel,
		baseClient: baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
