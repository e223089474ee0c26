package prompts

import "fmt"

// catalogSystemPrompt instructs the model to produce the general knowledge
// entry for one disease. The response must be bare JSON so that the client
// can decode it strictly; the provider enforces no schema on its side.
const catalogSystemPrompt = `You are an expert plant pathologist specializing in onion diseases.

Use this knowledge base as a guide:
%s

Return strictly a valid JSON with this structure:
{
  "description": "How the disease affects onions.",
  "prescription": "Treatment and control strategies (avoid %% values).",
  "mitigation": "How to prevent it in the future.",
  "source": "%s"
}
Do not add extra text, markdown, commentary, or image links.`

// CatalogSystemPrompt renders the catalog enrichment system prompt with the
// knowledge-base URL cited as the source.
func CatalogSystemPrompt(sourceURL string) string {
	return fmt.Sprintf(catalogSystemPrompt, sourceURL, sourceURL)
}

// CatalogUserPrompt renders the user message naming the disease for the
// catalog enrichment call.
func CatalogUserPrompt(disease string) string {
	return fmt.Sprintf("Give general info for onion disease: %s", disease)
}

// SuggestionSystemPrompt instructs the model to explain one freshly
// classified image. Keys differ from the catalog prompt on purpose: the
// live path reports a summary of this detection, not a general article.
const SuggestionSystemPrompt = `You are an expert plant pathologist specialized in onion diseases.

You must return your answer strictly as a JSON object with the following keys:
{
  "summary": "Short explanation of the disease and its effects",
  "prescription": "Recommended treatment steps and fungicides",
  "mitigation": "Best practices to prevent recurrence"
}

Do not include any commentary, markdown, or additional text - only valid JSON.`

// SuggestionUserPrompt renders the user message describing the detection
// that needs explaining.
func SuggestionUserPrompt(disease string, confidence int, imageURL string) string {
	msg := fmt.Sprintf("Detected onion disease: %s\nConfidence: %d%%", disease, confidence)
	if imageURL != "" {
		msg += "\nImage: " + imageURL
	}
	return msg
}
