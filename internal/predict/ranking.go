package predict

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/artinstitute/galleryroom/internal/models"
)

// rankingPrompt asks a vision model for a JSON ranking restricted to labels
func rankingPrompt(labels []string, topK int) string {
	var b strings.Builder
	b.WriteString("Classify the art style of this image. ")
	fmt.Fprintf(&b, "Return a JSON array of the %d most likely styles, ", topK)
	b.WriteString(`each as {"style": "<label>", "confidence": <0..1>}, most likely first. `)
	if len(labels) > 0 {
		b.WriteString("Only use these labels exactly as written: ")
		b.WriteString(strings.Join(labels, ", "))
		b.WriteString(".")
	}
	return b.String()
}

// parseRanking accepts a bare JSON array, one wrapped in a code fence, or an
// object carrying the array under "styles" (Ollama's json mode)
func parseRanking(text string, topK int) (*Prediction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	text = strings.TrimSpace(text)

	var ranked []models.RankedStyle
	if strings.HasPrefix(text, "{") {
		var wrapped struct {
			Styles []models.RankedStyle `json:"styles"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode style ranking: %w", err)
		}
		ranked = wrapped.Styles
	} else if err := json.Unmarshal([]byte(text), &ranked); err != nil {
		return nil, fmt.Errorf("failed to decode style ranking: %w", err)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	prediction := &Prediction{TopK: ranked}
	if len(ranked) > 0 {
		top := ranked[0]
		prediction.Predicted = &top
	}
	return prediction, nil
}
