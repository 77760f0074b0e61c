package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	comprehendtypes "github.com/aws/aws-sdk-go-v2/service/comprehend/types"

	"github.com/bencyrus/safeupload/shared/logger"
)

// ComprehendAPI is the subset of *comprehend.Client used for text analysis.
type ComprehendAPI interface {
	DetectPiiEntities(ctx context.Context, in *comprehend.DetectPiiEntitiesInput, opts ...func(*comprehend.Options)) (*comprehend.DetectPiiEntitiesOutput, error)
	DetectSentiment(ctx context.Context, in *comprehend.DetectSentimentInput, opts ...func(*comprehend.Options)) (*comprehend.DetectSentimentOutput, error)
	DetectToxicContent(ctx context.Context, in *comprehend.DetectToxicContentInput, opts ...func(*comprehend.Options)) (*comprehend.DetectToxicContentOutput, error)
}

// Comprehend implements TextAnalyzer with Amazon Comprehend.
type Comprehend struct {
	client ComprehendAPI
}

func NewComprehend(client ComprehendAPI) *Comprehend {
	return &Comprehend{client: client}
}

// Analyze runs PII and sentiment detection, then toxicity detection. Toxicity
// is not offered in every region, so its failure is logged and reported
// through ToxicityAvailable instead of failing the analysis.
func (c *Comprehend) Analyze(ctx context.Context, text, language string) (TextAnalysis, error) {
	lang := comprehendtypes.LanguageCode(comprehendLanguage(language))

	pii, err := c.client.DetectPiiEntities(ctx, &comprehend.DetectPiiEntitiesInput{
		Text:         aws.String(text),
		LanguageCode: lang,
	})
	if err != nil {
		return TextAnalysis{}, fmt.Errorf("detect pii entities: %w", err)
	}

	sentiment, err := c.client.DetectSentiment(ctx, &comprehend.DetectSentimentInput{
		Text:         aws.String(text),
		LanguageCode: lang,
	})
	if err != nil {
		return TextAnalysis{}, fmt.Errorf("detect sentiment: %w", err)
	}

	out := TextAnalysis{
		HasPII:    len(pii.Entities) > 0,
		Sentiment: Sentiment(sentiment.Sentiment),
	}
	if out.Sentiment == "" {
		out.Sentiment = SentimentNeutral
	}

	toxic, err := c.client.DetectToxicContent(ctx, &comprehend.DetectToxicContentInput{
		TextSegments: []comprehendtypes.TextSegment{{Text: aws.String(text)}},
		LanguageCode: lang,
	})
	if err != nil {
		logger.WarnErr(ctx, "toxicity detection unavailable, skipping", err)
		return out, nil
	}
	out.ToxicityAvailable = true
	if len(toxic.ResultList) > 0 {
		for _, l := range toxic.ResultList[0].Labels {
			out.ToxicLabels = append(out.ToxicLabels, ToxicLabel{
				Name:  string(l.Name),
				Score: float64(aws.ToFloat32(l.Score)),
			})
		}
	}
	return out, nil
}

// comprehendLanguage reduces a BCP-47 tag such as en-US to the primary
// language subtag Comprehend expects.
func comprehendLanguage(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return "en"
	}
	if i := strings.IndexByte(language, '-'); i > 0 {
		language = language[:i]
	}
	return strings.ToLower(language)
}

var _ TextAnalyzer = (*Comprehend)(nil)
