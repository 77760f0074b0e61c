package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	comprehendtypes "github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComprehend struct {
	entities  int
	sentiment comprehendtypes.SentimentType
	toxic     []comprehendtypes.ToxicContent
	piiErr    error
	toxicErr  error
	lang      comprehendtypes.LanguageCode
}

func (f *fakeComprehend) DetectPiiEntities(_ context.Context, in *comprehend.DetectPiiEntitiesInput, _ ...func(*comprehend.Options)) (*comprehend.DetectPiiEntitiesOutput, error) {
	if f.piiErr != nil {
		return nil, f.piiErr
	}
	f.lang = in.LanguageCode
	return &comprehend.DetectPiiEntitiesOutput{Entities: make([]comprehendtypes.PiiEntity, f.entities)}, nil
}

func (f *fakeComprehend) DetectSentiment(context.Context, *comprehend.DetectSentimentInput, ...func(*comprehend.Options)) (*comprehend.DetectSentimentOutput, error) {
	return &comprehend.DetectSentimentOutput{Sentiment: f.sentiment}, nil
}

func (f *fakeComprehend) DetectToxicContent(context.Context, *comprehend.DetectToxicContentInput, ...func(*comprehend.Options)) (*comprehend.DetectToxicContentOutput, error) {
	if f.toxicErr != nil {
		return nil, f.toxicErr
	}
	return &comprehend.DetectToxicContentOutput{ResultList: []comprehendtypes.ToxicLabels{{Labels: f.toxic}}}, nil
}

func TestComprehendAnalyze(t *testing.T) {
	f := &fakeComprehend{
		entities:  1,
		sentiment: comprehendtypes.SentimentTypeNegative,
		toxic: []comprehendtypes.ToxicContent{
			{Name: comprehendtypes.ToxicContentTypeInsult, Score: aws.Float32(0.9)},
		},
	}
	got, err := NewComprehend(f).Analyze(context.Background(), "you are awful", "en-US")
	require.NoError(t, err)

	assert.Equal(t, comprehendtypes.LanguageCode("en"), f.lang)
	assert.True(t, got.HasPII)
	assert.Equal(t, SentimentNegative, got.Sentiment)
	assert.True(t, got.ToxicityAvailable)
	require.Len(t, got.ToxicLabels, 1)
	assert.Equal(t, "INSULT", got.ToxicLabels[0].Name)
	assert.InDelta(t, 0.9, got.ToxicLabels[0].Score, 1e-6)
}

func TestComprehendToxicityUnavailable(t *testing.T) {
	f := &fakeComprehend{sentiment: comprehendtypes.SentimentTypePositive, toxicErr: errors.New("unsupported region")}
	got, err := NewComprehend(f).Analyze(context.Background(), "hello", "en")
	require.NoError(t, err)
	assert.False(t, got.ToxicityAvailable)
	assert.Empty(t, got.ToxicLabels)
	assert.Equal(t, SentimentPositive, got.Sentiment)
}

func TestComprehendPIIFailure(t *testing.T) {
	f := &fakeComprehend{piiErr: errors.New("throttled")}
	_, err := NewComprehend(f).Analyze(context.Background(), "hello", "en")
	assert.ErrorContains(t, err, "detect pii entities")
}

func TestComprehendLanguage(t *testing.T) {
	assert.Equal(t, "en", comprehendLanguage(""))
	assert.Equal(t, "en", comprehendLanguage("en-US"))
	assert.Equal(t, "es", comprehendLanguage("ES"))
}
