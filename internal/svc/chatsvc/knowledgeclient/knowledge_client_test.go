package knowledgeclient_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/svc/chatsvc/knowledgeclient"
)

// fakeAPI records the last request and returns a canned response.
type fakeAPI struct {
	input  *bedrockagentruntime.RetrieveAndGenerateInput
	output *bedrockagentruntime.RetrieveAndGenerateOutput
	err    error
}

func (f *fakeAPI) RetrieveAndGenerate(
	_ context.Context,
	params *bedrockagentruntime.RetrieveAndGenerateInput,
	_ ...func(*bedrockagentruntime.Options),
) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
	f.input = params

	return f.output, f.err
}

func testConfig() knowledgeclient.BedrockClientConfig {
	return knowledgeclient.BedrockClientConfig{
		Region:          "us-east-1",
		KnowledgeBaseID: "KB123",
		ModelARN:        "arn:aws:bedrock:us-east-1::foundation-model/test",
	}
}

func TestBedrockClient_Ask(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		//nolint:exhaustruct
		output: &bedrockagentruntime.RetrieveAndGenerateOutput{
			Output:    &types.RetrieveAndGenerateOutput{Text: aws.String("PO parking holds a purchase order.")},
			SessionId: aws.String("kb-session-1"),
		},
	}

	client := knowledgeclient.NewBedrockClientWithAPI(api, testConfig())

	answer, err := client.Ask(context.Background(), "Explain PO Parking process", "")
	require.NoError(t, err)
	assert.Equal(t, domain.KnowledgeAnswer{Text: "PO parking holds a purchase order.", SessionID: "kb-session-1"}, answer)

	require.NotNil(t, api.input)
	assert.Equal(t, "Explain PO Parking process", aws.ToString(api.input.Input.Text))
	assert.Nil(t, api.input.SessionId)

	cfg := api.input.RetrieveAndGenerateConfiguration
	assert.Equal(t, types.RetrieveAndGenerateTypeKnowledgeBase, cfg.Type)
	assert.Equal(t, "KB123", aws.ToString(cfg.KnowledgeBaseConfiguration.KnowledgeBaseId))
	assert.Equal(t, "arn:aws:bedrock:us-east-1::foundation-model/test", aws.ToString(cfg.KnowledgeBaseConfiguration.ModelArn))
}

func TestBedrockClient_AskFollowUp(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		//nolint:exhaustruct
		output: &bedrockagentruntime.RetrieveAndGenerateOutput{
			Output:    &types.RetrieveAndGenerateOutput{Text: aws.String("yes")},
			SessionId: aws.String("kb-session-1"),
		},
	}

	client := knowledgeclient.NewBedrockClientWithAPI(api, testConfig())

	_, err := client.Ask(context.Background(), "and then?", "kb-session-1")
	require.NoError(t, err)
	assert.Equal(t, "kb-session-1", aws.ToString(api.input.SessionId))
}

func TestBedrockClient_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{name: "api error", api: &fakeAPI{err: errors.New("ThrottlingException")}},
		//nolint:exhaustruct
		{name: "no output", api: &fakeAPI{output: &bedrockagentruntime.RetrieveAndGenerateOutput{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := knowledgeclient.NewBedrockClientWithAPI(tt.api, testConfig())

			_, err := client.Ask(context.Background(), "hello", "")
			require.ErrorIs(t, err, domain.ErrKnowledgeService)
		})
	}
}

func TestNewBedrockClient(t *testing.T) {
	t.Parallel()

	_, err := knowledgeclient.NewBedrockClient(context.Background(), knowledgeclient.BedrockClientConfig{Region: "us-east-1"})
	require.ErrorIs(t, err, knowledgeclient.ErrNoKnowledgeBase)

	cfg := testConfig()
	cfg.AccessKeyID = "AKIDEXAMPLE"
	cfg.SecretAccessKey = "secret"

	client, err := knowledgeclient.NewBedrockClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, client)
}
