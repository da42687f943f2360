// Package knowledgeclient talks to the managed knowledge retrieval service that
// answers chat questions from the company's knowledge base.
package knowledgeclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/infra/logging"
)

// ErrNoKnowledgeBase is returned when no knowledge base id is configured.
var ErrNoKnowledgeBase = errors.New("knowledge base id not set")

// Client answers a question, continuing the conversation named by sessionID if it is
// not empty.
type Client interface {
	Ask(ctx context.Context, question, sessionID string) (domain.KnowledgeAnswer, error)
}

// API is the subset of the Bedrock Agent Runtime client used by BedrockClient.
type API interface {
	RetrieveAndGenerate(
		ctx context.Context,
		params *bedrockagentruntime.RetrieveAndGenerateInput,
		optFns ...func(*bedrockagentruntime.Options),
	) (*bedrockagentruntime.RetrieveAndGenerateOutput, error)
}

// BedrockClientConfig contains configuration parameters for the Bedrock knowledge base.
type BedrockClientConfig struct {
	Region          string `env:"REGION" default:"us-east-1"`
	KnowledgeBaseID string `env:"KNOWLEDGE_BASE_ID" default:""`
	ModelARN        string `env:"MODEL_ARN" default:"arn:aws:bedrock:us-east-1::foundation-model/anthropic.claude-3-sonnet-20240229-v1:0"`
	// AccessKeyID and SecretAccessKey select static credentials. When empty, the default
	// AWS credential chain is used.
	AccessKeyID     string `env:"ACCESS_KEY_ID" default:""`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY" default:""`
	// Timeout bounds one question
	Timeout time.Duration `env:"TIMEOUT" default:"30"`
}

// BedrockClient implements Client with Bedrock's RetrieveAndGenerate on a knowledge base.
type BedrockClient struct {
	api API
	cfg BedrockClientConfig
	log logging.Logger
}

var _ Client = (*BedrockClient)(nil)

// NewBedrockClient loads the AWS configuration and creates a BedrockClient.
func NewBedrockClient(ctx context.Context, cfg BedrockClientConfig) (*BedrockClient, error) {
	if cfg.KnowledgeBaseID == "" {
		return nil, ErrNoKnowledgeBase
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewBedrockClientWithAPI(bedrockagentruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewBedrockClientWithAPI creates a BedrockClient on an existing API client.
func NewBedrockClientWithAPI(api API, cfg BedrockClientConfig) *BedrockClient {
	return &BedrockClient{
		api: api,
		cfg: cfg,
		log: logging.GetLogger("svc.chatsvc.knowledgeclient").With(
			logging.Group("kb", "id", cfg.KnowledgeBaseID, "region", cfg.Region),
		),
	}
}

// Ask implements Client.Ask. Failures are returned with domain.ErrKnowledgeService.
func (c *BedrockClient) Ask(ctx context.Context, question, sessionID string) (answer domain.KnowledgeAnswer, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			c.log.ErrorContext(ctx, "retrieve and generate failed", "error", err)
		} else {
			c.log.DebugContext(ctx, "retrieve and generate done", "elapsed", time.Since(start))
		}
	}()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	//nolint:exhaustruct
	input := &bedrockagentruntime.RetrieveAndGenerateInput{
		Input: &types.RetrieveAndGenerateInput{
			Text: aws.String(question),
		},
		RetrieveAndGenerateConfiguration: &types.RetrieveAndGenerateConfiguration{
			Type: types.RetrieveAndGenerateTypeKnowledgeBase,
			KnowledgeBaseConfiguration: &types.KnowledgeBaseRetrieveAndGenerateConfiguration{
				KnowledgeBaseId: aws.String(c.cfg.KnowledgeBaseID),
				ModelArn:        aws.String(c.cfg.ModelARN),
			},
		},
	}

	if sessionID != "" {
		input.SessionId = aws.String(sessionID)
	}

	output, err := c.api.RetrieveAndGenerate(ctx, input)
	if err != nil {
		return answer, errors.Join(domain.ErrKnowledgeService, fmt.Errorf("retrieve and generate: %w", err))
	}

	if output.Output == nil || output.Output.Text == nil {
		return answer, fmt.Errorf("%w: empty output", domain.ErrKnowledgeService)
	}

	answer.Text = aws.ToString(output.Output.Text)
	answer.SessionID = aws.ToString(output.SessionId)

	return answer, nil
}
