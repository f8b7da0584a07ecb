// Package bedrock implements providers.Service against AWS Bedrock's Claude
// models, grounded on
// teradata-labs-loom/pkg/llm/bedrock/client_sdk.go (SDKClient), which talks
// to Bedrock through the Anthropic SDK's bedrock transport rather than the
// raw bedrockruntime InvokeModel API — "simpler and better maintained"
// per that file's own doc comment, a judgment this adapter keeps. Message
// and tool conversion is shared with providers/anthropic since both speak
// the same Messages API surface.
package bedrock

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	aianthropic "github.com/airuntime/core/providers/anthropic"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
	"github.com/airuntime/core/providers"
)

const (
	defaultModel     = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	defaultMaxTokens = 4096
	defaultRegion    = "us-east-1"
)

func init() {
	providers.Register("bedrock", New)
}

// Service implements providers.Service against Bedrock via the Anthropic
// SDK's bedrock transport.
type Service struct {
	client anthropic.Client
	cfg    providers.ServiceConfig
}

// New constructs the Bedrock service, resolving credentials through
// ResolveBedrockCredential (explicit option -> AWS env vars -> default
// chain), per spec §4.1.
func New(cfg providers.ServiceConfig) (providers.Service, error) {
	var explicit *providers.BedrockCredential
	if cred, ok := cfg.Credential.(providers.BedrockCredential); ok {
		explicit = &cred
	}
	resolved := providers.ResolveBedrockCredential(explicit)
	if resolved.Region == "" {
		resolved.Region = defaultRegion
	}

	ctx := context.Background()
	var awsCfg aws.Config
	var err error
	if resolved.AWSAccessKeyID != "" {
		awsCfg, err = loadWithStaticCredentials(ctx, resolved)
	} else {
		awsCfg, err = loadWithDefaultChain(ctx, resolved.Region)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ConfigMissing, "bedrock", err)
	}

	client := anthropic.NewClient(bedrock.WithConfig(awsCfg))
	return &Service{client: client, cfg: cfg}, nil
}

func (s *Service) Name() string { return "bedrock" }

func (s *Service) Configure(opts providers.ServiceConfig) {
	s.cfg.Params = providers.MergeParams(s.cfg.Params, opts.Params)
	if opts.DefaultModel != "" {
		s.cfg.DefaultModel = opts.DefaultModel
	}
}

func (s *Service) model(req *chat.Request) string {
	if req.Model != "" {
		return req.Model
	}
	if s.cfg.DefaultModel != "" {
		return s.cfg.DefaultModel
	}
	return defaultModel
}

func (s *Service) buildParams(req *chat.Request) anthropic.MessageNewParams {
	params := providers.MergeParams(s.cfg.Params, req.Params)

	maxTokens := int64(params.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model(req)),
		Messages:  aianthropic.BuildMessages(req.Messages),
		MaxTokens: maxTokens,
	}
	for _, m := range req.Messages {
		if m.Role == chat.RoleSystem {
			p.System = []anthropic.TextBlockParam{{Text: m.Content()}}
			break
		}
	}
	if params.Temperature != 0 {
		p.Temperature = anthropic.Float(params.Temperature)
	}
	if tools := aianthropic.BuildTools(params.Tools); len(tools) > 0 {
		p.Tools = tools
	}
	return p
}

// Invoke performs a synchronous call through the Bedrock transport.
func (s *Service) Invoke(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	msg, err := s.client.Messages.New(ctx, s.buildParams(req))
	if err != nil {
		return nil, errs.Wrap(errs.ProviderError, "bedrock", err)
	}
	return aianthropic.FromMessage(msg), nil
}

// InvokeStream streams text deltas only: tool_use content blocks in the
// event stream are not collected, and no chunk carries ToolCalls.
func (s *Service) InvokeStream(ctx context.Context, req *chat.Request, onChunk func(chat.StreamChunk)) error {
	stream := s.client.Messages.NewStreaming(ctx, s.buildParams(req))
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		if v, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if d, ok := v.Delta.AsAny().(anthropic.TextDelta); ok {
				onChunk(chat.StreamChunk{Delta: d.Text, Raw: v})
			}
		}
	}
	if err := stream.Err(); err != nil {
		onChunk(chat.StreamChunk{Error: err, Done: true})
		return errs.Wrap(errs.ProviderError, "bedrock", err)
	}
	onChunk(chat.StreamChunk{Done: true})
	return nil
}

// Embed is unsupported: the Bedrock Claude models exposed here have no
// embeddings endpoint (Titan/Cohere embedding models on Bedrock are a
// separate, unrelated model family this service does not target).
func (s *Service) Embed(ctx context.Context, req *chat.EmbeddingRequest) (*chat.EmbeddingResponse, error) {
	return nil, errs.New(errs.UnsupportedOperation, "bedrock claude models do not support embeddings")
}

func loadWithStaticCredentials(ctx context.Context, cred providers.BedrockCredential) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cred.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cred.AWSAccessKeyID, cred.AWSSecretAccessKey, cred.AWSSessionToken,
		)),
	)
}

func loadWithDefaultChain(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}
