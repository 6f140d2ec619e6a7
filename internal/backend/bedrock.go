package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockBackend speaks AWS Bedrock's Converse API, which unifies Claude,
// Titan, Llama, and other model families under one message shape.
type BedrockBackend struct {
	name   string
	client *bedrockruntime.Client
}

// NewBedrock builds a backend bound to Bedrock in region, using the
// default AWS credential chain (env vars, shared config, instance role).
func NewBedrock(ctx context.Context, name, region string) (*BedrockBackend, error) {
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &BedrockBackend{name: name, client: bedrockruntime.NewFromConfig(awsCfg)}, nil
}

func (b *BedrockBackend) Name() string { return b.name }

// SupportsModel matches Bedrock's vendor-prefixed model id convention
// ("anthropic.claude-...", "amazon.titan-...", "meta.llama3-...", etc.).
func (b *BedrockBackend) SupportsModel(model string) bool {
	for _, prefix := range []string{"anthropic.", "amazon.", "meta.", "mistral.", "cohere."} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (b *BedrockBackend) toMessages(req ChatRequest) (system []types.SystemContentBlock, msgs []types.Message) {
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		msgs = append(msgs, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return system, msgs
}

func (b *BedrockBackend) inferenceConfig(req ChatRequest) *types.InferenceConfiguration {
	v, ok := req.Params["max_tokens"].(float64)
	if !ok || v <= 0 {
		return nil
	}
	maxTokens := int32(v)
	return &types.InferenceConfiguration{MaxTokens: aws.Int32(maxTokens)}
}

func (b *BedrockBackend) Forward(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	system, msgs := b.toMessages(req)
	out, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.Model),
		Messages:        msgs,
		System:          system,
		InferenceConfig: b.inferenceConfig(req),
	})
	if err != nil {
		return ChatResponse{}, classifyStatus(b.name, 0, err)
	}
	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ChatResponse{}, &PermanentEmptyChoicesError{Backend: b.name}
	}
	var text strings.Builder
	for _, block := range msgOut.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(tb.Value)
		}
	}
	resp := ChatResponse{Content: text.String(), Model: req.Model}
	if out.Usage != nil {
		resp.PromptTokens = int(aws.ToInt32(out.Usage.InputTokens))
		resp.CompletionTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	return resp, nil
}

func (b *BedrockBackend) ForwardStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	system, msgs := b.toMessages(req)
	resp, err := b.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(req.Model),
		Messages:        msgs,
		System:          system,
		InferenceConfig: b.inferenceConfig(req),
	})
	if err != nil {
		return nil, classifyStatus(b.name, 0, err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		stream := resp.GetStream()
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-stream.Events():
				if !ok {
					if err := stream.Err(); err != nil {
						out <- StreamChunk{Done: true, Err: classifyStatus(b.name, 0, err)}
					} else {
						out <- StreamChunk{Done: true}
					}
					return
				}
				switch ev := event.(type) {
				case *types.ConverseStreamOutputMemberContentBlockDelta:
					if delta, ok := ev.Value.Delta.(*types.ContentBlockDeltaMemberText); ok && delta.Value != "" {
						select {
						case out <- StreamChunk{Data: delta.Value}:
						case <-ctx.Done():
							return
						}
					}
				case *types.ConverseStreamOutputMemberMessageStop:
					out <- StreamChunk{Done: true}
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *BedrockBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String("anthropic.claude-3-haiku-20240307-v1:0"),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ping"}},
		}},
		InferenceConfig: &types.InferenceConfiguration{MaxTokens: aws.Int32(1)},
	})
	if err != nil {
		return classifyStatus(b.name, 0, err)
	}
	return nil
}

// ListModels has no cheap Bedrock enumeration wired up; BeigeBox relies on
// config-declared routes for Bedrock models instead.
func (b *BedrockBackend) ListModels(context.Context) ([]string, error) {
	return nil, nil
}

var errUnsupportedBedrockOutput = errors.New("bedrock: unexpected converse output shape")
