package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Client wraps the shared bedrockruntime client. One instance is created at
// wiring time and reused by the embedder, the synthesizer and the rewriter;
// the underlying SDK client is safe for concurrent use.
type Client struct {
	Client *bedrockruntime.Client
}

func NewClient(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &Client{
		Client: bedrockruntime.NewFromConfig(cfg),
	}, nil
}
