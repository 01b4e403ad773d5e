package mainconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	appconfig "github.com/wolfman30/autoparts-voice-agent/internal/config"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("load aws config: %v", err)
	}
	if awsCfg.Region != "us-east-1" {
		t.Fatalf("expected region, got %q", awsCfg.Region)
	}

	resolver := awsCfg.EndpointResolverWithOptions
	if resolver == nil {
		t.Fatal("expected endpoint resolver when override is set")
	}
	for _, service := range []string{sqs.ServiceID, s3.ServiceID} {
		ep, err := resolver.ResolveEndpoint(service, "us-east-1")
		if err != nil || ep.URL != "http://localhost:4566" {
			t.Fatalf("expected %s to resolve locally, got %+v (%v)", service, ep, err)
		}
	}
	_, err = resolver.ResolveEndpoint(bedrockruntime.ServiceID, "us-east-1")
	var notFound *aws.EndpointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected bedrock to use the default resolver, got %v", err)
	}
}
