package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ParametersByPathAPI is the part of the SSM client the overlay uses.
type ParametersByPathAPI interface {
	GetParametersByPath(ctx context.Context, in *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// NewSSMClient returns an SSM client for region using the default AWS
// credential chain.
func NewSSMClient(ctx context.Context, region string) (*ssm.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// FetchParameters returns every parameter under path, decrypted, keyed by
// the name relative to path.
func FetchParameters(ctx context.Context, client ParametersByPathAPI, path string) (map[string]string, error) {
	path = "/" + strings.Trim(path, "/")
	params := map[string]string{}
	input := &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	}
	for {
		out, err := client.GetParametersByPath(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("ssm get parameters %s: %w", path, err)
		}
		for _, p := range out.Parameters {
			name := strings.TrimPrefix(aws.ToString(p.Name), path+"/")
			params[name] = aws.ToString(p.Value)
		}
		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}
	return params, nil
}

// ApplySSM overlays database-url, auth-token and nats-url from SSM onto c.
// Parameters that are absent leave the environment value in place.
func (c *Config) ApplySSM(ctx context.Context, client ParametersByPathAPI) error {
	params, err := FetchParameters(ctx, client, c.SSMPrefix)
	if err != nil {
		return err
	}
	for name, dst := range map[string]*string{
		"database-url": &c.DatabaseURL,
		"auth-token":   &c.AuthToken,
		"nats-url":     &c.NATSURL,
	} {
		if v, ok := params[name]; ok && v != "" {
			*dst = v
		}
	}
	return nil
}
