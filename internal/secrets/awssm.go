package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// STSCallerIdentifier is the subset of the STS client used by Identity.
type STSCallerIdentifier interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSSecretsResolver resolves awssm:// references from AWS Secrets Manager.
//
//	awssm:///opensig/ankr            whole secret string, default region
//	awssm://eu-west-1/opensig/ankr   explicit region
//	awssm:///opensig/keys#ankr       one key of a JSON secret
type AWSSecretsResolver struct {
	// NewClient builds a client for region ("" for the default chain).
	// Nil uses the shared AWS config.
	NewClient func(ctx context.Context, region string) (SecretsManagerAPI, error)
}

// Scheme returns "awssm".
func (r *AWSSecretsResolver) Scheme() string { return "awssm" }

// Resolve fetches the secret and, when the reference has a fragment,
// extracts that key from the JSON secret string.
func (r *AWSSecretsResolver) Resolve(ctx context.Context, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	region, secretID, key, err := parseAWSSMReference(reference)
	if err != nil {
		return "", err
	}

	newClient := r.NewClient
	if newClient == nil {
		newClient = defaultSecretsClient
	}
	client, err := newClient(ctx, region)
	if err != nil {
		return "", &BackendError{
			Backend:   "AWS Secrets Manager",
			Reference: reference,
			Reason:    "loading AWS config failed",
			Fix:       "Configure credentials with `aws configure` or AWS_PROFILE.",
			Err:       err,
		}
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)})
	if err != nil {
		return "", awsSecretsError(err, reference, secretID)
	}
	value := aws.ToString(out.SecretString)
	if value == "" && len(out.SecretBinary) > 0 {
		value = string(out.SecretBinary)
	}
	if key == "" {
		return strings.TrimSpace(value), nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		return "", &InvalidReferenceError{Reference: reference, Reason: "secret is not a JSON object"}
	}
	v, ok := fields[key]
	if !ok {
		return "", &NotFoundError{Reference: reference, Backend: "AWS Secrets Manager"}
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func defaultSecretsClient(ctx context.Context, region string) (SecretsManagerAPI, error) {
	cfg, err := loadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// parseAWSSMReference splits awssm://region/secret-id#key.
func parseAWSSMReference(ref string) (region, secretID, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", "", &InvalidReferenceError{Reference: ref, Reason: "invalid URI"}
	}
	if u.Scheme != "awssm" {
		return "", "", "", &InvalidReferenceError{Reference: ref, Reason: "expected awssm:// scheme"}
	}
	secretID = strings.TrimPrefix(u.Path, "/")
	if secretID == "" {
		return "", "", "", &InvalidReferenceError{Reference: ref, Reason: "missing secret id"}
	}
	return u.Host, secretID, u.Fragment, nil
}

func awsSecretsError(err error, reference, secretID string) error {
	var notFound *smtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &BackendError{
			Backend:   "AWS Secrets Manager",
			Reference: reference,
			Reason:    "secret not found",
			Fix:       "Create it with:\n  aws secretsmanager create-secret --name \"" + secretID + "\" --secret-string \"your-value\"",
			Err:       err,
		}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException":
			return &BackendError{
				Backend:   "AWS Secrets Manager",
				Reference: reference,
				Reason:    "access denied",
				Fix:       "Check IAM permissions for secretsmanager:GetSecretValue on " + secretID,
				Err:       err,
			}
		case "ExpiredToken", "ExpiredTokenException":
			return &BackendError{
				Backend:   "AWS Secrets Manager",
				Reference: reference,
				Reason:    "AWS credentials expired",
				Fix:       "Run: aws sso login",
				Err:       err,
			}
		}
	}
	return &BackendError{
		Backend:   "AWS Secrets Manager",
		Reference: reference,
		Reason:    err.Error(),
		Err:       err,
	}
}

// Identity returns the ARN of the AWS principal the default credential
// chain resolves to. client may be nil.
func Identity(ctx context.Context, client STSCallerIdentifier) (string, error) {
	if client == nil {
		cfg, err := loadAWSConfig(ctx, "")
		if err != nil {
			return "", err
		}
		client = sts.NewFromConfig(cfg)
	}
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("getting caller identity: %w", err)
	}
	return aws.ToString(out.Arn), nil
}

func init() {
	Register(&AWSSecretsResolver{})
}
