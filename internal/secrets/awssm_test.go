package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type mockSecretsClient struct {
	getFn func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecretsClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return m.getFn(ctx, params)
}

type mockSTSClient struct {
	arn string
	err error
}

func (m *mockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sts.GetCallerIdentityOutput{Arn: aws.String(m.arn)}, nil
}

func resolverWith(value string, err error, gotID, gotRegion *string) *AWSSecretsResolver {
	return &AWSSecretsResolver{
		NewClient: func(ctx context.Context, region string) (SecretsManagerAPI, error) {
			if gotRegion != nil {
				*gotRegion = region
			}
			return &mockSecretsClient{getFn: func(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
				if gotID != nil {
					*gotID = aws.ToString(in.SecretId)
				}
				if err != nil {
					return nil, err
				}
				return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
			}}, nil
		},
	}
}

func TestParseAWSSMReference(t *testing.T) {
	tests := []struct {
		ref                 string
		region, secret, key string
		wantErr             bool
	}{
		{ref: "awssm:///opensig/ankr", secret: "opensig/ankr"},
		{ref: "awssm://eu-west-1/opensig/ankr", region: "eu-west-1", secret: "opensig/ankr"},
		{ref: "awssm:///opensig/keys#ankr", secret: "opensig/keys", key: "ankr"},
		{ref: "awssm://us-east-1", wantErr: true},
		{ref: "env://X", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			region, secret, key, err := parseAWSSMReference(tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if region != tt.region || secret != tt.secret || key != tt.key {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)", region, secret, key, tt.region, tt.secret, tt.key)
			}
		})
	}
}

func TestAWSSecretsResolver_Plain(t *testing.T) {
	var id, region string
	r := resolverWith("  key-123\n", nil, &id, &region)

	v, err := r.Resolve(context.Background(), "awssm://us-east-1/opensig/ankr")
	if err != nil {
		t.Fatal(err)
	}
	if v != "key-123" {
		t.Errorf("value = %q", v)
	}
	if id != "opensig/ankr" || region != "us-east-1" {
		t.Errorf("id = %q, region = %q", id, region)
	}
}

func TestAWSSecretsResolver_JSONKey(t *testing.T) {
	r := resolverWith(`{"ankr":"abc","retries":3}`, nil, nil, nil)

	v, err := r.Resolve(context.Background(), "awssm:///opensig/keys#ankr")
	if err != nil {
		t.Fatal(err)
	}
	if v != "abc" {
		t.Errorf("value = %q", v)
	}

	v, err = r.Resolve(context.Background(), "awssm:///opensig/keys#retries")
	if err != nil {
		t.Fatal(err)
	}
	if v != "3" {
		t.Errorf("value = %q", v)
	}

	_, err = r.Resolve(context.Background(), "awssm:///opensig/keys#absent")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestAWSSecretsResolver_NotFound(t *testing.T) {
	r := resolverWith("", &smtypes.ResourceNotFoundException{Message: aws.String("nope")}, nil, nil)

	_, err := r.Resolve(context.Background(), "awssm:///missing")
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %T", err)
	}
	if be.Reason != "secret not found" {
		t.Errorf("reason = %q", be.Reason)
	}
	if !strings.Contains(be.Fix, "create-secret") {
		t.Errorf("fix should suggest create-secret: %q", be.Fix)
	}
}

func TestAWSSecretsResolver_ClientError(t *testing.T) {
	r := &AWSSecretsResolver{NewClient: func(context.Context, string) (SecretsManagerAPI, error) {
		return nil, errors.New("no credentials")
	}}
	_, err := r.Resolve(context.Background(), "awssm:///x")
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %T", err)
	}
}

func TestIdentity(t *testing.T) {
	arn, err := Identity(context.Background(), &mockSTSClient{arn: "arn:aws:iam::123456789012:user/signer"})
	if err != nil {
		t.Fatal(err)
	}
	if arn != "arn:aws:iam::123456789012:user/signer" {
		t.Errorf("arn = %q", arn)
	}

	_, err = Identity(context.Background(), &mockSTSClient{err: errors.New("expired")})
	if err == nil {
		t.Error("expected error")
	}
}
