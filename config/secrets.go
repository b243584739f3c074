package config

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ResolveSecrets replaces the signing secrets with their Parameter Store
// values when parameter names are configured.
func (a *AuthConfig) ResolveSecrets() {
	a.AccessSecret = parameterOr(a.AccessSecretParam, a.AccessSecret)
	a.RefreshSecret = parameterOr(a.RefreshSecretParam, a.RefreshSecret)
}

// parameterOr returns the decrypted SSM parameter, or fallback when the name is
// empty or the lookup fails.
func parameterOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	if v := getParameterStoreValue(name, true); v != "" {
		return v
	}
	return fallback
}

func getParameterStoreValue(parameterName string, decrypt bool) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return ""
	}

	client := ssm.NewFromConfig(cfg)

	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctx, input)
	if err != nil {
		return ""
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return ""
	}

	return *result.Parameter.Value
}
