package sdk

import "github.com/aws/aws-sdk-go-v2/aws"

// GenericClient is returned for namespaces without a concrete client in the
// catalog. It carries the resolved SDK configuration so callers can construct
// the service client themselves.
type GenericClient struct {
	Namespace string
	Config    aws.Config
	Options   ClientConfig
}
