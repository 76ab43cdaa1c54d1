// Copyright 2025 img-proof Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ec2

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	defaultInstanceType = "t2.micro"
	instanceNamePrefix  = "img-proof-test"

	nameSuffixChars  = "abcdefghijklmnopqrstuvwxyz"
	nameSuffixLength = 12
)

// ProviderConfig configures the real EC2 provider.
type ProviderConfig struct {
	// Region is the AWS region instances live in.
	Region string

	// AccessKeyID and SecretAccessKey are the static credentials used for
	// all API calls.
	AccessKeyID     string
	SecretAccessKey string

	// EndpointURL overrides the EC2 API endpoint. Empty for production;
	// set to a LocalStack address in integration tests.
	EndpointURL string
}

// RealProvider is the production Provider implementation backed by the
// AWS SDK.
type RealProvider struct {
	client *ec2.Client
	region string
}

// NewProvider creates a Provider connected to AWS EC2 in the configured
// region.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*RealProvider, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required to connect to EC2")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	var opts []func(*ec2.Options)
	if cfg.EndpointURL != "" {
		// Endpoint override for LocalStack-style testing.
		opts = append(opts, func(o *ec2.Options) {
			o.BaseEndpoint = &cfg.EndpointURL
		})
	}

	return &RealProvider{
		client: ec2.NewFromConfig(awsCfg, opts...),
		region: cfg.Region,
	}, nil
}

// GetInstance returns the instance with the given ID.
func (p *RealProvider) GetInstance(ctx context.Context, id string) (*Instance, error) {
	out, err := p.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return nil, fmt.Errorf("instance with ID %s not found: %w", id, err)
	}

	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			if aws.ToString(instance.InstanceId) == id {
				return fromAPIInstance(instance), nil
			}
		}
	}
	return nil, fmt.Errorf("instance with ID %s not found", id)
}

// GetState returns the current state of the instance.
func (p *RealProvider) GetState(ctx context.Context, id string) (string, error) {
	instance, err := p.GetInstance(ctx, id)
	if err != nil {
		return "", err
	}
	return instance.State, nil
}

// Launch creates a single instance from spec. The instance carries a
// generated Name tag so leaked test instances are recognizable in the
// console.
func (p *RealProvider) Launch(ctx context.Context, spec LaunchSpec) (*Instance, error) {
	instanceType := spec.InstanceType
	if instanceType == "" {
		instanceType = defaultInstanceType
	}

	out, err := p.client.RunInstances(ctx, &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.ImageID),
		InstanceType: ec2types.InstanceType(instanceType),
		KeyName:      aws.String(spec.KeyName),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags: []ec2types.Tag{
					{Key: aws.String("Name"), Value: aws.String(generateInstanceName())},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch instance from image %s: %w", spec.ImageID, err)
	}
	if len(out.Instances) == 0 {
		return nil, fmt.Errorf("no instance returned for image %s", spec.ImageID)
	}

	return fromAPIInstance(out.Instances[0]), nil
}

// Start starts a stopped instance.
func (p *RealProvider) Start(ctx context.Context, id string) error {
	_, err := p.client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return fmt.Errorf("failed to start instance %s: %w", id, err)
	}
	return nil
}

// Stop stops a running instance.
func (p *RealProvider) Stop(ctx context.Context, id string) error {
	_, err := p.client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return fmt.Errorf("failed to stop instance %s: %w", id, err)
	}
	return nil
}

// Terminate destroys the instance.
func (p *RealProvider) Terminate(ctx context.Context, id string) error {
	_, err := p.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return fmt.Errorf("failed to terminate instance %s: %w", id, err)
	}
	return nil
}

func fromAPIInstance(instance ec2types.Instance) *Instance {
	i := &Instance{
		ID:       aws.ToString(instance.InstanceId),
		PublicIP: aws.ToString(instance.PublicIpAddress),
		ImageID:  aws.ToString(instance.ImageId),
		Type:     string(instance.InstanceType),
	}
	if instance.State != nil {
		i.State = string(instance.State.Name)
	}
	return i
}

// generateInstanceName builds a Name tag value with a random suffix.
func generateInstanceName() string {
	suffix := make([]byte, nameSuffixLength)
	for i := range suffix {
		suffix[i] = nameSuffixChars[rand.Intn(len(nameSuffixChars))]
	}
	return instanceNamePrefix + "-" + string(suffix)
}
