package aws

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestSNSClient_Alert(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.TopicArn) == "arn:aws:sns:us-east-1:123:advisor-alerts" &&
			len(aws.ToString(in.Subject)) == 100 &&
			aws.ToString(in.Message) == "body"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	client := NewSNSClientWithPublisher(pub, "arn:aws:sns:us-east-1:123:advisor-alerts")
	err := client.Alert(context.Background(), strings.Repeat("s", 140), "body")
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestSNSClient_AlertError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	client := NewSNSClientWithPublisher(pub, "arn")
	err := client.Alert(context.Background(), "subject", "body")
	assert.ErrorContains(t, err, "throttled")
}
