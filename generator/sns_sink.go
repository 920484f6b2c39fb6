package generator

import (
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/pkg/errors"

	"github.com/postmux/postmux/model"
	Logger "github.com/postmux/postmux/utils/log"
)

const postMessageGroup = "generated_posts"

// SnsSink pushes generated posts onto an SNS topic for downstream
// publishing workers.
type SnsSink struct {
	arn    string
	client *sns.SNS
}

func NewSnsSink() (*SnsSink, error) {
	arn := os.Getenv("POST_SNS_ARN")
	if arn == "" {
		return nil, errors.New("POST_SNS_ARN is not set")
	}

	// AWS client session
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	})
	if err != nil {
		return nil, err
	}

	return &SnsSink{
		arn:    arn,
		client: sns.New(sess),
	}, nil
}

func (s *SnsSink) Push(post *model.GeneratedPost) error {
	if post == nil {
		Logger.Log.Warn("push empty post into queue")
		return nil
	}
	serialized, err := json.Marshal(post)
	if err != nil {
		return err
	}
	msg := string(serialized)
	messageGroup := postMessageGroup
	// ignore the returned seq number for FIFO
	_, err = s.client.Publish(&sns.PublishInput{
		Message:                &msg,
		TopicArn:               &s.arn,
		MessageGroupId:         &messageGroup,
		MessageDeduplicationId: &post.Id,
	})
	return err
}
