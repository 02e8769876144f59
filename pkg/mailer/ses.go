// Package mailer sends transactional email through Amazon SES (v2 API).
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

const charset = "UTF-8"

// ErrNotConfigured is returned by Disabled for every send.
var ErrNotConfigured = errors.New("mailer: no sender address configured")

// Options configures an SESMailer.
type Options struct {
	Region           string
	From             string
	ConfigurationSet string
}

// sendEmailAPI is the slice of the SES client the mailer uses.
type sendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer delivers plain-text mail through SES.
type SESMailer struct {
	client           sendEmailAPI
	from             string
	configurationSet string
}

// NewSESMailer loads AWS credentials from the environment (AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY, shared config or instance role) and builds a mailer.
func NewSESMailer(ctx context.Context, opts Options) (*SESMailer, error) {
	if strings.TrimSpace(opts.From) == "" {
		return nil, ErrNotConfigured
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newSESMailer(sesv2.NewFromConfig(awsCfg), opts), nil
}

func newSESMailer(client sendEmailAPI, opts Options) *SESMailer {
	return &SESMailer{
		client:           client,
		from:             opts.From,
		configurationSet: opts.ConfigurationSet,
	}
}

// Send delivers a plain-text message to a single recipient and returns the SES message id.
func (m *SESMailer) Send(ctx context.Context, to, subject, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("mailer: recipient is required")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String(charset)},
				},
			},
		},
	}
	if m.configurationSet != "" {
		input.ConfigurationSetName = aws.String(m.configurationSet)
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("to", to).Msg("SES SendEmail failed")
		return "", fmt.Errorf("ses send: %w", err)
	}

	messageID := aws.ToString(out.MessageId)
	log.Debug().Str("to", to).Str("message_id", messageID).Msg("SES message accepted")
	return messageID, nil
}

// Disabled is used when no sender is configured. Every send fails, which the
// recovery flow reports as a delivery failure.
type Disabled struct{}

// Send always returns ErrNotConfigured.
func (Disabled) Send(context.Context, string, string, string) (string, error) {
	return "", ErrNotConfigured
}
