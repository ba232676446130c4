package transport

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/pkg/errors"

	"github.com/unclebandit/reminder-scheduler/internal/model"
)

type SESTransport struct {
	ses *ses.SES

	from    string
	charset string
}

func NewSESTransport(sess *session.Session, from string) *SESTransport {
	return &SESTransport{
		ses:     ses.New(sess),
		from:    from,
		charset: "UTF-8",
	}
}

func (t *SESTransport) Send(ctx context.Context, msg model.MailMessage) error {
	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(msg.To)},
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Text: &ses.Content{
					Charset: aws.String(t.charset),
					Data:    aws.String(msg.Body),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String(t.charset),
				Data:    aws.String(msg.Subject),
			},
		},
		Source: aws.String(t.from),
	}

	_, err := t.ses.SendEmailWithContext(ctx, input)
	return errors.Wrap(err, "ses send email")
}
