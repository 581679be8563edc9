package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/mailgun/mailgun-go/v4"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/tuumbleweed/xerr"
)

// sendWithSES sends through Amazon SES v2. Credentials and region come
// from the standard AWS environment/config chain.
func sendWithSES(ctx context.Context, sender string, recipients []string, subject string, textBody string, htmlBody string) (e *xerr.Error) {
	awsCfg, loadErr := awsconfig.LoadDefaultConfig(ctx)
	if loadErr != nil {
		e = xerr.NewError(loadErr, "load AWS configuration", "ses")
		return e
	}

	client := sesv2.NewFromConfig(awsCfg)

	_, sendErr := client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(sender),
		Destination:      &sestypes.Destination{ToAddresses: recipients},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(textBody)},
					Html: &sestypes.Content{Data: aws.String(htmlBody)},
				},
			},
		},
	})
	if sendErr != nil {
		e = xerr.NewError(sendErr, "send email via SES", subject)
		return e
	}

	return e
}

// sendWithMailgun sends through Mailgun; MAILGUN_DOMAIN and
// MAILGUN_API_KEY must be set.
func sendWithMailgun(ctx context.Context, sender string, recipients []string, subject string, textBody string, htmlBody string) (e *xerr.Error) {
	domain := envOrEmpty("MAILGUN_DOMAIN")
	apiKey := envOrEmpty("MAILGUN_API_KEY")
	if domain == "" || apiKey == "" {
		err := fmt.Errorf("MAILGUN_DOMAIN or MAILGUN_API_KEY is not set")
		e = xerr.NewError(err, "configure Mailgun", subject)
		return e
	}

	mg := mailgun.NewMailgun(domain, apiKey)

	message := mg.NewMessage(sender, subject, textBody, recipients...)
	if htmlBody != "" {
		message.SetHtml(htmlBody)
	}

	_, _, sendErr := mg.Send(ctx, message)
	if sendErr != nil {
		e = xerr.NewError(sendErr, "send email via Mailgun", subject)
		return e
	}

	return e
}

// sendWithSendgrid sends through SendGrid; SENDGRID_API_KEY must be set.
func sendWithSendgrid(sender string, recipients []string, subject string, textBody string, htmlBody string) (e *xerr.Error) {
	apiKey := envOrEmpty("SENDGRID_API_KEY")
	if apiKey == "" {
		err := fmt.Errorf("SENDGRID_API_KEY is not set")
		e = xerr.NewError(err, "configure SendGrid", subject)
		return e
	}

	client := sendgrid.NewSendClient(apiKey)
	from := mail.NewEmail("", sender)

	for _, recipient := range recipients {
		message := mail.NewSingleEmail(from, subject, mail.NewEmail("", recipient), textBody, htmlBody)

		var resp *rest.Response
		resp, sendErr := client.Send(message)
		if sendErr != nil {
			e = xerr.NewError(sendErr, "send email via SendGrid", recipient)
			return e
		}
		if resp.StatusCode >= 300 {
			err := fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
			e = xerr.NewError(err, "send email via SendGrid", recipient)
			return e
		}
	}

	return e
}
