/*
Package email sends operational emails (batch recognition reports) through
a configurable provider: Amazon SES, Mailgun or SendGrid. Provider
credentials come from the environment, matching each SDK's conventions.
*/
package email

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

type Provider string

const (
	ProviderSES      Provider = "ses"
	ProviderMailgun  Provider = "mailgun"
	ProviderSendgrid Provider = "sendgrid"
)

const sendTimeout = 30 * time.Second

/*
SendMessage sends one email through the named provider. Both a text and an
HTML body are required; providers that accept only one get the text body.
*/
func SendMessage(provider Provider, sender string, recipients []string, subject string, textBody string, htmlBody string) (e *xerr.Error) {
	if len(recipients) == 0 {
		err := fmt.Errorf("no recipients given")
		e = xerr.NewError(err, "send email", subject)
		return e
	}

	tl.Log(
		tl.Info, palette.Blue, "Sending '%s' via '%s' to '%s' recipients",
		subject, provider, strconv.Itoa(len(recipients)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	switch provider {
	case ProviderSES:
		e = sendWithSES(ctx, sender, recipients, subject, textBody, htmlBody)
	case ProviderMailgun:
		e = sendWithMailgun(ctx, sender, recipients, subject, textBody, htmlBody)
	case ProviderSendgrid:
		e = sendWithSendgrid(sender, recipients, subject, textBody, htmlBody)
	default:
		err := fmt.Errorf("unknown email provider: %s", provider)
		e = xerr.NewError(err, "pick email provider", string(provider))
	}

	if e == nil {
		tl.Log(tl.Info1, palette.Green, "Sent '%s' via '%s'", subject, provider)
	}
	return e
}

func envOrEmpty(name string) string {
	return os.Getenv(name)
}
