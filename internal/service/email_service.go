package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"
)

// EmailSender is the part of the SES client used to deliver mail
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService sends account emails via Amazon SES
type EmailService struct {
	client     EmailSender
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	log        logrus.FieldLogger
}

// NewEmailService creates a new email service. An empty fromEmail yields a
// disabled service that logs and drops every message.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, log logrus.FieldLogger) (*EmailService, error) {
	if fromEmail == "" {
		log.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{log: log, appBaseURL: appBaseURL}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.WithFields(logrus.Fields{"from": fromEmail, "region": awsRegion}).Info("email service enabled")
	return NewEmailServiceWithSender(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL, log), nil
}

// NewEmailServiceWithSender creates an enabled email service on top of sender
func NewEmailServiceWithSender(sender EmailSender, fromEmail, fromName, appBaseURL string, log logrus.FieldLogger) *EmailService {
	return &EmailService{
		client:     sender,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		enabled:    true,
		log:        log,
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

// SendPasswordResetEmail sends a password reset email with a reset link
func (s *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error {
	if !s.enabled {
		s.log.WithField("to", toEmail).Info("skipping password reset email (service disabled)")
		return nil
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.appBaseURL, url.QueryEscape(resetToken))

	subject := "Reset your EduGame password"
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #667eea; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #667eea; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>Password Reset</h1>
		</div>
		<div class="content">
			<p>Hi %s,</p>
			<p>Someone asked to reset the password of your EduGame account.</p>
			<p style="text-align: center;">
				<a href="%s" class="button">Choose a new password</a>
			</p>
			<p style="word-break: break-all; font-size: 12px; color: #666;">%s</p>
			<p><strong>The link expires in 1 hour.</strong></p>
			<p>If this wasn't you, ignore this email and your password stays the same.</p>
		</div>
		<div class="footer">
			<p>Sent automatically by EduGame. Replies are not monitored.</p>
		</div>
	</div>
</body>
</html>
`, toName, resetLink, resetLink)

	textBody := fmt.Sprintf(`Hi %s,

Someone asked to reset the password of your EduGame account.

Choose a new password here:
%s

The link expires in 1 hour.

If this wasn't you, ignore this email and your password stays the same.

---
Sent automatically by EduGame. Replies are not monitored.
`, toName, resetLink)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	entry := s.log.WithFields(logrus.Fields{"to": toEmail, "subject": subject})
	if result != nil && result.MessageId != nil {
		entry = entry.WithField("message_id", *result.MessageId)
	}
	entry.Info("email sent")
	return nil
}
