package notifier

import (
	"fmt"
	"html"
)

// render returns the subject and HTML body for kind.
func render(kind Kind, p Payload) (subject, body string, err error) {
	name := html.EscapeString(p[KeyName])
	if name == "" {
		name = "Customer"
	}

	switch kind {
	case KindOTPVerification:
		if p[KeyCode] == "" {
			return "", "", fmt.Errorf("%w: missing code", ErrInvalidPayload)
		}
		validity := p[KeyValidityMinutes]
		if validity == "" {
			validity = "10"
		}
		subject = "Your verification code"
		body = getEmailTemplate("Verify your identity", fmt.Sprintf(`
			<p>Dear %s,</p>
			<p>Use the code below to confirm your details with your insurance advisor.</p>
			<h1 style="text-align: center; letter-spacing: 6px;">%s</h1>
			<div class="info-box">The code is valid for %s minutes. Do not share it with anyone.</div>
		`, name, html.EscapeString(p[KeyCode]), html.EscapeString(validity)))
		return subject, body, nil

	case KindPolicyIssued:
		subject = fmt.Sprintf("Policy %s issued", p[KeyPolicyNumber])
		body = getEmailTemplate("Your policy is issued", fmt.Sprintf(`
			<p>Dear %s,</p>
			<p>Thank you for your payment. Your motor insurance policy has been issued.</p>
			<div class="info-box">
				<strong>Policy number:</strong> %s<br>
				<strong>Certificate number:</strong> %s<br>
				<strong>Insurer:</strong> %s<br>
				<strong>Premium paid:</strong> &#8377;%s
			</div>
			<p>Please keep these details for your records.</p>
		`, name,
			html.EscapeString(p[KeyPolicyNumber]),
			html.EscapeString(p[KeyCertificateNumber]),
			html.EscapeString(p[KeyInsurer]),
			html.EscapeString(p[KeyPremium])))
		return subject, body, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// plainText is the SMS and text/plain rendering.
func plainText(kind Kind, p Payload) (string, error) {
	switch kind {
	case KindOTPVerification:
		if p[KeyCode] == "" {
			return "", fmt.Errorf("%w: missing code", ErrInvalidPayload)
		}
		validity := p[KeyValidityMinutes]
		if validity == "" {
			validity = "10"
		}
		return fmt.Sprintf("%s is your verification code. Valid for %s minutes. Do not share it.", p[KeyCode], validity), nil
	case KindPolicyIssued:
		return fmt.Sprintf("Your policy %s with %s has been issued. Certificate %s.",
			p[KeyPolicyNumber], p[KeyInsurer], p[KeyCertificateNumber]), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func getEmailTemplate(title string, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; }
			.header { background-color: #0B3D63; padding: 30px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 22px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #0B3D63; line-height: 1.6; }
			.footer { background-color: #F6F6F6; padding: 20px; text-align: center; font-size: 12px; color: #666666; }
			.info-box { background: #E8F0FE; padding: 15px; border-radius: 4px; border-left: 4px solid #2E86C1; margin: 20px 0; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header"><h1>MOTOR INSURANCE</h1></div>
			<div class="content">
				<h2>%s</h2>
				%s
			</div>
			<div class="footer">
				Insurance is the subject matter of solicitation. Read the policy wording carefully.
			</div>
		</div>
	</body>
	</html>
	`, title, bodyContent)
}
