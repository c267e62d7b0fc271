package mail

import (
	"fmt"
	"html"
	"time"
)

func OTPEmail(code string, ttl time.Duration) (subject, body string) {
	subject = "Verify your email"
	body = fmt.Sprintf(`
		<html>
		<body>
			<h2>Email verification</h2>
			<p>Your verification code is:</p>
			<p style="font-size: 24px; letter-spacing: 6px;"><strong>%s</strong></p>
			<p>The code expires in %d minutes.</p>
		</body>
		</html>
	`, code, int(ttl.Minutes()))
	return subject, body
}

func PasswordResetOTPEmail(code string, ttl time.Duration) (subject, body string) {
	subject = "Password reset code"
	body = fmt.Sprintf(`
		<html>
		<body>
			<h2>Password reset</h2>
			<p>Use this code to reset your password:</p>
			<p style="font-size: 24px; letter-spacing: 6px;"><strong>%s</strong></p>
			<p>The code expires in %d minutes. If you did not ask for a reset, ignore this email.</p>
		</body>
		</html>
	`, code, int(ttl.Minutes()))
	return subject, body
}

func PasswordResetLinkEmail(baseURL, token string, ttl time.Duration) (subject, body string) {
	link := fmt.Sprintf("%s/reset-password/%s", baseURL, token)
	subject = "Reset your password"
	body = fmt.Sprintf(`
		<html>
		<body>
			<h2>Password reset</h2>
			<p><a href="%s">Reset your password</a></p>
			<p>Or paste this link into your browser:</p>
			<p>%s</p>
			<p>The link expires in %d minutes.</p>
		</body>
		</html>
	`, link, link, int(ttl.Minutes()))
	return subject, body
}

func FeedbackEmail(message, from string) (subject, body string) {
	if from == "" {
		from = "Anonymous"
	}
	subject = "New User Feedback Received"
	body = fmt.Sprintf("<p>Feedback message: %s</p><p>From: %s</p>",
		html.EscapeString(message), html.EscapeString(from))
	return subject, body
}
