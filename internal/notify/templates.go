package notify

import (
	"fmt"
	"html"

	"github.com/umsys/user-management/shared/models"
)

type message struct {
	title string
	text  string
	html  string
}

func htmlBody(greeting string, paragraphs ...string) string {
	body := "<p>" + html.EscapeString(greeting) + "</p>"
	for _, p := range paragraphs {
		body += "<p>" + html.EscapeString(p) + "</p>"
	}
	return body
}

func userCreatedMessage(u models.User) message {
	greeting := fmt.Sprintf("Hello %s,", u.DisplayName())
	line := "Your account has been created. You can now sign in with " + u.Email + "."
	return message{
		title: "Welcome to your new account",
		text:  greeting + "\n\n" + line,
		html:  htmlBody(greeting, line),
	}
}

func passwordResetRequestedMessage(u models.User) message {
	line := fmt.Sprintf("%s (%s, id %s) has requested a password change. Review it in the pending requests list.",
		u.DisplayName(), u.Email, u.ID)
	return message{
		title: "Password change request awaiting approval",
		text:  "Hello admin,\n\n" + line,
		html:  htmlBody("Hello admin,", line),
	}
}

func passwordResetApprovedMessage(u models.User) message {
	greeting := fmt.Sprintf("Hello %s,", u.DisplayName())
	line := "Your password change request has been approved. Your new password is now active."
	return message{
		title: "Password change approved",
		text:  greeting + "\n\n" + line,
		html:  htmlBody(greeting, line),
	}
}

func passwordResetRejectedMessage(u models.User) message {
	greeting := fmt.Sprintf("Hello %s,", u.DisplayName())
	line := "Your password change request has been rejected. Your current password is unchanged."
	return message{
		title: "Password change rejected",
		text:  greeting + "\n\n" + line,
		html:  htmlBody(greeting, line),
	}
}

func passwordChangedMessage(u models.User) message {
	greeting := fmt.Sprintf("Hello %s,", u.DisplayName())
	line := "Your password was changed by an administrator. Contact support if you did not expect this."
	return message{
		title: "Your password was changed",
		text:  greeting + "\n\n" + line,
		html:  htmlBody(greeting, line),
	}
}

func accountDeletedMessage(u models.User) message {
	greeting := fmt.Sprintf("Hello %s,", u.DisplayName())
	line := "Your account has been deleted. We are sorry to see you go."
	return message{
		title: "Your account has been deleted",
		text:  greeting + "\n\n" + line,
		html:  htmlBody(greeting, line),
	}
}

func adHocMessage(title, text string) message {
	return message{title: title, text: text}
}
