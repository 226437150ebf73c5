package escalation

import (
	"fmt"
	"strings"

	"campus-relay/internal/domain/message"
	"campus-relay/internal/domain/user"
	"campus-relay/internal/mailer"
)

const previewLength = 100

// composeEmail builds the reminder for an unread message. An empty title
// drops the "about" fragment.
func composeEmail(m message.Message, sender, recipient user.Profile, title, appURL string) mailer.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", recipient.Name())
	if title != "" {
		fmt.Fprintf(&b, "%s sent you a message about %s:\n\n", sender.Name(), title)
	} else {
		fmt.Fprintf(&b, "%s sent you a message:\n\n", sender.Name())
	}
	fmt.Fprintf(&b, "    %s\n\n", m.Preview(previewLength))
	fmt.Fprintf(&b, "Reply here: %s/messages\n", strings.TrimRight(appURL, "/"))

	return mailer.Message{
		To:      recipient.Email,
		Subject: "New message from " + sender.Name(),
		Body:    b.String(),
	}
}
