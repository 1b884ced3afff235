package chat

import (
	"context"
	"strings"
	"time"
)

// DefaultSupportDelay mimics a human responder
const DefaultSupportDelay = time.Second

type supportRule struct {
	keywords []string
	reply    string
}

// Rules are checked in order; the first rule with a matching keyword wins
var supportRules = []supportRule{
	{
		keywords: []string{"password"},
		reply:    "To reset your password, log out and choose \"Forgot password\" on the login screen. A reset link will be sent to your email.",
	},
	{
		keywords: []string{"booking"},
		reply:    "You can review your bookings with the bookings command. Providers can mark a working booking complete once the job is done.",
	},
	{
		keywords: []string{"account"},
		reply:    "For account questions such as verification or profile changes, our team reviews requests within one working day.",
	},
	{
		keywords: []string{"technical", "bug", "report"},
		reply:    "Sorry about the trouble. Please describe what happened and when, and our technical team will look into it.",
	},
	{
		keywords: []string{"help", "support", "other", "contact"},
		reply:    "Our support team is here to help. You can reach us at support@skillconnect.app or keep chatting here.",
	},
}

const supportFallback = "Thanks for your message. A member of our team will get back to you shortly."

// SupportReply returns the canned answer for a support message
func SupportReply(text string) string {
	text = strings.ToLower(text)
	for _, rule := range supportRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.reply
			}
		}
	}
	return supportFallback
}

// SupportResponder answers support messages locally after a fixed delay
type SupportResponder struct {
	Delay time.Duration
}

// Respond waits for the delay and returns the canned answer, or the context's error
func (r SupportResponder) Respond(ctx context.Context, text string) (string, error) {
	timer := time.NewTimer(r.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return SupportReply(text), nil
	}
}
