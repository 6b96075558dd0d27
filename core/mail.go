package core

import "net/mail"

type (
	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Subject     string
		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseAddresses parses raw addresses, skipping the invalid ones.
func ParseAddresses(raw []string) []mail.Address {
	addrs := make([]mail.Address, 0, len(raw))
	for _, r := range raw {
		if a, err := mail.ParseAddress(CleanString(r)); err == nil {
			addrs = append(addrs, *a)
		}
	}
	return addrs
}
