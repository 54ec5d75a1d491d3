package templates

import (
	"fmt"
	"strings"
)

func accountVerificationSubject(c Context) string {
	return fmt.Sprintf("Welcome to %s - verify your account", c.CompanyName)
}

func accountVerificationText(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", c.RecipientName)
	fmt.Fprintf(&b, "Welcome to %s. We created an account for you while recording your enquiry", c.CompanyName)
	if c.TicketNumber != "" {
		fmt.Fprintf(&b, " %s", c.TicketNumber)
	}
	b.WriteString(".\n\n")
	fmt.Fprintf(&b, "Verify your email address (valid for 24 hours):\n%s\n", c.VerificationURL)
	return b.String()
}

func accountVerificationSMS(c Context) (string, error) {
	if c.VerificationCode == "" {
		return "", fmt.Errorf("verification code is required")
	}
	return fmt.Sprintf("%s is your %s verification code. It expires in %d minutes. Do not share it with anyone.",
		c.VerificationCode, c.CompanyName, c.CodeExpiryMinutes), nil
}

func newAgentSubject(c Context) string {
	return fmt.Sprintf("New enquiry %s assigned to you", c.TicketNumber)
}

func newAgentText(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nA new enquiry %s has been assigned to you.\n\n", c.RecipientName, c.TicketNumber)
	fmt.Fprintf(&b, "Customer: %s\nPhone: %s\nEmail: %s\n", c.CustomerName, c.CustomerPhone, c.CustomerEmail)
	if c.PropertyTitle != "" {
		fmt.Fprintf(&b, "Property: %s\n", c.PropertyTitle)
	}
	fmt.Fprintf(&b, "\nRequirements:\n%s\n\n%s\n", c.Requirements, c.DashboardURL)
	return b.String()
}

func newAgentSMS(c Context) (string, error) {
	return fmt.Sprintf("%s: new enquiry %s from %s (%s). Please respond from your dashboard.",
		c.CompanyName, c.TicketNumber, c.CustomerName, c.CustomerPhone), nil
}

func assignedSubject(c Context) string {
	return fmt.Sprintf("Enquiry %s has been assigned to you", c.TicketNumber)
}

func assignedText(c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nEnquiry %s has been assigned to you", c.RecipientName, c.TicketNumber)
	if c.AssignedBy != "" {
		fmt.Fprintf(&b, " by %s", c.AssignedBy)
	}
	b.WriteString(".\n")
	if c.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", c.Reason)
	}
	fmt.Fprintf(&b, "\nCustomer: %s\nPhone: %s\n\n%s\n", c.CustomerName, c.CustomerPhone, c.DashboardURL)
	return b.String()
}

func assignedSMS(c Context) (string, error) {
	return fmt.Sprintf("%s: enquiry %s from %s (%s) has been assigned to you.",
		c.CompanyName, c.TicketNumber, c.CustomerName, c.CustomerPhone), nil
}
