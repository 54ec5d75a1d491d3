package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"
	"strconv"
	"time"
)

//go:embed *.html
var templateFS embed.FS

// Template names
const (
	AccountVerification = "account_verification"
	EnquiryNewAgent     = "enquiry_new_agent"
	EnquiryAssigned     = "enquiry_assigned"
)

// Variable keys accepted by NewContext
const (
	VarTicketNumber      = "ticket_number"
	VarEnquiryID         = "enquiry_id"
	VarCustomerName      = "customer_name"
	VarCustomerEmail     = "customer_email"
	VarCustomerPhone     = "customer_phone"
	VarRequirements      = "requirements"
	VarPropertyTitle     = "property_title"
	VarVerificationToken = "verification_token"
	VarVerificationCode  = "verification_code"
	VarCodeExpiryMinutes = "code_expiry_minutes"
	VarAssignedBy        = "assigned_by"
	VarReason            = "reason"
)

// Branding is the deployment-wide part of every template context
type Branding struct {
	CompanyName  string
	FrontendURL  string
	SupportEmail string
}

// Context is everything a template may interpolate
type Context struct {
	Branding
	Subject       string
	Year          int
	RecipientName string

	TicketNumber      string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	Requirements      string
	PropertyTitle     string
	VerificationURL   string
	VerificationCode  string
	CodeExpiryMinutes int
	AssignedBy        string
	Reason            string
	DashboardURL      string
}

// NewContext builds a template context from branding and free-form variables
func NewContext(branding Branding, recipientName string, vars map[string]string) Context {
	ctx := Context{
		Branding:         branding,
		Year:             time.Now().Year(),
		RecipientName:    recipientName,
		TicketNumber:     vars[VarTicketNumber],
		CustomerName:     vars[VarCustomerName],
		CustomerEmail:    vars[VarCustomerEmail],
		CustomerPhone:    vars[VarCustomerPhone],
		Requirements:     vars[VarRequirements],
		PropertyTitle:    vars[VarPropertyTitle],
		VerificationCode: vars[VarVerificationCode],
		AssignedBy:       vars[VarAssignedBy],
		Reason:           vars[VarReason],
	}
	if ctx.RecipientName == "" {
		ctx.RecipientName = "there"
	}
	if minutes, err := strconv.Atoi(vars[VarCodeExpiryMinutes]); err == nil {
		ctx.CodeExpiryMinutes = minutes
	} else {
		ctx.CodeExpiryMinutes = 10
	}
	if token := vars[VarVerificationToken]; token != "" {
		ctx.VerificationURL = fmt.Sprintf("%s/verify-email?token=%s", branding.FrontendURL, token)
	}
	if id := vars[VarEnquiryID]; id != "" {
		ctx.DashboardURL = fmt.Sprintf("%s/agent/enquiries/%s", branding.FrontendURL, id)
	} else {
		ctx.DashboardURL = branding.FrontendURL + "/agent/enquiries"
	}
	return ctx
}

// Email is a rendered email
type Email struct {
	Subject string
	HTML    string
	Text    string
}

// Template renders one notification for each channel it supports. A nil renderer means the channel is not used.
type Template struct {
	Name  string
	Email func(Context) (Email, error)
	SMS   func(Context) (string, error)
}

var registry map[string]Template

func init() {
	baseContent, err := templateFS.ReadFile("base.html")
	if err != nil {
		panic(fmt.Sprintf("failed to read base template: %v", err))
	}

	parse := func(name string) *template.Template {
		content, err := templateFS.ReadFile(name + ".html")
		if err != nil {
			panic(fmt.Sprintf("failed to read template %s: %v", name, err))
		}
		tmpl := template.Must(template.New("email").Parse(string(baseContent)))
		return template.Must(tmpl.Parse(string(content)))
	}

	registry = map[string]Template{
		AccountVerification: {
			Name:  AccountVerification,
			Email: htmlEmail(parse(AccountVerification), accountVerificationSubject, accountVerificationText),
			SMS:   accountVerificationSMS,
		},
		EnquiryNewAgent: {
			Name:  EnquiryNewAgent,
			Email: htmlEmail(parse(EnquiryNewAgent), newAgentSubject, newAgentText),
			SMS:   newAgentSMS,
		},
		EnquiryAssigned: {
			Name:  EnquiryAssigned,
			Email: htmlEmail(parse(EnquiryAssigned), assignedSubject, assignedText),
			SMS:   assignedSMS,
		},
	}
}

// Lookup returns a registered template
func Lookup(name string) (Template, bool) {
	t, ok := registry[name]
	return t, ok
}

// Names lists registered templates
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func htmlEmail(tmpl *template.Template, subject func(Context) string, text func(Context) string) func(Context) (Email, error) {
	return func(ctx Context) (Email, error) {
		ctx.Subject = subject(ctx)
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, ctx); err != nil {
			return Email{}, fmt.Errorf("failed to execute template: %w", err)
		}
		return Email{Subject: ctx.Subject, HTML: buf.String(), Text: text(ctx)}, nil
	}
}
