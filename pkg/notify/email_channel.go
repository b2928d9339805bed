package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/peoplehub/dispatch/pkg/email"
)

// AddressResolver maps a user id to an email address. An empty address with
// a nil error means the user has no email on file; delivery is silently
// skipped.
type AddressResolver interface {
	EmailAddress(ctx context.Context, userID int64) (string, error)
}

// EmailChannel renders notifications into HTML emails and sends them through
// the mailer. The subject is the notification title.
type EmailChannel struct {
	sender   email.EmailSender
	resolver AddressResolver
}

// NewEmailChannel creates an email channel.
func NewEmailChannel(sender email.EmailSender, resolver AddressResolver) (*EmailChannel, error) {
	if sender == nil || resolver == nil {
		return nil, ErrStoreNil
	}
	return &EmailChannel{sender: sender, resolver: resolver}, nil
}

func (c *EmailChannel) Send(ctx context.Context, n Notification) error {
	addr, err := c.resolver.EmailAddress(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("failed to resolve email address for user %d: %w", n.RecipientID, err)
	}
	if addr == "" {
		// No email on file is an expected no-op, not a failure.
		return nil
	}

	body, err := renderEmailBody(n)
	if err != nil {
		return fmt.Errorf("failed to render notification email: %w", err)
	}

	return c.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  n.Title,
		BodyHTML: body,
		Tag:      "notification:" + string(n.Type),
	})
}

var _ ChannelSender = (*EmailChannel)(nil)

var emailBodyTmpl = template.Must(template.New("notification").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin-bottom: 20px;">
    <h2 style="color: #2c3e50; margin-top: 0;">{{.Heading}}</h2>
    <p style="color: #34495e; line-height: 1.6;">{{.Content}}</p>
    {{- if or .Quote .Rows .Options}}
    <div style="margin-top: 20px; background-color: #fff; padding: 15px; border-radius: 3px; border: 1px solid #e0e0e0;">
      {{- if .Quote}}
      <p style="font-style: italic;">&quot;{{.Quote}}&quot;</p>
      {{- end}}
      {{- range .Rows}}
      <p><strong>{{.Label}}:</strong> {{.Value}}</p>
      {{- end}}
      {{- if .Options}}
      <ul style="list-style-type: none; padding-left: 0;">
        {{- range .Options}}
        <li style="padding: 10px; background-color: #fff; margin-bottom: 5px; border-radius: 3px; border: 1px solid #e0e0e0;">{{.}}</li>
        {{- end}}
      </ul>
      {{- end}}
    </div>
    {{- end}}
  </div>
  <div style="color: #7f8c8d; font-size: 12px; text-align: center; margin-top: 20px;">
    <p>This is an automated message. Please do not reply to this email.</p>
  </div>
</div>`))

type emailRow struct {
	Label string
	Value string
}

type emailBody struct {
	Heading string
	Content string
	Quote   string
	Rows    []emailRow
	Options []string
}

// renderEmailBody builds the HTML body: a shared layout with a per-type
// detail block extracted from the notification data.
func renderEmailBody(n Notification) (string, error) {
	body := emailBody{Heading: n.Title, Content: n.Content}

	switch n.Type {
	case TypePollCreated:
		body.Heading = "New Poll: " + n.Title
		body.Options = dataStrings(n.Data, "options")

	case TypeEventCreated, TypeEventInvitation, TypeEventReminder:
		body.Rows = dataRows(n.Data,
			emailRow{"Date", "date"},
			emailRow{"Location", "location"},
			emailRow{"Description", "description"},
		)

	case TypePtoRequestStatus:
		body.Heading = "PTO Request Update"
		body.Rows = dataRows(n.Data,
			emailRow{"Status", "status"},
			emailRow{"Start Date", "start_date"},
			emailRow{"End Date", "end_date"},
			emailRow{"Type", "pto_type"},
		)

	case TypePtoCreated:
		body.Heading = "New PTO Request"
		body.Rows = dataRows(n.Data,
			emailRow{"Employee", "employee_name"},
			emailRow{"Start Date", "start_date"},
			emailRow{"End Date", "end_date"},
			emailRow{"Type", "pto_type"},
			emailRow{"Reason", "reason"},
		)

	case TypeEmployeeRecognition:
		body.Heading = "Employee Recognition"
		body.Rows = dataRows(n.Data,
			emailRow{"Category", "category"},
			emailRow{"Given By", "given_by"},
		)

	case TypePostCreated, TypePostLiked, TypePostCommented:
		body.Quote = dataString(n.Data, "post_excerpt")
		body.Rows = dataRows(n.Data, emailRow{"Posted by", "post_author"})

	case TypeCommentReplied, TypeCommentLiked:
		body.Quote = dataString(n.Data, "comment_excerpt")

	case TypeProjectAssignment:
		body.Heading = "Project Assignment"
		body.Rows = dataRows(n.Data,
			emailRow{"Project Name", "project_name"},
			emailRow{"Role", "role"},
			emailRow{"Start Date", "start_date"},
			emailRow{"End Date", "end_date"},
		)

	case TypeDepartmentTransfer:
		body.Rows = dataRows(n.Data,
			emailRow{"From Department", "from_department_name"},
			emailRow{"To Department", "to_department_name"},
			emailRow{"Employee", "employee_name"},
		)

	case TypeDepartmentAssignment, TypeDepartmentRemoval:
		body.Rows = dataRows(n.Data,
			emailRow{"Department", "department_name"},
			emailRow{"Employee", "employee_name"},
		)

	case TypeDepartmentCreated:
		body.Rows = dataRows(n.Data,
			emailRow{"Department Name", "department_name"},
			emailRow{"Manager Name", "manager_name"},
		)

	case TypeEmployeeBirthday:
		body.Rows = dataRows(n.Data,
			emailRow{"Employee Name", "employee_name"},
			emailRow{"Birthday", "birthday"},
		)
	}

	var sb strings.Builder
	if err := emailBodyTmpl.Execute(&sb, body); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func dataString(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// dataRows maps declared (label, data key) pairs to rendered rows, skipping
// keys absent from the payload data.
func dataRows(data map[string]any, rows ...emailRow) []emailRow {
	var out []emailRow
	for _, r := range rows {
		if v := dataString(data, r.Value); v != "" {
			out = append(out, emailRow{Label: r.Label, Value: v})
		}
	}
	return out
}

func dataStrings(data map[string]any, key string) []string {
	if data == nil {
		return nil
	}
	raw, ok := data[key].([]any)
	if !ok {
		if ss, ok := data[key].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
