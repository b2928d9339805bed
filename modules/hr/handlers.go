package hr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peoplehub/dispatch/pkg/email"
	"github.com/peoplehub/dispatch/pkg/notify"
	"github.com/peoplehub/dispatch/pkg/queue"
)

// Handlers wires the HR job types into the queue manager. Notification jobs
// go through the orchestrator, email jobs render digests straight through
// the mailer, report jobs are generation stubs.
type Handlers struct {
	orchestrator *notify.Orchestrator
	directory    Directory
	mailer       email.EmailSender
	logger       *slog.Logger
}

// NewHandlers creates the HR handler set.
func NewHandlers(orchestrator *notify.Orchestrator, directory Directory, mailer email.EmailSender, logger *slog.Logger) (*Handlers, error) {
	if orchestrator == nil || directory == nil || mailer == nil {
		return nil, fmt.Errorf("orchestrator, directory and mailer are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		orchestrator: orchestrator,
		directory:    directory,
		mailer:       mailer,
		logger:       logger,
	}, nil
}

// Register binds every HR job type to its handler on the manager.
func (h *Handlers) Register(m *queue.Manager) error {
	notificationHandlers := map[string]queue.HandlerFunc{
		JobTypeEventCreated:         h.handleEventCreated,
		JobTypeEventInvitation:      h.handleEventInvitation,
		JobTypeEventReminder:        h.handleEventReminder,
		JobTypePostCreated:          h.handlePostCreated,
		JobTypePostLiked:            h.handlePostLiked,
		JobTypePostCommented:        h.handlePostCommented,
		JobTypeCommentReplied:       h.handleCommentReplied,
		JobTypeCommentLiked:         h.handleCommentLiked,
		JobTypePtoCreated:           h.handlePtoCreated,
		JobTypePtoRequestStatus:     h.handlePtoRequestStatus,
		JobTypeProjectAssignment:    h.handleProjectAssignment,
		JobTypeEmployeeRecognition:  h.handleEmployeeRecognition,
		JobTypeEmployeeBirthday:     h.handleEmployeeBirthday,
		JobTypeNewUserSignup:        h.handleNewUserSignup,
		JobTypePollCreated:          h.handlePollCreated,
		JobTypeDepartmentAssignment: h.handleDepartmentAssignment,
		JobTypeDepartmentRemoval:    h.handleDepartmentRemoval,
		JobTypeDepartmentTransfer:   h.handleDepartmentTransfer,
		JobTypeDepartmentCreated:    h.handleDepartmentCreated,
	}
	for jobType, handler := range notificationHandlers {
		if err := m.Register(QueueNotifications, jobType, handler); err != nil {
			return err
		}
	}

	emailHandlers := map[string]queue.HandlerFunc{
		JobTypeEmailEventSummary: h.handleEventSummaryEmail,
		JobTypeEmailWeeklyDigest: h.handleWeeklyDigestEmail,
	}
	for jobType, handler := range emailHandlers {
		if err := m.Register(QueueEmails, jobType, handler); err != nil {
			return err
		}
	}

	reportHandlers := map[string]queue.HandlerFunc{
		JobTypeEventReport:         h.handleEventReport,
		JobTypeParticipationReport: h.handleParticipationReport,
	}
	for jobType, handler := range reportHandlers {
		if err := m.Register(QueueReports, jobType, handler); err != nil {
			return err
		}
	}

	return nil
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("failed to decode payload: %w", err)
	}
	return v, nil
}

// handleEventCreated re-queries fresh event state by id and fans the
// notification out to every employee with an account except the organizer.
func (h *Handlers) handleEventCreated(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[EventCreatedPayload](raw)
	if err != nil {
		return err
	}

	event, err := h.directory.Event(ctx, p.EventID)
	if err != nil {
		return fmt.Errorf("failed to look up event %d: %w", p.EventID, err)
	}
	if event == nil {
		// The event was deleted between enqueue and processing; nothing to
		// announce.
		h.logger.Warn("event no longer exists, skipping notifications",
			slog.Int64("event_id", p.EventID))
		return nil
	}

	employees, err := h.directory.ListEmployees(ctx, p.OrganizerID)
	if err != nil {
		return fmt.Errorf("failed to list employees: %w", err)
	}

	h.fanOut(ctx, employees, func(userID int64) notify.Payload {
		return EventCreatedTemplate(*event, userID)
	})

	h.logger.Info("processed event created notifications",
		slog.Int64("event_id", event.ID),
		slog.Int("recipients", len(employees)))
	return nil
}

func (h *Handlers) handleEventInvitation(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[EventInvitationPayload](raw)
	if err != nil {
		return err
	}
	if p.Employee.User == nil {
		return nil
	}

	_, err = h.orchestrator.Create(ctx, EventInvitationTemplate(p.Event, p.Employee.User.ID))
	return err
}

// handleEventReminder delivers to the snapshot of participants taken when
// the reminder was scheduled.
func (h *Handlers) handleEventReminder(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[EventReminderPayload](raw)
	if err != nil {
		return err
	}

	h.fanOut(ctx, p.Participants, func(userID int64) notify.Payload {
		return EventReminderTemplate(p.Event, userID)
	})

	h.logger.Info("processed event reminder notifications",
		slog.Int64("event_id", p.Event.ID),
		slog.Int("participants", len(p.Participants)))
	return nil
}

// fanOut creates one notification per employee with an account. Per-recipient
// failures are logged and skipped so one bad recipient cannot starve the rest.
func (h *Handlers) fanOut(ctx context.Context, employees []Employee, build func(userID int64) notify.Payload) {
	for _, employee := range employees {
		if employee.User == nil {
			continue
		}
		if _, err := h.orchestrator.Create(ctx, build(employee.User.ID)); err != nil {
			h.logger.Error("failed to notify employee",
				slog.Int64("employee_id", employee.ID),
				slog.String("error", err.Error()))
		}
	}
}

// handlePostCreated fans the announcement out to every employee with an
// account except the author. The payload carries a snapshot of the sender
// and the post taken at enqueue time.
func (h *Handlers) handlePostCreated(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[PostCreatedPayload](raw)
	if err != nil {
		return err
	}

	employees, err := h.directory.ListEmployees(ctx, p.AuthorEmployeeID)
	if err != nil {
		return fmt.Errorf("failed to list employees: %w", err)
	}

	h.fanOut(ctx, employees, func(userID int64) notify.Payload {
		return PostCreatedTemplate(p.Sender, p.Post, userID)
	})

	h.logger.Info("processed post created notifications",
		slog.Int64("post_id", p.Post.ID),
		slog.Int("recipients", len(employees)))
	return nil
}

func (h *Handlers) handlePostLiked(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[PostLikedPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, PostLikedTemplate(p.Sender, p.Post))
	return err
}

func (h *Handlers) handlePostCommented(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[PostCommentedPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, PostCommentedTemplate(p.Sender, p.Post, p.CommentContent))
	return err
}

func (h *Handlers) handleCommentReplied(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[CommentRepliedPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, CommentRepliedTemplate(p.Sender, p.ParentCommentAuthorID, p.CommentContent, p.PostID))
	return err
}

func (h *Handlers) handleCommentLiked(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[CommentLikedPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, CommentLikedTemplate(p.Sender, p.CommentAuthorID, p.CommentContent, p.PostID))
	return err
}

func (h *Handlers) handlePtoCreated(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[PtoCreatedPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, PtoRequestCreatedTemplate(p.Request, p.RecipientID))
	return err
}

func (h *Handlers) handlePtoRequestStatus(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[PtoRequestStatusPayload](raw)
	if err != nil {
		return err
	}
	if p.Request.Employee.User == nil {
		return nil
	}
	_, err = h.orchestrator.Create(ctx, PtoRequestStatusTemplate(p.Request, p.UpdatedBy))
	return err
}

func (h *Handlers) handleProjectAssignment(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[ProjectAssignmentPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, ProjectAssignmentTemplate(p.Project, p.AssignedBy, p.RecipientID))
	return err
}

func (h *Handlers) handleEmployeeRecognition(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[EmployeeRecognitionPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, EmployeeRecognitionTemplate(p.Sender, p.RecipientID, p.Message))
	return err
}

func (h *Handlers) handleEmployeeBirthday(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[EmployeeBirthdayPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, EmployeeBirthdayTemplate(p.Employee, p.Birthday.Format("2006-01-02"), p.RecipientID))
	return err
}

func (h *Handlers) handleNewUserSignup(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[NewUserSignupPayload](raw)
	if err != nil {
		return err
	}
	_, err = h.orchestrator.Create(ctx, NewUserSignupTemplate(p.NewUser, p.RecipientID))
	return err
}

func (h *Handlers) handlePollCreated(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[PollCreatedPayload](raw)
	if err != nil {
		return err
	}

	for _, userID := range p.TargetUserIDs {
		if _, err := h.orchestrator.Create(ctx, PollCreatedTemplate(p.Sender, userID, p.Poll)); err != nil {
			h.logger.Error("failed to notify poll target",
				slog.Int64("user_id", userID),
				slog.Int64("poll_id", p.Poll.ID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (h *Handlers) handleDepartmentAssignment(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[DepartmentAssignmentPayload](raw)
	if err != nil {
		return err
	}
	if p.Employee.User == nil {
		return nil
	}
	_, err = h.orchestrator.Create(ctx, DepartmentAssignmentTemplate(p.Employee, p.Department, p.AssignedBy))
	return err
}

func (h *Handlers) handleDepartmentRemoval(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[DepartmentRemovalPayload](raw)
	if err != nil {
		return err
	}
	if p.Employee.User == nil {
		return nil
	}
	_, err = h.orchestrator.Create(ctx, DepartmentRemovalTemplate(p.Employee, p.Department, p.RemovedBy))
	return err
}

func (h *Handlers) handleDepartmentTransfer(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[DepartmentTransferPayload](raw)
	if err != nil {
		return err
	}
	if p.Employee.User == nil {
		return nil
	}
	_, err = h.orchestrator.Create(ctx, DepartmentTransferTemplate(p.Employee, p.FromDepartment, p.ToDepartment, p.TransferredBy))
	return err
}

func (h *Handlers) handleDepartmentCreated(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[DepartmentCreatedPayload](raw)
	if err != nil {
		return err
	}
	if p.Manager.User == nil {
		return nil
	}
	_, err = h.orchestrator.Create(ctx, DepartmentCreatedTemplate(p.Department, p.Manager))
	return err
}

func (h *Handlers) handleEventSummaryEmail(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[EventSummaryEmailPayload](raw)
	if err != nil {
		return err
	}
	if p.Organizer.User == nil {
		return nil
	}

	addr, err := h.directory.EmailAddress(ctx, p.Organizer.User.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve organizer email: %w", err)
	}
	if addr == "" {
		return nil
	}

	return h.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  fmt.Sprintf("Event Summary: %s", p.Event.Title),
		BodyHTML: renderEventSummary(p.Event),
		Tag:      "email:event:summary",
	})
}

func (h *Handlers) handleWeeklyDigestEmail(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[WeeklyDigestEmailPayload](raw)
	if err != nil {
		return err
	}
	if p.Employee.User == nil {
		return nil
	}

	addr, err := h.directory.EmailAddress(ctx, p.Employee.User.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve employee email: %w", err)
	}
	if addr == "" {
		return nil
	}

	return h.mailer.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  "Your Weekly Event Digest",
		BodyHTML: renderWeeklyDigest(p.Employee, p.Events),
		Tag:      "email:weekly:digest",
	})
}

// Report generation renders nothing yet; the jobs exist so the reporting
// collaborator has a durable hook with progress and retry semantics.
// TODO: persist generated reports to blob storage once the storage
// collaborator lands.
func (h *Handlers) handleEventReport(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[EventReportPayload](raw)
	if err != nil {
		return err
	}
	h.logger.Info("generating event report",
		slog.Time("start_date", p.StartDate),
		slog.Time("end_date", p.EndDate))
	return nil
}

func (h *Handlers) handleParticipationReport(ctx context.Context, raw json.RawMessage) error {
	p, err := decode[ParticipationReportPayload](raw)
	if err != nil {
		return err
	}
	h.logger.Info("generating participation report",
		slog.Int64("employee_id", p.EmployeeID),
		slog.Time("start_date", p.StartDate),
		slog.Time("end_date", p.EndDate))
	return nil
}

func renderEventSummary(event Event) string {
	var sb strings.Builder
	sb.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">`)
	fmt.Fprintf(&sb, `<h2>%s</h2>`, htmlEscape(event.Title))
	fmt.Fprintf(&sb, `<p>%s</p>`, htmlEscape(event.Description))
	fmt.Fprintf(&sb, `<p><strong>When:</strong> %s to %s</p>`,
		event.StartTime.Format("Mon, 02 Jan 2006 15:04"),
		event.EndTime.Format("15:04"))
	if event.Location != "" {
		fmt.Fprintf(&sb, `<p><strong>Where:</strong> %s</p>`, htmlEscape(event.Location))
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func renderWeeklyDigest(employee Employee, events []Event) string {
	var sb strings.Builder
	sb.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">`)
	fmt.Fprintf(&sb, `<h2>Hi %s, here is what's coming up</h2>`, htmlEscape(employee.FirstName))
	if len(events) == 0 {
		sb.WriteString(`<p>No events scheduled this week.</p>`)
	} else {
		sb.WriteString(`<ul>`)
		for _, event := range events {
			fmt.Fprintf(&sb, `<li><strong>%s</strong> on %s`,
				htmlEscape(event.Title),
				event.StartTime.Format("Mon, 02 Jan 15:04"))
			if event.Location != "" {
				fmt.Fprintf(&sb, ` at %s`, htmlEscape(event.Location))
			}
			sb.WriteString(`</li>`)
		}
		sb.WriteString(`</ul>`)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}
