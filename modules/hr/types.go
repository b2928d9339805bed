package hr

import (
	"context"
	"time"
)

// Queue names of the engine's fixed set.
const (
	QueueNotifications = "notifications"
	QueueEmails        = "emails"
	QueueReports       = "reports"
)

// QueueNames returns the fixed queue set in declaration order.
func QueueNames() []string {
	return []string{QueueNotifications, QueueEmails, QueueReports}
}

// Job type discriminators. The queue a job belongs to is part of the
// contract: notification types run on QueueNotifications, email types on
// QueueEmails, report types on QueueReports.
const (
	JobTypeEventCreated    = "event:created"
	JobTypeEventInvitation = "event:invitation"
	JobTypeEventReminder   = "event:reminder"

	JobTypePostCreated    = "post:created"
	JobTypePostLiked      = "post:liked"
	JobTypePostCommented  = "post:commented"
	JobTypeCommentReplied = "comment:replied"
	JobTypeCommentLiked   = "comment:liked"

	JobTypePtoCreated       = "pto:created"
	JobTypePtoRequestStatus = "pto:request:status"

	JobTypeProjectAssignment   = "project:assignment"
	JobTypeEmployeeRecognition = "employee:recognition"
	JobTypeEmployeeBirthday    = "employee:birthday"
	JobTypeNewUserSignup       = "user:signup"

	JobTypePollCreated = "poll:created"

	JobTypeDepartmentAssignment = "department:assignment"
	JobTypeDepartmentRemoval    = "department:removal"
	JobTypeDepartmentTransfer   = "department:transfer"
	JobTypeDepartmentCreated    = "department:created"

	JobTypeEmailEventSummary = "email:event:summary"
	JobTypeEmailWeeklyDigest = "email:weekly:digest"

	JobTypeEventReport         = "report:event:generate"
	JobTypeParticipationReport = "report:participation:generate"
)

// User is the account snapshot embedded in job payloads.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Employee is the personnel snapshot. User is nil for employees without a
// portal account; such employees are skipped during notification fan-out.
type Employee struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	User      *User  `json:"user,omitempty"`
}

// FullName returns the employee's display name.
func (e Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// Event is the calendar event snapshot.
type Event struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Location        string    `json:"location,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	OrganizerUserID int64     `json:"organizer_user_id"`
}

// Post is the feed post snapshot.
type Post struct {
	ID       int64  `json:"id"`
	AuthorID int64  `json:"author_id"`
	Content  string `json:"content"`
}

// PtoRequest is the time-off request snapshot.
type PtoRequest struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Employee  Employee  `json:"employee"`
}

// Poll is the poll snapshot.
type Poll struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	Options     []string `json:"options,omitempty"`
}

// Department is the department snapshot.
type Department struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Project is the project snapshot.
type Project struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Role      string     `json:"role,omitempty"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Directory is the external CRUD collaborator the engine reads reference
// data from. It deliberately exposes only what handlers need: employee
// fan-out lists, event lookups for id-only payloads, and email addresses
// for the email channel.
type Directory interface {
	// ListEmployees returns every employee except the one identified by
	// excludeEmployeeID. Pass 0 to exclude nobody.
	ListEmployees(ctx context.Context, excludeEmployeeID int64) ([]Employee, error)

	// Event returns an event by id, or nil when it no longer exists.
	Event(ctx context.Context, id int64) (*Event, error)

	// EmailAddress returns the user's email, or "" when none is on file.
	EmailAddress(ctx context.Context, userID int64) (string, error)
}

// Payloads carried through the queues. The snapshot-versus-id choice per
// type is deliberate: event creation re-queries fresh state at processing
// time, reminders carry a denormalized snapshot taken at scheduling time.

type EventCreatedPayload struct {
	EventID     int64 `json:"event_id"`
	OrganizerID int64 `json:"organizer_id"`
}

type EventInvitationPayload struct {
	Event    Event    `json:"event"`
	Employee Employee `json:"employee"`
}

type EventReminderPayload struct {
	Event        Event      `json:"event"`
	Participants []Employee `json:"participants"`
}

type PostCreatedPayload struct {
	Sender User `json:"sender"`
	Post   Post `json:"post"`
	// AuthorEmployeeID excludes the author from the fan-out.
	AuthorEmployeeID int64 `json:"author_employee_id"`
}

type PostLikedPayload struct {
	Sender User `json:"sender"`
	Post   Post `json:"post"`
}

type PostCommentedPayload struct {
	Sender         User   `json:"sender"`
	Post           Post   `json:"post"`
	CommentContent string `json:"comment_content"`
}

type CommentRepliedPayload struct {
	Sender                User   `json:"sender"`
	ParentCommentAuthorID int64  `json:"parent_comment_author_id"`
	CommentContent        string `json:"comment_content"`
	PostID                int64  `json:"post_id"`
}

type CommentLikedPayload struct {
	Sender          User   `json:"sender"`
	CommentAuthorID int64  `json:"comment_author_id"`
	CommentContent  string `json:"comment_content"`
	PostID          int64  `json:"post_id"`
}

type PtoCreatedPayload struct {
	Request     PtoRequest `json:"request"`
	RecipientID int64      `json:"recipient_id"`
}

type PtoRequestStatusPayload struct {
	Request   PtoRequest `json:"request"`
	UpdatedBy User       `json:"updated_by"`
}

type ProjectAssignmentPayload struct {
	Project     Project `json:"project"`
	AssignedBy  User    `json:"assigned_by"`
	RecipientID int64   `json:"recipient_id"`
}

type EmployeeRecognitionPayload struct {
	Sender      User   `json:"sender"`
	RecipientID int64  `json:"recipient_id"`
	Message     string `json:"message"`
}

type EmployeeBirthdayPayload struct {
	Employee    Employee  `json:"employee"`
	Birthday    time.Time `json:"birthday"`
	RecipientID int64     `json:"recipient_id"`
}

type NewUserSignupPayload struct {
	NewUser     User  `json:"new_user"`
	RecipientID int64 `json:"recipient_id"`
}

type PollCreatedPayload struct {
	Poll          Poll    `json:"poll"`
	Sender        User    `json:"sender"`
	TargetUserIDs []int64 `json:"target_user_ids"`
}

type DepartmentAssignmentPayload struct {
	Employee   Employee   `json:"employee"`
	Department Department `json:"department"`
	AssignedBy User       `json:"assigned_by"`
}

type DepartmentRemovalPayload struct {
	Employee   Employee   `json:"employee"`
	Department Department `json:"department"`
	RemovedBy  User       `json:"removed_by"`
}

type DepartmentTransferPayload struct {
	Employee       Employee   `json:"employee"`
	FromDepartment Department `json:"from_department"`
	ToDepartment   Department `json:"to_department"`
	TransferredBy  User       `json:"transferred_by"`
}

type DepartmentCreatedPayload struct {
	Department Department `json:"department"`
	Manager    Employee   `json:"manager"`
}

type EventSummaryEmailPayload struct {
	Event     Event    `json:"event"`
	Organizer Employee `json:"organizer"`
}

type WeeklyDigestEmailPayload struct {
	Employee Employee `json:"employee"`
	Events   []Event  `json:"events"`
}

type EventReportPayload struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type ParticipationReportPayload struct {
	EmployeeID int64     `json:"employee_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
}
