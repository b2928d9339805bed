package hr

import (
	"fmt"

	"github.com/peoplehub/dispatch/pkg/notify"
)

// excerptLimit is the maximum number of characters of a free-text excerpt
// embedded in notification content or data.
const excerptLimit = 50

// excerpt truncates free text to the first 50 characters plus a trailing
// ellipsis when longer. Counts runes, not bytes, so multibyte text is never
// split mid-rune.
func excerpt(s string) string {
	if r := []rune(s); len(r) > excerptLimit {
		return string(r[:excerptLimit]) + "..."
	}
	return s
}

// prefix truncates to the first 50 characters without an ellipsis. Used for
// titles carried in data where the original keeps a bare substring.
func prefix(s string) string {
	if r := []rune(s); len(r) > excerptLimit {
		return string(r[:excerptLimit])
	}
	return s
}

// Template builders: pure functions mapping domain events to notification
// payloads. All free-text excerpts pass through excerpt or prefix.

func PostCreatedTemplate(sender User, post Post, recipientID int64) notify.Payload {
	return notify.Payload{
		Type:        notify.TypePostCreated,
		RecipientID: recipientID,
		SenderID:    &sender.ID,
		Title:       "New Post",
		Content:     fmt.Sprintf("%s published a new post", sender.Username),
		Data: map[string]any{
			"post_id":      post.ID,
			"post_excerpt": prefix(post.Content),
			"post_author":  sender.Username,
		},
	}
}

func PostLikedTemplate(sender User, post Post) notify.Payload {
	return notify.Payload{
		Type:        notify.TypePostLiked,
		RecipientID: post.AuthorID,
		SenderID:    &sender.ID,
		Title:       "New Like on Your Post",
		Content:     fmt.Sprintf("%s liked your post", sender.Username),
		Data: map[string]any{
			"post_id":      post.ID,
			"post_excerpt": prefix(post.Content),
			"post_author":  sender.Username,
		},
	}
}

func PostCommentedTemplate(sender User, post Post, commentContent string) notify.Payload {
	return notify.Payload{
		Type:        notify.TypePostCommented,
		RecipientID: post.AuthorID,
		SenderID:    &sender.ID,
		Title:       "New Comment on Your Post",
		Content:     fmt.Sprintf("%s commented on your post: %q", sender.Username, excerpt(commentContent)),
		Data: map[string]any{
			"post_id":         post.ID,
			"post_excerpt":    prefix(post.Content),
			"comment_excerpt": excerpt(commentContent),
		},
	}
}

func CommentRepliedTemplate(sender User, parentCommentAuthorID int64, commentContent string, postID int64) notify.Payload {
	return notify.Payload{
		Type:        notify.TypeCommentReplied,
		RecipientID: parentCommentAuthorID,
		SenderID:    &sender.ID,
		Title:       "New Reply to Your Comment",
		Content:     fmt.Sprintf("%s replied to your comment: %q", sender.Username, excerpt(commentContent)),
		Data: map[string]any{
			"post_id":         postID,
			"comment_excerpt": excerpt(commentContent),
		},
	}
}

func CommentLikedTemplate(sender User, commentAuthorID int64, commentContent string, postID int64) notify.Payload {
	return notify.Payload{
		Type:        notify.TypeCommentLiked,
		RecipientID: commentAuthorID,
		SenderID:    &sender.ID,
		Title:       "New Like on Your Comment",
		Content:     fmt.Sprintf("%s liked your comment: %q", sender.Username, excerpt(commentContent)),
		Data: map[string]any{
			"post_id":         postID,
			"comment_excerpt": excerpt(commentContent),
		},
	}
}

func EventCreatedTemplate(event Event, recipientID int64) notify.Payload {
	return notify.Payload{
		Type:        notify.TypeEventCreated,
		RecipientID: recipientID,
		SenderID:    &event.OrganizerUserID,
		Title:       "New Event Created",
		Content:     fmt.Sprintf("A new event %q has been created", event.Title),
		Data: map[string]any{
			"event_id": event.ID,
			"title":    event.Title,
			"date":     event.StartTime.Format("2006-01-02 15:04"),
			"location": event.Location,
		},
	}
}

func EventInvitationTemplate(event Event, recipientID int64) notify.Payload {
	return notify.Payload{
		Type:        notify.TypeEventInvitation,
		RecipientID: recipientID,
		SenderID:    &event.OrganizerUserID,
		Title:       "Event Invitation",
		Content:     fmt.Sprintf("You have been invited to the event %q", event.Title),
		Data: map[string]any{
			"event_id":    event.ID,
			"title":       event.Title,
			"date":        event.StartTime.Format("2006-01-02 15:04"),
			"location":    event.Location,
			"description": event.Description,
		},
	}
}

func EventReminderTemplate(event Event, recipientID int64) notify.Payload {
	return notify.Payload{
		Type:        notify.TypeEventReminder,
		RecipientID: recipientID,
		SenderID:    &event.OrganizerUserID,
		Title:       "Event Reminder",
		Content:     fmt.Sprintf("Reminder: %s is coming up soon!", event.Title),
		Data: map[string]any{
			"event_id": event.ID,
			"title":    event.Title,
			"date":     event.StartTime.Format("2006-01-02 15:04"),
			"location": event.Location,
		},
	}
}

func PtoRequestCreatedTemplate(request PtoRequest, recipientID int64) notify.Payload {
	var senderID *int64
	employeeName := request.Employee.FullName()
	if request.Employee.User != nil {
		senderID = &request.Employee.User.ID
		employeeName = request.Employee.User.Username
	}

	return notify.Payload{
		Type:        notify.TypePtoCreated,
		RecipientID: recipientID,
		SenderID:    senderID,
		Title:       "New PTO Request",
		Content:     fmt.Sprintf("%s has submitted a PTO request", employeeName),
		Data: map[string]any{
			"request_id":    request.ID,
			"employee_name": employeeName,
			"start_date":    request.StartDate.Format("2006-01-02"),
			"end_date":      request.EndDate.Format("2006-01-02"),
			"pto_type":      request.Type,
			"reason":        request.Reason,
		},
	}
}

func PtoRequestStatusTemplate(request PtoRequest, updatedBy User) notify.Payload {
	var recipientID int64
	if request.Employee.User != nil {
		recipientID = request.Employee.User.ID
	}

	return notify.Payload{
		Type:        notify.TypePtoRequestStatus,
		RecipientID: recipientID,
		SenderID:    &updatedBy.ID,
		Title:       "PTO Request Status Update",
		Content:     fmt.Sprintf("Your PTO request has been %s", titleCase(request.Status)),
		Data: map[string]any{
			"request_id": request.ID,
			"status":     request.Status,
			"start_date": request.StartDate.Format("2006-01-02"),
			"end_date":   request.EndDate.Format("2006-01-02"),
			"pto_type":   request.Type,
		},
	}
}

func ProjectAssignmentTemplate(project Project, assignedBy User, recipientID int64) notify.Payload {
	data := map[string]any{
		"project_id":   project.ID,
		"project_name": project.Name,
		"role":         project.Role,
		"start_date":   project.StartDate.Format("2006-01-02"),
	}
	if project.EndDate != nil {
		data["end_date"] = project.EndDate.Format("2006-01-02")
	}

	return notify.Payload{
		Type:        notify.TypeProjectAssignment,
		RecipientID: recipientID,
		SenderID:    &assignedBy.ID,
		Title:       "Project Assignment",
		Content:     fmt.Sprintf("You have been assigned to project %q", project.Name),
		Data:        data,
	}
}

func EmployeeRecognitionTemplate(sender User, recipientID int64, message string) notify.Payload {
	return notify.Payload{
		Type:        notify.TypeEmployeeRecognition,
		RecipientID: recipientID,
		SenderID:    &sender.ID,
		Title:       "Employee Recognition",
		Content:     fmt.Sprintf("%s recognized your work: %q", sender.Username, excerpt(message)),
		Data: map[string]any{
			"message":  message,
			"given_by": sender.Username,
		},
	}
}

func EmployeeBirthdayTemplate(employee Employee, birthday string, recipientID int64) notify.Payload {
	var senderID *int64
	name := employee.FullName()
	if employee.User != nil {
		senderID = &employee.User.ID
		name = employee.User.Username
	}

	return notify.Payload{
		Type:        notify.TypeEmployeeBirthday,
		RecipientID: recipientID,
		SenderID:    senderID,
		Title:       "Employee Birthday",
		Content:     fmt.Sprintf("%s has a birthday today", name),
		Data: map[string]any{
			"employee_id":   employee.ID,
			"employee_name": name,
			"birthday":      birthday,
		},
	}
}

func NewUserSignupTemplate(newUser User, recipientID int64) notify.Payload {
	return notify.Payload{
		Type:        notify.TypeNewUserSignup,
		RecipientID: recipientID,
		SenderID:    &newUser.ID,
		Title:       "New User Registration",
		Content:     fmt.Sprintf("%s has signed up and is awaiting account review", newUser.Username),
		Data: map[string]any{
			"user_id":  newUser.ID,
			"username": newUser.Username,
		},
	}
}

func PollCreatedTemplate(sender User, recipientID int64, poll Poll) notify.Payload {
	options := make([]any, 0, len(poll.Options))
	for _, o := range poll.Options {
		options = append(options, o)
	}

	return notify.Payload{
		Type:        notify.TypePollCreated,
		RecipientID: recipientID,
		SenderID:    &sender.ID,
		Title:       "New Poll Created",
		Content:     fmt.Sprintf("A new poll %q has been created", excerpt(poll.Description)),
		Data: map[string]any{
			"poll_id":    poll.ID,
			"poll_title": prefix(poll.Description),
			"options":    options,
		},
	}
}

func DepartmentCreatedTemplate(department Department, manager Employee) notify.Payload {
	var recipientID int64
	if manager.User != nil {
		recipientID = manager.User.ID
	}

	return notify.Payload{
		Type:        notify.TypeDepartmentCreated,
		RecipientID: recipientID,
		Title:       "Department Manager Assignment",
		Content:     fmt.Sprintf("You have been assigned as manager of the new department %q", department.Name),
		Data: map[string]any{
			"department_id":   department.ID,
			"department_name": department.Name,
			"manager_name":    manager.FullName(),
		},
	}
}

func DepartmentAssignmentTemplate(employee Employee, department Department, assignedBy User) notify.Payload {
	var recipientID int64
	if employee.User != nil {
		recipientID = employee.User.ID
	}

	return notify.Payload{
		Type:        notify.TypeDepartmentAssignment,
		RecipientID: recipientID,
		SenderID:    &assignedBy.ID,
		Title:       "Department Assignment",
		Content:     fmt.Sprintf("You have been assigned to department %q", department.Name),
		Data: map[string]any{
			"department_id":   department.ID,
			"department_name": department.Name,
			"employee_name":   employee.FullName(),
		},
	}
}

func DepartmentRemovalTemplate(employee Employee, department Department, removedBy User) notify.Payload {
	var recipientID int64
	if employee.User != nil {
		recipientID = employee.User.ID
	}

	return notify.Payload{
		Type:        notify.TypeDepartmentRemoval,
		RecipientID: recipientID,
		SenderID:    &removedBy.ID,
		Title:       "Department Removal",
		Content:     fmt.Sprintf("You have been removed from department %q", department.Name),
		Data: map[string]any{
			"department_id":   department.ID,
			"department_name": department.Name,
			"employee_name":   employee.FullName(),
		},
	}
}

func DepartmentTransferTemplate(employee Employee, from, to Department, transferredBy User) notify.Payload {
	var recipientID int64
	if employee.User != nil {
		recipientID = employee.User.ID
	}

	return notify.Payload{
		Type:        notify.TypeDepartmentTransfer,
		RecipientID: recipientID,
		SenderID:    &transferredBy.ID,
		Title:       "Department Transfer",
		Content:     fmt.Sprintf("You have been transferred from department %q to %q", from.Name, to.Name),
		Data: map[string]any{
			"from_department_name": from.Name,
			"to_department_name":   to.Name,
			"employee_name":        employee.FullName(),
		},
	}
}

// titleCase uppercases the first byte and lowercases the rest, matching how
// PTO statuses like APPROVED are rendered as Approved.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	out := []byte(s)
	if out[0] >= 'a' && out[0] <= 'z' {
		out[0] -= 'a' - 'A'
	}
	for i := 1; i < len(out); i++ {
		if out[i] >= 'A' && out[i] <= 'Z' {
			out[i] += 'a' - 'A'
		}
	}
	return string(out)
}
