package transport

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginRequest accepts an email or a username as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type OAuthRequest struct {
	IDToken string `json:"id_token"`
}

type ReauthenticateRequest struct {
	CurrentPassword string `json:"current_password"`
}

type PasswordChangeRequest struct {
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ProfileUpdateRequest struct {
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`
}

type DragRequest struct {
	Column string `json:"column"`
	TaskID string `json:"task_id"`
}

// DropRequest carries the payload returned by the drag endpoint. A nil Index
// drops onto the column itself, which appends at the end.
type DropRequest struct {
	Payload string `json:"payload"`
	Column  string `json:"column"`
	Index   *int   `json:"index"`
}

// SelectRequest picks a reviewer or blocker. An empty ID cancels the workflow.
type SelectRequest struct {
	ID string `json:"id"`
}

type TaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"due_date"`
	Priority    string   `json:"priority"`
	AssigneeIDs []string `json:"assignee_ids"`
}
