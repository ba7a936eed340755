package rbac

type Role string
type Action string

const (
	RoleVisitor   Role = "VISITOR"
	RoleMember    Role = "MEMBER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

const (
	ActionRead     Action = "read"
	ActionComment  Action = "comment"
	ActionModerate Action = "moderate"
	ActionAdmin    Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator:
		return action == ActionRead || action == ActionComment || action == ActionModerate
	case RoleMember:
		return action == ActionRead || action == ActionComment
	case RoleVisitor:
		return action == ActionRead
	default:
		return false
	}
}

// CanRespond is the answer-permission check for questions: an admin may
// answer any question, a moderator only questions on posts they authored.
func CanRespond(role Role, userID, postAuthorID string) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleModerator:
		return userID != "" && userID == postAuthorID
	default:
		return false
	}
}

func IsStaff(role Role) bool {
	return role == RoleAdmin || role == RoleModerator
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleVisitor, RoleMember, RoleModerator, RoleAdmin:
		return Role(role)
	default:
		return RoleVisitor
	}
}
