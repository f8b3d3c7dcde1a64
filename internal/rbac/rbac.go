package rbac

import "letterflow/internal/lifecycle"

type Action string

const (
	ActionRead    Action = "read"
	ActionDeclare Action = "declare"
	ActionReview  Action = "review"
	ActionEdit    Action = "edit"
	ActionRender  Action = "render"
	ActionAdmin   Action = "admin"
)

// Can is the coarse route guard. Whether a review or an edit is legal for a
// particular letter is decided by the lifecycle package.
func Can(role lifecycle.Role, action Action) bool {
	switch role {
	case lifecycle.RoleAdmin:
		return action != ActionReview && action != ActionEdit
	case lifecycle.RolePresident:
		return action == ActionRead || action == ActionReview || action == ActionEdit || action == ActionRender
	case lifecycle.RoleSupervisor:
		return action == ActionRead || action == ActionDeclare || action == ActionReview || action == ActionEdit
	case lifecycle.RolePreparer:
		return action == ActionRead || action == ActionDeclare
	default:
		return false
	}
}

// Normalize maps unknown role names to the least privileged role.
func Normalize(role string) lifecycle.Role {
	parsed, err := lifecycle.ParseRole(role)
	if err != nil {
		return lifecycle.RolePreparer
	}
	return parsed
}
