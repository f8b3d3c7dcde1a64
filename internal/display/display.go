// Package display maps lifecycle values to the Arabic labels, badge classes and
// icons shown to users. None of these strings flow back into the state machine.
package display

import "letterflow/internal/lifecycle"

var statusLabels = map[lifecycle.Status]string{
	lifecycle.StatusInProgress: "قيد المعالجة",
	lifecycle.StatusPending:    "قيد المراجعة لدى الرئيس",
	lifecycle.StatusApproved:   "تمت الموافقة",
	lifecycle.StatusRejected:   "مرفوض",
}

var statusBadges = map[lifecycle.Status]string{
	lifecycle.StatusInProgress: "badge bg-info text-dark",
	lifecycle.StatusPending:    "badge bg-warning text-dark",
	lifecycle.StatusApproved:   "badge bg-success",
	lifecycle.StatusRejected:   "badge bg-danger",
}

var roleLabels = map[lifecycle.Role]string{
	lifecycle.RoleAdmin:      "مدير النظام",
	lifecycle.RoleSupervisor: "مراجع",
	lifecycle.RolePresident:  "رئيس الجامعة",
	lifecycle.RolePreparer:   "معد الخطاب",
}

var roleIcons = map[lifecycle.Role]string{
	lifecycle.RoleAdmin:      "fa-user-shield",
	lifecycle.RoleSupervisor: "fa-user-check",
	lifecycle.RolePresident:  "fa-user-tie",
}

var signatureLabels = map[lifecycle.SignatureOption]string{
	lifecycle.SignatureGenuine: "حقيقية",
	lifecycle.SignatureScanned: "الممسوحة ضوئيا",
}

func StatusLabel(status lifecycle.Status) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return "غير محدد"
}

func StatusBadge(status lifecycle.Status) string {
	if badge, ok := statusBadges[status]; ok {
		return badge
	}
	return "badge bg-secondary"
}

func RoleLabel(role lifecycle.Role) string {
	if label, ok := roleLabels[role]; ok {
		return label
	}
	if role == "" {
		return "مستخدم"
	}
	return string(role)
}

func RoleIcon(role lifecycle.Role) string {
	if icon, ok := roleIcons[role]; ok {
		return icon
	}
	return "fa-user"
}

func SignatureLabel(option lifecycle.SignatureOption) string {
	if label, ok := signatureLabels[option]; ok {
		return label
	}
	return string(option)
}

// StepState is the progress indicator state of one approval stage.
type StepState string

const (
	StepIdle      StepState = ""
	StepActive    StepState = "active"
	StepCompleted StepState = "completed"
)

// Steps returns the indicator state for the three stages: preparation review,
// president review, approval. A rejected letter shows no progress.
func Steps(status lifecycle.Status) [3]StepState {
	switch status {
	case lifecycle.StatusInProgress:
		return [3]StepState{StepActive, StepIdle, StepIdle}
	case lifecycle.StatusPending:
		return [3]StepState{StepCompleted, StepActive, StepIdle}
	case lifecycle.StatusApproved:
		return [3]StepState{StepCompleted, StepCompleted, StepCompleted}
	default:
		return [3]StepState{}
	}
}
