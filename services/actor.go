package services

import "asistencia_backend/models"

// Actor is the verified identity context attached to every call. It comes
// from the auth middleware; services trust it and never re-authenticate.
type Actor struct {
	ID            uint   // staff id, or guardian id when Role is guardian
	Role          string
	InstitutionID uint   // zero for guardians; their scope is the guardian-student link
}

func (a Actor) IsStaff() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleTeacher || a.Role == models.RoleAuxiliary
}

func (a Actor) IsGuardian() bool { return a.Role == models.RoleGuardian }
