package service

import (
	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

// Policy is the role-based policy decision point. Admins hold both
// capabilities, mappers hold the mapping capability, viewers hold none.
type Policy struct{}

// NewPolicy creates the default role policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// HasCapability reports whether the actor's role grants a capability.
func (p *Policy) HasCapability(actor *domain.UserContext, capability string) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return capability == port.CapabilityRepositoryAdmin || capability == port.CapabilityTimesheetMapping
	case domain.RoleMapper:
		return capability == port.CapabilityTimesheetMapping
	}
	return false
}

// Authorize decides whether the actor may perform action on resource.
// Record-scoped checks: timesheet actions verify the entry's tenant,
// mapping removal requires the original mapper or an admin.
func (p *Policy) Authorize(actor *domain.UserContext, action port.Action, resource any) error {
	if actor == nil {
		return port.Permissionf("authentication required")
	}

	switch action {
	case port.ActionManageRepository:
		if !p.HasCapability(actor, port.CapabilityRepositoryAdmin) {
			return port.Permissionf("repository administration requires the %s capability", port.CapabilityRepositoryAdmin)
		}

	case port.ActionSyncRepository, port.ActionCreateMapping, port.ActionReadTimesheet, port.ActionWriteTimesheet:
		if !p.HasCapability(actor, port.CapabilityTimesheetMapping) {
			return port.Permissionf("this operation requires the %s capability", port.CapabilityTimesheetMapping)
		}
		if entry, ok := resource.(*domain.TimesheetEntry); ok && entry.CompanyID != actor.CompanyID {
			return port.Permissionf("timesheet entry belongs to another company")
		}

	case port.ActionRemoveMapping:
		if !p.HasCapability(actor, port.CapabilityTimesheetMapping) {
			return port.Permissionf("this operation requires the %s capability", port.CapabilityTimesheetMapping)
		}
		m, ok := resource.(*domain.Mapping)
		if !ok {
			return port.Permissionf("mapping removal requires the mapping record")
		}
		if m.MappedBy != actor.UserID && actor.Role != domain.RoleAdmin {
			return port.Permissionf("only the original mapper or an administrator can remove this mapping")
		}

	default:
		return port.Permissionf("unknown action %s", action)
	}
	return nil
}
