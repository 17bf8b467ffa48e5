package port

import "github.com/arturoeanton/go-timesheet-mapper/internal/domain"

// Capabilities checked at service entry points.
const (
	CapabilityRepositoryAdmin  = "repository_admin"
	CapabilityTimesheetMapping = "timesheet_mapping_user"
)

// Action names an operation submitted to the policy decision point.
type Action string

const (
	ActionManageRepository Action = "repository.manage"
	ActionSyncRepository   Action = "repository.sync"
	ActionCreateMapping    Action = "mapping.create"
	ActionRemoveMapping    Action = "mapping.remove"
	ActionReadTimesheet    Action = "timesheet.read"
	ActionWriteTimesheet   Action = "timesheet.write"
)

// Authorizer is the single policy-decision function invoked at every
// repository and mapping entry point, independent of the transport layer.
// resource is the record acted on (a *domain.TimesheetEntry for timesheet
// actions, a *domain.Mapping for mapping removal); nil when the action is
// not record-scoped.
type Authorizer interface {
	Authorize(actor *domain.UserContext, action Action, resource any) error
	HasCapability(actor *domain.UserContext, capability string) bool
}
