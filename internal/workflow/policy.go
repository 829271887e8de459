package workflow

import "fleetops-backend/internal/model"

// Action identifies a group of operations an actor may currently perform
// on a transfer request. At most one action is available for any
// (user, request) pair, matching the request's current status.
type Action string

const (
	ActionPMReview       Action = "pm_review"          // approve or reject as requesting-site PM
	ActionAssignSource   Action = "assign_source_site" // pick the site that will provide the machine
	ActionSourceReview   Action = "source_pm_review"   // approve (with a machine) or reject as source-site PM
	ActionMarkInTransit  Action = "mark_in_transit"
	ActionConfirmReceipt Action = "confirm_receipt"
)

// AvailableAction decides which action, if any, the user may perform on the
// request. It is a pure function of the user's role and site and the
// request's status and site references; read-only viewers get ok=false.
func AvailableAction(u *model.User, r *model.TransferRequest) (Action, bool) {
	switch r.Status {
	case model.StatusPendingPM:
		if u.Role == model.RoleProjectManager && atSite(u, r.RequestingSiteID) {
			return ActionPMReview, true
		}
	case model.StatusPendingMechanical:
		if u.Role == model.RoleMechanicalHead {
			return ActionAssignSource, true
		}
	case model.StatusAwaitingSourcePM:
		if r.SourceSiteID != nil && u.Role == model.RoleProjectManager && atSite(u, *r.SourceSiteID) {
			return ActionSourceReview, true
		}
	case model.StatusApproved:
		if u.Role == model.RoleMechanicalHead || (r.SourceSiteID != nil && atSite(u, *r.SourceSiteID)) {
			return ActionMarkInTransit, true
		}
	case model.StatusInTransit:
		if atSite(u, r.RequestingSiteID) {
			return ActionConfirmReceipt, true
		}
	}
	return "", false
}

// Allows reports whether the user may perform the given action on the
// request right now.
func Allows(u *model.User, r *model.TransferRequest, action Action) bool {
	available, ok := AvailableAction(u, r)
	return ok && available == action
}

func atSite(u *model.User, siteID int64) bool {
	return u.SiteID != nil && *u.SiteID == siteID
}
