package recommendations

import (
	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// transition is the precondition and outcome of a decision action.
type transition struct {
	from models.DecisionStatus
	to   models.DecisionStatus
}

// pending -> approved | rejected, approved -> executed. Rejected and executed
// have no outgoing edges.
var transitions = map[models.DecisionAction]transition{
	models.ActionApprove: {from: models.DecisionPending, to: models.DecisionApproved},
	models.ActionReject:  {from: models.DecisionPending, to: models.DecisionRejected},
	models.ActionExecute: {from: models.DecisionApproved, to: models.DecisionExecuted},
}
