package service

import "filetrack/internal/models"

// Custodian is a (user, division) pair that held a file.
type Custodian struct {
	UserID     uint
	DivisionID uint
}

// custodyChain replays the history into the stack of custodians that led to the current one.
// A return-to-previous pops the custodian it returned from, so repeated returns walk further back
// instead of bouncing between the last two holders.
func custodyChain(history []models.RoutingHistoryEntry) []Custodian {
	var chain []Custodian
	for _, e := range history {
		if !e.Action.MovesCustody() || e.ToUserID == nil {
			continue
		}
		if e.Action == models.ActionReturnedToPrevious && len(chain) > 0 {
			chain = chain[:len(chain)-1]
			continue
		}
		c := Custodian{UserID: *e.ToUserID}
		if e.ToDivisionID != nil {
			c.DivisionID = *e.ToDivisionID
		}
		chain = append(chain, c)
	}
	return chain
}

// previousCustodian returns the custodian before the current one, if any.
func previousCustodian(history []models.RoutingHistoryEntry) (Custodian, bool) {
	chain := custodyChain(history)
	if len(chain) < 2 {
		return Custodian{}, false
	}
	return chain[len(chain)-2], true
}
