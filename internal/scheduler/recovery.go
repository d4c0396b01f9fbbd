package scheduler

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/rentledger/internal/observability/metrics"
	"go.uber.org/zap"
)

var ErrLeasePanic = errors.New("lease_billing_panic")

// recoverLease turns a panic in one lease's unit of work into a failed outcome
// so the rest of the batch keeps going. It must be deferred directly.
func (s *Scheduler) recoverLease(leaseID snowflake.ID, outcome *string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	*outcome = obsmetrics.BillingOutcomeFailed
	*err = fmt.Errorf("%w: %v", ErrLeasePanic, r)
	s.log.Error("scheduler.lease.panic",
		zap.String("lease_id", idString(leaseID)),
		zap.Any("panic", r),
		zap.ByteString("stack", debug.Stack()),
	)
}
