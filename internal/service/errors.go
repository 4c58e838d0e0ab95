package service

import (
	"fmt"
	"time"

	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id oid.ID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id oid.ID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

func NewErrScheduleNotFound(id oid.ID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "schedule")
}

func NewErrTemplateNotFound(id oid.ID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "template")
}

type ErrValidation struct {
	error
}

func NewErrValidation(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf(format, args...)}
}

// ErrConflict marks an operation rejected because the resource's current
// state forbids it, e.g. cancelling a completed job.
type ErrConflict struct {
	error
}

func NewErrConflict(format string, args ...any) *ErrConflict {
	return &ErrConflict{fmt.Errorf(format, args...)}
}

type ErrOutputNotReady struct {
	error
}

func NewErrOutputNotReady(id oid.ID, status string) *ErrOutputNotReady {
	return &ErrOutputNotReady{fmt.Errorf("job %s has no downloadable output, its status is %s", id, status)}
}

type ErrOutputExpired struct {
	error
}

func NewErrOutputExpired(id oid.ID, expiredAt time.Time) *ErrOutputExpired {
	return &ErrOutputExpired{fmt.Errorf("output of job %s expired at %s", id, expiredAt.Format(time.RFC3339))}
}
