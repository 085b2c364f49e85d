package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrAlreadyEnded   = errors.New("already ended")
	ErrInvalidArg     = errors.New("invalid argument")
)

type BucketErrorKind string

const (
	NotActive   BucketErrorKind = "not in active bucket"
	NotCanceled BucketErrorKind = "not in canceled bucket"
	NotHidden   BucketErrorKind = "not in hidden bucket"
)

// BucketError is returned when an administrative call tries to move a
// schedule out of a bucket it is not a member of.
type BucketError struct {
	Name string
	Kind BucketErrorKind
}

func (e *BucketError) Error() string {
	return fmt.Sprintf("schedule %q: %s", e.Name, e.Kind)
}

func IsBucketError(err error) bool {
	var bucketErr *BucketError
	return errors.As(err, &bucketErr)
}
