package transfer

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

var (
	// ErrTransferFailed matches every error returned by Executor.Transfer.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrObjectNotFound means the object vanished between listing and download.
	ErrObjectNotFound = errors.New("object not found")
)

// Error describes a failed single-object transfer.
type Error struct {
	// Op is the step that failed (e.g. "prepare", "download", "commit")
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transfer.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

// Unwrap exposes both the failure category and the cause.
func (e *Error) Unwrap() []error {
	return []error{ErrTransferFailed, e.Err}
}

func newError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

func classify(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}
	return err
}
