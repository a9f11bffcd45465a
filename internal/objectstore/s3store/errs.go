package s3store

import stderrors "errors"

// isErrorType reports whether err, wrapped or not, is of type T.
func isErrorType[T error](err error) bool {
	var target T
	return stderrors.As(err, &target)
}
