/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for missing records, tombstoned records, and
// records owned by a different user. Ownership mismatches deliberately look
// identical to missing records so existence never leaks across owners.
var ErrNotFound = errors.New("record not found")

// VersionConflictError reports a failed optimistic-concurrency check on a
// synced record. It is recoverable: callers may refetch and retry.
type VersionConflictError struct {
	Table    string
	Id       string
	Expected int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s %s: expected version %d", e.Table, e.Id, e.Expected)
}

// ValidationError reports invalid caller input on a repository boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LockedError reports a mutation blocked by a backend constraint, e.g. a
// delete rejected because dependent rows or a business-rule trigger exist.
type LockedError struct {
	Table  string
	Id     string
	Reason string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s %s is locked: %s", e.Table, e.Id, e.Reason)
}

// RepositoryError wraps unexpected infrastructure failures. Unlike the other
// kinds it is not actionable by the user and should be reported upstream.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository failure in %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// RpcMismatchError reports signature drift between this client and a backend
// procedure: an unknown status code or a malformed result row. This is a
// programmer error, never a user-recoverable condition.
type RpcMismatchError struct {
	Procedure string
	Detail    string
}

func (e *RpcMismatchError) Error() string {
	return fmt.Sprintf("rpc mismatch calling %s: %s", e.Procedure, e.Detail)
}

// IsNotFound reports whether err is a missing-record condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsVersionConflict reports whether err is a recoverable optimistic-concurrency
// conflict, as opposed to a terminal repository failure.
func IsVersionConflict(err error) bool {
	var vc *VersionConflictError
	return errors.As(err, &vc)
}

// IsValidation reports whether err is caller-input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsLocked reports whether err is a constraint-blocked mutation.
func IsLocked(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}

// IsRpcMismatch reports whether err is client/backend procedure drift.
func IsRpcMismatch(err error) bool {
	var re *RpcMismatchError
	return errors.As(err, &re)
}

// WrapUnexpected converts an arbitrary failure into a RepositoryError unless
// it is already one of the typed expected conditions.
func WrapUnexpected(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsVersionConflict(err) || IsValidation(err) || IsLocked(err) || IsRpcMismatch(err) {
		return err
	}
	var re *RepositoryError
	if errors.As(err, &re) {
		return err
	}
	return &RepositoryError{Op: op, Err: err}
}
