// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"fmt"

	"golang.org/x/xerrors"
)

// NotFoundError reports that an object is missing from every layer the
// resolver consulted. It is always recoverable.
type NotFoundError struct {
	ID ShortID
}

// NewNotFoundError wraps a full id as a NotFoundError.
func NewNotFoundError(id ID) *NotFoundError {
	return &NotFoundError{ID: Widen(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("objects: object not found: %s", e.ID)
}

// AmbiguousError reports that a short id matched more than one object
// across the consulted layers. Recoverable; the caller may supply a
// longer prefix.
type AmbiguousError struct {
	ID ShortID
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("objects: ambiguous short id: %s", e.ID)
}

// Component names a store layer, used to tag MalformedError values.
type Component string

const (
	ComponentLoose     Component = "loose"
	ComponentPack      Component = "pack"
	ComponentPackIndex Component = "pack-index"
	ComponentDelta     Component = "delta"
)

// MalformedError reports that a persistent store contains data
// inconsistent with the format it claims to be. It is not
// automatically recoverable.
type MalformedError struct {
	Component Component
	Reason    string
	ID        ShortID // zero value if not id-specific
}

func (e *MalformedError) Error() string {
	if e.ID.Len == 0 {
		return fmt.Sprintf("objects: malformed %s: %s", e.Component, e.Reason)
	}
	return fmt.Sprintf("objects: malformed %s (%s): %s", e.Component, e.ID, e.Reason)
}

// NewMalformedError builds a MalformedError not tied to any particular
// object id (e.g. a structural violation in an index's fan-out table).
func NewMalformedError(component Component, reason string) *MalformedError {
	return &MalformedError{Component: component, Reason: reason}
}

// LengthMismatchError is a MalformedError subclass: a declared length
// disagreed with the actual length observed.
type LengthMismatchError struct {
	Component Component
	Declared  int
	Actual    int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("objects: length mismatch in %s: declared %d, got %d", e.Component, e.Declared, e.Actual)
}

// UnsupportedVersionError is a MalformedError subclass: a pack or index
// format version outside the accepted set.
type UnsupportedVersionError struct {
	Component Component
	Version   uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("objects: unsupported %s version: %d", e.Component, e.Version)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return xerrors.As(err, &e)
}

// IsAmbiguous reports whether err is (or wraps) an AmbiguousError.
func IsAmbiguous(err error) bool {
	var e *AmbiguousError
	return xerrors.As(err, &e)
}
