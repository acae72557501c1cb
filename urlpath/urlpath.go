// Copyright 2023 The NamespaceDB Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package urlpath pairs a raw path segment with its percent-encoded form
// under UTF-8. The HTTP facing collaborators render both forms of every
// path element.
package urlpath

import (
	"net/url"
	"strings"
)

const schemeFilePrefix = "file://"

// Segment holds a path element in unencoded and encoded form. The zero
// value is the empty segment.
type Segment struct {
	path    string
	encoded string
}

// New builds a Segment from an unencoded path element.
//
// The segment is encoded by constructing an absolute file URI and
// stripping the leading "file:///". Encoding it directly with no scheme
// is avoided because a colon in the first element of a relative reference
// makes the encoder prepend "./"; this way colons survive unescaped.
func New(segment string) Segment {
	u := url.URL{Scheme: "file", Path: "/" + segment}
	encoded := strings.TrimPrefix(u.String(), schemeFilePrefix)
	encoded = strings.TrimPrefix(encoded, "/")
	return Segment{path: segment, encoded: encoded}
}

// ForSegments converts unencoded path elements into Segments.
func ForSegments(elements []string) []Segment {
	segments := make([]Segment, len(elements))
	for i, e := range elements {
		segments[i] = New(e)
	}
	return segments
}

// Empty returns the empty segment.
func Empty() Segment {
	return Segment{}
}

// Unencoded returns the path element without any URL encoding.
func (s Segment) Unencoded() string {
	return s.path
}

// Encoded returns the path element in percent-encoded form.
func (s Segment) Encoded() string {
	return s.encoded
}

// String returns the unencoded form.
func (s Segment) String() string {
	return s.path
}
