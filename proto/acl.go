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

package proto

// AceType says whether an access-control entry allows or denies.
type AceType int

const (
	AceAccessAllowed AceType = 0
	AceAccessDenied  AceType = 1
)

// RsType is the resource kind an ACL is attached to.
type RsType int

const (
	RsTypeFile RsType = 0
	RsTypeDir  RsType = 1
)

// Who selects the principal class an ACE applies to.
type Who int

const (
	WhoOwner Who = iota
	WhoOwnerGroup
	WhoEveryone
	WhoAnonymous
	WhoAuthenticated
	WhoUser
	WhoGroup
)

// ACE is a single access-control entry. The engine stores ACEs in caller
// order; it does not evaluate them.
type ACE struct {
	Type      AceType
	Flags     int
	AccessMsk int
	Who       Who
	WhoID     int
}
