// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resource helps to track leaked resources such as cursors that were
// reserved from the registry but never disposed of.
//
// Every tracked object registers itself in a pprof profile named after its
// type. If the object is garbage collected while it is still tracked (i.e.
// Untrack was never called), its finalizer panics, turning a silent resource
// leak into a loud test failure.
package resource

import (
	"fmt"
	"reflect"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Token is attached to a tracked object and records its profile membership.
type Token struct {
	name    string
	cleanup *struct{}
}

// NewToken creates a new, untracked Token.
func NewToken() *Token {
	return new(Token)
}

var profilesMu sync.Mutex

// profileFor returns the (lazily created) pprof profile for the given name.
func profileFor(name string) *pprof.Profile {
	profilesMu.Lock()
	defer profilesMu.Unlock()

	if p := pprof.Lookup(name); p != nil {
		return p
	}

	return pprof.NewProfile(name)
}

// profileName derives a stable profile name from obj's dynamic type.
func profileName(obj any) string {
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return "resource." + t.Name()
}

// Track registers obj under token in its type's profile and arms a finalizer
// that panics if obj is collected before Untrack is called.
func Track(obj any, token *Token) {
	name := profileName(obj)
	token.name = name
	token.cleanup = new(struct{})

	profileFor(name).Add(token, 1)

	runtime.SetFinalizer(obj, func(any) {
		panic(fmt.Sprintf("%s has not been finalized", typeName(obj)))
	})
}

// typeName returns the unqualified type name of obj, for panic messages.
func typeName(obj any) string {
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t.Name()
}

// Untrack removes obj from its profile and disarms its finalizer.
//
// It must be called exactly once for every call to Track, typically from the
// object's Close/Dispose method.
func Untrack(obj any, token *Token) {
	if token.name == "" {
		return
	}

	profileFor(token.name).Remove(token)
	runtime.SetFinalizer(obj, nil)

	token.name = ""
	token.cleanup = nil
}
