// Copyright 2023 The AnyCache Authors.
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

package errors

import (
	"errors"

	"github.com/anycache/anycache/proto"
)

// Error carries a wire status code alongside its message. Surfaces convert
// it to the in-band proto.Status of each RPC response.
type Error struct {
	Code proto.StatusCode
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Msg
}

func newError(code proto.StatusCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

func NotFound(msg string) *Error          { return newError(proto.CodeNotFound, msg) }
func AlreadyExists(msg string) *Error     { return newError(proto.CodeAlreadyExists, msg) }
func InvalidArgument(msg string) *Error   { return newError(proto.CodeInvalidArgument, msg) }
func IOError(msg string) *Error           { return newError(proto.CodeIOError, msg) }
func PermissionDenied(msg string) *Error  { return newError(proto.CodePermissionDenied, msg) }
func NotImplemented(msg string) *Error    { return newError(proto.CodeNotImplemented, msg) }
func ResourceExhausted(msg string) *Error { return newError(proto.CodeResourceExhausted, msg) }
func Unavailable(msg string) *Error       { return newError(proto.CodeUnavailable, msg) }
func Internal(msg string) *Error          { return newError(proto.CodeInternal, msg) }

// CodeOf extracts the status code; unclassified errors map to Internal.
func CodeOf(err error) proto.StatusCode {
	if err == nil {
		return proto.CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return proto.CodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == proto.CodeNotFound
}

func IsAlreadyExists(err error) bool {
	return CodeOf(err) == proto.CodeAlreadyExists
}

// Status renders an error into the in-band wire status.
func Status(err error) proto.Status {
	if err == nil {
		return proto.Status{Code: proto.CodeOK}
	}
	var e *Error
	if errors.As(err, &e) {
		return proto.Status{Code: e.Code, Message: e.Msg}
	}
	return proto.Status{Code: proto.CodeInternal, Message: err.Error()}
}

// FromStatus reverses Status on the client side.
func FromStatus(st proto.Status) error {
	if st.OK() {
		return nil
	}
	return &Error{Code: st.Code, Msg: st.Message}
}
