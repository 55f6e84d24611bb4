// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package validation

import (
	"strings"
	"testing"
)

type signupForm struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func TestValidateStructPasses(t *testing.T) {
	form := signupForm{
		Username: "alice42",
		Email:    "alice@example.com",
		Password: "correcthorse",
	}
	if err := ValidateStruct(&form); err != nil {
		t.Fatalf("expected valid struct, got: %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	tests := []struct {
		name      string
		form      signupForm
		wantField string
		wantWords string
	}{
		{
			name:      "missing username",
			form:      signupForm{Email: "a@b.com", Password: "correcthorse"},
			wantField: "Username",
			wantWords: "required",
		},
		{
			name:      "bad email",
			form:      signupForm{Username: "alice", Email: "nope", Password: "correcthorse"},
			wantField: "Email",
			wantWords: "valid email",
		},
		{
			name:      "short password",
			form:      signupForm{Username: "alice", Email: "a@b.com", Password: "pw"},
			wantField: "Password",
			wantWords: "at least 8 characters",
		},
		{
			name:      "username with symbols",
			form:      signupForm{Username: "al!ce", Email: "a@b.com", Password: "correcthorse"},
			wantField: "Username",
			wantWords: "letters and digits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.form)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if len(err.Errors()) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(err.Errors()), err)
			}
			fieldErr := err.Errors()[0]
			if fieldErr.Field() != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, fieldErr.Field())
			}
			if !strings.Contains(fieldErr.Error(), tt.wantWords) {
				t.Errorf("message %q does not contain %q", fieldErr.Error(), tt.wantWords)
			}
		})
	}
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	form := signupForm{}
	err := ValidateStruct(&form)
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR code, got %s", apiErr.Code)
	}
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected fields detail, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 3 {
		t.Errorf("expected 3 field errors, got %d", len(fields))
	}
}
