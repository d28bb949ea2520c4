// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package agent

import "testing"

func TestStaticPolicyEngine_SQLInjection(t *testing.T) {
	e, err := NewStaticPolicyEngine()
	if err != nil {
		t.Fatalf("NewStaticPolicyEngine() error = %v", err)
	}

	tests := []struct {
		name string
		text string
		want ViolationKind
	}{
		{"union select", "1 UNION SELECT username, password FROM users", ViolationSQLInjection},
		{"always true", "admin' OR '1'='1", ViolationSQLInjection},
		{"drop table", "'; DROP TABLE users; --", ViolationDangerousSQL},
		{"clean text", "show me the weekly report", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := e.Evaluate(tt.text)
			if tt.want == "" {
				for _, v := range violations {
					if v.Kind == ViolationSQLInjection || v.Kind == ViolationDangerousSQL {
						t.Fatalf("Evaluate(%q) unexpectedly flagged %v", tt.text, v)
					}
				}
				return
			}
			if !HasViolationKind(violations, tt.want) {
				t.Fatalf("Evaluate(%q) = %v, want a %s violation", tt.text, violations, tt.want)
			}
		})
	}
}

func TestStaticPolicyEngine_PII(t *testing.T) {
	e, err := NewStaticPolicyEngine()
	if err != nil {
		t.Fatalf("NewStaticPolicyEngine() error = %v", err)
	}

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"ssn", "my ssn is 123-45-6789", true},
		{"email", "contact me at jane.doe@example.com", true},
		{"valid card", "card 4111 1111 1111 1111 charged", true},
		{"invalid card luhn fails", "card 4111 1111 1111 1112 charged", false},
		{"clean text", "the weather is nice today", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := e.Evaluate(tt.text)
			got := HasViolationKind(violations, ViolationPII)
			if got != tt.want {
				t.Fatalf("Evaluate(%q) PII = %v, want %v (violations: %v)", tt.text, got, tt.want, violations)
			}
		})
	}
}

func TestStaticPolicyEngine_Redact(t *testing.T) {
	e, err := NewStaticPolicyEngine()
	if err != nil {
		t.Fatalf("NewStaticPolicyEngine() error = %v", err)
	}

	got := e.Redact("email me at jane.doe@example.com")
	if got == "email me at jane.doe@example.com" {
		t.Fatalf("Redact() left PII unredacted: %q", got)
	}
}

func TestLuhnValid(t *testing.T) {
	if !luhnValid("4111111111111111") {
		t.Fatal("luhnValid() = false for a known-valid test card number")
	}
	if luhnValid("4111111111111112") {
		t.Fatal("luhnValid() = true for a known-invalid card number")
	}
}
