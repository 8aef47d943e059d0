// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"testing"
)

func TestExtract_RejectsPython2OnlySyntax(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"print statement", "class A:\n    def m(self):\n        print \"hi\"\n        self.x()\n"},
		{"exec statement", "class A:\n    def m(self):\n        exec \"code\"\n"},
		{"except comma", "class A:\n    def m(self):\n        try:\n            self.x()\n        except E, e:\n            pass\n"},
		{"tab then spaces", "class A:\n\tdef m(self):\n        self.x()\n"},
		{"spaces then tab", "class A:\n    def m(self):\n        self.x()\n\tdef n(self):\n        pass\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes, err := NewPythonExtractor().Extract(context.Background(), []byte(tt.src), "legacy")
			if !errors.Is(err, ErrSyntax) {
				t.Fatalf("expected ErrSyntax, got %v", err)
			}
			if classes != nil {
				t.Errorf("expected no partial result, got %v", classes.ClassNames())
			}
		})
	}
}

func TestExtract_AcceptsPython3Lookalikes(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"print call", "class A:\n    def m(self):\n        print(\"hi\", self)\n"},
		{"exec call", "class A:\n    def m(self):\n        exec(\"code\")\n"},
		{"except tuple", "class A:\n    def m(self):\n        try:\n            pass\n        except (E, F) as e:\n            pass\n"},
		{"tabs only", "class A:\n\tdef m(self):\n\t\tself.x()\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes := extractSource(t, tt.src)
			if _, ok := classes["A"].Methods["m"]; !ok {
				t.Errorf("expected method A.m, got %v", classes["A"].MethodNames())
			}
		})
	}
}

func TestCheckIndentation(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"empty", "", false},
		{"spaces", "if x:\n    y()\n    if z:\n        w()\nv()\n", false},
		{"tabs", "if x:\n\ty()\n\tif z:\n\t\tw()\n", false},
		{"blank and comment lines ignored", "if x:\n    y()\n\t\n  # note\n\t# tab comment\n    z()\n", false},
		{"bracket continuation", "f(a,\n\tb,\n        c)\n", false},
		{"backslash continuation", "x = 1 + \\\n\t2\n", false},
		{"triple quoted string", "s = \"\"\"\n\tline\n        line\n\"\"\"\nt = '''\n\t'''\n", false},
		{"quote inside comment", "# it's fine\nif x:\n    y()\n", false},
		{"escaped quote", "s = 'it\\'s'\nif x:\n    y()\n", false},
		{"crlf", "if x:\r\n    y()\r\n", false},
		{"tab equals eight spaces", "if x:\n\ty()\n        z()\n", true},
		{"tab dedent mismatch", "if x:\n        if y:\n\t\t\tz()\n\tw()\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkIndentation([]byte(tt.src))
			if tt.wantErr {
				if !errors.Is(err, ErrSyntax) {
					t.Errorf("expected ErrSyntax, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
