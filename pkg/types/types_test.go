// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestListenPort_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		port    ListenPort
		wantErr bool
	}{
		{0, true},
		{1, false},
		{11345, false},
		{65535, false},
		{-1, true},
		{65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.port.String(), func(t *testing.T) {
			t.Parallel()
			err := tt.port.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListenPort(%d).Validate() err = %v, wantErr %v", tt.port, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidListenPort) {
				t.Errorf("error should wrap ErrInvalidListenPort, got: %v", err)
			}
		})
	}
}

func TestWorldName_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   WorldName
		wantErr bool
	}{
		{"empty means default", "", false},
		{"simple", "default", false},
		{"with dash", "shapes-2", false},
		{"blank", "   ", true},
		{"slash", "a/b", true},
		{"inner space", "a b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.value.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("WorldName(%q).Validate() err = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidWorldName) {
				t.Errorf("error should wrap ErrInvalidWorldName, got: %v", err)
			}
		})
	}
}

func TestEngineName_Validate(t *testing.T) {
	t.Parallel()

	if err := EngineName("").Validate(); err != nil {
		t.Errorf("zero value should be valid, got %v", err)
	}
	if err := EngineName("bullet").Validate(); err != nil {
		t.Errorf("bullet should be valid, got %v", err)
	}
	err := EngineName("ODE").Validate()
	if !errors.Is(err, ErrInvalidEngineName) {
		t.Errorf("upper-case name should wrap ErrInvalidEngineName, got %v", err)
	}
}
