package models

import (
	"errors"
	"testing"
)

func TestParseDecisionAction(t *testing.T) {
	tests := []struct {
		raw     string
		want    DecisionAction
		wantErr bool
	}{
		{raw: "approve", want: ActionApprove},
		{raw: "reject", want: ActionReject},
		{raw: "execute", want: ActionExecute},
		{raw: " approve ", wantErr: true},
		{raw: "Approve", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "archive", wantErr: true},
	}

	for _, tc := range tests {
		got, err := ParseDecisionAction(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidAction) {
				t.Errorf("ParseDecisionAction(%q): got %v, want ErrInvalidAction", tc.raw, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseDecisionAction(%q) = %q, %v; want %q", tc.raw, got, err, tc.want)
		}
	}
}
