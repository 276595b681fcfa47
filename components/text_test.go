package components

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/systems"
)

func TestCPU_Run(t *testing.T) {
	tests := []struct {
		program string
		want    []string
		wantErr string
	}{
		{program: "push 2 push 3 add push 4 mul write", want: []string{"20"}},
		{program: "push 7 push 2 divmod write pop write", want: []string{"1", "3"}},
		{program: "push 1 neg write", want: []string{"-1"}},
		{program: "push 5 write write", want: []string{"5", "5"}},
		{program: "", want: nil},
		{program: "add", wantErr: "stack underflow"},
		{program: "write", wantErr: "stack underflow"},
		{program: "push 1 push 0 divmod", wantErr: "division by zero"},
		{program: "push 1 write jump", want: []string{"1"}, wantErr: `unknown word "jump"`},
		{program: "push", wantErr: "push: missing operand"},
	}

	cpu := NewCPU("cpu", systems.NewText())
	for _, tt := range tests {
		t.Run(tt.program, func(t *testing.T) {
			got, err := cpu.Run(tt.program)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("Run(%q) err = %v, want %q", tt.program, err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Run(%q) unexpected error: %v", tt.program, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Run(%q) = %v, want %v", tt.program, got, tt.want)
			}
		})
	}
}

func TestTerminal_TalksToCPU(t *testing.T) {
	text := systems.NewText()
	u := core.NewUniverse()
	u.AddSystem(text)

	term := NewTerminal("term", text)
	cpu := NewCPU("cpu", text)
	for _, c := range []core.Component{term, cpu} {
		if err := u.AddComponent(c); err != nil {
			t.Fatalf("AddComponent error: %v", err)
		}
	}
	u.Connect(core.AuthorityManual, term.Port(PortDebug), cpu.Port(PortDebug), core.Unlimited())

	term.Submit("push 6 push 7 mul write")
	term.Submit("pop")
	if err := u.Run(context.Background(), 3, time.Unix(0, 0), time.Second); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := []string{"> push 6 push 7 mul write", "> pop", "42", "error: stack underflow"}
	if got := term.History(); !reflect.DeepEqual(got, want) {
		t.Fatalf("History = %q, want %q", got, want)
	}
}
