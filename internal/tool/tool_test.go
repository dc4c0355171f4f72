package tool

import (
	"errors"
	"testing"
)

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Definition{
		Name:        "echo",
		Description: "Echoes its input.",
		Parameters:  objectSchema(map[string]any{"text": stringProp("text to echo")}, "text"),
	}, func(params map[string]any) (any, error) {
		return params["text"], nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := r.Execute("echo", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "hi" {
		t.Errorf("expected hi, got %v", got)
	}
}

func TestRegistryExecuteErrors(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(Definition{
		Name:       "fail",
		Parameters: objectSchema(map[string]any{"x": stringProp("")}, "x"),
	}, func(map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	tests := []struct {
		name     string
		tool     string
		params   map[string]any
		wantKind ErrorKind
	}{
		{"unregistered tool", "nope", nil, NotFound},
		{"missing required param", "fail", map[string]any{}, MissingParam},
		{"implementation error", "fail", map[string]any{"x": "1"}, ExecutionFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Execute(tc.tool, tc.params)
			if err == nil {
				t.Fatal("expected error")
			}
			kind, ok := KindOf(err)
			if !ok {
				t.Fatalf("expected tool error, got %T", err)
			}
			if kind != tc.wantKind {
				t.Errorf("expected kind %v, got %v", tc.wantKind, kind)
			}
		})
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	def := Definition{Name: "dup"}
	if err := r.Register(def, func(map[string]any) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(def, func(map[string]any) (any, error) { return nil, nil }); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRegistryDefinitionsSkipsUnknown(t *testing.T) {
	r := Builtin()
	defs := r.Definitions([]string{"chat", "no_such_tool", "help"})
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "chat" || defs[1].Name != "help" {
		t.Errorf("unexpected definitions: %v", defs)
	}
}

func TestBuiltinInventoryCheck(t *testing.T) {
	r := Builtin()

	if _, err := r.Execute("inventory_check", map[string]any{}); err == nil {
		t.Error("expected missing business_unit to be rejected before invocation")
	}

	got, err := r.Execute("inventory_check", map[string]any{"business_unit": "Global Recruitment"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["status"] != "ok" {
		t.Errorf("unexpected result: %v", got)
	}
}
