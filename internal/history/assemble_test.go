package history

import (
	"reflect"
	"testing"
)

func TestAssemble_PerTurnOrder(t *testing.T) {
	turns := []Turn{
		{SystemPrompt: "be brief", UserPrompt: "hello", Response: "hi"},
		{UserPrompt: "more", Response: "sure"},
	}

	got := Assemble(turns, "")
	want := []Message{
		{RoleSystem, "be brief"},
		{RoleUser, "hello"},
		{RoleAssistant, "hi"},
		{RoleUser, "more"},
		{RoleAssistant, "sure"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Assemble = %v, want %v", got, want)
	}
}

func TestAssemble_SkipsBlankFields(t *testing.T) {
	turns := []Turn{
		{UserPrompt: "", Response: "hi"},
		{SystemPrompt: "   \n\t", UserPrompt: "  q  "},
	}

	got := Assemble(turns, "")
	want := []Message{
		{RoleAssistant, "hi"},
		{RoleUser, "q"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Assemble = %v, want %v", got, want)
	}
}

func TestAssemble_PendingAppendedLast(t *testing.T) {
	turns := []Turn{{UserPrompt: "first", Response: ""}}

	got := Assemble(turns, "second")
	want := []Message{
		{RoleUser, "first"},
		{RoleUser, "second"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Assemble = %v, want %v; pending must append even after a user message", got, want)
	}

	if n := len(Assemble(turns, "   ")); n != 1 {
		t.Errorf("blank pending produced %d messages, want 1", n)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	turns := []Turn{
		{SystemPrompt: "s", UserPrompt: "u", Response: "a"},
		{UserPrompt: "u2"},
	}

	first := Assemble(turns, "p")
	second := Assemble(turns, "p")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Assemble is not deterministic: %v vs %v", first, second)
	}
}

func TestAssemble_Empty(t *testing.T) {
	if got := Assemble(nil, ""); len(got) != 0 {
		t.Errorf("Assemble(nil, \"\") = %v, want empty", got)
	}
}

func TestLastMessages(t *testing.T) {
	msgs := []Message{
		{RoleSystem, "s"},
		{RoleUser, "u1"},
		{RoleAssistant, "a1"},
		{RoleUser, "u2"},
	}

	if got := LastUserMessage(msgs); got != "u2" {
		t.Errorf("LastUserMessage = %q, want %q", got, "u2")
	}
	if got := LastAssistantMessage(msgs); got != "a1" {
		t.Errorf("LastAssistantMessage = %q, want %q", got, "a1")
	}
	if got := LastAssistantMessage(nil); got != "" {
		t.Errorf("LastAssistantMessage(nil) = %q, want empty", got)
	}
}
