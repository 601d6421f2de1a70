package plugin

import (
	"context"
	"strings"
	"testing"
)

func TestSettings_Change(t *testing.T) {
	st := newFakeSettings()
	st.values["greeting"] = "hello"
	p := NewSettings(st, testLogger())

	msg := adminMsg("settings", "-c", "greeting", "salaam")
	out, err := p.Handle(context.Background(), msg)
	if err != nil || out != OutcomeHandled {
		t.Fatalf("Handle = %v, %v", out, err)
	}

	want := "Setting `greeting` changed from\n```hello```\nto\n```salaam```"
	if msg.Outgoing != want {
		t.Errorf("reply = %q, want %q", msg.Outgoing, want)
	}
	if st.values["greeting"] != "salaam" {
		t.Errorf("stored = %q", st.values["greeting"])
	}
}

func TestSettings_ChangeQuotedValue(t *testing.T) {
	st := newFakeSettings()
	p := NewSettings(st, testLogger())

	// The tokenizer keeps quoted values as one token; extra positionals
	// are joined back with spaces.
	msg := adminMsg("settings", "-c", "motd", "good", "morning", "all")
	if _, err := p.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if st.values["motd"] != "good morning all" {
		t.Errorf("stored = %q", st.values["motd"])
	}
}

func TestSettings_GetOne(t *testing.T) {
	st := newFakeSettings()
	st.values["greeting"] = "hello"
	p := NewSettings(st, testLogger())

	msg := adminMsg("settings", "-g", "greeting")
	if _, err := p.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	want := "Value of setting `greeting` is\n```hello```"
	if msg.Outgoing != want {
		t.Errorf("reply = %q", msg.Outgoing)
	}
}

func TestSettings_GetAll_SortedKeys(t *testing.T) {
	st := newFakeSettings()
	st.values["zeta"] = "3"
	st.values["alpha"] = "1"
	p := NewSettings(st, testLogger())

	msg := adminMsg("settings", "-g", "all")
	if _, err := p.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(msg.Outgoing, "```") || !strings.HasSuffix(msg.Outgoing, "```") {
		t.Errorf("reply not fenced: %q", msg.Outgoing)
	}
	if strings.Index(msg.Outgoing, "alpha") > strings.Index(msg.Outgoing, "zeta") {
		t.Errorf("keys not sorted: %q", msg.Outgoing)
	}
}

func TestSettings_GetUnknown(t *testing.T) {
	p := NewSettings(newFakeSettings(), testLogger())

	msg := adminMsg("settings", "-g", "nope")
	if _, err := p.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if msg.Outgoing != "Setting not recognized." {
		t.Errorf("reply = %q", msg.Outgoing)
	}
}

func TestSettings_NoFlags(t *testing.T) {
	p := NewSettings(newFakeSettings(), testLogger())

	msg := adminMsg("settings")
	if _, err := p.Handle(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if msg.Outgoing != "Setting not recognized." {
		t.Errorf("reply = %q", msg.Outgoing)
	}
}

func TestSettings_StrayArgsShowHelp(t *testing.T) {
	p := NewSettings(newFakeSettings(), testLogger())

	for _, args := range [][]string{
		{"settings", "help"},
		{"settings", "-x"},
		{"settings", "-c", "key"}, // missing value
	} {
		msg := adminMsg(args...)
		out, err := p.Handle(context.Background(), msg)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if out != OutcomeShowHelp {
			t.Errorf("%v: outcome = %v, want OutcomeShowHelp", args, out)
		}
	}
}
