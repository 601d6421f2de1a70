package agent

import (
	"context"
	"errors"
	"testing"
)

func TestValidate_EmptyGroupMessage(t *testing.T) {
	env := newTestEnv(t)

	msg := groupMsg("923001234567", "")
	if err := env.loop.validate(context.Background(), msg); !errors.Is(err, ErrEmptyGroupMessage) {
		t.Errorf("group: validate = %v, want ErrEmptyGroupMessage", err)
	}

	// Direct messages may be empty; the chat path decides what to do.
	msg = directMsg("923001234567", "")
	if err := env.loop.validate(context.Background(), msg); err != nil {
		t.Errorf("direct: validate = %v, want nil", err)
	}
}

func TestValidate_BlacklistedSender(t *testing.T) {
	env := newTestEnv(t)
	env.settings.blacklist["923009999999"] = true

	msg := directMsg("923009999999", "hi")
	if err := env.loop.validate(context.Background(), msg); !errors.Is(err, ErrBlacklisted) {
		t.Errorf("validate = %v, want ErrBlacklisted", err)
	}
}

func TestValidate_AdminBypassesBlacklist(t *testing.T) {
	env := newTestEnv(t, "923001234567")
	env.settings.blacklist["923001234567"] = true

	msg := directMsg("923001234567", "hi")
	if err := env.loop.validate(context.Background(), msg); err != nil {
		t.Errorf("validate = %v, want nil for an admin", err)
	}
}

func TestValidate_DebugRestrictsToAdmins(t *testing.T) {
	env := newTestEnv(t, "923001234567")
	env.loop.debug = true

	msg := directMsg("923009999999", "hi")
	if err := env.loop.validate(context.Background(), msg); !errors.Is(err, ErrDebugRestricted) {
		t.Errorf("non-admin: validate = %v, want ErrDebugRestricted", err)
	}

	msg = directMsg("923001234567", "hi")
	if err := env.loop.validate(context.Background(), msg); err != nil {
		t.Errorf("admin: validate = %v, want nil", err)
	}
}

func TestValidate_OrderBlacklistBeforeDebug(t *testing.T) {
	env := newTestEnv(t)
	env.loop.debug = true
	env.settings.blacklist["923009999999"] = true

	msg := directMsg("923009999999", "hi")
	if err := env.loop.validate(context.Background(), msg); !errors.Is(err, ErrBlacklisted) {
		t.Errorf("validate = %v, want the blacklist rule to win", err)
	}
}
