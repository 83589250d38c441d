package permission

import (
	"errors"
	"testing"
)

func TestWildcardImplies(t *testing.T) {
	cases := []struct {
		held string
		want string
		ok   bool
	}{
		{"user:*", "user:read", true},
		{"user", "user:read:42", true},
		{"user:read", "user:read", true},
		{"user:read,write", "user:write", true},
		{"user:read", "user:write", false},
		{"user:read", "user", false},
		{"user:read:*", "user:read", true},
		{"user:*:42", "user:delete:42", true},
		{"user:*:42", "user:delete:43", false},
		{"printer:print", "user:print", false},
		{"*", "anything:at:all", true},
		{"USER:Read", "user:read", true},
		{"user:read", "user:read,write", false},
	}

	for _, tc := range cases {
		held := MustWildcard(tc.held)
		want := MustWildcard(tc.want)
		if got := held.Implies(want); got != tc.ok {
			t.Fatalf("%q implies %q: expected %v, got %v", tc.held, tc.want, tc.ok, got)
		}
	}
}

func TestWildcardCaseSensitive(t *testing.T) {
	held, err := NewWildcardCase("User:Read", true)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want, _ := NewWildcardCase("user:read", true)
	if held.Implies(want) {
		t.Fatal("expected case-sensitive mismatch")
	}
}

func TestWildcardParseErrors(t *testing.T) {
	for _, raw := range []string{"", "   ", "a::b", "a:,b", ":"} {
		if _, err := NewWildcard(raw); !errors.Is(err, ErrInvalidPermission) {
			t.Fatalf("expected ErrInvalidPermission for %q, got %v", raw, err)
		}
	}
}

func TestResolverAllPermission(t *testing.T) {
	p, err := WildcardResolver{}.Resolve("*")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, ok := p.(AllPermission); !ok {
		t.Fatalf("expected AllPermission, got %T", p)
	}
	if !p.Implies(MustWildcard("doc:delete")) {
		t.Fatal("AllPermission must imply everything")
	}
}

func TestRoleManagerRegisterAndImplies(t *testing.T) {
	rm := NewRoleManager(nil)
	if err := rm.RegisterRole("editor", []string{"doc:read,write"}); err != nil {
		t.Fatalf("register editor: %v", err)
	}
	if err := rm.RegisterRole("admin", []string{"*"}); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if err := rm.RegisterRole("editor", nil); err == nil {
		t.Fatal("expected duplicate role error")
	}
	if err := rm.RegisterRole("broken", []string{"a::b"}); !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected parse error, got %v", err)
	}

	rm.Freeze()
	if err := rm.RegisterRole("late", nil); err == nil {
		t.Fatal("expected frozen error")
	}

	if !rm.Implies([]string{"editor"}, MustWildcard("doc:write")) {
		t.Fatal("editor should write docs")
	}
	if rm.Implies([]string{"editor"}, MustWildcard("doc:delete")) {
		t.Fatal("editor should not delete docs")
	}
	if !rm.Implies([]string{"nobody", "admin"}, MustWildcard("doc:delete")) {
		t.Fatal("admin should delete docs")
	}
	if rm.Count() != 2 {
		t.Fatalf("expected 2 roles, got %d", rm.Count())
	}
	if got := rm.Roles(); len(got) != 2 || got[0] != "admin" || got[1] != "editor" {
		t.Fatalf("unexpected roles %v", got)
	}
}

// FuzzWildcardParse exercises the parser with arbitrary strings.
// Goal: no panics; parsed permissions always imply themselves.
func FuzzWildcardParse(f *testing.F) {
	f.Add("user:read")
	f.Add("a,b,c:*:x")
	f.Add("")
	f.Add(":::")
	f.Add("*")

	f.Fuzz(func(t *testing.T, raw string) {
		p, err := NewWildcard(raw)
		if err != nil {
			return
		}
		if !p.Implies(p) {
			t.Fatalf("permission %q does not imply itself", raw)
		}
	})
}
