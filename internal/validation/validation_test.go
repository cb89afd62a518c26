package validation

import "testing"

func TestIsValidUserID(t *testing.T) {
	valid := []string{"user123", "u", "alice-smith", "bob_jones", "USER_9"}
	for _, id := range valid {
		if !IsValidUserID(id) {
			t.Errorf("IsValidUserID(%q) = false, want true", id)
		}
	}

	invalid := []string{"", "user 123", "user@bank", "ユーザー", string(make([]byte, 65))}
	for _, id := range invalid {
		if IsValidUserID(id) {
			t.Errorf("IsValidUserID(%q) = true, want false", id)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world  ", 100); got != "helloworld" {
		t.Errorf("SanitizeString = %q, want helloworld", got)
	}
	if got := SanitizeString("abcdef", 3); got != "abc" {
		t.Errorf("SanitizeString = %q, want abc", got)
	}
}

func TestValidate(t *testing.T) {
	errs := Validate(
		Required("userId", ""),
		MaxLength("message", "hi", 10),
	)
	if len(errs) != 1 || errs[0].Field != "userId" {
		t.Errorf("unexpected errors: %+v", errs)
	}
	if errs.Error() != "userId: is required" {
		t.Errorf("Error() = %q", errs.Error())
	}

	if errs := Validate(Required("userId", "user1"), ValidUserID("userId", "user1")); len(errs) != 0 {
		t.Errorf("expected no errors, got %+v", errs)
	}
}
