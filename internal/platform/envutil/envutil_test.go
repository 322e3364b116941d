package envutil

import (
	"testing"
	"time"
)

func TestParsers(t *testing.T) {
	t.Setenv("RA_TEST_INT", "42")
	t.Setenv("RA_TEST_BAD_INT", "forty")
	t.Setenv("RA_TEST_BOOL", "yes")
	t.Setenv("RA_TEST_DUR", "750ms")
	t.Setenv("RA_TEST_STR", "  value ")

	if got := Int("RA_TEST_INT", 1); got != 42 {
		t.Fatalf("Int=%d", got)
	}
	if got := Int("RA_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback=%d", got)
	}
	if !Bool("RA_TEST_BOOL", false) {
		t.Fatalf("Bool=false")
	}
	if Bool("RA_TEST_UNSET_BOOL", false) {
		t.Fatalf("unset Bool should use default")
	}
	if got := Duration("RA_TEST_DUR", time.Second); got != 750*time.Millisecond {
		t.Fatalf("Duration=%s", got)
	}
	if got := String("RA_TEST_STR", "x"); got != "value" {
		t.Fatalf("String=%q", got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("RA_TEST_LIST", " a@x.com, ,b@x.com ")
	t.Setenv("RA_TEST_EMPTY_LIST", " , ")

	got := List("RA_TEST_LIST", nil)
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "b@x.com" {
		t.Fatalf("List=%v", got)
	}
	if got := List("RA_TEST_EMPTY_LIST", []string{"d"}); len(got) != 1 || got[0] != "d" {
		t.Fatalf("blank list should use default, got %v", got)
	}
}
