package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
)

func TestNullTimeRoundTrip(t *testing.T) {
	if nt := NullTime(nil); nt.Valid {
		t.Error("expected invalid NullTime for nil")
	}
	if TimePtr(sql.NullTime{}) != nil {
		t.Error("expected nil for invalid NullTime")
	}

	now := time.Now()
	got := TimePtr(NullTime(&now))
	if got == nil || !got.Equal(now) {
		t.Errorf("expected %v, got %v", now, got)
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"foreign key violation", &pq.Error{Code: "23503"}, true},
		{"wrapped", fmt.Errorf("insert unit: %w", &pq.Error{Code: "23503"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isForeignKeyViolation(tt.err); got != tt.want {
				t.Errorf("isForeignKeyViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJSONOrEmpty(t *testing.T) {
	var nilSlice []string
	got, err := jsonOrEmpty(nilSlice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("expected [], got %s", got)
	}

	got, err = jsonOrEmpty([]string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != `["a"]` {
		t.Errorf(`expected ["a"], got %s`, got)
	}
}

func TestHashLockName(t *testing.T) {
	if hashLockName("scheduler") != hashLockName("scheduler") {
		t.Error("expected stable hash")
	}
	if hashLockName("unit:u1:c1") == hashLockName("unit:u1:c2") {
		t.Error("expected distinct hashes for distinct names")
	}
}
