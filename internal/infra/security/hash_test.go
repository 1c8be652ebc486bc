package security

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	encoded, err := HashPassword("Tr0ub4dour&Stanza")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if encoded == "" {
		t.Fatal("expected non-empty encoded hash")
	}

	ok, err := VerifyPassword("Tr0ub4dour&Stanza", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("correct password should verify")
	}

	ok, err = VerifyPassword("tr0ub4dour&stanza", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword wrong password: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestHashPasswordSaltsEveryCall(t *testing.T) {
	first, err := HashPassword("Tr0ub4dour&Stanza")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := HashPassword("Tr0ub4dour&Stanza")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestVerifyPasswordMalformedEncoding(t *testing.T) {
	cases := []string{
		"not-a-hash",
		"one:two:three",
		"!!!:AAAA",
		"AAAA:!!!",
	}
	for _, encoded := range cases {
		if _, err := VerifyPassword("whatever", encoded); err == nil {
			t.Fatalf("expected error for malformed encoding %q", encoded)
		}
	}
}

func TestVerifyPasswordEmptyInputs(t *testing.T) {
	ok, err := VerifyPassword("", "salt:hash")
	if err != nil || ok {
		t.Fatalf("empty password: ok=%v err=%v, want false,nil", ok, err)
	}
	ok, err = VerifyPassword("password", "")
	if err != nil || ok {
		t.Fatalf("empty encoding: ok=%v err=%v, want false,nil", ok, err)
	}
}

func TestConfigureArgon2RejectsWeakParams(t *testing.T) {
	cases := []struct {
		name   string
		params Argon2Params
	}{
		{name: "low memory", params: Argon2Params{Memory: 1024, Iterations: 3, Parallelism: 4, SaltLength: 16, KeyLength: 32}},
		{name: "zero iterations", params: Argon2Params{Memory: 64 * 1024, Parallelism: 4, SaltLength: 16, KeyLength: 32}},
		{name: "zero parallelism", params: Argon2Params{Memory: 64 * 1024, Iterations: 3, SaltLength: 16, KeyLength: 32}},
		{name: "short salt", params: Argon2Params{Memory: 64 * 1024, Iterations: 3, Parallelism: 4, SaltLength: 4, KeyLength: 32}},
		{name: "short key", params: Argon2Params{Memory: 64 * 1024, Iterations: 3, Parallelism: 4, SaltLength: 16, KeyLength: 8}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ConfigureArgon2(tc.params); err == nil {
				t.Fatal("expected parameter validation to fail")
			}
		})
	}

	if got := CurrentArgon2Params(); got != DefaultArgon2Params() {
		t.Fatalf("rejected parameters must not become active, got %+v", got)
	}
}

func TestConfigureArgon2OverridesDefaults(t *testing.T) {
	t.Cleanup(func() {
		if err := ConfigureArgon2(DefaultArgon2Params()); err != nil {
			t.Fatalf("restore defaults: %v", err)
		}
	})

	params := Argon2Params{
		Memory:      16 * 1024,
		Iterations:  1,
		Parallelism: 2,
		SaltLength:  8,
		KeyLength:   16,
	}
	if err := ConfigureArgon2(params); err != nil {
		t.Fatalf("ConfigureArgon2: %v", err)
	}

	encoded, err := HashPassword("Tr0ub4dour&Stanza")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	parts := strings.Split(encoded, ":")
	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("decode salt: %v", err)
	}
	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode hash: %v", err)
	}
	if len(salt) != 8 || len(hash) != 16 {
		t.Fatalf("salt/hash lengths = %d/%d, want 8/16", len(salt), len(hash))
	}

	ok, err := VerifyPassword("Tr0ub4dour&Stanza", encoded)
	if err != nil || !ok {
		t.Fatalf("verify with overridden parameters: ok=%v err=%v", ok, err)
	}
}
